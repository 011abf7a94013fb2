// Package events publishes notifications about observation changes and
// completed exports. Publishing is best effort: a failed publish is logged
// by the caller and never fails the operation that produced the event.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
)

// Type names an event.
type Type string

// Event types.
const (
	ObservationCreated Type = "observation.created"
	ObservationUpdated Type = "observation.updated"
	ObservationDeleted Type = "observation.deleted"
	ExportCompleted    Type = "export.completed"
)

// Event is the JSON payload published for every change.
type Event struct {
	Type       Type      `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	UserID     *string   `json:"userId"`
	Data       any       `json:"data,omitempty"`
}

// New returns an event stamped with the current time.
func New(t Type, owner model.Owner, data any) Event {
	return Event{Type: t, OccurredAt: time.Now().UTC(), UserID: owner.UserID(), Data: data}
}

// ExportData is the Data of an ExportCompleted event.
type ExportData struct {
	FileName       string   `json:"fileName"`
	StoragePath    string   `json:"storagePath,omitempty"`
	ObservationIDs []string `json:"observationIds"`
	Rows           int      `json:"rows"`
	RemoteStatus   string   `json:"remoteStatus"`
}

// DeletedData is the Data of an ObservationDeleted event.
type DeletedData struct {
	ID string `json:"id"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// GetLogger returns the events module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("events")
}

// PublishOrLog publishes e and logs a failure instead of returning it.
func PublishOrLog(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		GetLogger().Warn("event publish failed",
			logger.String("type", string(e.Type)),
			logger.Error(err))
	}
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() {}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, e)
	return nil
}

// Close implements Publisher.
func (r *Recorder) Close() {}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}
