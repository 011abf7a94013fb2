// Package datastore persists observations, user locations and export logs.
//
// Two implementations satisfy the same interfaces. RemoteStore talks to a
// hosted SQL database through gorm. LocalStore keeps each collection as one
// JSON blob in a key-value store on the device. New picks one of them once,
// from the startup Settings, and the choice holds for the process lifetime.
package datastore

import (
	"context"
	"time"

	"github.com/tphakala/fieldlog/internal/model"
)

// Entity names, used for cache keys, metrics and local storage keys.
const (
	EntityObservations = "observations"
	EntityLocations    = "locations"
	EntityExportLogs   = "export_logs"
)

// ObservationStore reads and mutates observations with their species entries.
type ObservationStore interface {
	// FetchObservations lists the owner's observations. The anonymous owner
	// sees only unowned records.
	FetchObservations(ctx context.Context, owner model.Owner) ([]model.Observation, error)
	CreateObservation(ctx context.Context, in model.ObservationInput, owner model.Owner) (*model.Observation, error)
	// UpdateObservation applies the patch and stamps UpdatedAt. A non-nil
	// Species list deletes every existing entry and inserts the new set.
	// An id the owner does not have is not found.
	UpdateObservation(ctx context.Context, patch model.ObservationPatch, owner model.Owner) (*model.Observation, error)
	// DeleteObservation removes the observation and its species entries.
	// An id the owner does not have is not found.
	DeleteObservation(ctx context.Context, id string, owner model.Owner) error
	// StampExported sets LastExportedAt and increments ExportCount.
	StampExported(ctx context.Context, ids []string, at time.Time) error
}

// LocationStore reads and mutates saved user locations.
type LocationStore interface {
	FetchLocations(ctx context.Context, owner model.Owner) ([]model.UserLocation, error)
	CreateLocation(ctx context.Context, in model.LocationInput, owner model.Owner) (*model.UserLocation, error)
	UpdateLocation(ctx context.Context, patch model.LocationPatch, owner model.Owner) (*model.UserLocation, error)
	DeleteLocation(ctx context.Context, id string, owner model.Owner) error
}

// ExportLogStore records completed exports.
type ExportLogStore interface {
	CreateExportLog(ctx context.Context, entry model.ExportLog) (*model.ExportLog, error)
	FetchExportLogs(ctx context.Context, owner model.Owner) ([]model.ExportLog, error)
}

// Mode tells which backend a Stores value routes to.
type Mode string

const (
	ModeRemote Mode = "remote"
	ModeLocal  Mode = "local"
)
