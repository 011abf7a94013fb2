package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
)

const backendLocal = "local"

// LocalStore implements ObservationStore, LocationStore and ExportLogStore on
// a KV. Each collection is one JSON array under a fixed key, read once at
// open and rewritten whole on every mutation. Blobs carry no schema version.
type LocalStore struct {
	kv      KV
	metrics *metrics.DatastoreMetrics
	logger  logger.Logger
	now     func() time.Time
	newID   func() string

	mu           sync.RWMutex
	observations []model.Observation
	locations    []model.UserLocation
	exportLogs   []model.ExportLog
}

// OpenLocal loads every collection from kv. A blob that fails to decode is
// an error; the store does not start from empty over existing data.
func OpenLocal(kv KV, m *metrics.DatastoreMetrics) (*LocalStore, error) {
	s := &LocalStore{
		kv:      kv,
		metrics: m,
		logger:  GetLogger(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
		newID: uuid.NewString,
	}
	if err := load(kv, KeyObservations, &s.observations); err != nil {
		return nil, err
	}
	if err := load(kv, KeyLocations, &s.locations); err != nil {
		return nil, err
	}
	if err := load(kv, KeyExportLogs, &s.exportLogs); err != nil {
		return nil, err
	}
	s.logger.Info("local datastore opened",
		logger.Int("observations", len(s.observations)),
		logger.Int("locations", len(s.locations)))
	return s, nil
}

func load[T any](kv KV, key string, dst *[]T) error {
	data, ok, err := kv.Get(key)
	if err != nil {
		return err
	}
	if !ok || len(data) == 0 {
		*dst = []T{}
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return storageError(fmt.Errorf("corrupt local blob %s: %w", key, err), key, "load")
	}
	return nil
}

func save[T any](kv KV, key string, items []T) error {
	data, err := json.Marshal(items)
	if err != nil {
		return storageError(err, key, "encode")
	}
	return kv.Set(key, data)
}

func (s *LocalStore) record(entity, op string, start time.Time, err error) {
	s.metrics.RecordOperation(backendLocal, entity, op, start, err)
}

func cloneObservation(o model.Observation) model.Observation {
	o.Species = slices.Clone(o.Species)
	if o.Species == nil {
		o.Species = []model.SpeciesObservation{}
	}
	return o
}

// FetchObservations returns the owner's observations in insertion order.
func (s *LocalStore) FetchObservations(_ context.Context, owner model.Owner) ([]model.Observation, error) {
	start := time.Now()
	defer s.record(EntityObservations, "fetch", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.Observation{}
	for i := range s.observations {
		if owner.Matches(s.observations[i].UserID) {
			result = append(result, cloneObservation(s.observations[i]))
		}
	}
	return result, nil
}

// CreateObservation appends a new observation and persists the collection.
func (s *LocalStore) CreateObservation(_ context.Context, in model.ObservationInput, owner model.Owner) (_ *model.Observation, err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "create", start, err) }()

	if err = in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	obs := model.Observation{
		ID:                s.newID(),
		UserID:            owner.UserID(),
		LocationName:      in.LocationName,
		Point:             in.Point,
		UncertaintyRadius: in.UncertaintyRadius,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		Comment:           in.Comment,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	obs.Species = model.NewSpecies(obs.ID, in.Species, s.newID)

	next := append(slices.Clone(s.observations), obs)
	if err = save(s.kv, KeyObservations, next); err != nil {
		return nil, err
	}
	s.observations = next

	out := cloneObservation(obs)
	return &out, nil
}

func (s *LocalStore) observationIndex(id string, owner model.Owner) int {
	return slices.IndexFunc(s.observations, func(o model.Observation) bool {
		return o.ID == id && owner.Matches(o.UserID)
	})
}

func (s *LocalStore) locationIndex(id string, owner model.Owner) int {
	return slices.IndexFunc(s.locations, func(l model.UserLocation) bool {
		return l.ID == id && owner.Matches(l.UserID)
	})
}

// UpdateObservation applies patch and persists the collection.
func (s *LocalStore) UpdateObservation(_ context.Context, patch model.ObservationPatch, owner model.Owner) (_ *model.Observation, err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "update", start, err) }()

	if err = patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.observationIndex(patch.ID, owner)
	if i < 0 {
		return nil, notFound("observation", patch.ID)
	}

	obs := cloneObservation(s.observations[i])
	patch.Apply(&obs)
	if err = obs.ValidateDates(); err != nil {
		return nil, err
	}
	if patch.Species != nil {
		obs.Species = model.NewSpecies(obs.ID, patch.Species, s.newID)
	}
	obs.UpdatedAt = s.now()

	next := slices.Clone(s.observations)
	next[i] = obs
	if err = save(s.kv, KeyObservations, next); err != nil {
		return nil, err
	}
	s.observations = next

	out := cloneObservation(obs)
	return &out, nil
}

// DeleteObservation removes the observation.
func (s *LocalStore) DeleteObservation(_ context.Context, id string, owner model.Owner) (err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "delete", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.observationIndex(id, owner)
	if i < 0 {
		return notFound("observation", id)
	}
	next := slices.Delete(slices.Clone(s.observations), i, i+1)
	if err = save(s.kv, KeyObservations, next); err != nil {
		return err
	}
	s.observations = next
	return nil
}

// StampExported sets LastExportedAt and increments ExportCount locally.
func (s *LocalStore) StampExported(_ context.Context, ids []string, at time.Time) (err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "stamp", start, err) }()

	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	at = at.UTC()
	next := slices.Clone(s.observations)
	for i := range next {
		if slices.Contains(ids, next[i].ID) {
			stamped := at
			next[i].LastExportedAt = &stamped
			next[i].ExportCount++
		}
	}
	if err = save(s.kv, KeyObservations, next); err != nil {
		return err
	}
	s.observations = next
	return nil
}

// FetchLocations returns the owner's locations in insertion order.
func (s *LocalStore) FetchLocations(_ context.Context, owner model.Owner) ([]model.UserLocation, error) {
	start := time.Now()
	defer s.record(EntityLocations, "fetch", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.UserLocation{}
	for _, l := range s.locations {
		if owner.Matches(l.UserID) {
			result = append(result, l)
		}
	}
	return result, nil
}

// CreateLocation appends a new location and persists the collection.
func (s *LocalStore) CreateLocation(_ context.Context, in model.LocationInput, owner model.Owner) (_ *model.UserLocation, err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "create", start, err) }()

	if err = in.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	loc := model.UserLocation{
		ID:                s.newID(),
		UserID:            owner.UserID(),
		Name:              in.Name,
		Point:             in.Point,
		UncertaintyRadius: in.UncertaintyRadius,
		Description:       in.Description,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	next := append(slices.Clone(s.locations), loc)
	if err = save(s.kv, KeyLocations, next); err != nil {
		return nil, err
	}
	s.locations = next
	return &loc, nil
}

// UpdateLocation applies patch and persists the collection.
func (s *LocalStore) UpdateLocation(_ context.Context, patch model.LocationPatch, owner model.Owner) (_ *model.UserLocation, err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "update", start, err) }()

	if err = patch.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.locationIndex(patch.ID, owner)
	if i < 0 {
		return nil, notFound("location", patch.ID)
	}
	loc := s.locations[i]
	patch.Apply(&loc)
	loc.UpdatedAt = s.now()

	next := slices.Clone(s.locations)
	next[i] = loc
	if err = save(s.kv, KeyLocations, next); err != nil {
		return nil, err
	}
	s.locations = next
	return &loc, nil
}

// DeleteLocation removes the location.
func (s *LocalStore) DeleteLocation(_ context.Context, id string, owner model.Owner) (err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "delete", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.locationIndex(id, owner)
	if i < 0 {
		return notFound("location", id)
	}
	next := slices.Delete(slices.Clone(s.locations), i, i+1)
	if err = save(s.kv, KeyLocations, next); err != nil {
		return err
	}
	s.locations = next
	return nil
}

// CreateExportLog appends an export log entry.
func (s *LocalStore) CreateExportLog(_ context.Context, entry model.ExportLog) (_ *model.ExportLog, err error) {
	start := time.Now()
	defer func() { s.record(EntityExportLogs, "create", start, err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	entry.ObservationIDs = slices.Clone(entry.ObservationIDs)
	if entry.ObservationIDs == nil {
		entry.ObservationIDs = []string{}
	}

	next := append(slices.Clone(s.exportLogs), entry)
	if err = save(s.kv, KeyExportLogs, next); err != nil {
		return nil, err
	}
	s.exportLogs = next
	return &entry, nil
}

// FetchExportLogs returns the owner's export history, newest first.
func (s *LocalStore) FetchExportLogs(_ context.Context, owner model.Owner) ([]model.ExportLog, error) {
	start := time.Now()
	defer s.record(EntityExportLogs, "fetch", start, nil)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.ExportLog{}
	for i := len(s.exportLogs) - 1; i >= 0; i-- {
		if owner.Matches(s.exportLogs[i].UserID) {
			e := s.exportLogs[i]
			e.ObservationIDs = slices.Clone(e.ObservationIDs)
			result = append(result, e)
		}
	}
	return result, nil
}

// Close is a no-op; every mutation is already persisted.
func (s *LocalStore) Close() error {
	return nil
}

var (
	_ ObservationStore = (*LocalStore)(nil)
	_ LocationStore    = (*LocalStore)(nil)
	_ ExportLogStore   = (*LocalStore)(nil)
)
