package datastore

import (
	"context"
	"time"

	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/query"
)

// CachedObservationStore serves observation reads through the query cache
// and invalidates it after successful mutations.
type CachedObservationStore struct {
	next  ObservationStore
	cache *query.Client
}

// NewCachedObservationStore wraps next with the query cache.
func NewCachedObservationStore(next ObservationStore, cache *query.Client) *CachedObservationStore {
	return &CachedObservationStore{next: next, cache: cache}
}

func (c *CachedObservationStore) FetchObservations(ctx context.Context, owner model.Owner) ([]model.Observation, error) {
	key := query.Key{Entity: EntityObservations, Owner: owner}
	return query.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.Observation, error) {
		return c.next.FetchObservations(ctx, owner)
	})
}

func (c *CachedObservationStore) CreateObservation(ctx context.Context, in model.ObservationInput, owner model.Owner) (*model.Observation, error) {
	obs, err := c.next.CreateObservation(ctx, in, owner)
	// also on error: a failed species insert leaves the parent row behind
	c.cache.Invalidate(query.Key{Entity: EntityObservations, Owner: owner})
	return obs, err
}

func (c *CachedObservationStore) UpdateObservation(ctx context.Context, patch model.ObservationPatch, owner model.Owner) (*model.Observation, error) {
	obs, err := c.next.UpdateObservation(ctx, patch, owner)
	// also on error: a failed species insert leaves the row without species
	c.cache.Invalidate(query.Key{Entity: EntityObservations, Owner: owner})
	return obs, err
}

func (c *CachedObservationStore) DeleteObservation(ctx context.Context, id string, owner model.Owner) error {
	err := c.next.DeleteObservation(ctx, id, owner)
	// also on error: species rows go before the parent row
	c.cache.Invalidate(query.Key{Entity: EntityObservations, Owner: owner})
	return err
}

func (c *CachedObservationStore) StampExported(ctx context.Context, ids []string, at time.Time) error {
	if err := c.next.StampExported(ctx, ids, at); err != nil {
		return err
	}
	c.cache.InvalidateEntity(EntityObservations)
	return nil
}

// CachedLocationStore serves location reads through the query cache.
type CachedLocationStore struct {
	next  LocationStore
	cache *query.Client
}

// NewCachedLocationStore wraps next with the query cache.
func NewCachedLocationStore(next LocationStore, cache *query.Client) *CachedLocationStore {
	return &CachedLocationStore{next: next, cache: cache}
}

func (c *CachedLocationStore) FetchLocations(ctx context.Context, owner model.Owner) ([]model.UserLocation, error) {
	key := query.Key{Entity: EntityLocations, Owner: owner}
	return query.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.UserLocation, error) {
		return c.next.FetchLocations(ctx, owner)
	})
}

func (c *CachedLocationStore) CreateLocation(ctx context.Context, in model.LocationInput, owner model.Owner) (*model.UserLocation, error) {
	loc, err := c.next.CreateLocation(ctx, in, owner)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(query.Key{Entity: EntityLocations, Owner: owner})
	return loc, nil
}

func (c *CachedLocationStore) UpdateLocation(ctx context.Context, patch model.LocationPatch, owner model.Owner) (*model.UserLocation, error) {
	loc, err := c.next.UpdateLocation(ctx, patch, owner)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(query.Key{Entity: EntityLocations, Owner: owner})
	return loc, nil
}

func (c *CachedLocationStore) DeleteLocation(ctx context.Context, id string, owner model.Owner) error {
	if err := c.next.DeleteLocation(ctx, id, owner); err != nil {
		return err
	}
	c.cache.Invalidate(query.Key{Entity: EntityLocations, Owner: owner})
	return nil
}

// CachedExportLogStore serves export history through the query cache.
type CachedExportLogStore struct {
	next  ExportLogStore
	cache *query.Client
}

// NewCachedExportLogStore wraps next with the query cache.
func NewCachedExportLogStore(next ExportLogStore, cache *query.Client) *CachedExportLogStore {
	return &CachedExportLogStore{next: next, cache: cache}
}

func (c *CachedExportLogStore) FetchExportLogs(ctx context.Context, owner model.Owner) ([]model.ExportLog, error) {
	key := query.Key{Entity: EntityExportLogs, Owner: owner}
	return query.Fetch(ctx, c.cache, key, func(ctx context.Context) ([]model.ExportLog, error) {
		return c.next.FetchExportLogs(ctx, owner)
	})
}

func (c *CachedExportLogStore) CreateExportLog(ctx context.Context, entry model.ExportLog) (*model.ExportLog, error) {
	created, err := c.next.CreateExportLog(ctx, entry)
	if err != nil {
		return nil, err
	}
	c.cache.Invalidate(query.Key{Entity: EntityExportLogs, Owner: model.OwnerOf(entry.UserID)})
	return created, nil
}

var (
	_ ObservationStore = (*CachedObservationStore)(nil)
	_ LocationStore    = (*CachedLocationStore)(nil)
	_ ExportLogStore   = (*CachedExportLogStore)(nil)
)
