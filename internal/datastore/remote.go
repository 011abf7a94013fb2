package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
)

const backendRemote = "remote"

// DefaultRemoteTimeout bounds every remote call when remote.timeout is unset.
const DefaultRemoteTimeout = 15 * time.Second

// RemoteStore implements ObservationStore, LocationStore and ExportLogStore
// on a SQL database through gorm.
//
// Creating an observation is two statements without a transaction: the
// parent row, then the species rows. If the second fails the parent stays
// behind without children. Updating the species list deletes every existing
// child row before inserting the new set, also without a transaction.
type RemoteStore struct {
	db      *gorm.DB
	timeout time.Duration
	metrics *metrics.DatastoreMetrics
	logger  logger.Logger
	now     func() time.Time
	newID   func() string
}

// OpenRemote connects to the database named by settings.URL and migrates the schema.
func OpenRemote(remote conf.RemoteSettings, m *metrics.DatastoreMetrics) (*RemoteStore, error) {
	gormCfg := &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(logger.Global().Module("datastore.gorm"), remote.SlowQueryThreshold),
		NowFunc: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}

	var (
		db  *gorm.DB
		err error
	)
	switch scheme := remote.Scheme(); scheme {
	case "mysql":
		db, err = openMySQL(remote, gormCfg)
	case "sqlite":
		db, err = openSQLite(remote, gormCfg)
	default:
		err = errors.Newf("unsupported remote url scheme %q", scheme).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}

	if remote.Scheme() == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, dbError(err, "database", "open")
		}
		// one connection keeps :memory: databases shared and serialises writers
		sqlDB.SetMaxOpenConns(1)
	}

	store := NewRemoteStore(db, remote.Timeout, m)
	if err := store.migrate(); err != nil {
		_ = store.Close()
		return nil, err
	}

	store.logger.Info("remote datastore opened",
		logger.String("url", remote.RedactedURL()),
		logger.Duration("timeout", store.timeout))
	return store, nil
}

// NewRemoteStore wraps an open gorm connection. A zero timeout uses DefaultRemoteTimeout.
func NewRemoteStore(db *gorm.DB, timeout time.Duration, m *metrics.DatastoreMetrics) *RemoteStore {
	if timeout <= 0 {
		timeout = DefaultRemoteTimeout
	}
	return &RemoteStore{
		db:      db,
		timeout: timeout,
		metrics: m,
		logger:  GetLogger(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
		newID: uuid.NewString,
	}
}

func (s *RemoteStore) migrate() error {
	if err := s.db.AutoMigrate(&ObservationRow{}, &SpeciesObservationRow{}, &LocationRow{}, &ExportLogRow{}); err != nil {
		return dbError(fmt.Errorf("auto migration failed: %w", err), "database", "migrate")
	}
	return nil
}

// DB returns the underlying gorm handle.
func (s *RemoteStore) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection.
func (s *RemoteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return dbError(err, "database", "close")
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "database", "close")
	}
	return nil
}

func (s *RemoteStore) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func ownerScope(owner model.Owner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.IsAnonymous() {
			return db.Where("user_id IS NULL")
		}
		return db.Where("user_id = ?", string(owner))
	}
}

func (s *RemoteStore) record(entity, op string, start time.Time, err error) {
	s.metrics.RecordOperation(backendRemote, entity, op, start, err)
}

// FetchObservations returns the owner's observations, newest first.
func (s *RemoteStore) FetchObservations(ctx context.Context, owner model.Owner) (result []model.Observation, err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "fetch", start, err) }()

	db, cancel := s.session(ctx)
	defer cancel()

	var rows []ObservationRow
	err = db.Scopes(ownerScope(owner)).
		Preload("Species", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, dbError(err, EntityObservations, "fetch")
	}

	result = make([]model.Observation, len(rows))
	for i := range rows {
		result[i] = rows[i].toModel()
	}
	return result, nil
}

// CreateObservation inserts the observation, then its species entries.
func (s *RemoteStore) CreateObservation(ctx context.Context, in model.ObservationInput, owner model.Owner) (_ *model.Observation, err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "create", start, err) }()

	if err = in.Validate(); err != nil {
		return nil, err
	}

	db, cancel := s.session(ctx)
	defer cancel()

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

	parent := observationRowFrom(&obs)
	if err = db.Omit(clause.Associations).Create(&parent).Error; err != nil {
		return nil, dbError(err, EntityObservations, "create")
	}

	children := speciesRows(obs.Species)
	if err = db.Create(&children).Error; err != nil {
		s.logger.Warn("species insert failed, observation saved without species",
			logger.String("observation_id", obs.ID),
			logger.Int("species", len(children)),
			logger.Error(err))
		return nil, dbError(err, "species_observations", "create")
	}

	s.logger.Debug("observation created",
		logger.String("observation_id", obs.ID),
		logger.Int("species", len(children)))
	return &obs, nil
}

// UpdateObservation applies patch and stamps updated_at. A non-nil species
// list replaces every existing species entry.
func (s *RemoteStore) UpdateObservation(ctx context.Context, patch model.ObservationPatch, owner model.Owner) (_ *model.Observation, err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "update", start, err) }()

	if err = patch.Validate(); err != nil {
		return nil, err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	var row ObservationRow
	if err = db.Scopes(ownerScope(owner)).Where("id = ?", patch.ID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("observation", patch.ID)
		}
		return nil, dbError(err, EntityObservations, "update")
	}

	obs := row.toModel()
	patch.Apply(&obs)
	if err = obs.ValidateDates(); err != nil {
		return nil, err
	}
	obs.UpdatedAt = s.now()

	fields := map[string]any{
		"location_name":      obs.LocationName,
		"lat":                obs.Point.Lat,
		"lng":                obs.Point.Lng,
		"uncertainty_radius": obs.UncertaintyRadius,
		"start_date":         obs.StartDate,
		"end_date":           obs.EndDate,
		"comment":            obs.Comment,
		"updated_at":         obs.UpdatedAt,
	}
	if err = db.Model(&ObservationRow{}).Where("id = ?", obs.ID).Updates(fields).Error; err != nil {
		return nil, dbError(err, EntityObservations, "update")
	}

	if patch.Species != nil {
		if err = db.Where("observation_id = ?", obs.ID).Delete(&SpeciesObservationRow{}).Error; err != nil {
			return nil, dbError(err, "species_observations", "delete")
		}
		children := speciesRows(model.NewSpecies(obs.ID, patch.Species, s.newID))
		if err = db.Create(&children).Error; err != nil {
			return nil, dbError(err, "species_observations", "create")
		}
	}

	var updated ObservationRow
	err = db.Preload("Species", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("id = ?", obs.ID).Take(&updated).Error
	if err != nil {
		return nil, dbError(err, EntityObservations, "update")
	}
	result := updated.toModel()
	return &result, nil
}

// DeleteObservation deletes the species entries, then the observation.
func (s *RemoteStore) DeleteObservation(ctx context.Context, id string, owner model.Owner) (err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "delete", start, err) }()

	db, cancel := s.session(ctx)
	defer cancel()

	if err = ensureOwned(db, &ObservationRow{}, "observation", id, owner); err != nil {
		return err
	}

	if err = db.Where("observation_id = ?", id).Delete(&SpeciesObservationRow{}).Error; err != nil {
		return dbError(err, "species_observations", "delete")
	}
	if err = db.Where("id = ?", id).Delete(&ObservationRow{}).Error; err != nil {
		return dbError(err, EntityObservations, "delete")
	}
	return nil
}

// StampExported sets last_exported_at and increments export_count in one statement.
func (s *RemoteStore) StampExported(ctx context.Context, ids []string, at time.Time) (err error) {
	start := time.Now()
	defer func() { s.record(EntityObservations, "stamp", start, err) }()

	if len(ids) == 0 {
		return nil
	}

	db, cancel := s.session(ctx)
	defer cancel()

	err = db.Model(&ObservationRow{}).
		Where("id IN ?", ids).
		UpdateColumns(map[string]any{
			"last_exported_at": at.UTC(),
			"export_count":     gorm.Expr("export_count + ?", 1),
		}).Error
	if err != nil {
		return dbError(err, EntityObservations, "stamp")
	}
	return nil
}

// FetchLocations returns the owner's saved locations ordered by name.
func (s *RemoteStore) FetchLocations(ctx context.Context, owner model.Owner) (result []model.UserLocation, err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "fetch", start, err) }()

	db, cancel := s.session(ctx)
	defer cancel()

	var rows []LocationRow
	if err = db.Scopes(ownerScope(owner)).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, dbError(err, EntityLocations, "fetch")
	}
	result = make([]model.UserLocation, len(rows))
	for i := range rows {
		result[i] = rows[i].toModel()
	}
	return result, nil
}

// CreateLocation saves a new named location.
func (s *RemoteStore) CreateLocation(ctx context.Context, in model.LocationInput, owner model.Owner) (_ *model.UserLocation, err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "create", start, err) }()

	if err = in.Validate(); err != nil {
		return nil, err
	}

	db, cancel := s.session(ctx)
	defer cancel()

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
	row := locationRowFrom(&loc)
	if err = db.Create(&row).Error; err != nil {
		return nil, dbError(err, EntityLocations, "create")
	}
	return &loc, nil
}

// UpdateLocation applies patch and stamps updated_at.
func (s *RemoteStore) UpdateLocation(ctx context.Context, patch model.LocationPatch, owner model.Owner) (_ *model.UserLocation, err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "update", start, err) }()

	if err = patch.Validate(); err != nil {
		return nil, err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	var row LocationRow
	if err = db.Scopes(ownerScope(owner)).Where("id = ?", patch.ID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("location", patch.ID)
		}
		return nil, dbError(err, EntityLocations, "update")
	}

	loc := row.toModel()
	patch.Apply(&loc)
	loc.UpdatedAt = s.now()

	err = db.Model(&LocationRow{}).Where("id = ?", loc.ID).Updates(map[string]any{
		"name":               loc.Name,
		"lat":                loc.Point.Lat,
		"lng":                loc.Point.Lng,
		"uncertainty_radius": loc.UncertaintyRadius,
		"description":        loc.Description,
		"updated_at":         loc.UpdatedAt,
	}).Error
	if err != nil {
		return nil, dbError(err, EntityLocations, "update")
	}
	return &loc, nil
}

// DeleteLocation removes a saved location.
func (s *RemoteStore) DeleteLocation(ctx context.Context, id string, owner model.Owner) (err error) {
	start := time.Now()
	defer func() { s.record(EntityLocations, "delete", start, err) }()

	db, cancel := s.session(ctx)
	defer cancel()

	res := db.Scopes(ownerScope(owner)).Where("id = ?", id).Delete(&LocationRow{})
	if err = res.Error; err != nil {
		return dbError(err, EntityLocations, "delete")
	}
	if res.RowsAffected == 0 {
		return notFound("location", id)
	}
	return nil
}

// ensureOwned fails with not found unless the owner has a row with id.
func ensureOwned(db *gorm.DB, table any, entity, id string, owner model.Owner) error {
	var n int64
	if err := db.Model(table).Scopes(ownerScope(owner)).Where("id = ?", id).Count(&n).Error; err != nil {
		return dbError(err, entity, "lookup")
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

// CreateExportLog records a completed export. Id and CreatedAt are assigned
// when empty.
func (s *RemoteStore) CreateExportLog(ctx context.Context, entry model.ExportLog) (_ *model.ExportLog, err error) {
	start := time.Now()
	defer func() { s.record(EntityExportLogs, "create", start, err) }()

	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	if entry.ObservationIDs == nil {
		entry.ObservationIDs = []string{}
	}

	row, err := exportLogRowFrom(&entry)
	if err != nil {
		return nil, dbError(err, EntityExportLogs, "create")
	}

	db, cancel := s.session(ctx)
	defer cancel()

	if err = db.Create(&row).Error; err != nil {
		return nil, dbError(err, EntityExportLogs, "create")
	}
	return &entry, nil
}

// FetchExportLogs returns the owner's export history, newest first.
func (s *RemoteStore) FetchExportLogs(ctx context.Context, owner model.Owner) (result []model.ExportLog, err error) {
	start := time.Now()
	defer func() { s.record(EntityExportLogs, "fetch", start, err) }()

	db, cancel := s.session(ctx)
	defer cancel()

	var rows []ExportLogRow
	if err = db.Scopes(ownerScope(owner)).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, dbError(err, EntityExportLogs, "fetch")
	}
	result = make([]model.ExportLog, 0, len(rows))
	for i := range rows {
		entry, convErr := rows[i].toModel()
		if convErr != nil {
			return nil, dbError(convErr, EntityExportLogs, "fetch")
		}
		result = append(result, entry)
	}
	return result, nil
}

var (
	_ ObservationStore = (*RemoteStore)(nil)
	_ LocationStore    = (*RemoteStore)(nil)
	_ ExportLogStore   = (*RemoteStore)(nil)
)
