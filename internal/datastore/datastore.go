package datastore

import (
	"context"
	"time"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/observability"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
	"github.com/tphakala/fieldlog/internal/query"
)

// Stores bundles the stores selected for this process.
type Stores struct {
	Observations ObservationStore
	Locations    LocationStore
	ExportLogs   ExportLogStore
	// KV is the on-device store. It backs the local collections and the
	// preferences in both modes.
	KV   KV
	Mode Mode

	closers []func() error
}

// Remote reports whether the stores write to the remote database.
func (s *Stores) Remote() bool {
	return s.Mode == ModeRemote
}

// Close releases the backend. It is safe to call more than once.
func (s *Stores) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// New selects the backend once from settings. When the remote URL and key
// are both set the stores use the remote database behind the query cache,
// otherwise the local KV under settings.Local.Path. m may be nil.
func New(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (*Stores, error) {
	var (
		dsMetrics    *metrics.DatastoreMetrics
		queryMetrics *metrics.QueryMetrics
	)
	if m != nil {
		dsMetrics = m.Datastore
		queryMetrics = m.Query
	}

	kv, err := NewFileKV(settings.Local.Path)
	if err != nil {
		return nil, err
	}

	log := GetLogger()

	if !settings.Remote.Configured() {
		local, err := OpenLocal(kv, dsMetrics)
		if err != nil {
			return nil, err
		}
		log.Info("using local datastore", logger.String("path", settings.Local.Path))
		return &Stores{
			Observations: local,
			Locations:    local,
			ExportLogs:   local,
			KV:           kv,
			Mode:         ModeLocal,
			closers:      []func() error{local.Close},
		}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, dbError(err, "database", "open")
	}

	remote, err := OpenRemote(settings.Remote, dsMetrics)
	if err != nil {
		return nil, err
	}

	refetchTimeout := settings.Remote.Timeout
	if refetchTimeout <= 0 {
		refetchTimeout = DefaultRemoteTimeout
	}
	cache := query.NewClient(query.Config{
		StaleTime:      settings.Query.StaleTime,
		RefetchTimeout: refetchTimeout,
		Metrics:        queryMetrics,
	})

	log.Info("using remote datastore",
		logger.String("url", settings.Remote.RedactedURL()),
		logger.Duration("stale_time", settings.Query.StaleTime))

	waitRefetches := func() error {
		waitCtx, cancel := context.WithTimeout(context.Background(), refetchTimeout+time.Second)
		defer cancel()
		return cache.Wait(waitCtx)
	}

	return &Stores{
		Observations: NewCachedObservationStore(remote, cache),
		Locations:    NewCachedLocationStore(remote, cache),
		ExportLogs:   NewCachedExportLogStore(remote, cache),
		KV:           kv,
		Mode:         ModeRemote,
		closers:      []func() error{waitRefetches, remote.Close},
	}, nil
}
