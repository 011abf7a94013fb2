// Package app assembles the runtime components from Settings. Every
// command builds on one App and closes it on exit.
package app

import (
	"context"
	"time"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/datastore"
	"github.com/tphakala/fieldlog/internal/events"
	"github.com/tphakala/fieldlog/internal/export"
	"github.com/tphakala/fieldlog/internal/geocode"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/objectstore"
	"github.com/tphakala/fieldlog/internal/observability"
	"github.com/tphakala/fieldlog/internal/preferences"
	"github.com/tphakala/fieldlog/internal/taxonomy"
)

// eventDrainTimeout bounds how long Close waits for queued events.
const eventDrainTimeout = 5 * time.Second

// App holds the components selected for this process.
type App struct {
	Settings    *conf.Settings
	Metrics     *observability.Metrics
	Stores      *datastore.Stores
	Objects     objectstore.Store // nil unless remote mode has an endpoint
	Events      events.Publisher
	Taxonomy    *taxonomy.Client
	Geocoder    *geocode.Client // nil when geocoding is disabled
	Exporter    *export.Exporter
	Preferences *preferences.Store

	logger logger.Logger
}

// Options override parts of the assembly, mainly for tests.
type Options struct {
	// MQTTFactory creates the broker client; nil uses paho.
	MQTTFactory events.ClientFactory
	// Objects replaces the MinIO store.
	Objects objectstore.Store
}

// Open builds every component. The storage mode is decided here, once.
func Open(ctx context.Context, settings *conf.Settings, opts Options) (_ *App, err error) {
	a := &App{Settings: settings, logger: logger.Global().Module("app")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Metrics, err = observability.NewMetrics(); err != nil {
		return nil, err
	}
	if a.Stores, err = datastore.New(ctx, settings, a.Metrics); err != nil {
		return nil, err
	}
	a.logger.Info("storage selected", logger.String("mode", string(a.Stores.Mode)))

	if err = a.openObjects(ctx, opts); err != nil {
		return nil, err
	}
	if err = a.openEvents(ctx, opts); err != nil {
		return nil, err
	}

	if a.Taxonomy, err = taxonomy.NewClient(taxonomy.ConfigFromSettings(settings.Taxonomy, a.Metrics.Lookup)); err != nil {
		return nil, err
	}
	if settings.Geocode.Enabled {
		if a.Geocoder, err = geocode.NewClient(geocode.ConfigFromSettings(settings.Geocode, a.Metrics.Lookup)); err != nil {
			return nil, err
		}
	}

	a.Exporter = export.New(export.Config{
		Remote:  a.Stores.Remote(),
		Objects: a.Objects,
		Logs:    a.Stores.ExportLogs,
		Stamper: a.Stores.Observations,
		Events:  a.Events,
		Metrics: a.Metrics.Export,
	})
	a.Preferences = preferences.NewStore(a.Stores.KV, settings.Preferences)
	return a, nil
}

func (a *App) openObjects(ctx context.Context, opts Options) error {
	if !a.Stores.Remote() {
		return nil
	}
	if opts.Objects != nil {
		a.Objects = opts.Objects
		return nil
	}
	if !a.Settings.Storage.Enabled() {
		a.logger.Info("object storage not configured, exports stay local")
		return nil
	}
	store, err := objectstore.NewMinioStore(a.Settings.Storage)
	if err != nil {
		return err
	}
	// An unreachable bucket fails the upload step later; startup goes on.
	if err := store.EnsureBucket(ctx); err != nil {
		a.logger.Warn("object storage bucket check failed", logger.Error(err))
	}
	a.Objects = store
	return nil
}

func (a *App) openEvents(ctx context.Context, opts Options) error {
	if !a.Settings.MQTT.Enabled {
		a.Events = events.NopPublisher{}
		return nil
	}
	pub, err := events.NewMQTTPublisher(ctx, a.Settings.MQTT, opts.MQTTFactory)
	if err != nil {
		return err
	}
	bus := events.NewBus(events.DefaultBusConfig(), pub)
	bus.OnDelivery = func(e events.Event, err error) {
		a.Metrics.Export.RecordEvent(string(e.Type), err)
	}
	a.Events = &busPublisher{Bus: bus, mqtt: pub}
	return nil
}

// busPublisher drains the bus before disconnecting its MQTT consumer.
type busPublisher struct {
	*events.Bus
	mqtt *events.MQTTPublisher
}

func (b *busPublisher) Close() {
	if !b.Shutdown(eventDrainTimeout) {
		events.GetLogger().Warn("event bus did not drain before shutdown")
	}
	b.mqtt.Close()
}

// Close releases every component. It is safe on a partly opened App.
func (a *App) Close() {
	if a.Events != nil {
		a.Events.Close()
	}
	if a.Taxonomy != nil {
		a.Taxonomy.Close()
	}
	if a.Geocoder != nil {
		a.Geocoder.Close()
	}
	if a.Stores != nil {
		if err := a.Stores.Close(); err != nil {
			a.logger.Warn("failed to close stores", logger.Error(err))
		}
	}
}
