// Package api exposes the stores, lookups and export pipeline over a JSON
// HTTP API. It is the composition point the UI talks to.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/datastore"
	"github.com/tphakala/fieldlog/internal/events"
	"github.com/tphakala/fieldlog/internal/export"
	"github.com/tphakala/fieldlog/internal/geocode"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/observability"
	"github.com/tphakala/fieldlog/internal/preferences"
)

// SpeciesSearcher finds taxa by name.
type SpeciesSearcher interface {
	Search(ctx context.Context, term string) ([]model.Taxon, error)
}

// ReverseGeocoder names a point.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, p model.Point) (geocode.Place, error)
}

// Deps are the collaborators a Controller serves. Geocoder and Metrics may
// be nil.
type Deps struct {
	Settings    *conf.Settings
	Stores      *datastore.Stores
	Taxonomy    SpeciesSearcher
	Geocoder    ReverseGeocoder
	Exporter    *export.Exporter
	Preferences *preferences.Store
	Events      events.Publisher
	Metrics     *observability.Metrics
}

// Controller holds the route handlers.
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	settings    *conf.Settings
	stores      *datastore.Stores
	taxonomy    SpeciesSearcher
	geocoder    ReverseGeocoder
	exporter    *export.Exporter
	preferences *preferences.Store
	events      events.Publisher
	metrics     *observability.Metrics
	startTime   time.Time
	logger      logger.Logger
}

// GetLogger returns the api module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// New registers the API routes on e.
func New(e *echo.Echo, deps Deps) *Controller {
	if deps.Events == nil {
		deps.Events = events.NopPublisher{}
	}
	c := &Controller{
		Echo:        e,
		settings:    deps.Settings,
		stores:      deps.Stores,
		taxonomy:    deps.Taxonomy,
		geocoder:    deps.Geocoder,
		exporter:    deps.Exporter,
		preferences: deps.Preferences,
		events:      deps.Events,
		metrics:     deps.Metrics,
		startTime:   time.Now(),
		logger:      GetLogger(),
	}
	c.initRoutes()
	return c
}

// NewEcho returns an echo instance with the common middleware installed.
func NewEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.IPExtractor = echo.ExtractIPFromXFFHeader()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewRequestLogger(GetLogger()))
	return e
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1", c.ownerMiddleware)

	c.Group.GET("/health", c.HealthCheck)

	c.Group.GET("/observations", c.ListObservations)
	c.Group.POST("/observations", c.CreateObservation)
	c.Group.PUT("/observations/:id", c.UpdateObservation)
	c.Group.DELETE("/observations/:id", c.DeleteObservation)

	c.Group.GET("/locations", c.ListLocations)
	c.Group.POST("/locations", c.CreateLocation)
	c.Group.PUT("/locations/:id", c.UpdateLocation)
	c.Group.DELETE("/locations/:id", c.DeleteLocation)

	c.Group.GET("/species", c.SearchSpecies)
	c.Group.GET("/geocode/reverse", c.ReverseGeocode)

	c.Group.POST("/exports", c.CreateExport)
	c.Group.GET("/exports/logs", c.ListExportLogs)

	c.Group.GET("/preferences", c.GetPreferences)
	c.Group.PUT("/preferences", c.UpdatePreferences)

	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// HealthCheck reports liveness and the selected storage mode.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"mode":   c.stores.Mode,
		"uptime": time.Since(c.startTime).Round(time.Second).String(),
	})
}
