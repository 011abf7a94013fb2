// Package preferences stores per-device display preferences. They live in
// the on-device KV store in both storage modes.
package preferences

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/datastore"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

// MapLayer selects the base map.
type MapLayer string

const (
	LayerTopo      MapLayer = "topo"
	LayerSatellite MapLayer = "satellite"
)

// Theme selects the colour scheme.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Preferences is the persisted blob.
type Preferences struct {
	MapLayer MapLayer `json:"mapLayer"`
	Theme    Theme    `json:"theme"`
}

// Patch changes the non-nil fields.
type Patch struct {
	MapLayer *MapLayer `json:"mapLayer,omitempty"`
	Theme    *Theme    `json:"theme,omitempty"`
}

// Validate checks both fields against the known values.
func (p Preferences) Validate() error {
	switch p.MapLayer {
	case LayerTopo, LayerSatellite:
	default:
		return invalid("mapLayer", string(p.MapLayer))
	}
	switch p.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		return invalid("theme", string(p.Theme))
	}
	return nil
}

func invalid(field, value string) error {
	return errors.Newf("invalid %s %q", field, value).
		Component("preferences").
		Category(errors.CategoryValidation).
		Context("field", field).
		Build()
}

// Store reads and writes preferences. Reads fall back to the configured
// defaults until something has been saved.
type Store struct {
	mu       sync.Mutex
	kv       datastore.KV
	defaults Preferences
	tiles    map[MapLayer]string
	logger   logger.Logger
}

// NewStore returns a Store backed by kv.
func NewStore(kv datastore.KV, s conf.PreferencesSettings) *Store {
	return &Store{
		kv:       kv,
		defaults: Preferences{MapLayer: MapLayer(s.MapLayer), Theme: Theme(s.Theme)},
		tiles: map[MapLayer]string{
			LayerTopo:      s.TopoTileURL,
			LayerSatellite: s.SatelliteTileURL,
		},
		logger: logger.Global().Module("preferences"),
	}
}

// Get returns the saved preferences or the defaults.
func (s *Store) Get() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (Preferences, error) {
	raw, ok, err := s.kv.Get(datastore.KeyPreferences)
	if err != nil {
		return Preferences{}, err
	}
	if !ok {
		return s.defaults, nil
	}
	p := s.defaults
	if err := json.Unmarshal(raw, &p); err != nil {
		// A damaged blob is replaced on the next save.
		s.logger.Warn("ignoring unreadable preferences", logger.Error(err))
		return s.defaults, nil
	}
	return p, nil
}

// Update applies patch, validates the result and saves it.
func (s *Store) Update(patch Patch) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load()
	if err != nil {
		return Preferences{}, err
	}
	if patch.MapLayer != nil {
		p.MapLayer = *patch.MapLayer
	}
	if patch.Theme != nil {
		p.Theme = *patch.Theme
	}
	if err := p.Validate(); err != nil {
		return Preferences{}, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := s.kv.Set(datastore.KeyPreferences, raw); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// TileURL returns the raster tile URL template for layer.
func (s *Store) TileURL(layer MapLayer) (string, error) {
	u, ok := s.tiles[layer]
	if !ok || u == "" {
		return "", invalid("mapLayer", string(layer))
	}
	return u, nil
}
