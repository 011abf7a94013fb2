package conf

import (
	"fmt"
	"slices"

	"github.com/tphakala/fieldlog/internal/errors"
)

// Accepted preference values.
var (
	MapLayers = []string{"topo", "satellite"}
	Themes    = []string{"light", "dark", "system"}
)

// ValidateSettings checks settings for values that would break startup.
func ValidateSettings(s *Settings) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, errors.Newf(format, args...).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build())
	}

	if s.Remote.URL != "" {
		if err := validateRemoteScheme(s.Remote.URL); err != nil {
			add("remote.url: %v", err)
		}
	}
	if s.Remote.Timeout < 0 {
		add("remote.timeout must not be negative")
	}
	if s.Query.StaleTime < 0 {
		add("query.stale_time must not be negative")
	}
	if s.Taxonomy.DebounceDelay < 0 {
		add("taxonomy.debounce_delay must not be negative")
	}
	if s.Taxonomy.MinQueryLength < 1 {
		add("taxonomy.min_query_length must be at least 1, got %d", s.Taxonomy.MinQueryLength)
	}
	if s.Geocode.Enabled && s.Geocode.UserAgent == "" {
		add("geocode.user_agent is required by the geocoding provider usage policy")
	}
	if s.Geocode.RequestsPerSecond <= 0 {
		add("geocode.requests_per_second must be positive")
	}
	if !slices.Contains(MapLayers, s.Preferences.MapLayer) {
		add("preferences.map_layer must be one of %v, got %q", MapLayers, s.Preferences.MapLayer)
	}
	if !slices.Contains(Themes, s.Preferences.Theme) {
		add("preferences.theme must be one of %v, got %q", Themes, s.Preferences.Theme)
	}
	if s.Local.Path == "" {
		add("local.path must not be empty")
	}
	if s.MQTT.Enabled && s.MQTT.Broker == "" {
		add("mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.QoS > 2 {
		add("mqtt.qos must be 0, 1 or 2")
	}
	if s.Telemetry.Enabled && s.Telemetry.DSN == "" {
		add("telemetry.dsn is required when telemetry is enabled")
	}

	return errors.Join(errs...)
}

func validateRemoteScheme(raw string) error {
	scheme := RemoteSettings{URL: raw}.Scheme()
	switch scheme {
	case "mysql", "sqlite":
		return nil
	case "":
		return fmt.Errorf("missing scheme in %q, expected mysql:// or sqlite://", raw)
	default:
		return fmt.Errorf("unsupported scheme %q, expected mysql or sqlite", scheme)
	}
}
