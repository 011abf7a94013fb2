package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values referenced outside the conf package.
const (
	DefaultStaleTime      = 5 * time.Minute
	DefaultDebounceDelay  = 300 * time.Millisecond
	DefaultMinQueryLength = 2
	DefaultExportBucket   = "exports"
	DefaultUserAgent      = "fieldlog/1.0 (+https://github.com/tphakala/fieldlog)"
)

// setDefaultConfig sets default values for every configuration key.
func setDefaultConfig(v *viper.Viper) {
	// Remote datastore
	v.SetDefault("remote.url", "")
	v.SetDefault("remote.key", "")
	v.SetDefault("remote.timeout", 15*time.Second)
	v.SetDefault("remote.slow_query_threshold", 200*time.Millisecond)

	// Local fallback store
	v.SetDefault("local.path", "data")

	// Object storage
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", DefaultExportBucket)
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", true)

	// Species search
	v.SetDefault("taxonomy.base_url", "https://artskart.artsdatabanken.no/publicapi/api")
	v.SetDefault("taxonomy.taxon_group", "")
	v.SetDefault("taxonomy.timeout", 10*time.Second)
	v.SetDefault("taxonomy.cache_ttl", time.Hour)
	v.SetDefault("taxonomy.debounce_delay", DefaultDebounceDelay)
	v.SetDefault("taxonomy.min_query_length", DefaultMinQueryLength)

	// Reverse geocoding
	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.language", "no")
	v.SetDefault("geocode.user_agent", DefaultUserAgent)
	v.SetDefault("geocode.timeout", 10*time.Second)
	v.SetDefault("geocode.requests_per_second", 1.0)

	// Query cache
	v.SetDefault("query.stale_time", DefaultStaleTime)

	// Export
	v.SetDefault("export.dir", "exports")

	// Preferences
	v.SetDefault("preferences.map_layer", "topo")
	v.SetDefault("preferences.theme", "system")
	v.SetDefault("preferences.topo_tile_url", "https://cache.kartverket.no/v1/wmts/1.0.0/topo/default/webmercator/{z}/{y}/{x}.png")
	v.SetDefault("preferences.satellite_tile_url", "https://server.arcgisonline.com/ArcGIS/rest/services/World_Imagery/MapServer/tile/{z}/{y}/{x}")

	// HTTP API
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.owner_header", "X-User-ID")

	// MQTT events
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "fieldlog")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "fieldlog")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retain", false)

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.dsn", "")
	v.SetDefault("telemetry.environment", "production")
	v.SetDefault("telemetry.sample_rate", 1.0)

	// Logging
	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/fieldlog.log")
	v.SetDefault("logging.file_output.level", "info")
}
