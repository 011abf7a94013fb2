package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/fieldlog/internal/errors"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"remote.url", "FIELDLOG_REMOTE_URL", validateEnvRemoteURL},
		{"remote.key", "FIELDLOG_REMOTE_KEY", nil},
		{"remote.timeout", "FIELDLOG_REMOTE_TIMEOUT", validateEnvDuration},

		{"local.path", "FIELDLOG_LOCAL_PATH", nil},

		{"storage.endpoint", "FIELDLOG_STORAGE_ENDPOINT", nil},
		{"storage.access_key", "FIELDLOG_STORAGE_ACCESS_KEY", nil},
		{"storage.secret_key", "FIELDLOG_STORAGE_SECRET_KEY", nil},
		{"storage.bucket", "FIELDLOG_STORAGE_BUCKET", nil},
		{"storage.use_ssl", "FIELDLOG_STORAGE_USE_SSL", validateEnvBool},

		{"taxonomy.base_url", "FIELDLOG_TAXONOMY_BASE_URL", validateEnvHTTPURL},
		{"geocode.base_url", "FIELDLOG_GEOCODE_BASE_URL", validateEnvHTTPURL},
		{"geocode.user_agent", "FIELDLOG_GEOCODE_USER_AGENT", nil},

		{"query.stale_time", "FIELDLOG_QUERY_STALE_TIME", validateEnvDuration},

		{"server.listen", "FIELDLOG_LISTEN", nil},

		{"mqtt.enabled", "FIELDLOG_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "FIELDLOG_MQTT_BROKER", nil},
		{"mqtt.username", "FIELDLOG_MQTT_USERNAME", nil},
		{"mqtt.password", "FIELDLOG_MQTT_PASSWORD", nil},

		{"telemetry.enabled", "FIELDLOG_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.dsn", "FIELDLOG_SENTRY_DSN", nil},

		{"logging.default_level", "FIELDLOG_LOG_LEVEL", validateEnvLogLevel},
	}
}

// bindEnvVars binds FIELDLOG_* variables and validates any that are set.
func bindEnvVars(v *viper.Viper) error {
	var problems []string
	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}
		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s: %v", binding.EnvVar, err))
			}
		}
	}

	if len(problems) > 0 {
		return errors.Newf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - ")).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value %q", value)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	if d < 0 {
		return fmt.Errorf("duration must not be negative, got %s", d)
	}
	return nil
}

func validateEnvRemoteURL(value string) error {
	return validateRemoteScheme(value)
}

func validateEnvHTTPURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown log level %q", value)
}
