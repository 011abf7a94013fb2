// Package telemetry provides opt-in, privacy-filtered error tracking.
package telemetry

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/fieldlog/internal/buildinfo"
	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

var initialized atomic.Bool

// Option adjusts the Sentry client options before initialisation.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the network transport.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// Init starts error tracking when telemetry is enabled and a DSN is set,
// and registers Sentry as the reporter for enhanced errors. Otherwise it
// does nothing.
func Init(s conf.TelemetrySettings, opts ...Option) error {
	log := logger.Global().Module("telemetry")
	if !s.Enabled || s.DSN == "" {
		log.Debug("telemetry disabled")
		return nil
	}

	sampleRate := s.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1.0
	}
	env := s.Environment
	if env == "" {
		env = "production"
	}

	options := sentry.ClientOptions{
		Dsn:              s.DSN,
		SampleRate:       sampleRate,
		AttachStacktrace: false,
		Environment:      env,
		ServerName:       "",
		Release:          buildinfo.Release(),
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	}
	for _, opt := range opts {
		opt(&options)
	}
	if err := sentry.Init(options); err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		scope.SetTag("go_version", runtime.Version())
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized.Store(true)
	log.Info("telemetry enabled",
		logger.String("environment", env),
		logger.String("release", options.Release))
	return nil
}

// Enabled reports whether Init started error tracking.
func Enabled() bool {
	return initialized.Load()
}

// Flush waits up to timeout for queued events and detaches the reporter.
func Flush(timeout time.Duration) bool {
	if !initialized.Swap(false) {
		return true
	}
	errors.SetTelemetryReporter(nil)
	return sentry.Flush(timeout)
}

// applyPrivacyFilters drops identifying data before an event leaves the host.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
		delete(event.Tags, "user_id")
	}
	return event
}
