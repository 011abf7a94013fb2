package telemetry

import (
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
)

const testDSN = "https://public@o0.ingest.sentry.io/1"

func TestInitDisabled(t *testing.T) {
	require.NoError(t, Init(conf.TelemetrySettings{Enabled: false, DSN: testDSN}))
	assert.False(t, Enabled())
	assert.Nil(t, errors.GetTelemetryReporter())

	require.NoError(t, Init(conf.TelemetrySettings{Enabled: true}))
	assert.False(t, Enabled(), "a DSN is required")
	assert.True(t, Flush(time.Millisecond))
}

func TestInitReportsEnhancedErrors(t *testing.T) {
	transport := NewMockTransport()
	require.NoError(t, Init(conf.TelemetrySettings{Enabled: true, DSN: testDSN}, WithTransport(transport)))
	t.Cleanup(func() { Flush(time.Second) })

	assert.True(t, Enabled())
	require.NotNil(t, errors.GetTelemetryReporter())

	_ = errors.Newf("connection refused for https://db.example.com?token=secret").
		Component("datastore").
		Category(errors.CategoryDatabase).
		Build()
	_ = errors.Newf("count must be positive").
		Component("model").
		Category(errors.CategoryValidation).
		Build()

	require.True(t, sentry.Flush(time.Second))
	events := transport.Events()
	require.Len(t, events, 1, "validation errors are not reported")
	assert.Equal(t, "datastore", events[0].Tags["component"])
	assert.NotContains(t, events[0].Message, "secret")
}

func TestFlushDetachesReporter(t *testing.T) {
	require.NoError(t, Init(conf.TelemetrySettings{Enabled: true, DSN: testDSN}, WithTransport(NewMockTransport())))
	assert.True(t, Flush(time.Second))
	assert.False(t, Enabled())
	assert.Nil(t, errors.GetTelemetryReporter())
}

func TestPrivacyFilters(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{
		ServerName: "field-laptop",
		User:       sentry.User{ID: "user-42", Email: "a@example.com"},
		Contexts:   map[string]sentry.Context{"os": {"name": "linux"}, "app": {"v": 1}},
		Extra:      map[string]any{"component": "export", "path": "/home/a"},
		Tags:       map[string]string{"hostname": "field-laptop", "category": "database"},
	}
	out := applyPrivacyFilters(event)
	assert.Empty(t, out.ServerName)
	assert.True(t, out.User.IsEmpty())
	assert.NotContains(t, out.Contexts, "os")
	assert.Contains(t, out.Contexts, "app")
	assert.Equal(t, map[string]any{"component": "export"}, out.Extra)
	assert.Equal(t, map[string]string{"category": "database"}, out.Tags)
}
