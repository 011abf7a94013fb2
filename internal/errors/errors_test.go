package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureReporter struct {
	reported []*EnhancedError
}

func (c *captureReporter) ReportError(ee *EnhancedError) { c.reported = append(c.reported, ee) }
func (c *captureReporter) IsEnabled() bool               { return true }

func TestBuildDefaults(t *testing.T) {
	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.Component)
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderContext(t *testing.T) {
	ee := Newf("insert failed: %s", "boom").
		Component("datastore").
		Category(CategoryDatabase).
		Context("entity", "observations").
		Timing("create_observation", 0).
		Build()

	assert.Equal(t, "datastore", ee.Component)
	assert.True(t, IsCategory(ee, CategoryDatabase))
	ctx := ee.GetContext()
	assert.Equal(t, "observations", ctx["entity"])
	assert.Equal(t, "create_observation", ctx["operation"])

	// returned context is a copy
	ctx["entity"] = "changed"
	assert.Equal(t, "observations", ee.GetContext()["entity"])
}

func TestCategoryInheritedFromWrappedError(t *testing.T) {
	inner := Newf("no such observation").Category(CategoryNotFound).Build()
	outer := New(fmt.Errorf("update: %w", inner)).Build()

	assert.Equal(t, CategoryNotFound, outer.Category)
	assert.True(t, IsNotFound(outer))
}

func TestCategoryHeuristics(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"context deadline exceeded", CategoryTimeout},
		{"dial tcp: connection refused", CategoryNetwork},
		{"invalid latitude", CategoryValidation},
		{"something odd", CategoryGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, New(NewStd(tt.msg)).Build().Category)
		})
	}
}

func TestJoinedCategories(t *testing.T) {
	joined := Join(
		Newf("upload failed").Category(CategoryPartial).Build(),
		Newf("log insert failed").Category(CategoryPartial).Build(),
	)
	assert.True(t, IsCategory(joined, CategoryPartial))
	assert.False(t, IsValidation(joined))
}

func TestTelemetryReporterReceivesBuiltErrors(t *testing.T) {
	rep := &captureReporter{}
	SetTelemetryReporter(rep)
	t.Cleanup(func() { SetTelemetryReporter(nil) })

	Newf("remote insert failed").Category(CategoryDatabase).Build()
	require.Len(t, rep.reported, 1)
	assert.Equal(t, CategoryDatabase, rep.reported[0].Category)
}

func TestScrubMessageForPrivacy(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		absent  string
		present string
	}{
		{"url query", "GET https://nominatim.example.org/reverse?lat=59.9&lon=10.7 failed", "lat=59.9", "?[REDACTED]"},
		{"api key", "config error: api_key=secret123 is invalid", "secret123", "[API_KEY_REDACTED]"},
		{"dsn password", "dial fieldlog:hunter2@tcp(db:3306)/fieldlog", "hunter2", "fieldlog:[REDACTED]@"},
		{"uuid", "observation 1b4e28ba-2fa1-11d2-883f-0016d3cca427 missing", "1b4e28ba", "[ID_REDACTED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := scrubMessageForPrivacy(tt.in)
			assert.NotContains(t, out, tt.absent)
			assert.Contains(t, out, tt.present)
		})
	}
}

func TestGenerateErrorTitle(t *testing.T) {
	ee := Newf("x").Component("export").Category(CategoryStorage).Context("operation", "upload_export").Build()
	assert.Equal(t, "Export Object Storage Error Upload Export", generateErrorTitle(ee))
}
