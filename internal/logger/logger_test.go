package logger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelDebug).Module("datastore")

	log.Info("observation created",
		String("observation_id", "abc"),
		Int("species", 2),
		Float64("lat", 59.91390001),
		Duration("elapsed", 1500*time.Microsecond),
		Error(errors.New("boom")))

	out := buf.String()
	assert.Contains(t, out, "module=datastore")
	assert.Contains(t, out, "observation_id=abc")
	assert.Contains(t, out, "species=2")
	assert.Contains(t, out, "lat=59.9139")
	assert.Contains(t, out, "elapsed=2ms")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "time=")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelWarn).Module("query")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSubModuleAndWith(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, LogLevelInfo).Module("datastore")
	child := base.Module("remote").With(String("entity", "locations"))

	child.Info("fetched")
	base.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "module=datastore.remote")
	assert.Contains(t, lines[0], "entity=locations")
	assert.NotContains(t, lines[1], "entity=")
}

func TestWithContextAddsTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriterLogger(&buf, LogLevelInfo).Module("api")

	log.WithContext(WithTraceID(context.Background(), "req-1")).Info("handled")
	log.WithContext(context.Background()).Info("no trace")

	assert.Contains(t, buf.String(), "trace_id=req-1")
	assert.Equal(t, 1, strings.Count(buf.String(), "trace_id"))
}

func TestTraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	NewWriterLogger(&buf, LogLevelTrace).Module("gorm").Trace("sql query")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestCentralLoggerFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "fieldlog.log")
	cl, err := NewCentralLogger(&LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &ConsoleOutput{Enabled: false},
		FileOutput:   &FileOutput{Enabled: true, Path: path, Level: "debug"},
	})
	require.NoError(t, err)

	cl.Module("export").Info("workbook written", Int("rows", 3))
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"workbook written"`)
	assert.Contains(t, string(data), `"module":"export"`)
	assert.Contains(t, string(data), `"rows":3`)
}

func TestInvalidTimezone(t *testing.T) {
	_, err := NewCentralLogger(&LoggingConfig{Timezone: "Mars/Olympus"})
	require.Error(t, err)
}

func TestModuleLevels(t *testing.T) {
	var buf bytes.Buffer
	cl := NewWriterLogger(&buf, LogLevelTrace)
	cl.moduleLevels["noisy"] = parseLogLevel("error")

	cl.Module("noisy").Warn("suppressed")
	cl.Module("quiet").Warn("visible")

	assert.NotContains(t, buf.String(), "suppressed")
	assert.Contains(t, buf.String(), "visible")
}
