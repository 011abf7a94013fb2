package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/tphakala/fieldlog/internal/conf"
	fieldexport "github.com/tphakala/fieldlog/internal/export"
)

// writeConfig writes a config pointing the local store and export dir at a
// temporary directory.
func writeConfig(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	s := conf.Defaults()
	s.Local.Path = filepath.Join(dir, "data")
	s.Export.Dir = filepath.Join(dir, "exports")
	s.Logging.Console.Level = "error"
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, conf.SaveYAMLConfig(path, s))
	return path, dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := RootCommand(&conf.Settings{})
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	loaded, err := conf.Load(conf.LoadOptions{ConfigFile: path, SkipEnvFile: true})
	require.NoError(t, err)
	assert.Equal(t, conf.DefaultExportBucket, loaded.Storage.Bucket)

	_, err = execute(t, "config", "init", path)
	assert.Error(t, err, "refuses to overwrite")

	_, err = execute(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestLocationsAddAndList(t *testing.T) {
	cfg, _ := writeConfig(t)

	out, err := execute(t, "--config", cfg, "locations", "add", "Hjemme", "--lat", "59.91", "--lng", "10.75", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved Hjemme")

	out, err = execute(t, "--config", cfg, "locations", "list", "--user", "user-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Hjemme")
	assert.Contains(t, out, "59.91000")

	out, err = execute(t, "--config", cfg, "locations", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No saved locations")
}

func TestLocationsAddValidation(t *testing.T) {
	cfg, _ := writeConfig(t)

	_, err := execute(t, "--config", cfg, "locations", "add", "Nordpolen", "--lat", "95", "--lng", "0")
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	cfg, dir := writeConfig(t)
	out := filepath.Join(dir, "mine.xlsx")

	stdout, err := execute(t, "--config", cfg, "export", "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Remote: skipped")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows(fieldexport.SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, fieldexport.Columns, rows[0])
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "locations", "list")
	assert.Error(t, err)
}
