package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/datastore"
	"github.com/tphakala/fieldlog/internal/events"
	"github.com/tphakala/fieldlog/internal/export"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/objectstore"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	s := conf.Defaults()
	s.Local.Path = t.TempDir()
	s.Export.Dir = t.TempDir()
	return s
}

func TestOpenLocalMode(t *testing.T) {
	t.Parallel()

	a, err := Open(context.Background(), testSettings(t), Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, datastore.ModeLocal, a.Stores.Mode)
	assert.Nil(t, a.Objects, "object storage is remote-only")
	assert.IsType(t, events.NopPublisher{}, a.Events)
	assert.NotNil(t, a.Geocoder)
	assert.NotNil(t, a.Taxonomy)
	assert.NotNil(t, a.Preferences)
}

func TestOpenGeocodeDisabled(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Geocode.Enabled = false
	a, err := Open(context.Background(), s, Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Nil(t, a.Geocoder)
}

func TestOpenRemoteModeExports(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Remote.URL = "sqlite://" + filepath.Join(t.TempDir(), "remote.db")
	s.Remote.Key = "secret"
	objects := objectstore.NewMemoryStore()

	a, err := Open(context.Background(), s, Options{Objects: objects})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	require.Equal(t, datastore.ModeRemote, a.Stores.Mode)

	ctx := context.Background()
	owner := model.Owner("user-7")
	_, err = a.Stores.Observations.CreateObservation(ctx, model.ObservationInput{
		Point:             model.Point{Lat: 63.43, Lng: 10.39},
		UncertaintyRadius: 20,
		Species: []model.SpeciesInput{
			{Taxon: model.Taxon{ID: 3552, ScientificName: "Cyanistes caeruleus", VernacularName: "blåmeis"}, Count: 3},
		},
	}, owner)
	require.NoError(t, err)

	obs, err := a.Stores.Observations.FetchObservations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, obs, 1)

	res, err := a.Exporter.Export(ctx, owner, obs, export.DirSink{Dir: s.Export.Dir})
	require.NoError(t, err)
	assert.Equal(t, export.RemoteOK, res.RemoteStatus())
	_, ok := objects.Get(res.StoragePath)
	assert.True(t, ok)

	obs, err = a.Stores.Observations.FetchObservations(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 1, obs[0].ExportCount, "cache invalidated after stamping")
}

func TestOpenRemoteWithoutEndpointSkipsUpload(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Remote.URL = "sqlite://" + filepath.Join(t.TempDir(), "remote.db")
	s.Remote.Key = "secret"

	a, err := Open(context.Background(), s, Options{})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.Nil(t, a.Objects)
}

func TestOpenFailsOnBadRemote(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Remote.URL = "postgres://db.example.com/fieldlog"
	s.Remote.Key = "secret"
	_, err := Open(context.Background(), s, Options{})
	assert.Error(t, err)
}
