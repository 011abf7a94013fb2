package datastore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/model"
)

func TestNewSelectsLocalWithoutRemote(t *testing.T) {
	settings := conf.Defaults()
	settings.Local.Path = t.TempDir()
	settings.Remote.URL = "sqlite://" + filepath.Join(t.TempDir(), "x.db")
	settings.Remote.Key = "" // url alone is not enough

	stores, err := New(context.Background(), settings, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = stores.Close() })

	assert.Equal(t, ModeLocal, stores.Mode)
	assert.False(t, stores.Remote())
	_, ok := stores.Observations.(*LocalStore)
	assert.True(t, ok)
}

func TestNewSelectsRemoteWhenConfigured(t *testing.T) {
	settings := conf.Defaults()
	settings.Local.Path = t.TempDir()
	settings.Remote.URL = "sqlite://" + filepath.Join(t.TempDir(), "remote.db")
	settings.Remote.Key = "anon-key"

	stores, err := New(context.Background(), settings, nil)
	require.NoError(t, err)

	assert.Equal(t, ModeRemote, stores.Mode)
	_, ok := stores.Observations.(*CachedObservationStore)
	assert.True(t, ok)

	ctx := context.Background()
	_, err = stores.Observations.CreateObservation(ctx, sighting("Hvaler"), model.Anonymous)
	require.NoError(t, err)
	list, err := stores.Observations.FetchObservations(ctx, model.Anonymous)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, stores.Close())
	require.NoError(t, stores.Close(), "second close is a no-op")
}
