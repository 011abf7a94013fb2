//go:build integration

package datastore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/model"
)

func startMySQL(t *testing.T) conf.RemoteSettings {
	t.Helper()
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0.36",
		mysql.WithDatabase("fieldlog"),
		mysql.WithUsername("fieldlog"),
		mysql.WithPassword("integration-key"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	return conf.RemoteSettings{
		URL:     fmt.Sprintf("mysql://fieldlog@tcp(%s:%s)/fieldlog", host, port.Port()),
		Key:     "integration-key",
		Timeout: 30 * time.Second,
	}
}

func TestMySQLObservationRoundTrip(t *testing.T) {
	remote := startMySQL(t)

	store, err := OpenRemote(remote, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	created, err := store.CreateObservation(ctx, sighting("Nesoddtangen"), model.Owner("user-1"))
	require.NoError(t, err)

	require.NoError(t, store.StampExported(ctx, []string{created.ID}, time.Now()))

	list, err := store.FetchObservations(ctx, model.Owner("user-1"))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Nesoddtangen", list[0].LocationName)
	assert.Equal(t, 1, list[0].ExportCount)
	require.Len(t, list[0].Species, 1)

	require.NoError(t, store.DeleteObservation(ctx, created.ID, model.Owner("user-1")))
	list, err = store.FetchObservations(ctx, model.Owner("user-1"))
	require.NoError(t, err)
	assert.Empty(t, list)
}
