package objectstore

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
)

func newMockedMinio(t *testing.T) (*MinioStore, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	store, err := NewMinioStore(conf.StorageSettings{
		Endpoint:  "minio.test:9000",
		AccessKey: "access",
		SecretKey: "secret",
		Region:    "us-east-1",
	}, WithTransport(transport))
	require.NoError(t, err)
	return store, transport
}

func TestMinioPutUsesBucketAndKey(t *testing.T) {
	store, transport := newMockedMinio(t)
	var gotType string
	transport.RegisterResponder(http.MethodPut, "http://minio.test:9000/exports/user-1/observasjoner_2024-06-01_103000.xlsx",
		func(req *http.Request) (*http.Response, error) {
			gotType = req.Header.Get("Content-Type")
			resp := httpmock.NewStringResponse(http.StatusOK, "")
			resp.Header.Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			return resp, nil
		})

	data := []byte("PK\x03\x04")
	path, err := store.Put(context.Background(), "/user-1/observasjoner_2024-06-01_103000.xlsx",
		bytes.NewReader(data), int64(len(data)), "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "user-1/observasjoner_2024-06-01_103000.xlsx", path)
	assert.Equal(t, "application/octet-stream", gotType)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestMinioPutFailureIsStorageError(t *testing.T) {
	store, transport := newMockedMinio(t)
	transport.RegisterResponder(http.MethodPut, `=~^http://minio\.test:9000/exports/`,
		httpmock.NewStringResponder(http.StatusForbidden,
			`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied.</Message></Error>`))

	_, err := store.Put(context.Background(), "anonymous/x.xlsx", bytes.NewReader([]byte("x")), 1, "application/octet-stream")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryStorage))
}

func TestMinioEnsureExistingBucket(t *testing.T) {
	store, transport := newMockedMinio(t)
	transport.RegisterResponder(http.MethodHead, "http://minio.test:9000/exports/",
		httpmock.NewStringResponder(http.StatusOK, ""))
	transport.RegisterResponder(http.MethodHead, "http://minio.test:9000/exports",
		httpmock.NewStringResponder(http.StatusOK, ""))

	require.NoError(t, store.EnsureBucket(context.Background()))
	assert.Equal(t, "exports", store.Bucket())
}

func TestNewMinioStoreRequiresEndpoint(t *testing.T) {
	_, err := NewMinioStore(conf.StorageSettings{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestCleanKey(t *testing.T) {
	assert.Equal(t, "anonymous/a.xlsx", CleanKey("/anonymous//a.xlsx"))
	assert.Equal(t, "user/a.xlsx", CleanKey("../user/./a.xlsx"))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	path, err := store.Put(context.Background(), "anonymous/a.xlsx", bytes.NewReader([]byte("abc")), 3, "text/plain")
	require.NoError(t, err)
	got, ok := store.Get(path)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	store.Err = errors.NewStd("bucket full")
	_, err = store.Put(context.Background(), "anonymous/b.xlsx", bytes.NewReader(nil), 0, "text/plain")
	assert.True(t, errors.IsCategory(err, errors.CategoryStorage))
}
