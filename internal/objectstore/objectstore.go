// Package objectstore uploads export documents to S3-compatible storage.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

// DefaultBucket holds exported spreadsheets.
const DefaultBucket = "exports"

// Store is a bucket of named objects.
type Store interface {
	// Put uploads size bytes from r under key and returns the storage path.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	EnsureBucket(ctx context.Context) error
}

// GetLogger returns the objectstore module logger
func GetLogger() logger.Logger {
	return logger.Global().Module("objectstore")
}

func storageError(err error, op, key string) error {
	return errors.New(err).
		Component("objectstore").
		Category(errors.CategoryStorage).
		Context("operation", op).
		Context("key", key).
		Build()
}

// MinioStore is a Store on MinIO or any S3-compatible service.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
	logger logger.Logger
}

// Option customises a MinioStore.
type Option func(*minio.Options)

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *minio.Options) {
		o.Transport = rt
	}
}

// NewMinioStore creates a client for the configured endpoint. It does not
// contact the server.
func NewMinioStore(s conf.StorageSettings, opts ...Option) (*MinioStore, error) {
	if s.Endpoint == "" {
		return nil, errors.Newf("object storage endpoint is not configured").
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	bucket := s.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}

	options := &minio.Options{
		Creds:        credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
		Secure:       s.UseSSL,
		Region:       s.Region,
		BucketLookup: minio.BucketLookupPath,
	}
	for _, opt := range opts {
		opt(options)
	}

	client, err := minio.New(s.Endpoint, options)
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to create MinIO client: %w", err)).
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	store := &MinioStore{client: client, bucket: bucket, region: s.Region, logger: GetLogger()}
	store.logger.Info("object storage configured",
		logger.String("endpoint", s.Endpoint),
		logger.String("bucket", bucket),
		logger.Bool("ssl", s.UseSSL))
	return store, nil
}

// Bucket returns the bucket name.
func (m *MinioStore) Bucket() string {
	return m.bucket
}

// EnsureBucket creates the bucket when it does not exist.
func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return storageError(fmt.Errorf("error checking bucket existence: %w", err), "ensure_bucket", m.bucket)
	}
	if exists {
		return nil
	}
	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		// lost a race with another creator
		if code := minio.ToErrorResponse(err).Code; code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return storageError(fmt.Errorf("failed to create bucket: %w", err), "ensure_bucket", m.bucket)
	}
	m.logger.Info("created bucket", logger.String("bucket", m.bucket))
	return nil
}

// Put implements Store.
func (m *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key = CleanKey(key)
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", storageError(fmt.Errorf("failed to store object: %w", err), "put", key)
	}
	m.logger.Debug("stored object",
		logger.String("bucket", m.bucket),
		logger.String("key", key),
		logger.Int64("size", info.Size))
	return key, nil
}

// CleanKey strips leading slashes and parent references from an object key.
func CleanKey(key string) string {
	parts := strings.Split(key, "/")
	out := parts[:0]
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}

// MemoryStore keeps objects in memory. Err, when set, fails every Put.
type MemoryStore struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	Err     error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Objects: map[string][]byte{}, Types: map[string]string{}}
}

// EnsureBucket implements Store.
func (m *MemoryStore) EnsureBucket(context.Context) error {
	return nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key = CleanKey(key)
	if m.Err != nil {
		return "", storageError(m.Err, "put", key)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", storageError(err, "put", key)
	}
	m.Objects[key] = buf.Bytes()
	m.Types[key] = contentType
	return key, nil
}

// Get returns a stored object.
func (m *MemoryStore) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.Objects[key]
	return v, ok
}

var (
	_ Store = (*MinioStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
