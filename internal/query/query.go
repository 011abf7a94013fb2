// Package query caches store reads keyed by (entity, owner).
//
// A read returns cached data immediately while it is fresh. Once the entry is
// older than the stale time, the cached data is still returned and a single
// background refetch replaces it. Entries without data are fetched
// synchronously. Concurrent fetches for the same key share one in-flight
// request. Mutations call Invalidate so the next read refetches. There is no
// size bound and no eviction besides invalidation.
package query

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
)

// Default settings
const (
	DefaultStaleTime      = 5 * time.Minute
	DefaultRefetchTimeout = 15 * time.Second
)

// Key identifies a cached read.
type Key struct {
	Entity string
	Owner  model.Owner
}

func (k Key) String() string {
	return k.Entity + ":" + string(k.Owner)
}

// Config holds query client settings
type Config struct {
	StaleTime      time.Duration
	RefetchTimeout time.Duration // deadline for background refetches
	Metrics        *metrics.QueryMetrics
}

// Client is the read cache. It is safe for concurrent use.
type Client struct {
	cache          *cache.Cache
	group          singleflight.Group
	staleTime      time.Duration
	refetchTimeout time.Duration
	metrics        *metrics.QueryMetrics
	logger         logger.Logger
	now            func() time.Time

	mu         sync.Mutex
	epochs     map[string]uint64 // per entity; bumped by invalidation
	refreshing map[string]bool

	wg sync.WaitGroup
}

type entry struct {
	value     any
	fetchedAt time.Time
}

// NewClient creates a query client. A negative StaleTime falls back to the
// default; zero means every cached read triggers a background refetch.
func NewClient(cfg Config) *Client {
	if cfg.StaleTime < 0 {
		cfg.StaleTime = DefaultStaleTime
	}
	if cfg.RefetchTimeout <= 0 {
		cfg.RefetchTimeout = DefaultRefetchTimeout
	}
	return &Client{
		// no default expiration and no janitor goroutine
		cache:          cache.New(cache.NoExpiration, 0),
		staleTime:      cfg.StaleTime,
		refetchTimeout: cfg.RefetchTimeout,
		metrics:        cfg.Metrics,
		logger:         logger.Global().Module("query"),
		now:            time.Now,
		epochs:         make(map[string]uint64),
		refreshing:     make(map[string]bool),
	}
}

// Fetch returns the cached value for key, calling fetch when there is none
// and refreshing it in the background when it is stale.
func Fetch[T any](ctx context.Context, c *Client, key Key, fetch func(context.Context) (T, error)) (T, error) {
	loader := func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}

	if v, ok := c.cache.Get(key.String()); ok {
		e := v.(entry)
		if c.now().Sub(e.fetchedAt) < c.staleTime {
			c.metrics.RecordRead(key.Entity, metrics.CacheFresh)
		} else {
			c.metrics.RecordRead(key.Entity, metrics.CacheStale)
			c.refetchInBackground(key, loader)
		}
		return e.value.(T), nil
	}

	c.metrics.RecordRead(key.Entity, metrics.CacheMiss)
	epoch := c.epoch(key.Entity)
	v, err, _ := c.group.Do(flightKey(key, epoch), func() (any, error) {
		return c.load(ctx, key, epoch, loader)
	})
	c.metrics.RecordFetch(key.Entity, "sync", err)
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// flightKey scopes in-flight requests to an epoch, so a read after
// invalidation never joins a request that started before it.
func flightKey(key Key, epoch uint64) string {
	return key.String() + "#" + strconv.FormatUint(epoch, 10)
}

// load runs fetch and caches the result unless the entity was invalidated
// since epoch.
func (c *Client) load(ctx context.Context, key Key, epoch uint64, fetch func(context.Context) (any, error)) (any, error) {
	v, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	current := c.epochs[key.Entity]
	c.mu.Unlock()
	if current == epoch {
		c.cache.Set(key.String(), entry{value: v, fetchedAt: c.now()}, cache.NoExpiration)
	}
	return v, nil
}

func (c *Client) refetchInBackground(key Key, fetch func(context.Context) (any, error)) {
	k := key.String()
	c.mu.Lock()
	if c.refreshing[k] {
		c.mu.Unlock()
		return
	}
	c.refreshing[k] = true
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, k)
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), c.refetchTimeout)
		defer cancel()

		epoch := c.epoch(key.Entity)
		_, err, _ := c.group.Do(flightKey(key, epoch), func() (any, error) {
			return c.load(ctx, key, epoch, fetch)
		})
		c.metrics.RecordFetch(key.Entity, "background", err)
		if err != nil {
			c.logger.Warn("background refetch failed, serving stale data",
				logger.String("entity", key.Entity),
				logger.Bool("anonymous", key.Owner.IsAnonymous()),
				logger.Error(err))
		}
	}()
}

func (c *Client) epoch(entity string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epochs[entity]
}

// Invalidate drops the cached value for key so the next read refetches.
func (c *Client) Invalidate(key Key) {
	c.mu.Lock()
	c.epochs[key.Entity]++
	c.mu.Unlock()

	c.cache.Delete(key.String())
	c.metrics.RecordInvalidation(key.Entity)
}

// InvalidateEntity drops the cached values of every owner of entity.
func (c *Client) InvalidateEntity(entity string) {
	c.mu.Lock()
	c.epochs[entity]++
	c.mu.Unlock()

	prefix := entity + ":"
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
	c.metrics.RecordInvalidation(entity)
}

// Wait blocks until background refetches finish or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("query").
			Category(errors.CategoryTimeout).
			Build()
	}
}
