package query

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/fieldlog/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestClient(t *testing.T) (*Client, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewClient(Config{StaleTime: 5 * time.Minute})
	c.now = clock.Now
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, c.Wait(ctx))
	})
	return c, clock
}

// countingFetcher returns "v<n>" on the n-th call.
func countingFetcher(calls *atomic.Int32) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		n := calls.Add(1)
		return fmt.Sprintf("v%d", n), nil
	}
}

func waitBackground(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

var obsKey = Key{Entity: "observations", Owner: model.Owner("user-1")}

func TestFreshReadIsServedFromCache(t *testing.T) {
	c, clock := newTestClient(t)
	var calls atomic.Int32
	fetch := countingFetcher(&calls)

	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	clock.Advance(4 * time.Minute)
	v, err = Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStaleReadReturnsCachedAndRefetchesInBackground(t *testing.T) {
	c, clock := newTestClient(t)
	var calls atomic.Int32
	fetch := countingFetcher(&calls)

	_, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "v1", v, "stale data is returned immediately")

	waitBackground(t, c)
	assert.Equal(t, int32(2), calls.Load())

	v, err = Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, int32(2), calls.Load(), "refreshed entry is fresh again")
}

func TestConcurrentReadsShareOneRequest(t *testing.T) {
	c, _ := newTestClient(t)
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]string, error) {
		calls.Add(1)
		<-release
		return []string{"a"}, nil
	}

	const readers = 10
	var wg sync.WaitGroup
	results := make([][]string, readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, obsKey, fetch)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, []string{"a"}, r)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c, _ := newTestClient(t)
	var calls atomic.Int32
	fetch := countingFetcher(&calls)

	_, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)

	c.Invalidate(obsKey)
	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}

func TestInvalidationDuringFetchDiscardsResult(t *testing.T) {
	c, _ := newTestClient(t)
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) == 1 {
			close(started)
			<-release
			return "before-mutation", nil
		}
		return "after-mutation", nil
	}

	done := make(chan string)
	go func() {
		v, _ := Fetch(context.Background(), c, obsKey, fetch)
		done <- v
	}()

	<-started
	c.Invalidate(obsKey)
	close(release)
	assert.Equal(t, "before-mutation", <-done)

	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "after-mutation", v)
}

func TestReadAfterInvalidateDoesNotJoinOlderRefetch(t *testing.T) {
	c, clock := newTestClient(t)
	var backend atomic.Value
	backend.Store("before")
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(context.Context) (string, error) {
		v := backend.Load().(string)
		if calls.Add(1) == 2 {
			close(started)
			<-release
		}
		return v, nil
	}

	_, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)
	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "before", v)
	<-started

	backend.Store("after")
	c.Invalidate(obsKey)

	v, err = Fetch(context.Background(), c, obsKey, fetch)
	close(release)
	require.NoError(t, err)
	assert.Equal(t, "after", v, "the read after invalidation runs its own request")

	waitBackground(t, c)
	v, err = Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "after", v, "the older refetch does not overwrite the cache")
}

func TestErrorsAreNotCached(t *testing.T) {
	c, _ := newTestClient(t)
	fail := true
	fetch := func(context.Context) (int, error) {
		if fail {
			return 0, fmt.Errorf("remote unavailable")
		}
		return 42, nil
	}

	_, err := Fetch(context.Background(), c, obsKey, fetch)
	require.Error(t, err)

	fail = false
	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestFailedBackgroundRefetchKeepsStaleData(t *testing.T) {
	c, clock := newTestClient(t)
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		if calls.Add(1) > 1 {
			return "", fmt.Errorf("timeout")
		}
		return "cached", nil
	}

	_, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	v, err := Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
	waitBackground(t, c)

	v, err = Fetch(context.Background(), c, obsKey, fetch)
	require.NoError(t, err)
	assert.Equal(t, "cached", v)
}

func TestOwnersAreSeparateKeys(t *testing.T) {
	c, _ := newTestClient(t)
	anon := Key{Entity: "observations", Owner: model.Anonymous}
	locs := Key{Entity: "locations", Owner: model.Owner("user-1")}

	_, err := Fetch(context.Background(), c, obsKey, func(context.Context) (string, error) { return "mine", nil })
	require.NoError(t, err)
	_, err = Fetch(context.Background(), c, anon, func(context.Context) (string, error) { return "anonymous", nil })
	require.NoError(t, err)
	_, err = Fetch(context.Background(), c, locs, func(context.Context) (string, error) { return "locations", nil })
	require.NoError(t, err)

	c.InvalidateEntity("observations")

	var calls atomic.Int32
	fetch := countingFetcher(&calls)
	_, _ = Fetch(context.Background(), c, obsKey, fetch)
	_, _ = Fetch(context.Background(), c, anon, fetch)
	v, _ := Fetch(context.Background(), c, locs, fetch)
	assert.Equal(t, int32(2), calls.Load(), "both observation owners refetched")
	assert.Equal(t, "locations", v, "other entities are untouched")
}
