package taxonomy

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
)

// Searcher runs one species search.
type Searcher interface {
	Search(ctx context.Context, term string) ([]model.Taxon, error)
}

// Lookup debounces as-you-type searches. Every Query bumps a generation
// counter; a result is delivered only while its generation is the latest,
// so a slow response never replaces the result of a newer query.
type Lookup struct {
	searcher Searcher
	delay    time.Duration
	minLen   int
	onResult func(Result)
	logger   logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	gen    uint64
	timer  *time.Timer
	latest Result
	closed bool

	// held while checking the generation and calling onResult
	deliverMu sync.Mutex
}

// NewLookup creates a debounced searcher. onResult may be nil; it is called
// from a timer goroutine and must not call Query synchronously.
func NewLookup(searcher Searcher, delay time.Duration, minLen int, onResult func(Result)) *Lookup {
	if delay < 0 {
		delay = conf.DefaultDebounceDelay
	}
	if minLen <= 0 {
		minLen = conf.DefaultMinQueryLength
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Lookup{
		searcher: searcher,
		delay:    delay,
		minLen:   minLen,
		onResult: onResult,
		logger:   GetLogger(),
		ctx:      ctx,
		cancel:   cancel,
		latest:   Result{Taxa: []model.Taxon{}},
	}
}

// Query schedules a search for term after the debounce delay, replacing any
// pending one. Terms shorter than the minimum length resolve to an empty
// result immediately without a request.
func (l *Lookup) Query(term string) {
	term = strings.TrimSpace(term)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.gen++
	gen := l.gen
	l.stopTimerLocked()

	if utf8.RuneCountInString(term) < l.minLen {
		l.mu.Unlock()
		l.deliver(Result{Term: term, Generation: gen, Taxa: []model.Taxon{}})
		return
	}

	l.wg.Add(1)
	l.timer = time.AfterFunc(l.delay, func() {
		defer l.wg.Done()
		l.run(term, gen)
	})
	l.mu.Unlock()
}

// stopTimerLocked cancels a pending search that has not started yet.
func (l *Lookup) stopTimerLocked() {
	if l.timer != nil && l.timer.Stop() {
		l.wg.Done()
	}
	l.timer = nil
}

func (l *Lookup) current(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return gen == l.gen && !l.closed
}

func (l *Lookup) run(term string, gen uint64) {
	if !l.current(gen) {
		return
	}
	taxa, err := l.searcher.Search(l.ctx, term)
	if err != nil {
		l.logger.Warn("species lookup failed", logger.String("term", term), logger.Error(err))
		taxa = []model.Taxon{}
	}
	if taxa == nil {
		taxa = []model.Taxon{}
	}
	l.deliver(Result{Term: term, Generation: gen, Taxa: taxa})
}

func (l *Lookup) deliver(res Result) {
	l.deliverMu.Lock()
	defer l.deliverMu.Unlock()

	l.mu.Lock()
	if res.Generation != l.gen || l.closed {
		l.mu.Unlock()
		l.logger.Debug("dropping superseded lookup result",
			logger.String("term", res.Term),
			logger.Int64("generation", int64(res.Generation)))
		return
	}
	l.latest = res
	l.mu.Unlock()

	if l.onResult != nil {
		l.onResult(res)
	}
}

// Latest returns the most recent delivered result.
func (l *Lookup) Latest() Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest
}

// Close cancels pending and in-flight searches and waits for them to return.
func (l *Lookup) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.stopTimerLocked()
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}
