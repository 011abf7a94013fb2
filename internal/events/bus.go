package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

// Consumer receives events from a Bus.
type Consumer interface {
	Name() string
	Publish(ctx context.Context, e Event) error
}

// BusConfig holds event bus configuration
type BusConfig struct {
	BufferSize      int
	Workers         int
	DeliveryTimeout time.Duration
}

// DefaultBusConfig returns the default event bus configuration
func DefaultBusConfig() BusConfig {
	return BusConfig{
		BufferSize:      1000,
		Workers:         2,
		DeliveryTimeout: DefaultPublishTimeout,
	}
}

// BusStats contains runtime statistics for monitoring
type BusStats struct {
	EventsReceived  uint64
	EventsDelivered uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}

// Bus is an asynchronous Publisher. Publish never blocks: events are queued
// and handed to every consumer by worker goroutines. When the queue is full
// the event is dropped.
type Bus struct {
	eventChan chan Event
	workers   int
	timeout   time.Duration
	wg        sync.WaitGroup
	logger    logger.Logger

	mu        sync.RWMutex
	consumers []Consumer
	closed    bool

	received  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64

	// OnDelivery, when set, is called after each consumer delivery.
	OnDelivery func(e Event, err error)
}

// NewBus creates a bus and starts its workers.
func NewBus(config BusConfig, consumers ...Consumer) *Bus {
	def := DefaultBusConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.DeliveryTimeout <= 0 {
		config.DeliveryTimeout = def.DeliveryTimeout
	}

	b := &Bus{
		eventChan: make(chan Event, config.BufferSize),
		workers:   config.Workers,
		timeout:   config.DeliveryTimeout,
		logger:    GetLogger(),
		consumers: consumers,
	}
	for i := range b.workers {
		b.wg.Add(1)
		go b.worker(i)
	}
	b.logger.Info("event bus started",
		logger.Int("buffer_size", config.BufferSize),
		logger.Int("workers", config.Workers),
		logger.Int("consumers", len(consumers)))
	return b
}

// RegisterConsumer adds a consumer; names must be unique.
func (b *Bus) RegisterConsumer(c Consumer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, existing := range b.consumers {
		if existing.Name() == c.Name() {
			return fmt.Errorf("consumer %s already registered", c.Name())
		}
	}
	b.consumers = append(b.consumers, c)
	return nil
}

// Publish queues e. It returns an error when the bus is closed or full.
func (b *Bus) Publish(_ context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return errors.Newf("event bus closed").Component("events").Category(errors.CategoryGeneric).Build()
	}
	select {
	case b.eventChan <- e:
		b.received.Add(1)
		return nil
	default:
		b.dropped.Add(1)
		return errors.Newf("event dropped, queue full").
			Component("events").
			Category(errors.CategoryGeneric).
			Context("type", string(e.Type)).
			Build()
	}
}

func (b *Bus) worker(id int) {
	defer b.wg.Done()
	for e := range b.eventChan {
		b.deliver(id, e)
	}
}

func (b *Bus) deliver(worker int, e Event) {
	b.mu.RLock()
	consumers := append([]Consumer(nil), b.consumers...)
	b.mu.RUnlock()

	for _, c := range consumers {
		err := b.deliverOne(c, e)
		if err != nil {
			b.failed.Add(1)
			b.logger.Warn("event consumer failed",
				logger.Int("worker_id", worker),
				logger.String("consumer", c.Name()),
				logger.String("type", string(e.Type)),
				logger.Error(err))
		} else {
			b.delivered.Add(1)
		}
		if b.OnDelivery != nil {
			b.OnDelivery(e, err)
		}
	}
}

func (b *Bus) deliverOne(c Consumer, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer %s panicked: %v", c.Name(), r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	return c.Publish(ctx, e)
}

// Close stops accepting events, delivers what is queued and waits for the
// workers up to timeout.
func (b *Bus) Close() {
	b.Shutdown(5 * time.Second)
}

// Shutdown is Close with an explicit timeout.
func (b *Bus) Shutdown(timeout time.Duration) bool {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return true
	}
	b.closed = true
	close(b.eventChan)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		b.logger.Warn("event bus shutdown timeout exceeded", logger.Duration("timeout", timeout))
		return false
	}
}

// Stats returns current event bus statistics
func (b *Bus) Stats() BusStats {
	return BusStats{
		EventsReceived:  b.received.Load(),
		EventsDelivered: b.delivered.Load(),
		EventsDropped:   b.dropped.Load(),
		ConsumerErrors:  b.failed.Load(),
	}
}

var _ Publisher = (*Bus)(nil)
