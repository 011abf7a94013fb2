package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeToken struct {
	err      error
	timesOut bool
}

func (t *fakeToken) Wait() bool                     { return !t.timesOut }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timesOut }
func (t *fakeToken) Error() error                   { return t.err }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes. Unused mqtt.Client methods panic.
type fakeClient struct {
	mqtt.Client
	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishErr   error
	messages     []published
	disconnected bool
	opts         *mqtt.ClientOptions
}

func (f *fakeClient) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = f.connectErr == nil
	return &fakeToken{err: f.connectErr}
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, published{topic, qos, retained, payload.([]byte)})
	return &fakeToken{err: f.publishErr}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func newFakePublisher(t *testing.T, s conf.MQTTSettings) (*MQTTPublisher, *fakeClient) {
	t.Helper()
	fake := &fakeClient{}
	p, err := NewMQTTPublisher(context.Background(), s, func(o *mqtt.ClientOptions) mqtt.Client {
		fake.opts = o
		return fake
	})
	require.NoError(t, err)
	return p, fake
}

func TestMQTTPublishesJSONToTypedTopic(t *testing.T) {
	p, fake := newFakePublisher(t, conf.MQTTSettings{
		Broker:   "tcp://broker.test:1883",
		ClientID: "fieldlog-test",
		Topic:    "fieldlog/",
		QoS:      1,
	})
	defer p.Close()

	obs := model.Observation{ID: "obs-1", LocationName: "Hjemme"}
	require.NoError(t, p.Publish(context.Background(), New(ObservationCreated, model.Owner("user-1"), obs)))

	require.Len(t, fake.messages, 1)
	msg := fake.messages[0]
	assert.Equal(t, "fieldlog/observation.created", msg.topic)
	assert.Equal(t, byte(1), msg.qos)

	var decoded struct {
		Type   string            `json:"type"`
		UserID string            `json:"userId"`
		Data   model.Observation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "observation.created", decoded.Type)
	assert.Equal(t, "user-1", decoded.UserID)
	assert.Equal(t, "Hjemme", decoded.Data.LocationName)

	assert.Equal(t, "fieldlog-test", fake.opts.ClientID)
	assert.True(t, fake.opts.AutoReconnect)
}

func TestMQTTPublishErrors(t *testing.T) {
	p, fake := newFakePublisher(t, conf.MQTTSettings{Broker: "tcp://broker.test:1883", Topic: "fieldlog"})

	fake.publishErr = errors.NewStd("broker rejected")
	err := p.Publish(context.Background(), New(ExportCompleted, model.Anonymous, nil))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	p.Close()
	assert.True(t, fake.disconnected)
	err = p.Publish(context.Background(), New(ExportCompleted, model.Anonymous, nil))
	require.Error(t, err)
}

func TestMQTTConnectFailure(t *testing.T) {
	_, err := NewMQTTPublisher(context.Background(), conf.MQTTSettings{Broker: "tcp://broker.test:1883"},
		func(*mqtt.ClientOptions) mqtt.Client {
			return &fakeClient{connectErr: errors.NewStd("connection refused")}
		})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))

	_, err = NewMQTTPublisher(context.Background(), conf.MQTTSettings{}, nil)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

type namedRecorder struct {
	Recorder
	name string
}

func (n *namedRecorder) Name() string { return n.name }

type panicConsumer struct{}

func (panicConsumer) Name() string                         { return "panics" }
func (panicConsumer) Publish(context.Context, Event) error { panic("boom") }

func TestBusDeliversToEveryConsumer(t *testing.T) {
	a := &namedRecorder{name: "a"}
	b := &namedRecorder{name: "b"}
	bus := NewBus(BusConfig{Workers: 1}, a, b, panicConsumer{})

	for _, typ := range []Type{ObservationCreated, ObservationUpdated, ObservationDeleted} {
		require.NoError(t, bus.Publish(context.Background(), New(typ, model.Anonymous, nil)))
	}
	require.True(t, bus.Shutdown(2*time.Second))

	want := []Type{ObservationCreated, ObservationUpdated, ObservationDeleted}
	assert.Equal(t, want, a.Types())
	assert.Equal(t, want, b.Types())

	stats := bus.Stats()
	assert.Equal(t, uint64(3), stats.EventsReceived)
	assert.Equal(t, uint64(6), stats.EventsDelivered)
	assert.Equal(t, uint64(3), stats.ConsumerErrors)

	require.Error(t, bus.Publish(context.Background(), New(ExportCompleted, model.Anonymous, nil)))
}

func TestBusDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	blocking := &blockingConsumer{release: release}
	bus := NewBus(BusConfig{Workers: 1, BufferSize: 1}, blocking)

	var dropped int
	for range 5 {
		if err := bus.Publish(context.Background(), New(ObservationCreated, model.Anonymous, nil)); err != nil {
			dropped++
		}
	}
	close(release)
	require.True(t, bus.Shutdown(2*time.Second))

	assert.Positive(t, dropped)
	assert.Equal(t, uint64(dropped), bus.Stats().EventsDropped)
}

type blockingConsumer struct {
	release chan struct{}
}

func (b *blockingConsumer) Name() string { return "blocking" }
func (b *blockingConsumer) Publish(ctx context.Context, _ Event) error {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

func TestBusRejectsDuplicateConsumer(t *testing.T) {
	bus := NewBus(BusConfig{}, &namedRecorder{name: "a"})
	defer bus.Close()
	require.Error(t, bus.RegisterConsumer(&namedRecorder{name: "a"}))
	require.NoError(t, bus.RegisterConsumer(&namedRecorder{name: "b"}))
}

func TestPublishOrLogSwallowsErrors(t *testing.T) {
	rec := &Recorder{Err: errors.NewStd("down")}
	PublishOrLog(context.Background(), rec, New(ObservationDeleted, model.Anonymous, DeletedData{ID: "x"}))
	assert.Empty(t, rec.Events())
	PublishOrLog(context.Background(), nil, Event{})
}
