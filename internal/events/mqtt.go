package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/logger"
)

// Default timeouts
const (
	DefaultConnectTimeout    = 30 * time.Second
	DefaultPublishTimeout    = 10 * time.Second
	DefaultDisconnectQuiesce = 250 // milliseconds
)

// MQTTPublisher publishes events as JSON to <topic>/<type>.
type MQTTPublisher struct {
	client         mqtt.Client
	topic          string
	qos            byte
	retain         bool
	publishTimeout time.Duration
	logger         logger.Logger

	mu     sync.Mutex
	closed bool
}

// ClientFactory builds the paho client; tests replace it.
type ClientFactory func(*mqtt.ClientOptions) mqtt.Client

// NewMQTTPublisher connects to the configured broker. The connection is
// re-established automatically by paho after it is lost.
func NewMQTTPublisher(ctx context.Context, s conf.MQTTSettings, factory ClientFactory) (*MQTTPublisher, error) {
	if s.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component("events").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if factory == nil {
		factory = mqtt.NewClient
	}

	log := GetLogger()
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(s.ClientID)
	opts.SetUsername(s.Username)
	opts.SetPassword(s.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(DefaultConnectTimeout)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("connected to MQTT broker", logger.String("broker", s.Broker))
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("connection to MQTT broker lost", logger.String("broker", s.Broker), logger.Error(err))
	})

	client := factory(opts)

	timeout := DefaultConnectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, errors.Newf("mqtt connection timeout").
			Component("events").
			Category(errors.CategoryTimeout).
			NetworkContext(s.Broker, timeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return nil, errors.New(fmt.Errorf("mqtt connection error: %w", err)).
			Component("events").
			Category(errors.CategoryNetwork).
			Build()
	}

	return &MQTTPublisher{
		client:         client,
		topic:          strings.TrimRight(s.Topic, "/"),
		qos:            s.QoS,
		retain:         s.Retain,
		publishTimeout: DefaultPublishTimeout,
		logger:         log,
	}, nil
}

// Name implements Consumer.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic returns the topic an event of type t is published to.
func (p *MQTTPublisher) Topic(t Type) string {
	if p.topic == "" {
		return string(t)
	}
	return p.topic + "/" + string(t)
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(ctx context.Context, e Event) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed || !p.client.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("events").
			Category(errors.CategoryNetwork).
			Build()
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return errors.New(err).Component("events").Category(errors.CategoryGeneric).Build()
	}

	timeout := p.publishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}

	topic := p.Topic(e.Type)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(timeout) {
		return errors.Newf("mqtt publish timeout").
			Component("events").
			Category(errors.CategoryTimeout).
			Context("topic", topic).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("mqtt publish failed: %w", err)).
			Component("events").
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}
	p.logger.Debug("published event", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.client.Disconnect(DefaultDisconnectQuiesce)
}

var (
	_ Publisher = (*MQTTPublisher)(nil)
	_ Publisher = NopPublisher{}
	_ Publisher = (*Recorder)(nil)
)
