package notify

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/logger"
)

// MQTT defaults.
const (
	DefaultMQTTTopic    = "birdtarifa/sightings"
	DefaultMQTTClientID = "birdtarifa"
	DefaultMQTTTimeout  = 10 * time.Second
)

// MQTTConfig configures the MQTT publisher.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	Retain   bool
	Timeout  time.Duration
}

// mqttClient is the subset of mqtt.Client the publisher uses.
type mqttClient interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload any) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes created sightings as JSON events. The broker
// connection is opened on first use.
type MQTTPublisher struct {
	client  mqttClient
	topic   string
	retain  bool
	timeout time.Duration
	now     func() time.Time
	log     logger.Logger

	mu sync.Mutex
}

// NewMQTTPublisher validates cfg and prepares a client.
func NewMQTTPublisher(cfg MQTTConfig, log logger.Logger) (*MQTTPublisher, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid MQTT broker URL").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("broker_scheme", schemeOf(u)).
			Build()
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultMQTTClientID
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeoutOr(cfg.Timeout))

	return newMQTTPublisher(mqtt.NewClient(opts), cfg, log), nil
}

func newMQTTPublisher(client mqttClient, cfg MQTTConfig, log logger.Logger) *MQTTPublisher {
	topic := strings.Trim(cfg.Topic, "/ ")
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	return &MQTTPublisher{
		client:  client,
		topic:   topic,
		retain:  cfg.Retain,
		timeout: timeoutOr(cfg.Timeout),
		now:     time.Now,
		log:     logger.OrDiscard(log).Module("notify").Module("mqtt"),
	}
}

// Name implements sightings.Publisher.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic returns the publish topic.
func (p *MQTTPublisher) Topic() string { return p.topic }

// Publish sends the sighting event with QoS 0.
func (p *MQTTPublisher) Publish(ctx context.Context, s *api.Sighting) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(ctx); err != nil {
		return err
	}

	payload, err := MarshalEvent(s, p.now())
	if err != nil {
		return err
	}

	start := time.Now()
	token := p.client.Publish(p.topic, 0, p.retain, payload)
	if err := p.wait(ctx, token, "publish"); err != nil {
		return err
	}

	p.log.Debug("Sighting published",
		logger.String("topic", p.topic),
		logger.Int64("sighting_id", s.ID),
		logger.Int("bytes", len(payload)),
		logger.Duration("elapsed", time.Since(start)))
	return nil
}

func (p *MQTTPublisher) connectLocked(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}
	if err := p.wait(ctx, p.client.Connect(), "connect"); err != nil {
		return err
	}
	p.log.Info("Connected to MQTT broker")
	return nil
}

// wait blocks on token until it completes, the timeout passes or ctx ends.
func (p *MQTTPublisher) wait(ctx context.Context, token mqtt.Token, op string) error {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-timer.C:
		return errors.Newf("mqtt %s timeout", op).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("operation", op).
			Context("timeout", p.timeout.String()).
			Build()
	case <-ctx.Done():
		return errors.New(ctx.Err()).
			Component("notify").
			Category(errors.CategoryCancellation).
			Context("operation", op).
			Build()
	}

	if err := token.Error(); err != nil {
		return errors.New(err).
			Component("notify").
			Category(errors.CategoryNotification).
			Context("operation", op).
			Build()
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

func timeoutOr(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultMQTTTimeout
	}
	return d
}

func schemeOf(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.Scheme
}
