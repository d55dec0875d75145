package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultMQTTReadTimeout bounds the first Read's wait for the retained
// snapshot.
const DefaultMQTTReadTimeout = 2 * time.Second

// MQTTConfig locates the broker and the retained topics used as the slot.
type MQTTConfig struct {
	Broker      string
	Port        int
	ClientID    string
	TopicPrefix string
	ReadTimeout time.Duration
}

// MQTTChannel is a shared channel on retained MQTT messages: the data topic
// holds the snapshot payload and the reload topic the latest refresh token.
// Retained messages give the same last-write-wins single slot as a shared
// key/value area, for a renderer that does not share a filesystem.
type MQTTChannel struct {
	client      mqtt.Client
	broker      string
	dataTopic   string
	reloadTopic string
	readTimeout time.Duration

	mu        sync.RWMutex
	connected bool
	payload   []byte
	token     string

	// first is closed once the data topic delivered its retained message
	// or the first Read gave up waiting for one.
	first     chan struct{}
	firstOnce sync.Once

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewMQTTChannel(cfg MQTTConfig) *MQTTChannel {
	c := newMQTTChannel(cfg, nil)

	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + c.broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.client = mqtt.NewClient(opts)
	return c
}

func newMQTTChannel(cfg MQTTConfig, client mqtt.Client) *MQTTChannel {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultMQTTReadTimeout
	}
	return &MQTTChannel{
		client:      client,
		broker:      fmt.Sprintf("%s:%d", cfg.Broker, cfg.Port),
		dataTopic:   fmt.Sprintf("%s/%s", cfg.TopicPrefix, WidgetDataKey),
		reloadTopic: fmt.Sprintf("%s/%s", cfg.TopicPrefix, reloadRequestKey),
		readTimeout: cfg.ReadTimeout,
		first:       make(chan struct{}),
		stopCh:      make(chan struct{}),
	}
}

// onConnect renews the subscriptions on every (re)connect; the broker
// replays retained messages on subscribe.
func (c *MQTTChannel) onConnect(client mqtt.Client) {
	c.setConnected(true)
	log.Info().Str("broker", c.broker).Msg("mqtt connected")
	client.Subscribe(c.dataTopic, 1, c.onData)
	client.Subscribe(c.reloadTopic, 1, c.onReload)
}

func (c *MQTTChannel) onConnectionLost(_ mqtt.Client, err error) {
	c.setConnected(false)
	log.Warn().Err(err).Msg("mqtt connection lost")
}

// Connect waits for the initial connection, honouring ctx and Disconnect.
func (c *MQTTChannel) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}
	if c.IsConnected() {
		return nil
	}

	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

func (c *MQTTChannel) onData(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	if len(msg.Payload()) == 0 {
		c.payload = nil
	} else {
		c.payload = append([]byte(nil), msg.Payload()...)
	}
	c.mu.Unlock()
	c.firstOnce.Do(func() { close(c.first) })
}

func (c *MQTTChannel) onReload(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	c.token = string(msg.Payload())
	c.mu.Unlock()
}

func (c *MQTTChannel) Write(_ context.Context, payload []byte) error {
	if err := c.publish(c.dataTopic, payload); err != nil {
		return err
	}
	c.mu.Lock()
	c.payload = append([]byte(nil), payload...)
	c.mu.Unlock()
	return nil
}

// Read returns the retained payload. The first call waits up to the read
// timeout for the broker to deliver it.
func (c *MQTTChannel) Read(ctx context.Context) ([]byte, error) {
	if !c.IsConnected() {
		return nil, fmt.Errorf("mqtt client not connected")
	}

	timer := time.NewTimer(c.readTimeout)
	defer timer.Stop()
	select {
	case <-c.first:
	case <-timer.C:
		c.firstOnce.Do(func() { close(c.first) })
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.payload == nil {
		return nil, nil
	}
	return append([]byte(nil), c.payload...), nil
}

func (c *MQTTChannel) RequestRefresh(_ context.Context) error {
	return c.publish(c.reloadTopic, []byte(uuid.NewString()))
}

func (c *MQTTChannel) RefreshToken(_ context.Context) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, nil
}

func (c *MQTTChannel) publish(topic string, payload []byte) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	token := c.client.Publish(topic, 1, true, payload) // retained
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	log.Debug().Str("topic", topic).Int("bytes", len(payload)).Msg("published to shared channel")
	return nil
}

// IsConnected returns whether the client is connected.
func (c *MQTTChannel) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client. Safe to call more than once.
func (c *MQTTChannel) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client != nil {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
	log.Info().Msg("mqtt disconnected")
}

func (c *MQTTChannel) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
