package emitter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/RecPause/internal/debug"
)

// MQTTConfig selects the broker and client identity.
type MQTTConfig struct {
	Broker   string // host:port, or a full URL such as ssl://host:8883
	ClientID string
	QoS      byte
}

// MQTTPublisher publishes to an MQTT broker with automatic reconnection.
type MQTTPublisher struct {
	cfg    MQTTConfig
	Client mqtt.Client

	mu        sync.RWMutex
	connected bool
}

// NewMQTTPublisher creates an unconnected publisher.
func NewMQTTPublisher(cfg MQTTConfig) *MQTTPublisher {
	return &MQTTPublisher{cfg: cfg}
}

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return fmt.Sprintf("tcp://%s", b)
}

// Connect establishes the connection to the broker.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		debug.Info("mqtt connection established (broker=%s, client_id=%s)", p.cfg.Broker, p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		debug.Errorf("mqtt connection lost, will auto-reconnect: %v", err)
	}

	p.Client = mqtt.NewClient(opts)
	debug.Verbose("connecting to mqtt broker %s", p.cfg.Broker)

	token := p.Client.Connect()
	wait := 5 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		wait = time.Until(dl)
	}
	if !token.WaitTimeout(wait) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Publish sends payload to topic.
func (p *MQTTPublisher) Publish(topic string, payload []byte, retain bool) error {
	if !p.isConnected() {
		return fmt.Errorf("mqtt not connected")
	}
	token := p.Client.Publish(topic, p.cfg.QoS, retain, payload)
	if !token.WaitTimeout(2 * time.Second) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p.Client != nil && p.Client.IsConnected() {
		p.Client.Disconnect(250)
		debug.Info("mqtt disconnected")
	}
	p.setConnected(false)
	return nil
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}
