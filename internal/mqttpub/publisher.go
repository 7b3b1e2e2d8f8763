// Package mqttpub publishes GPS snapshots as JSON to an MQTT broker.
package mqttpub

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"gpsfeed/internal/gps"
)

type Config struct {
	Broker   string
	ClientID string
	Topic    string
	QoS      byte
	Retained bool
	Username string
	Password string

	// Timeout bounds connect and publish waits. Defaults to 5s.
	Timeout time.Duration
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

var errNotConnected = errors.New("mqtt publisher is not connected")

type Publisher struct {
	cfg Config
	log *zap.SugaredLogger

	newClient func(*mqtt.ClientOptions) client

	mu sync.Mutex
	c  client
}

func New(cfg Config, logger *zap.SugaredLogger) *Publisher {
	return newPublisher(cfg, logger, func(o *mqtt.ClientOptions) client { return mqtt.NewClient(o) })
}

func newPublisher(cfg Config, logger *zap.SugaredLogger, newClient func(*mqtt.ClientOptions) client) *Publisher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Publisher{cfg: cfg, log: logger, newClient: newClient}
}

func clientOptions(cfg Config) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	return opts
}

func wait(tok mqtt.Token, timeout time.Duration, what string) error {
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt %s timed out after %s", what, timeout)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt %s: %w", what, err)
	}
	return nil
}

func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c != nil {
		return nil
	}
	c := p.newClient(clientOptions(p.cfg))
	if err := wait(c.Connect(), p.cfg.Timeout, "connect"); err != nil {
		return err
	}
	p.c = c
	p.log.Infof("mqtt connected broker=%s topic=%s", p.cfg.Broker, p.cfg.Topic)
	return nil
}

func (p *Publisher) Publish(snap gps.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	p.mu.Lock()
	c := p.c
	p.mu.Unlock()
	if c == nil {
		return errNotConnected
	}
	return wait(c.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retained, payload), p.cfg.Timeout, "publish")
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	c := p.c
	p.c = nil
	p.mu.Unlock()
	if c != nil {
		// Allow in-flight publishes a moment to drain.
		c.Disconnect(250)
	}
	return nil
}
