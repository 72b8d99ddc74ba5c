package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/flipnotify/core/ingest"
	"github.com/kilianp07/flipnotify/core/model"
	"github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/infra/logger"
)

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker     string      `json:"broker"`
	ClientID   string      `json:"client_id"`
	Username   string      `json:"username"`
	Password   string      `json:"password"`
	Topic      string      `json:"topic"`
	QoS        byte        `json:"qos"`
	UseTLS     bool        `json:"use_tls"`
	ClientCert string      `json:"client_cert"`
	ClientKey  string      `json:"client_key"`
	CABundle   string      `json:"ca_bundle"`
	AuthMethod string      `json:"auth_method"`
	LWTTopic   string      `json:"lwt_topic"`
	LWTPayload string      `json:"lwt_payload"`
	LWTQoS     byte        `json:"lwt_qos"`
	LWTRetain  bool        `json:"lwt_retain"`
	MaxRetries int         `json:"max_retries"`
	BackoffMS  int         `json:"backoff_ms"`
	TLSConfig  *tls.Config `json:"-"`
}

// SetDefaults fills the topic and retry settings.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "flips/batch"
	}
	if c.ClientID == "" {
		c.ClientID = "flipnotify"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// Source subscribes to the batch topic and hands decoded batches to a sink.
type Source struct {
	cfg Config
	log logger.Logger
	mon monitoring.Monitor

	mu   sync.Mutex
	cli  pahoClient
	sink ingest.Sink
}

// NewSource returns an unconnected source; Run connects.
func NewSource(cfg Config, mon monitoring.Monitor) *Source {
	cfg.SetDefaults()
	return &Source{cfg: cfg, log: logger.New("mqtt_source"), mon: monitoring.OrNop(mon)}
}

// Run connects, subscribes and blocks until ctx is done.
func (s *Source) Run(ctx context.Context, sink ingest.Sink) error {
	opts, err := NewClientOptions(s.cfg)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()

	opts.OnConnect = func(c paho.Client) {
		s.log.Infof("MQTT connected, subscribing to %s", s.cfg.Topic)
		if token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.onBatch); token.Wait() && token.Error() != nil {
			s.log.Errorf("subscribe error: %v", token.Error())
			s.mon.CaptureException(token.Error(), map[string]string{"module": "mqtt", "topic": s.cfg.Topic})
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		s.log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		s.log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	s.mu.Lock()
	s.cli = c
	s.mu.Unlock()

	<-ctx.Done()
	return ctx.Err()
}

func (s *Source) onBatch(_ paho.Client, msg paho.Message) {
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	if sink == nil {
		return
	}
	if err := ingest.Handle("mqtt", msg.Payload(), sink); err != nil {
		s.log.Errorf("failed to decode batch from %s: %v", msg.Topic(), err)
		s.mon.CaptureException(err, map[string]string{"module": "mqtt", "topic": msg.Topic()})
	}
}

// Close gracefully closes the MQTT connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cli != nil && s.cli.IsConnected() {
		s.cli.Disconnect(250)
	}
	return nil
}

// Publisher pushes candidate batches to the batch topic. The replay command
// uses it to feed a running server.
type Publisher struct {
	cli pahoClient
	cfg Config
	log logger.Logger
	mon monitoring.Monitor
}

// NewPublisher connects to the broker.
func NewPublisher(cfg Config, mon monitoring.Monitor) (*Publisher, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return &Publisher{cli: c, cfg: cfg, log: logger.New("mqtt_publisher"), mon: monitoring.OrNop(mon)}, nil
}

// Publish sends the batch as one JSON array, retrying with exponential
// backoff up to MaxRetries times.
func (p *Publisher) Publish(ctx context.Context, batch []*model.CandidateEvent) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	attempt := 0
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Duration(p.cfg.BackoffMS) * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.cfg.MaxRetries)), ctx)
	err = backoff.Retry(func() error {
		attempt++
		token := p.cli.Publish(p.cfg.Topic, p.cfg.QoS, false, payload)
		token.Wait()
		if err := token.Error(); err != nil {
			p.log.Errorf("publish attempt %d failed: %v", attempt, err)
			return err
		}
		return nil
	}, policy)
	if err != nil {
		p.mon.CaptureException(err, map[string]string{"module": "mqtt", "topic": p.cfg.Topic})
		return err
	}
	p.log.Infof("published %d candidates to %s", len(batch), p.cfg.Topic)
	return nil
}

// Close disconnects the publisher.
func (p *Publisher) Close() error {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
	return nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
