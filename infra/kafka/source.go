// Package kafka consumes candidate batches from a Kafka topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	"github.com/kilianp07/flipnotify/core/ingest"
	"github.com/kilianp07/flipnotify/core/monitoring"
	"github.com/kilianp07/flipnotify/infra/logger"
)

// Config describes the consumer group reading batches.
type Config struct {
	Brokers    []string      `json:"brokers"`
	Topic      string        `json:"topic"`
	GroupID    string        `json:"group_id"`
	MinBytes   int           `json:"min_bytes"`
	MaxBytes   int           `json:"max_bytes"`
	BackoffMin time.Duration `json:"backoff_min"`
	BackoffMax time.Duration `json:"backoff_max"`
}

// SetDefaults applies the consumer defaults.
func (c *Config) SetDefaults() {
	if c.Topic == "" {
		c.Topic = "flips"
	}
	if c.GroupID == "" {
		c.GroupID = "flipnotify"
	}
	if c.MinBytes <= 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10e6
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 50 * time.Millisecond
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = 5 * time.Second
	}
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka source: brokers required")
	}
	return nil
}

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var newReader = func(cfg Config) reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
}

// Source reads one batch per Kafka message. Undecodable messages are
// reported and committed so they do not block the partition.
type Source struct {
	cfg Config
	r   reader
	log logger.Logger
	mon monitoring.Monitor
}

// NewSource builds the reader for cfg.
func NewSource(cfg Config, mon monitoring.Monitor) (*Source, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, r: newReader(cfg), log: logger.New("kafka_source"), mon: monitoring.OrNop(mon)}, nil
}

// Run fetches until ctx is cancelled. Fetch errors back off exponentially.
func (s *Source) Run(ctx context.Context, sink ingest.Sink) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.BackoffMin
	bo.MaxInterval = s.cfg.BackoffMax
	bo.MaxElapsedTime = 0
	s.log.Infof("consuming %s as %s", s.cfg.Topic, s.cfg.GroupID)
	for {
		msg, err := s.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := bo.NextBackOff()
			s.log.Warnf("fetch from %s failed, retrying in %s: %v", s.cfg.Topic, wait, err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		bo.Reset()
		if err := ingest.Handle("kafka", msg.Value, sink); err != nil {
			s.log.Errorf("bad batch at %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			s.mon.CaptureException(err, map[string]string{"module": "kafka", "topic": s.cfg.Topic})
		}
		if err := s.r.CommitMessages(ctx, msg); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Errorf("commit offset %d: %v", msg.Offset, err)
		}
	}
}

// Close closes the reader.
func (s *Source) Close() error { return s.r.Close() }
