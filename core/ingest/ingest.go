// Package ingest turns upstream candidate batches into deliveries on the
// session hub. Sources (MQTT, Kafka) are registered by type and built from
// configuration.
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/flipnotify/core/factory"
	"github.com/kilianp07/flipnotify/core/model"
)

// ErrEmptyBatch is returned when a payload decodes to no candidates.
var ErrEmptyBatch = errors.New("empty batch")

// Sink receives decoded batches. *session.Hub implements it.
type Sink interface {
	Deliver(batch []*model.CandidateEvent)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(batch []*model.CandidateEvent)

func (f SinkFunc) Deliver(batch []*model.CandidateEvent) { f(batch) }

// Source pushes batches into a sink until ctx is cancelled.
type Source interface {
	Run(ctx context.Context, sink Sink) error
	Close() error
}

// DecodeBatch accepts either a JSON array of candidates or a single object.
func DecodeBatch(payload []byte) ([]*model.CandidateEvent, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, ErrEmptyBatch
	}
	var batch []*model.CandidateEvent
	if payload[0] == '[' {
		if err := json.Unmarshal(payload, &batch); err != nil {
			return nil, fmt.Errorf("decode batch: %w", err)
		}
	} else {
		var one model.CandidateEvent
		if err := json.Unmarshal(payload, &one); err != nil {
			return nil, fmt.Errorf("decode candidate: %w", err)
		}
		batch = append(batch, &one)
	}
	out := batch[:0]
	for _, e := range batch {
		if e != nil {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyBatch
	}
	return out, nil
}

var sourceRegistry = factory.NewRegistry[Source]()

// RegisterSource adds a source factory identified by name.
func RegisterSource(name string, f factory.Factory[Source]) error {
	return sourceRegistry.Register(name, f)
}

// SourceTypes lists the registered source type names.
func SourceTypes() []string { return sourceRegistry.Names() }

// NewSource builds the configured source.
func NewSource(cfg factory.ModuleConfig) (Source, error) {
	return sourceRegistry.Create(cfg)
}
