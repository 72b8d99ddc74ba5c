// Package tracing configures the OpenTelemetry tracer provider. Finished
// spans are written to the component logger; there is no remote exporter.
package tracing

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Config selects whether spans are recorded and how many.
type Config struct {
	Enabled     bool    `json:"enabled"`
	SampleRatio float64 `json:"sample_ratio"`
	ServiceName string  `json:"service_name"`
}

// SetDefaults samples everything for the flipnotify service.
func (c *Config) SetDefaults() {
	if c.SampleRatio <= 0 {
		c.SampleRatio = 1
	}
	if c.ServiceName == "" {
		c.ServiceName = "flipnotify"
	}
}

// Validate checks the sample ratio.
func (c Config) Validate() error {
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("tracing: sample_ratio must be within [0,1], got %v", c.SampleRatio)
	}
	return nil
}

// Provider owns the tracer provider and its shutdown.
type Provider struct {
	tp       trace.TracerProvider
	shutdown func(context.Context) error
}

// NewProvider builds a provider exporting to log. A disabled config yields a
// no-op provider.
func NewProvider(cfg Config, log zerolog.Logger) (*Provider, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return &Provider{tp: noop.NewTracerProvider(), shutdown: func(context.Context) error { return nil }}, nil
	}
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(NewLogExporter(log)),
	)
	return &Provider{tp: tp, shutdown: tp.Shutdown}, nil
}

// Tracer returns a named tracer.
func (p *Provider) Tracer(name string) trace.Tracer { return p.tp.Tracer(name) }

// TracerProvider exposes the underlying provider.
func (p *Provider) TracerProvider() trace.TracerProvider { return p.tp }

// Install sets the provider as the otel global.
func (p *Provider) Install() { otel.SetTracerProvider(p.tp) }

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error { return p.shutdown(ctx) }

// LogExporter writes finished spans as structured log lines.
type LogExporter struct {
	log zerolog.Logger
}

// NewLogExporter returns an exporter logging at info level.
func NewLogExporter(log zerolog.Logger) *LogExporter {
	return &LogExporter{log: log}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		ev := e.log.Info().
			Str("span", s.Name()).
			Str("trace_id", s.SpanContext().TraceID().String()).
			Dur("duration", s.EndTime().Sub(s.StartTime()))
		if s.Status().Code.String() != "Unset" {
			ev = ev.Str("status", s.Status().Code.String())
		}
		for _, kv := range s.Attributes() {
			ev = ev.Str(string(kv.Key), kv.Value.Emit())
		}
		if n := len(s.Events()); n > 0 {
			names := make([]string, 0, n)
			for _, se := range s.Events() {
				names = append(names, se.Name)
			}
			ev = ev.Strs("events", names)
		}
		ev.Msg("span finished")
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error { return nil }
