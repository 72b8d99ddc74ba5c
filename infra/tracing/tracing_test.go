package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestProvider_ExportsToLog(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(Config{Enabled: true}, zerolog.New(&buf))
	require.NoError(t, err)

	_, span := p.Tracer("test").Start(context.Background(), "slowFlip")
	span.SetAttributes(attribute.String("uuid", "abc"))
	span.AddEvent("context")
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, `"span":"slowFlip"`)
	assert.Contains(t, out, `"uuid":"abc"`)
	assert.Contains(t, out, `"events":["context"]`)
}

func TestProvider_Disabled(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewProvider(Config{}, zerolog.New(&buf))
	require.NoError(t, err)
	_, span := p.Tracer("test").Start(context.Background(), "ping")
	assert.False(t, span.IsRecording())
	span.End()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Empty(t, buf.String())
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewProvider(Config{Enabled: true, SampleRatio: 2}, zerolog.Nop())
	assert.Error(t, err)
}
