package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/flipnotify/config"
	"github.com/kilianp07/flipnotify/core/factory"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Addr = "127.0.0.1:0"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return &cfg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServiceRoutes(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	h := svc.Handler(context.Background())
	assert.Equal(t, http.StatusNoContent, get(t, h, "/healthz").Code)

	rec := get(t, h, "/api/sessions/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flipnotify_sessions")

	// the nop tracker cannot be queried
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/deliveries").Code)
}

func TestServiceDeliveriesWithStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.APIToken = "secret"
	cfg.Tracking.Sinks = []factory.ModuleConfig{{
		Type: "jsonl",
		Conf: map[string]any{"path": filepath.Join(t.TempDir(), "deliveries.jsonl")},
	}}
	svc, err := New(cfg)
	require.NoError(t, err)
	defer svc.Close()

	h := svc.Handler(context.Background())
	assert.Equal(t, http.StatusUnauthorized, get(t, h, "/api/deliveries").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/deliveries", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestServiceRejectsUnknownSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Source = factory.ModuleConfig{Type: "carrier-pigeon"}
	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source")
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
