package deliveries

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/flipnotify/core/tracking"
)

func TestHandler_AuthAndFilters(t *testing.T) {
	store, err := tracking.NewJSONLStore(tracking.JSONLConfig{Path: filepath.Join(t.TempDir(), "d.jsonl")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	now := time.Now().UTC().Truncate(time.Second)
	for i, acc := range []string{"u1", "u2"} {
		if err := store.RecordDelivery(context.Background(), tracking.Delivery{EventID: int64(i + 1), AccountID: acc, SendTime: now}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	h := NewHandler(store, "tok")

	req := httptest.NewRequest("GET", "/api/deliveries?account_id=u1&start="+now.Add(-time.Minute).Format(time.RFC3339), nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	var out []tracking.Delivery
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 || out[0].AccountID != "u1" {
		t.Fatalf("unexpected records %+v", out)
	}

	req = httptest.NewRequest("GET", "/api/deliveries?event_id=x", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/api/deliveries", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestFindStore(t *testing.T) {
	store, err := tracking.NewJSONLStore(tracking.JSONLConfig{Path: filepath.Join(t.TempDir(), "d.jsonl")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := FindStore(tracking.NopTracker{}); ok {
		t.Fatal("nop tracker is not a store")
	}
	s, ok := FindStore(tracking.Multi{tracking.NopTracker{}, store})
	if !ok || s != tracking.Store(store) {
		t.Fatal("store not found inside Multi")
	}
}
