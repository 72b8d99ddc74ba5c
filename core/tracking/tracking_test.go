package tracking

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/flipnotify/core/factory"
)

func sample(id int64, acc string) Delivery {
	return Delivery{
		EventID:     id,
		AccountID:   acc,
		AuctionUUID: "a1",
		Finder:      "SNIPER",
		SendTime:    time.UnixMilli(1_700_000_000_000 + id),
		Latency:     1500 * time.Millisecond,
	}
}

func TestSQLiteStore_PersistQuery(t *testing.T) {
	store, err := NewSQLiteStore("file:tracking.db?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := store.RecordDelivery(ctx, sample(1, "u1")); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := store.RecordDelivery(ctx, sample(2, "u2")); err != nil {
		t.Fatalf("record: %v", err)
	}
	out, err := store.Query(ctx, Query{AccountID: "u1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 record, got %d", len(out))
	}
	if out[0].Latency != 1500*time.Millisecond {
		t.Errorf("unexpected latency %v", out[0].Latency)
	}
}

func TestJSONLStore_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deliveries.jsonl")
	store, err := NewJSONLStore(JSONLConfig{Path: path})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()
	_ = store.RecordDelivery(ctx, sample(1, "u1"))
	_ = store.RecordDelivery(ctx, sample(1, "u1"))
	_ = store.RecordDelivery(ctx, sample(2, "u1"))
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewJSONLStore(JSONLConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	_ = reopened.RecordDelivery(ctx, sample(2, "u1"))
	out, err := reopened.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 records got %d", len(out))
	}
	byID, _ := reopened.Query(ctx, Query{EventID: 2})
	if len(byID) != 1 {
		t.Fatalf("expected 1 record for id 2 got %d", len(byID))
	}
}

type failing struct{ n int }

func (f *failing) RecordDelivery(context.Context, Delivery) error {
	f.n++
	return errors.New("down")
}

func TestMulti_JoinsErrors(t *testing.T) {
	f := &failing{}
	m := Multi{NopTracker{}, f}
	if err := m.RecordDelivery(context.Background(), sample(1, "u")); err == nil {
		t.Fatal("expected error")
	}
	if f.n != 1 {
		t.Fatalf("expected one call got %d", f.n)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestNewTracker_FromConfig(t *testing.T) {
	tr, err := NewTracker(nil)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if _, ok := tr.(NopTracker); !ok {
		t.Fatalf("expected NopTracker, got %T", tr)
	}

	dir := t.TempDir()
	tr, err = NewTracker([]factory.ModuleConfig{
		{Type: "jsonl", Conf: map[string]any{"path": filepath.Join(dir, "d.jsonl")}},
		{Type: "nop"},
	})
	if err != nil {
		t.Fatalf("multi: %v", err)
	}
	m, ok := tr.(Multi)
	if !ok || len(m) != 2 {
		t.Fatalf("expected Multi of 2, got %T", tr)
	}
	if err := m.RecordDelivery(context.Background(), sample(9, "u9")); err != nil {
		t.Fatalf("record: %v", err)
	}
	_ = m.Close()

	if _, err := NewTracker([]factory.ModuleConfig{{Type: "carrier-pigeon"}}); !errors.Is(err, factory.ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}
