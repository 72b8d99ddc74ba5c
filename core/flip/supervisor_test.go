package flip

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/core/monitoring"
)

var fastRetry = RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}

func TestSupervisor_RetriesUntilSuccess(t *testing.T) {
	mon := &monitoring.Recorder{}
	s := NewSupervisor(logger.NopLogger{}, mon, fastRetry)
	calls := 0
	task := s.Go(context.Background(), "flaky", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err := task.Wait(); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls got %d", calls)
	}
	if len(mon.Events()) != 0 {
		t.Fatal("success must not be reported")
	}
}

func TestSupervisor_PanicIsReportedOnce(t *testing.T) {
	mon := &monitoring.Recorder{}
	s := NewSupervisor(nil, mon, fastRetry)
	calls := 0
	task := s.Go(context.Background(), "explode", func(context.Context) error {
		calls++
		panic("nil map")
	})
	s.Wait()
	if task.Wait() == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("panics must not be retried, got %d calls", calls)
	}
	ev := mon.Events()
	if len(ev) != 1 || ev[0].Tags["task"] != "explode" {
		t.Fatalf("unexpected reports %+v", ev)
	}
}

func TestRetry_StopsOnConnectionClosed(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry, func() error {
		calls++
		return ErrConnectionClosed
	})
	if !errors.Is(err, ErrConnectionClosed) || calls != 1 {
		t.Fatalf("err=%v calls=%d", err, calls)
	}
}
