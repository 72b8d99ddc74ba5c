package flip

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/kilianp07/flipnotify/core/logger"
	"github.com/kilianp07/flipnotify/core/monitoring"
)

// RetryPolicy bounds how often a failing operation is attempted again.
type RetryPolicy struct {
	MaxRetries      uint64        `json:"max_retries"`
	InitialInterval time.Duration `json:"initial_interval"`
	MaxInterval     time.Duration `json:"max_interval"`
}

// DefaultRetryPolicy retries three times starting at 50ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: 50 * time.Millisecond, MaxInterval: time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx)
}

// Retry runs op until it succeeds, the policy is exhausted or ctx is done.
// ErrConnectionClosed and backoff.Permanent errors stop immediately.
func Retry(ctx context.Context, p RetryPolicy, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if errors.Is(err, ErrConnectionClosed) {
			return backoff.Permanent(err)
		}
		return err
	}, p.backOff(ctx))
}

// Task is the handle of a supervised background operation.
type Task struct {
	Name string
	done chan struct{}
	err  error
}

// Done is closed once the task finished, including retries.
func (t *Task) Done() <-chan struct{} { return t.done }

// Wait blocks until the task finished and returns its final error.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Supervisor runs background tasks with retry. Final failures go to the
// logger and the monitor instead of being dropped.
type Supervisor struct {
	log     logger.Logger
	monitor monitoring.Monitor
	policy  RetryPolicy
	wg      sync.WaitGroup
}

// NewSupervisor creates a Supervisor. Nil collaborators are replaced by no-ops.
func NewSupervisor(log logger.Logger, mon monitoring.Monitor, policy RetryPolicy) *Supervisor {
	if log == nil {
		log = logger.NopLogger{}
	}
	if mon == nil {
		mon = monitoring.NopMonitor{}
	}
	return &Supervisor{log: log, monitor: mon, policy: policy}
}

// Go starts fn on its own goroutine. A returned error is retried according
// to the policy; a panic is reported and not retried.
func (s *Supervisor) Go(ctx context.Context, name string, fn func(ctx context.Context) error) *Task {
	t := &Task{Name: name, done: make(chan struct{})}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		t.err = Retry(ctx, s.policy, func() error { return safeCall(ctx, fn) })
		if t.err != nil {
			s.log.Errorf("task %s failed: %v", name, t.err)
			s.monitor.CaptureException(t.err, map[string]string{"task": name})
		}
	}()
	return t
}

// Wait blocks until every started task finished.
func (s *Supervisor) Wait() { s.wg.Wait() }

func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("panic: %v", r))
		}
	}()
	return fn(ctx)
}
