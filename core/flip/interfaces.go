package flip

import (
	"context"
	"time"

	"github.com/kilianp07/flipnotify/core/model"
)

// RuleEngine decides whether a flip matches the connection filters.
// reason is shown to the user for blocks and stored as "match" otherwise.
type RuleEngine interface {
	Evaluate(s *model.FilterSettings, f *model.FlipInstance) (matched bool, reason string, err error)
}

// RateGate limits how many flips a connection receives.
type RateGate interface {
	Admit(f *model.FlipInstance) bool
	ResetWindow()
}

// FairnessDelay decides when non automated connections receive flips.
type FairnessDelay interface {
	IsAutomatedClient(f *model.FlipInstance) bool
	// AwaitSendTime blocks for the fairness delay and returns the send time.
	AwaitSendTime(ctx context.Context, f *model.FlipInstance) (time.Time, error)
	CurrentPenalty() time.Duration
}

// Transport hands a flip to the client connection.
type Transport interface {
	SendFlip(ctx context.Context, f *model.FlipInstance) error
}

// Enricher fills lowest bin and seller information.
type Enricher interface {
	FillVisibility(ctx context.Context, f *model.FlipInstance, s *model.FilterSettings) error
}

// Host is the connection the processor works for.
type Host interface {
	Settings() *model.FilterSettings
	Account() model.AccountInfo
	StartTimer(d time.Duration, prefix string)
	ClearTimer()
	PlaySound(name string)
	// Heartbeat signals delivery activity so the keepalive ping is pushed back.
	Heartbeat()
}

// SnapshotSource provides recent internal state for slow flip reports.
type SnapshotSource interface {
	Snapshots() []model.Snapshot
}

// Clock abstracts time so that the bed wait can be tested.
type Clock interface {
	Now() time.Time
	// Sleep returns early with ctx.Err() when ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }
