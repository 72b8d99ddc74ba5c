// Package plugins registers the infrastructure-backed modules (trackers
// and batch sources) with their core registries. Importing it for side
// effects makes every built-in type available to configuration.
package plugins

import (
	"context"

	"github.com/kilianp07/flipnotify/core/factory"
	"github.com/kilianp07/flipnotify/core/ingest"
	coretracking "github.com/kilianp07/flipnotify/core/tracking"
)

// Available lists the configurable type names per module kind.
func Available() map[string][]string {
	return map[string][]string{
		"tracker": coretracking.TrackerTypes(),
		"source":  ingest.SourceTypes(),
	}
}

// NewTracker builds the configured trackers.
func NewTracker(cfgs []factory.ModuleConfig) (coretracking.Tracker, error) {
	return coretracking.NewTracker(cfgs)
}

// NewSource builds the configured batch source.
func NewSource(cfg factory.ModuleConfig) (ingest.Source, error) {
	return ingest.NewSource(cfg)
}

// idleSource never produces batches. Used when candidates arrive only
// through the replay command or tests.
type idleSource struct{}

func (idleSource) Run(ctx context.Context, _ ingest.Sink) error {
	<-ctx.Done()
	return ctx.Err()
}

func (idleSource) Close() error { return nil }
