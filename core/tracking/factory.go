package tracking

import (
	"github.com/kilianp07/flipnotify/core/factory"
)

var trackerRegistry = factory.NewRegistry[Tracker]()

func init() {
	trackerRegistry.MustRegister("nop", func(map[string]any) (Tracker, error) {
		return NopTracker{}, nil
	})
	trackerRegistry.MustRegister("jsonl", func(conf map[string]any) (Tracker, error) {
		var c JSONLConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c)
	})
	trackerRegistry.MustRegister("sqlite", func(conf map[string]any) (Tracker, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
}

// RegisterTracker adds a tracker factory identified by name.
func RegisterTracker(name string, f factory.Factory[Tracker]) error {
	return trackerRegistry.Register(name, f)
}

// TrackerTypes lists the registered tracker type names.
func TrackerTypes() []string { return trackerRegistry.Names() }

// NewTracker creates a Tracker from the provided configuration. Several
// entries are combined with Multi.
func NewTracker(cfgs []factory.ModuleConfig) (Tracker, error) {
	if len(cfgs) == 0 {
		return NopTracker{}, nil
	}
	if len(cfgs) == 1 {
		return trackerRegistry.Create(cfgs[0])
	}
	trackers := make(Multi, 0, len(cfgs))
	for _, c := range cfgs {
		t, err := trackerRegistry.Create(c)
		if err != nil {
			_ = trackers.Close()
			return nil, err
		}
		trackers = append(trackers, t)
	}
	return trackers, nil
}
