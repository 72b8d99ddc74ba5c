package plugins

import (
	"fmt"

	"github.com/kilianp07/flipnotify/core/factory"
	"github.com/kilianp07/flipnotify/core/ingest"
	"github.com/kilianp07/flipnotify/core/monitoring"
	coretracking "github.com/kilianp07/flipnotify/core/tracking"
	"github.com/kilianp07/flipnotify/infra/kafka"
	"github.com/kilianp07/flipnotify/infra/mqtt"
	inftracking "github.com/kilianp07/flipnotify/infra/tracking"
)

func init() {
	must(coretracking.RegisterTracker("influx", func(conf map[string]any) (coretracking.Tracker, error) {
		var c inftracking.InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.URL == "" {
			return nil, fmt.Errorf("influx tracker: url required")
		}
		return inftracking.NewInfluxTrackerWithFallback(c), nil
	}))
	must(coretracking.RegisterTracker("http", func(conf map[string]any) (coretracking.Tracker, error) {
		var c inftracking.HTTPConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return inftracking.NewHTTPTracker(c)
	}))

	must(ingest.RegisterSource("none", func(map[string]any) (ingest.Source, error) {
		return idleSource{}, nil
	}))
	must(ingest.RegisterSource("mqtt", func(conf map[string]any) (ingest.Source, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Broker == "" {
			return nil, fmt.Errorf("mqtt source: broker required")
		}
		return mqtt.NewSource(c, monitoring.Default()), nil
	}))
	must(ingest.RegisterSource("kafka", func(conf map[string]any) (ingest.Source, error) {
		var c kafka.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return kafka.NewSource(c, monitoring.Default())
	}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
