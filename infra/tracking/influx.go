// Package tracking holds delivery trackers backed by external services.
package tracking

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coretracking "github.com/kilianp07/flipnotify/core/tracking"
	"github.com/kilianp07/flipnotify/infra/logger"
)

// InfluxConfig locates the bucket deliveries are written to.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxTracker writes one flip_delivery point per delivery.
type InfluxTracker struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxTracker creates a tracker for the given InfluxDB endpoint.
func NewInfluxTracker(cfg InfluxConfig) *InfluxTracker {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxTracker{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-tracker"),
	}
}

// NewInfluxTrackerWithFallback pings the instance and returns a NopTracker
// when the health check fails.
func NewInfluxTrackerWithFallback(cfg InfluxConfig) coretracking.Tracker {
	t := NewInfluxTracker(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := t.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			t.log.Errorf("influx health check error: %v", err)
		} else {
			t.log.Errorf("influx health status: %s", health.Status)
		}
		t.client.Close()
		return coretracking.NopTracker{}
	}
	return t
}

// Point builds the line protocol point for d.
func Point(d coretracking.Delivery) *write.Point {
	return write.NewPointWithMeasurement("flip_delivery").
		AddTag("account_id", d.AccountID).
		AddTag("finder", d.Finder).
		AddTag("event_id", strconv.FormatInt(d.EventID, 10)).
		AddField("auction_uuid", d.AuctionUUID).
		AddField("latency_ms", round3(float64(d.Latency)/float64(time.Millisecond))).
		SetTime(d.SendTime)
}

// RecordDelivery writes the delivery point. Influx overwrites points with
// identical tags and timestamp, so retries do not duplicate.
func (t *InfluxTracker) RecordDelivery(ctx context.Context, d coretracking.Delivery) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.writeAPI.WritePoint(ctx, Point(d))
}

// Close releases the client.
func (t *InfluxTracker) Close() error {
	t.client.Close()
	return nil
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
