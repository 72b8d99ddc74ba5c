// Package tracking records flip deliveries for analytics.
//
// RecordDelivery must be idempotent: the dispatcher retries it on failure,
// so stores key deliveries on (EventID, AccountID).
package tracking

import (
	"context"
	"errors"
	"time"
)

// Delivery describes one flip handed to a client.
type Delivery struct {
	EventID     int64         `json:"event_id"`
	AuctionUUID string        `json:"auction_uuid"`
	AccountID   string        `json:"account_id"`
	Finder      string        `json:"finder"`
	SendTime    time.Time     `json:"send_time"`
	Latency     time.Duration `json:"latency"`
}

// Key returns the idempotency key of the delivery.
func (d Delivery) Key() string {
	return d.AccountID + "/" + itoa(d.EventID)
}

// Tracker records deliveries.
type Tracker interface {
	RecordDelivery(ctx context.Context, d Delivery) error
}

// Query filters stored deliveries. Zero fields match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	AccountID string
	EventID   int64
}

func (q Query) match(d Delivery) bool {
	if !q.Start.IsZero() && d.SendTime.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && d.SendTime.After(q.End) {
		return false
	}
	if q.AccountID != "" && d.AccountID != q.AccountID {
		return false
	}
	if q.EventID != 0 && d.EventID != q.EventID {
		return false
	}
	return true
}

// Store is a Tracker that can be queried back.
type Store interface {
	Tracker
	Query(ctx context.Context, q Query) ([]Delivery, error)
	Close() error
}

// NopTracker discards deliveries.
type NopTracker struct{}

func (NopTracker) RecordDelivery(context.Context, Delivery) error { return nil }

// Multi fans a delivery out to several trackers.
type Multi []Tracker

// RecordDelivery calls every tracker and joins their errors.
func (m Multi) RecordDelivery(ctx context.Context, d Delivery) error {
	var errs []error
	for _, t := range m {
		if err := t.RecordDelivery(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every tracker implementing io.Closer.
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if c, ok := t.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
