package events

import "time"

// FlipBlocked is published for each policy block.
type FlipBlocked struct {
	AccountID string
	EventID   int64
	Reason    string
	At        time.Time
}

// FlipSent is published once the tracking path for a sent flip completed.
type FlipSent struct {
	AccountID   string
	EventID     int64
	AuctionUUID string
	SendTime    time.Time
	Latency     time.Duration
}

// SlowFlip is published together with the slow delivery report.
type SlowFlip struct {
	AccountID string
	EventID   int64
	Finder    string
	Latency   time.Duration
}
