package model

import "time"

// DelaySummary is the result of one fairness refresh for a connection.
type DelaySummary struct {
	AntiAfk      bool          `json:"anti_afk"`
	MacroWarning bool          `json:"macro_warning"`
	LikelyBot    bool          `json:"likely_bot"`
	Penalty      time.Duration `json:"penalty"`
	// VerifiedAt is when the summary was computed.
	VerifiedAt time.Time `json:"verified_at"`
}

// Snapshot is a point in time description of internal state.
type Snapshot struct {
	Time  time.Time `json:"time"`
	State string    `json:"state"`
}

// Countdown asks the client to render a timer.
// A zero Seconds value clears an active timer.
type Countdown struct {
	Seconds       float64 `json:"seconds"`
	WidthPercent  int     `json:"width_percent"`
	HeightPercent int     `json:"height_percent"`
	Scale         float64 `json:"scale"`
	Prefix        string  `json:"prefix"`
	MaxPrecision  int     `json:"max_precision"`
}
