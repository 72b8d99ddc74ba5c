package model

import "time"

// Auction is the auction-house snapshot a candidate was detected on.
type Auction struct {
	UUID        string            `json:"uuid"`
	Seller      string            `json:"seller"`
	Tag         string            `json:"tag"`
	ItemName    string            `json:"item_name"`
	Start       time.Time         `json:"start"`
	FindTime    time.Time         `json:"find_time"`
	StartingBid int64             `json:"starting_bid"`
	HighestBid  int64             `json:"highest_bid"`
	Bin         bool              `json:"bin"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
}

// Cost returns the price the flip can currently be bought for.
func (a Auction) Cost() int64 {
	if a.HighestBid > 0 {
		return a.HighestBid
	}
	return a.StartingBid
}

// CandidateEvent is one detected opportunity pushed by the upstream layer.
// Everything except Props is treated as immutable once received.
type CandidateEvent struct {
	ID          int64       `json:"id"`
	Auction     Auction     `json:"auction"`
	Finder      FinderType  `json:"finder"`
	TargetPrice int64       `json:"target_price"`
	DailyVolume float64     `json:"daily_volume"`
	Props       *Properties `json:"props,omitempty"`
	Sold        bool        `json:"sold"`
}

// Clone returns a copy that owns its own property bag. Maps on the auction
// are shared since nothing downstream writes to them.
func (e *CandidateEvent) Clone() *CandidateEvent {
	if e == nil {
		return nil
	}
	c := *e
	c.Props = e.Props.Clone()
	return &c
}

// EnsureProps allocates the property bag when the upstream sent none.
func (e *CandidateEvent) EnsureProps() *Properties {
	if e.Props == nil {
		e.Props = NewProperties()
	}
	return e.Props
}
