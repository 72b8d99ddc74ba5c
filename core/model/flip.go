package model

// FlipInstance is the per-connection projection of a candidate. It is
// built once per dispatch and rebuilt, not mutated, when its tags go stale.
type FlipInstance struct {
	Event            *CandidateEvent `json:"event"`
	Cost             int64           `json:"cost"`
	Profit           int64           `json:"profit"`
	ProfitPercentage float64         `json:"profit_percentage"`
	Interesting      []string        `json:"interesting,omitempty"`

	LowestBin     int64  `json:"lowest_bin,omitempty"`
	SellerName    string `json:"seller_name,omitempty"`
	ShowLowestBin bool   `json:"show_lowest_bin,omitempty"`
	ShowSeller    bool   `json:"show_seller,omitempty"`
}

// NewFlipInstance computes the profit figures for e.
func NewFlipInstance(e *CandidateEvent) *FlipInstance {
	f := &FlipInstance{Event: e}
	if e == nil {
		return f
	}
	f.Cost = e.Auction.Cost()
	f.Profit = e.TargetPrice - f.Cost
	if f.Cost > 0 {
		f.ProfitPercentage = float64(f.Profit) * 100 / float64(f.Cost)
	}
	return f
}

// ID returns the id of the underlying candidate.
func (f *FlipInstance) ID() int64 { return f.Event.ID }

// Finder returns the finder of the underlying candidate.
func (f *FlipInstance) Finder() FinderType { return f.Event.Finder }

// Auction returns the auction snapshot.
func (f *FlipInstance) Auction() Auction { return f.Event.Auction }

// TopTag returns the highest ranked interesting tag or "".
func (f *FlipInstance) TopTag() string {
	if len(f.Interesting) == 0 {
		return ""
	}
	return f.Interesting[0]
}
