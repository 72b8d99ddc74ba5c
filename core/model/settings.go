package model

// ListEntry is a whitelist or blacklist entry. Empty fields match anything.
type ListEntry struct {
	Tag    string `json:"tag,omitempty"`
	Seller string `json:"seller,omitempty"`
	// Display is shown to the user instead of the raw fields.
	Display string `json:"display,omitempty"`
}

// String returns the display form of the entry.
func (e ListEntry) String() string {
	switch {
	case e.Display != "":
		return e.Display
	case e.Tag != "" && e.Seller != "":
		return e.Tag + " from " + e.Seller
	case e.Seller != "":
		return "seller " + e.Seller
	default:
		return e.Tag
	}
}

// VisibilitySettings controls which attributes are shown for a flip.
type VisibilitySettings struct {
	LowestBin        bool `json:"lowest_bin"`
	Seller           bool `json:"seller"`
	ShortNumbers     bool `json:"short_numbers"`
	SellerOpenButton bool `json:"seller_open_button"`
	Lore             bool `json:"lore"`
	ExtraInfoMax     int  `json:"extra_info_max"`
}

// ModSettings are client side display preferences.
type ModSettings struct {
	NoBedDelay            bool    `json:"no_bed_delay"`
	MinutesBetweenBlocked int     `json:"minutes_between_blocked"`
	TimerX                int     `json:"timer_x"`
	TimerY                int     `json:"timer_y"`
	TimerScale            float64 `json:"timer_scale"`
	TimerPrecision        int     `json:"timer_precision"`
	TimerPrefix           string  `json:"timer_prefix"`
}

// FilterSettings is the per-connection filter configuration.
type FilterSettings struct {
	MinProfit        int64       `json:"min_profit"`
	MinProfitPercent float64     `json:"min_profit_percent"`
	MinVolume        float64     `json:"min_volume"`
	MaxCost          int64       `json:"max_cost"`
	AllowedFinders   FinderType  `json:"allowed_finders"`
	DisableFlips     bool        `json:"disable_flips"`
	FastMode         bool        `json:"fast_mode"`
	BasedOnLBin      bool        `json:"based_on_lbin"`
	Whitelist        []ListEntry `json:"whitelist,omitempty"`
	Blacklist        []ListEntry `json:"blacklist,omitempty"`
	// LastChanged is the message shown when the settings are applied.
	LastChanged string `json:"last_changed,omitempty"`

	Visibility VisibilitySettings `json:"visibility"`
	Mod        ModSettings        `json:"mod"`
}

// DefaultSettings returns the settings a fresh connection starts with.
func DefaultSettings() *FilterSettings {
	return &FilterSettings{
		MinProfit: 100000,
		MinVolume: 20,
		Visibility: VisibilitySettings{
			ShortNumbers:     true,
			SellerOpenButton: true,
			ExtraInfoMax:     3,
			Lore:             true,
		},
	}
}

// EnabledFinders returns the finder set, falling back to DefaultFinders.
func (s *FilterSettings) EnabledFinders() FinderType {
	if s.AllowedFinders == FinderUnknown {
		return DefaultFinders
	}
	return s.AllowedFinders
}

// IsFinderBlocked reports whether flips from f are disabled.
func (s *FilterSettings) IsFinderBlocked(f FinderType) bool {
	return s.EnabledFinders()&f == 0
}

// NeedsVisibility reports whether lowest bin or seller lookups are needed.
func (s *FilterSettings) NeedsVisibility() bool {
	return s.BasedOnLBin || s.Visibility.LowestBin || s.Visibility.Seller
}

// Clone returns a deep copy.
func (s *FilterSettings) Clone() *FilterSettings {
	if s == nil {
		return nil
	}
	c := *s
	c.Whitelist = append([]ListEntry(nil), s.Whitelist...)
	c.Blacklist = append([]ListEntry(nil), s.Blacklist...)
	return &c
}
