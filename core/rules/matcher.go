// Package rules holds the default settings matcher used as rule engine.
package rules

import (
	"fmt"
	"strings"

	"github.com/kilianp07/flipnotify/core/model"
)

// Matcher checks a flip against the plain thresholds of FilterSettings.
// Whitelist entries win over everything, blacklist entries over thresholds.
type Matcher struct{}

// Evaluate implements flip.RuleEngine.
func (Matcher) Evaluate(s *model.FilterSettings, f *model.FlipInstance) (bool, string, error) {
	if s == nil {
		return false, "", fmt.Errorf("no settings")
	}
	if f == nil || f.Event == nil {
		return false, "", fmt.Errorf("empty flip")
	}
	a := f.Auction()
	for _, e := range s.Whitelist {
		if Matches(e, a) {
			return true, "whitelist " + e.String(), nil
		}
	}
	for _, e := range s.Blacklist {
		if Matches(e, a) {
			return false, "blacklist " + e.String(), nil
		}
	}
	switch {
	case f.Profit < s.MinProfit:
		return false, "minProfit", nil
	case s.MinProfitPercent > 0 && f.ProfitPercentage < s.MinProfitPercent:
		return false, "profit Percentage", nil
	case f.Event.DailyVolume < s.MinVolume:
		return false, "minVolume", nil
	case s.MaxCost > 0 && f.Cost > s.MaxCost:
		return false, "maxCost", nil
	}
	return true, "general filter", nil
}

// Matches reports whether entry e applies to auction a.
func Matches(e model.ListEntry, a model.Auction) bool {
	if e.Tag == "" && e.Seller == "" {
		return false
	}
	if e.Tag != "" && !strings.EqualFold(e.Tag, a.Tag) {
		return false
	}
	if e.Seller != "" && !strings.EqualFold(e.Seller, a.Seller) {
		return false
	}
	return true
}
