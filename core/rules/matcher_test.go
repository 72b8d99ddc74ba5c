package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/flipnotify/core/model"
)

func flip(target, cost int64, volume float64) *model.FlipInstance {
	return model.NewFlipInstance(&model.CandidateEvent{
		ID:          1,
		TargetPrice: target,
		DailyVolume: volume,
		Auction:     model.Auction{Tag: "HYPERION", Seller: "s1", StartingBid: cost},
	})
}

func TestMatcher_Thresholds(t *testing.T) {
	m := Matcher{}
	s := model.DefaultSettings()

	cases := []struct {
		name   string
		f      *model.FlipInstance
		mutate func(*model.FilterSettings)
		ok     bool
		reason string
	}{
		{"matches", flip(1_000_000, 500_000, 30), nil, true, "general filter"},
		{"low profit", flip(550_000, 500_000, 30), nil, false, "minProfit"},
		{"low volume", flip(1_000_000, 500_000, 2), nil, false, "minVolume"},
		{"percent", flip(1_000_000, 800_000, 30), func(s *model.FilterSettings) { s.MinProfitPercent = 50 }, false, "profit Percentage"},
		{"max cost", flip(3_000_000, 2_000_000, 30), func(s *model.FilterSettings) { s.MaxCost = 1_000_000 }, false, "maxCost"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := s.Clone()
			if tc.mutate != nil {
				tc.mutate(cur)
			}
			ok, reason, err := m.Evaluate(cur, tc.f)
			assert.NoError(t, err)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestMatcher_Lists(t *testing.T) {
	m := Matcher{}
	s := model.DefaultSettings()
	s.Whitelist = []model.ListEntry{{Tag: "hyperion"}}
	ok, reason, _ := m.Evaluate(s, flip(1, 500_000, 0))
	assert.True(t, ok)
	assert.Equal(t, "whitelist hyperion", reason)

	s.Whitelist = nil
	s.Blacklist = []model.ListEntry{{Seller: "S1", Display: "scammer"}}
	ok, reason, _ = m.Evaluate(s, flip(1_000_000, 500_000, 30))
	assert.False(t, ok)
	assert.Equal(t, "blacklist scammer", reason)
}

func TestMatcher_Errors(t *testing.T) {
	_, _, err := Matcher{}.Evaluate(nil, flip(1, 1, 1))
	assert.Error(t, err)
}
