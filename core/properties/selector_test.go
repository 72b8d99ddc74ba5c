package properties

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/flipnotify/core/model"
)

func TestSelector_RanksByRating(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSelector(nil)
	a := model.Auction{
		Start: now.Add(-5 * time.Second),
		Attributes: map[string]string{
			"reforge":        "Withered",
			"recombobulated": "true",
			"zzz":            "1",
		},
	}
	tags := s.Interesting(a, now, 0)
	assert.Equal(t, []string{"Bed: 15s", "Recombobulated", "Reforge: Withered", "Zzz: 1"}, tags)
	assert.True(t, IsBedTag(tags[0]))
}

func TestSelector_NoBedAfterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewSelector(map[string]int{"stars": 3})
	a := model.Auction{Start: now.Add(-30 * time.Second), Attributes: map[string]string{"stars": "5", "x": ""}}
	tags := s.Interesting(a, now, 1)
	assert.Equal(t, []string{"Stars: 5"}, tags)
}
