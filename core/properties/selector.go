// Package properties ranks the human readable tags shown next to a flip.
package properties

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/flipnotify/core/model"
)

// BedWindow is the time after auction start during which a bought item
// cannot be claimed yet.
const BedWindow = 20 * time.Second

// BedPrefix starts the tag of flips still inside the bed window.
const BedPrefix = "Bed"

const bedRating = 1000

// DefaultRatings weighs well known attributes. Unknown keys rate 1.
var DefaultRatings = map[string]int{
	"recombobulated":  40,
	"stars":           30,
	"enchantments":    20,
	"pet_level":       20,
	"gems":            15,
	"reforge":         5,
	"hot_potato":      5,
	"art_of_war":      5,
	"skin":            25,
	"dye":             25,
	"ability_scrolls": 30,
}

// Selector computes ranked interesting tags for a flip. It is safe for
// concurrent use.
type Selector struct {
	ratings map[string]int
}

// NewSelector returns a Selector using ratings, or DefaultRatings when nil.
func NewSelector(ratings map[string]int) *Selector {
	if ratings == nil {
		ratings = DefaultRatings
	}
	return &Selector{ratings: ratings}
}

type rated struct {
	tag    string
	key    string
	rating int
}

// Interesting returns the tags for a at time now, ranked by rating
// descending. max limits the result, zero means no limit.
func (s *Selector) Interesting(a model.Auction, now time.Time, max int) []string {
	var all []rated
	if !a.Start.IsZero() {
		left := a.Start.Add(BedWindow).Sub(now)
		if left > 0 {
			all = append(all, rated{
				tag:    fmt.Sprintf("%s: %ds", BedPrefix, int(math.Ceil(left.Seconds()))),
				key:    "",
				rating: bedRating,
			})
		}
	}
	for k, v := range a.Attributes {
		r, ok := s.ratings[k]
		if !ok {
			r = 1
		}
		all = append(all, rated{tag: format(k, v), key: k, rating: r})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].rating != all[j].rating {
			return all[i].rating > all[j].rating
		}
		return all[i].key < all[j].key
	})
	if max > 0 && len(all) > max {
		all = all[:max]
	}
	out := make([]string, len(all))
	for i, r := range all {
		out[i] = r.tag
	}
	return out
}

// IsBedTag reports whether tag was produced for the bed window.
func IsBedTag(tag string) bool { return strings.HasPrefix(tag, BedPrefix) }

func format(k, v string) string {
	name := strings.ReplaceAll(k, "_", " ")
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	if v == "" || v == "true" {
		return name
	}
	return name + ": " + v
}
