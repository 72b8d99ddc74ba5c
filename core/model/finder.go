package model

import (
	"fmt"
	"strings"
)

// FinderType identifies the detection method that produced a candidate.
// Values are bit flags so that a set of enabled finders fits in one value.
type FinderType int

const (
	FinderUnknown FinderType = 0
	FinderFlipper FinderType = 1 << (iota - 1)
	FinderSniper
	FinderSniperMedian
	FinderAI
	FinderUser
	FinderTFM
	FinderStonks
)

// DefaultFinders is used when a connection did not select any finder.
const DefaultFinders = FinderFlipper | FinderSniper | FinderSniperMedian

var finderNames = []struct {
	f    FinderType
	name string
}{
	{FinderFlipper, "FLIPPER"},
	{FinderSniper, "SNIPER"},
	{FinderSniperMedian, "SNIPER_MEDIAN"},
	{FinderAI, "AI"},
	{FinderUser, "USER"},
	{FinderTFM, "TFM"},
	{FinderStonks, "STONKS"},
}

// String returns the upper-case finder name. Sets are joined with commas.
func (f FinderType) String() string {
	if f == FinderUnknown {
		return "UNKNOWN"
	}
	var parts []string
	for _, n := range finderNames {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("FINDER(%d)", int(f))
	}
	return strings.Join(parts, ",")
}

// ParseFinder parses a single name or a comma separated list of names.
func ParseFinder(s string) (FinderType, error) {
	var res FinderType
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" || part == "UNKNOWN" {
			continue
		}
		found := false
		for _, n := range finderNames {
			if n.name == part {
				res |= n.f
				found = true
				break
			}
		}
		if !found {
			return FinderUnknown, fmt.Errorf("unknown finder %q", part)
		}
	}
	return res, nil
}

// MarshalText implements encoding.TextMarshaler.
func (f FinderType) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *FinderType) UnmarshalText(b []byte) error {
	v, err := ParseFinder(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
