package model

import (
	"fmt"
	"strings"
)

// AccountTier is the subscription level of an account. Higher is better.
type AccountTier int

const (
	TierNone AccountTier = iota
	TierStarterPremium
	TierPremium
	TierPremiumPlus
)

func (t AccountTier) String() string {
	switch t {
	case TierNone:
		return "NONE"
	case TierStarterPremium:
		return "STARTER_PREMIUM"
	case TierPremium:
		return "PREMIUM"
	case TierPremiumPlus:
		return "PREMIUM_PLUS"
	default:
		return fmt.Sprintf("TIER(%d)", int(t))
	}
}

// ParseTier converts a tier name into an AccountTier.
func ParseTier(s string) (AccountTier, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE":
		return TierNone, nil
	case "STARTER_PREMIUM":
		return TierStarterPremium, nil
	case "PREMIUM":
		return TierPremium, nil
	case "PREMIUM_PLUS":
		return TierPremiumPlus, nil
	}
	return TierNone, fmt.Errorf("unknown tier %q", s)
}

func (t AccountTier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *AccountTier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// AccountInfo identifies the account behind a connection.
type AccountInfo struct {
	UserID string      `json:"user_id"`
	McUUID string      `json:"mc_uuid"`
	Tier   AccountTier `json:"tier"`
}
