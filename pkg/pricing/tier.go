package pricing

// Tier is a pricing level assigned at signup. Once granted, a member keeps
// the tier's monthly price forever, even after later signups cross the tier
// boundaries.
type Tier string

const (
	TierInnerCircle Tier = "INNER_CIRCLE"
	TierFounder     Tier = "FOUNDER"
	TierPioneer     Tier = "PIONEER"
	TierStandard    Tier = "STANDARD"
)

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierInnerCircle, TierFounder, TierPioneer, TierStandard:
		return true
	}
	return false
}

// Info describes a tier for display purposes.
type Info struct {
	Name        string
	Description string
	PriceCents  int64
	UserRange   string
}

// TierInfo returns display metadata for a tier. Unknown tiers fall back to
// the standard tier so rendering code never has to handle a zero Info.
func TierInfo(t Tier) Info {
	switch t {
	case TierInnerCircle:
		return Info{
			Name:        "Inner Circle",
			Description: "Exclusive access for the first 100 members",
			PriceCents:  100,
			UserRange:   "1-100",
		}
	case TierFounder:
		return Info{
			Name:        "Founder",
			Description: "Founder pricing for visionaries",
			PriceCents:  500,
			UserRange:   "101-200",
		}
	case TierPioneer:
		return Info{
			Name:        "Pioneer",
			Description: "Pioneer pricing for early adopters",
			PriceCents:  1000,
			UserRange:   "201-300",
		}
	default:
		return Info{
			Name:        "Standard",
			Description: "Full access to the complete training platform",
			PriceCents:  2000,
			UserRange:   "301+",
		}
	}
}
