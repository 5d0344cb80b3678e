package pricing

// Quote is the offer a new subscriber would receive right now: the tier they
// would join, the monthly price in cents, their member number, and how many
// spots remain in that tier.
type Quote struct {
	Tier       Tier  `json:"tier"`
	PriceCents int64 `json:"priceCents"`
	UserNumber int64 `json:"userNumber"`
	SpotsLeft  int64 `json:"spotsLeft"`
}

// QuoteForCount computes the quote for the next subscriber given the number
// of currently active members. It is a total function over non-negative
// counts and never mutates state. Thresholds are evaluated lowest to
// highest, first match wins.
func QuoteForCount(activeMembers int64) Quote {
	next := activeMembers + 1

	switch {
	case next <= 100:
		return Quote{
			Tier:       TierInnerCircle,
			PriceCents: 100,
			UserNumber: next,
			SpotsLeft:  100 - activeMembers,
		}
	case next <= 200:
		return Quote{
			Tier:       TierFounder,
			PriceCents: 500,
			UserNumber: next,
			SpotsLeft:  200 - activeMembers,
		}
	case next <= 300:
		return Quote{
			Tier:       TierPioneer,
			PriceCents: 1000,
			UserNumber: next,
			SpotsLeft:  300 - activeMembers,
		}
	default:
		// Standard is unbounded, spots remaining is not a meaningful number.
		return Quote{
			Tier:       TierStandard,
			PriceCents: 2000,
			UserNumber: next,
			SpotsLeft:  0,
		}
	}
}
