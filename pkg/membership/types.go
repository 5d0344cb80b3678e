package membership

import (
	"time"

	"github.com/google/uuid"

	"github.com/mobilityhq/blueprint/pkg/pricing"
)

// Status is the local subscription state vocabulary. The provider's richer
// status set collapses into these three at the reconciliation boundary.
type Status string

const (
	StatusNone     Status = "NONE"
	StatusActive   Status = "ACTIVE"
	StatusCanceled Status = "CANCELED"
)

// User is a member identity with its denormalized subscription snapshot.
// Tier and MonthlyPriceCents are locked at checkout and never recomputed,
// even as later signups cross tier boundaries. The Status field is a
// read-optimization projection of the Subscription row, refreshed on every
// reconciler write.
type User struct {
	ID                uuid.UUID
	Email             string
	CustomerID        string // provider customer id, empty until first checkout
	Status            Status
	Tier              pricing.Tier
	MonthlyPriceCents int64
	UserNumber        int64
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasAccessAt reports whether the member can reach paid content at the given
// time: an active subscription, or a canceled one still inside its paid
// billing period.
func (u *User) HasAccessAt(now time.Time) bool {
	if u.Status == StatusActive {
		return true
	}
	if u.Status == StatusCanceled && u.SubscriptionEnd != nil && u.SubscriptionEnd.After(now) {
		return true
	}
	return false
}

// Subscription mirrors the provider-side subscription object. Keyed by the
// provider's subscription id so a provider that creates a new subscription
// object on plan changes yields a new row rather than a conflict. Owned by
// the reconciler; source of truth for billing-period dates.
type Subscription struct {
	ID                     uuid.UUID
	UserID                 uuid.UUID
	ProviderSubscriptionID string
	ProviderPriceID        string
	Status                 Status
	Tier                   pricing.Tier
	MonthlyPriceCents      int64
	CurrentPeriodStart     time.Time
	CurrentPeriodEnd       time.Time
	CancelAtPeriodEnd      bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// CheckoutIntent is what the HTTP layer hands back after starting a
// checkout: the hosted checkout URL plus the quote that was locked in.
type CheckoutIntent struct {
	SessionID string        `json:"sessionId"`
	URL       string        `json:"checkoutUrl"`
	Quote     pricing.Quote `json:"quote"`
}
