package billing

import (
	"context"
	"time"

	"github.com/mobilityhq/blueprint/pkg/pricing"
)

// Metadata keys attached to checkout sessions and provider subscriptions.
// They carry the quote a member was actually charged, so reconciliation is
// driven by what was locked in at checkout, never recomputed.
const (
	MetaUserID            = "userId"
	MetaUserNumber        = "userNumber"
	MetaTier              = "tier"
	MetaMonthlyPriceCents = "monthlyPriceCents"
)

// PaymentProvider is the boundary to the external payment system. It covers
// the outbound calls the membership service needs (customer + checkout
// session management) and the inbound event feed (signed webhook payloads).
//
// Implementations must verify webhook authenticity before any parsing and
// handle provider-specific payload quirks internally.
type PaymentProvider interface {
	// EnsureCustomer returns a provider customer id for the given member,
	// verifying that a previously stored id still resolves upstream and
	// creating a fresh customer when it does not.
	EnsureCustomer(ctx context.Context, existingID, email string, meta map[string]string) (string, error)

	// CreateCheckoutSession creates a hosted checkout session. The request
	// metadata is attached to both the session and the subscription the
	// provider materializes from it.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// GetCheckoutSession retrieves a session by id with its nested
	// subscription expanded. Used by the synchronous post-checkout path when
	// push delivery is unreliable.
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)

	// ParseEvent verifies the payload signature and normalizes the event.
	// A verification failure is returned before any payload inspection.
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// CheckoutSessionRequest contains everything needed to start a checkout.
type CheckoutSessionRequest struct {
	CustomerID string
	Tier       pricing.Tier
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is a provider-neutral view of a hosted checkout session.
type CheckoutSession struct {
	ID         string
	URL        string
	Complete   bool
	CustomerID string
	Metadata   map[string]string

	// Subscription is the nested subscription object when the session was
	// retrieved with expansion. Nil until the provider materializes it.
	Subscription *SubscriptionUpserted
}

// EventType tags the normalized provider events the reconciler consumes.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout_completed"
	EventSubscriptionUpserted EventType = "subscription_upserted"
	EventSubscriptionDeleted  EventType = "subscription_deleted"
	EventPaymentSucceeded     EventType = "payment_succeeded"
	EventPaymentFailed        EventType = "payment_failed"

	// EventIgnored marks event types this system does not react to.
	EventIgnored EventType = "ignored"
)

// Event is the tagged union handed to the reconciler. Exactly one of the
// payload pointers matching Type is non-nil.
type Event struct {
	Type          EventType
	ProviderEvent string // original provider event name, for logging

	Checkout     *CheckoutCompleted
	Subscription *SubscriptionUpserted
	Cancellation *SubscriptionDeleted
	Payment      *PaymentOutcome
}

// CheckoutCompleted is the optimistic grant fired when a checkout session
// finishes, before the provider's subscription object is necessarily fully
// materialized. All fields come from the session metadata written at
// checkout-session creation.
type CheckoutCompleted struct {
	SessionID         string
	CustomerID        string
	UserID            string
	UserNumber        int64
	Tier              pricing.Tier
	MonthlyPriceCents int64
}

// SubscriptionUpserted mirrors the provider's subscription object.
type SubscriptionUpserted struct {
	CustomerID             string
	ProviderSubscriptionID string
	ProviderPriceID        string
	UserID                 string
	Tier                   pricing.Tier
	MonthlyPriceCents      int64
	Status                 string
	PeriodStart            time.Time
	PeriodEnd              time.Time
	CancelAtPeriodEnd      bool
}

// SubscriptionDeleted signals the provider ended a subscription.
type SubscriptionDeleted struct {
	CustomerID             string
	ProviderSubscriptionID string
	PeriodEnd              time.Time
}

// PaymentOutcome reports an invoice payment result.
type PaymentOutcome struct {
	CustomerID string
	InvoiceID  string
	Succeeded  bool
}
