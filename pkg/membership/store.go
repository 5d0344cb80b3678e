package membership

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserStore persists member records.
type UserStore interface {
	// ByID retrieves a member by internal id.
	// Returns ErrUserNotFound if no member exists.
	ByID(ctx context.Context, id uuid.UUID) (*User, error)

	// ByEmail retrieves a member by email (the authenticated principal).
	ByEmail(ctx context.Context, email string) (*User, error)

	// ByCustomerID retrieves a member by provider customer id.
	ByCustomerID(ctx context.Context, customerID string) (*User, error)

	// CountActive returns the number of members with ACTIVE status.
	// Feeds the pricing tier resolver.
	CountActive(ctx context.Context) (int64, error)

	// Save creates or updates a member keyed by id. All subscription
	// snapshot fields are written unconditionally so repeated saves of the
	// same state converge.
	Save(ctx context.Context, u *User) error
}

// SubscriptionStore persists provider subscription mirrors.
type SubscriptionStore interface {
	// Upsert creates or updates a row keyed by provider subscription id.
	Upsert(ctx context.Context, s *Subscription) error

	// CancelByProviderID marks matching rows canceled with the given period
	// end. A no-op when no row matches.
	CancelByProviderID(ctx context.Context, providerSubscriptionID string, periodEnd time.Time) error

	// ByUserID returns the most recently updated subscription for a member.
	// Returns ErrSubscriptionNotFound if none exists.
	ByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
}
