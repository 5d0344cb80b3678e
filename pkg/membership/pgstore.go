package membership

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mobilityhq/blueprint/pkg/pg"
	"github.com/mobilityhq/blueprint/pkg/pricing"
)

// PgUserStore is the Postgres-backed UserStore.
type PgUserStore struct {
	pool *pgxpool.Pool
}

func NewPgUserStore(pool *pgxpool.Pool) *PgUserStore {
	return &PgUserStore{pool: pool}
}

const userColumns = `id, email, COALESCE(customer_id, ''), status, COALESCE(tier, ''),
	monthly_price_cents, user_number, subscription_start, subscription_end, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var (
		u    User
		tier string
	)
	err := row.Scan(&u.ID, &u.Email, &u.CustomerID, &u.Status, &tier,
		&u.MonthlyPriceCents, &u.UserNumber, &u.SubscriptionStart, &u.SubscriptionEnd,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	u.Tier = pricing.Tier(tier)
	return &u, nil
}

func (s *PgUserStore) ByID(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PgUserStore) ByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *PgUserStore) ByCustomerID(ctx context.Context, customerID string) (*User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE customer_id = $1`, customerID)
	return scanUser(row)
}

func (s *PgUserStore) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM users WHERE status = $1`, StatusActive).Scan(&n)
	return n, err
}

// Save upserts the member keyed by id. Every snapshot column is written
// unconditionally so repeated saves of the same state converge.
func (s *PgUserStore) Save(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Status == "" {
		u.Status = StatusNone
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, customer_id, status, tier, monthly_price_cents,
			user_number, subscription_start, subscription_end)
		VALUES ($1, $2, NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email               = EXCLUDED.email,
			customer_id         = EXCLUDED.customer_id,
			status              = EXCLUDED.status,
			tier                = EXCLUDED.tier,
			monthly_price_cents = EXCLUDED.monthly_price_cents,
			user_number         = EXCLUDED.user_number,
			subscription_start  = EXCLUDED.subscription_start,
			subscription_end    = EXCLUDED.subscription_end,
			updated_at          = now()`,
		u.ID, u.Email, u.CustomerID, u.Status, string(u.Tier),
		u.MonthlyPriceCents, u.UserNumber, u.SubscriptionStart, u.SubscriptionEnd)
	return err
}

// PgSubscriptionStore is the Postgres-backed SubscriptionStore.
type PgSubscriptionStore struct {
	pool *pgxpool.Pool
}

func NewPgSubscriptionStore(pool *pgxpool.Pool) *PgSubscriptionStore {
	return &PgSubscriptionStore{pool: pool}
}

const subscriptionColumns = `id, user_id, provider_subscription_id, COALESCE(provider_price_id, ''),
	status, COALESCE(tier, ''), monthly_price_cents, current_period_start, current_period_end,
	cancel_at_period_end, created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub         Subscription
		tier        string
		periodStart *time.Time
		periodEnd   *time.Time
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.ProviderSubscriptionID, &sub.ProviderPriceID,
		&sub.Status, &tier, &sub.MonthlyPriceCents, &periodStart, &periodEnd,
		&sub.CancelAtPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	sub.Tier = pricing.Tier(tier)
	if periodStart != nil {
		sub.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	return &sub, nil
}

// Upsert writes the provider mirror keyed by provider subscription id.
func (s *PgSubscriptionStore) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.ProviderSubscriptionID == "" {
		return errors.New("membership: provider subscription id is required for upsert")
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, provider_subscription_id, provider_price_id,
			status, tier, monthly_price_cents, current_period_start, current_period_end,
			cancel_at_period_end)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9, $10)
		ON CONFLICT (provider_subscription_id) DO UPDATE SET
			provider_price_id    = EXCLUDED.provider_price_id,
			status               = EXCLUDED.status,
			tier                 = EXCLUDED.tier,
			monthly_price_cents  = EXCLUDED.monthly_price_cents,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end   = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			updated_at           = now()`,
		sub.ID, sub.UserID, sub.ProviderSubscriptionID, sub.ProviderPriceID,
		sub.Status, string(sub.Tier), sub.MonthlyPriceCents,
		nullTime(sub.CurrentPeriodStart), nullTime(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd)
	return err
}

func (s *PgSubscriptionStore) CancelByProviderID(ctx context.Context, providerSubscriptionID string, periodEnd time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, current_period_end = COALESCE($3, current_period_end), updated_at = now()
		WHERE provider_subscription_id = $1`,
		providerSubscriptionID, StatusCanceled, nullTime(periodEnd))
	return err
}

func (s *PgSubscriptionStore) ByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`, userID)
	return scanSubscription(row)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
