package membership

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/mobilityhq/blueprint/pkg/billing"
	"github.com/mobilityhq/blueprint/pkg/logger"
	"github.com/mobilityhq/blueprint/pkg/pricing"
)

// Config holds membership service configuration.
type Config struct {
	// BaseURL is the public origin of the site, used to build the checkout
	// success and cancel redirect targets.
	BaseURL string `env:"APP_BASE_URL,required"`
}

// SuccessURL is where the provider redirects after a paid checkout. The
// session id placeholder is substituted by the provider, and the target is
// the synchronous finalization endpoint.
func (c Config) SuccessURL() string {
	return c.BaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"
}

// CancelURL is where the provider redirects an abandoned checkout.
func (c Config) CancelURL() string {
	return c.BaseURL + "/checkout/canceled"
}

// Service folds external billing events into local membership state and
// drives checkout initiation. All writes are upserts or unconditional sets,
// so at-least-once, out-of-order event delivery converges.
type Service struct {
	cfg      Config
	users    UserStore
	subs     SubscriptionStore
	provider billing.PaymentProvider
	quotes   *pricing.Service
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Intended for tests that need
// deterministic subscription-start timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a membership Service. Panics if a required collaborator
// is nil to fail fast during initialization.
func NewService(cfg Config, users UserStore, subs SubscriptionStore, provider billing.PaymentProvider, quotes *pricing.Service, opts ...Option) *Service {
	if users == nil {
		panic("membership: UserStore is required")
	}
	if subs == nil {
		panic("membership: SubscriptionStore is required")
	}
	if provider == nil {
		panic("membership: PaymentProvider is required")
	}
	if quotes == nil {
		panic("membership: pricing service is required")
	}

	s := &Service{
		cfg:      cfg,
		users:    users,
		subs:     subs,
		provider: provider,
		quotes:   quotes,
		log:      slog.New(slog.DiscardHandler),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentQuote returns the offer a new subscriber would receive right now.
func (s *Service) CurrentQuote(ctx context.Context) (pricing.Quote, error) {
	return s.quotes.Current(ctx)
}

// StartCheckout resolves the quote exactly once, ensures a provider customer
// exists for the member, and creates a checkout session carrying the quote
// as opaque metadata. Reconciliation later trusts that metadata instead of
// recomputing, which is what makes the price lock-in hold.
func (s *Service) StartCheckout(ctx context.Context, email string) (*CheckoutIntent, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user.Status == StatusActive {
		return nil, ErrAlreadySubscribed
	}

	quote, err := s.quotes.Current(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToStartCheckout, err)
	}

	customerID, err := s.provider.EnsureCustomer(ctx, user.CustomerID, user.Email, map[string]string{
		billing.MetaUserID: user.ID.String(),
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToStartCheckout, err)
	}
	if customerID != user.CustomerID {
		user.CustomerID = customerID
		if err := s.users.Save(ctx, user); err != nil {
			return nil, errors.Join(ErrFailedToStartCheckout, err)
		}
	}

	meta := map[string]string{
		billing.MetaUserID:            user.ID.String(),
		billing.MetaUserNumber:        strconv.FormatInt(quote.UserNumber, 10),
		billing.MetaTier:              string(quote.Tier),
		billing.MetaMonthlyPriceCents: strconv.FormatInt(quote.PriceCents, 10),
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutSessionRequest{
		CustomerID: customerID,
		Tier:       quote.Tier,
		SuccessURL: s.cfg.SuccessURL(),
		CancelURL:  s.cfg.CancelURL(),
		Metadata:   meta,
	})
	if err != nil {
		return nil, errors.Join(ErrFailedToStartCheckout, err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.UserID(user.ID),
		slog.String("tier", string(quote.Tier)),
		slog.Int64("user_number", quote.UserNumber))

	return &CheckoutIntent{SessionID: sess.ID, URL: sess.URL, Quote: quote}, nil
}

// ApplyEvent folds one normalized billing event into local state,
// idempotently. Events referencing unknown members are logged and swallowed:
// the gap is an upstream consistency lag, not something a provider retry
// would fix.
func (s *Service) ApplyEvent(ctx context.Context, event *billing.Event) error {
	if event == nil {
		return nil
	}

	switch event.Type {
	case billing.EventCheckoutCompleted:
		return s.applyCheckout(ctx, event.Checkout)
	case billing.EventSubscriptionUpserted:
		return s.applySubscription(ctx, event.Subscription)
	case billing.EventSubscriptionDeleted:
		return s.applyCancellation(ctx, event.Cancellation)
	case billing.EventPaymentSucceeded:
		return s.applyPaymentSucceeded(ctx, event.Payment)
	case billing.EventPaymentFailed:
		// Grace-period handling is deliberately deferred; the provider keeps
		// retrying the charge on its own schedule.
		s.log.WarnContext(ctx, "invoice payment failed",
			slog.String("invoice_id", event.Payment.InvoiceID),
			slog.String("customer_id", event.Payment.CustomerID))
		return nil
	default:
		s.log.DebugContext(ctx, "billing event ignored", logger.EventType(event.ProviderEvent))
		return nil
	}
}

// FinalizeCheckout is the synchronous pull path: fetch the session (with its
// nested subscription) straight from the provider and run it through the
// same convergence rule as the push feed. Covers deployments where webhook
// delivery is unreliable.
func (s *Service) FinalizeCheckout(ctx context.Context, sessionID string) error {
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}
	if sess == nil || !sess.Complete {
		return ErrCheckoutIncomplete
	}

	events, err := billing.EventsFromSession(sess)
	if err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}
	for _, event := range events {
		if err := s.ApplyEvent(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// HasAccess reports whether the authenticated principal can reach paid
// content. Unknown emails simply have no access.
func (s *Service) HasAccess(ctx context.Context, email string) (bool, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return user.HasAccessAt(s.now()), nil
}

// MemberState returns the member and their latest subscription mirror.
// The subscription may be nil when the provider has not materialized one.
func (s *Service) MemberState(ctx context.Context, email string) (*User, *Subscription, error) {
	user, err := s.users.ByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	sub, err := s.subs.ByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return user, nil, nil
		}
		return nil, nil, err
	}
	return user, sub, nil
}

// ActiveMemberCount exposes the ACTIVE-member aggregate for the pricing
// resolver.
func (s *Service) ActiveMemberCount(ctx context.Context) (int64, error) {
	return s.users.CountActive(ctx)
}

// applyCheckout handles the optimistic grant: the member paid, so they are
// ACTIVE with their locked-in quote immediately, before the provider's
// subscription object necessarily exists.
func (s *Service) applyCheckout(ctx context.Context, e *billing.CheckoutCompleted) error {
	if e.UserID == "" {
		s.log.WarnContext(ctx, "checkout completed without member metadata",
			slog.String("session_id", e.SessionID))
		return nil
	}

	userID, err := uuid.Parse(e.UserID)
	if err != nil {
		s.log.WarnContext(ctx, "checkout completed with malformed member id",
			slog.String("session_id", e.SessionID), logger.Error(err))
		return nil
	}

	user, err := s.users.ByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.WarnContext(ctx, "checkout completed for unknown member",
				logger.UserID(e.UserID), slog.String("session_id", e.SessionID))
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	user.Status = StatusActive
	if e.Tier.Valid() {
		user.Tier = e.Tier
	}
	if e.MonthlyPriceCents > 0 {
		user.MonthlyPriceCents = e.MonthlyPriceCents
	}
	if e.UserNumber > 0 {
		user.UserNumber = e.UserNumber
	}
	if e.CustomerID != "" {
		user.CustomerID = e.CustomerID
	}
	// Billing-period dates belong to the subscription feed; only seed a
	// start here so the grant is visible before that feed catches up.
	if user.SubscriptionStart == nil {
		now := s.now()
		user.SubscriptionStart = &now
	}

	if err := s.users.Save(ctx, user); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	s.log.InfoContext(ctx, "membership activated from checkout",
		logger.UserID(user.ID), slog.String("tier", string(user.Tier)))
	return nil
}

func (s *Service) applySubscription(ctx context.Context, e *billing.SubscriptionUpserted) error {
	user, err := s.users.ByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.WarnContext(ctx, "subscription event for unknown customer",
				slog.String("customer_id", e.CustomerID),
				logger.SubscriptionID(e.ProviderSubscriptionID))
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	user.Status = StatusActive
	if e.Tier.Valid() {
		user.Tier = e.Tier
	}
	if e.MonthlyPriceCents > 0 {
		user.MonthlyPriceCents = e.MonthlyPriceCents
	}
	if !e.PeriodStart.IsZero() {
		start := e.PeriodStart
		user.SubscriptionStart = &start
	}
	if !e.PeriodEnd.IsZero() {
		end := e.PeriodEnd
		user.SubscriptionEnd = &end
	}

	if err := s.users.Save(ctx, user); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	sub := &Subscription{
		UserID:                 user.ID,
		ProviderSubscriptionID: e.ProviderSubscriptionID,
		ProviderPriceID:        e.ProviderPriceID,
		Status:                 StatusActive,
		Tier:                   user.Tier,
		MonthlyPriceCents:      user.MonthlyPriceCents,
		CurrentPeriodStart:     e.PeriodStart,
		CurrentPeriodEnd:       e.PeriodEnd,
		CancelAtPeriodEnd:      e.CancelAtPeriodEnd,
	}
	if err := s.subs.Upsert(ctx, sub); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	s.log.InfoContext(ctx, "subscription reconciled",
		logger.UserID(user.ID),
		logger.SubscriptionID(e.ProviderSubscriptionID))
	return nil
}

func (s *Service) applyCancellation(ctx context.Context, e *billing.SubscriptionDeleted) error {
	user, err := s.users.ByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.WarnContext(ctx, "cancellation for unknown customer",
				slog.String("customer_id", e.CustomerID),
				logger.SubscriptionID(e.ProviderSubscriptionID))
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	user.Status = StatusCanceled
	if !e.PeriodEnd.IsZero() {
		end := e.PeriodEnd
		user.SubscriptionEnd = &end
	}
	if err := s.users.Save(ctx, user); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	if err := s.subs.CancelByProviderID(ctx, e.ProviderSubscriptionID, e.PeriodEnd); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	s.log.InfoContext(ctx, "membership canceled",
		logger.UserID(user.ID),
		logger.SubscriptionID(e.ProviderSubscriptionID))
	return nil
}

// applyPaymentSucceeded self-heals a member stuck in a non-active state
// after a transient payment failure.
func (s *Service) applyPaymentSucceeded(ctx context.Context, e *billing.PaymentOutcome) error {
	user, err := s.users.ByCustomerID(ctx, e.CustomerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.log.WarnContext(ctx, "payment succeeded for unknown customer",
				slog.String("customer_id", e.CustomerID))
			return nil
		}
		return errors.Join(ErrFailedToApplyEvent, err)
	}

	if user.Status == StatusActive {
		return nil
	}

	user.Status = StatusActive
	if err := s.users.Save(ctx, user); err != nil {
		return errors.Join(ErrFailedToApplyEvent, err)
	}
	return nil
}
