package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/mobilityhq/blueprint/pkg/pricing"
)

// StripeConfig holds Stripe billing configuration. Price IDs are configured
// per environment so preview deployments can run against test prices.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`

	PriceIDInnerCircle string `env:"STRIPE_PRICE_ID_INNER_CIRCLE,required"`
	PriceIDFounder     string `env:"STRIPE_PRICE_ID_FOUNDER,required"`
	PriceIDPioneer     string `env:"STRIPE_PRICE_ID_PIONEER,required"`
	PriceIDStandard    string `env:"STRIPE_PRICE_ID_STANDARD,required"`
}

// PriceIDForTier maps a tier to the provider price that bills it.
func (c StripeConfig) PriceIDForTier(t pricing.Tier) (string, error) {
	var id string
	switch t {
	case pricing.TierInnerCircle:
		id = c.PriceIDInnerCircle
	case pricing.TierFounder:
		id = c.PriceIDFounder
	case pricing.TierPioneer:
		id = c.PriceIDPioneer
	case pricing.TierStandard:
		id = c.PriceIDStandard
	}
	if id == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingPriceID, t)
	}
	return id, nil
}

// StripeProvider implements PaymentProvider against the Stripe API.
// The API client is constructed once at startup and shared by all handlers.
type StripeProvider struct {
	api    *client.API
	config StripeConfig
}

// NewStripeProvider creates a Stripe-backed PaymentProvider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	return &StripeProvider{api: api, config: cfg}, nil
}

// EnsureCustomer verifies a stored customer id still resolves upstream and
// creates a fresh customer when the id is empty, unknown, or deleted.
func (p *StripeProvider) EnsureCustomer(ctx context.Context, existingID, email string, meta map[string]string) (string, error) {
	if existingID != "" {
		params := &stripe.CustomerParams{}
		params.Context = ctx

		cust, err := p.api.Customers.Get(existingID, params)
		if err == nil && cust != nil && !cust.Deleted {
			return cust.ID, nil
		}

		// Anything but "no such customer" is an upstream failure worth
		// surfacing; an orphaned id just means we create a replacement.
		var stripeErr *stripe.Error
		if err != nil && !(errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing) {
			return "", errors.Join(ErrProviderCallFailed, err)
		}
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", errors.Join(ErrProviderCallFailed, err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession starts a hosted subscription checkout. The request
// metadata is attached to the session and, via subscription_data, to the
// subscription Stripe creates from it, so later events carry the locked-in
// quote.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	priceID, err := p.config.PriceIDForTier(req.Tier)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderCallFailed, err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		ID:         sess.ID,
		URL:        sess.URL,
		Complete:   sess.Status == stripe.CheckoutSessionStatusComplete,
		CustomerID: customerID(sess.Customer),
		Metadata:   sess.Metadata,
	}, nil
}

// GetCheckoutSession retrieves a session with its subscription expanded.
func (p *StripeProvider) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")

	sess, err := p.api.CheckoutSessions.Get(id, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing {
			return nil, errors.Join(ErrSessionNotFound, err)
		}
		return nil, errors.Join(ErrProviderCallFailed, err)
	}

	out := &CheckoutSession{
		ID:         sess.ID,
		URL:        sess.URL,
		Complete:   sess.Status == stripe.CheckoutSessionStatusComplete,
		CustomerID: customerID(sess.Customer),
		Metadata:   sess.Metadata,
	}

	if sess.Subscription != nil {
		sub, err := subscriptionFromAPI(sess.Subscription)
		if err != nil {
			return nil, err
		}
		out.Subscription = sub
	}

	return out, nil
}

// ParseEvent verifies the Stripe signature and normalizes the event into the
// tagged union the reconciler consumes. Verification happens before any
// payload inspection; undecodable payloads of recognized types are rejected
// rather than propagated with missing fields.
func (p *StripeProvider) ParseEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrSignatureVerificationFailed, err)
	}

	out := &Event{ProviderEvent: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed":
		var sess checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		co, err := checkoutFromPayload(sess)
		if err != nil {
			return nil, err
		}
		out.Type = EventCheckoutCompleted
		out.Checkout = co

	case "customer.subscription.created", "customer.subscription.updated":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		up, err := upsertFromPayload(sub)
		if err != nil {
			return nil, err
		}
		out.Type = EventSubscriptionUpserted
		out.Subscription = up

	case "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		out.Type = EventSubscriptionDeleted
		out.Cancellation = &SubscriptionDeleted{
			CustomerID:             sub.Customer,
			ProviderSubscriptionID: sub.ID,
			PeriodEnd:              unixTime(sub.periodEnd()),
		}

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, errors.Join(ErrMalformedEvent, err)
		}
		succeeded := event.Type == "invoice.payment_succeeded"
		if succeeded {
			out.Type = EventPaymentSucceeded
		} else {
			out.Type = EventPaymentFailed
		}
		out.Payment = &PaymentOutcome{
			CustomerID: inv.Customer,
			InvoiceID:  inv.ID,
			Succeeded:  succeeded,
		}

	default:
		out.Type = EventIgnored
	}

	return out, nil
}

// checkoutSessionPayload is a minimal decode of a checkout.session object.
// In webhook payloads the customer reference is a bare id.
type checkoutSessionPayload struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// subscriptionPayload is a minimal decode of a subscription object. Period
// timestamps appear at the top level in older API versions and on the first
// item in newer ones, so both are read.
type subscriptionPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Metadata           map[string]string `json:"metadata"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
			Price              struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

func (s subscriptionPayload) periodStart() int64 {
	if s.CurrentPeriodStart != 0 {
		return s.CurrentPeriodStart
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodStart
	}
	return 0
}

func (s subscriptionPayload) periodEnd() int64 {
	if s.CurrentPeriodEnd != 0 {
		return s.CurrentPeriodEnd
	}
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

func (s subscriptionPayload) firstPriceID() string {
	if len(s.Items.Data) > 0 {
		return s.Items.Data[0].Price.ID
	}
	return ""
}

type invoicePayload struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

func checkoutFromPayload(sess checkoutSessionPayload) (*CheckoutCompleted, error) {
	userID, userNumber, tier, price, err := parseQuoteMetadata(sess.Metadata)
	if err != nil {
		return nil, err
	}
	return &CheckoutCompleted{
		SessionID:         sess.ID,
		CustomerID:        sess.Customer,
		UserID:            userID,
		UserNumber:        userNumber,
		Tier:              tier,
		MonthlyPriceCents: price,
	}, nil
}

func upsertFromPayload(sub subscriptionPayload) (*SubscriptionUpserted, error) {
	userID, _, tier, price, err := parseQuoteMetadata(sub.Metadata)
	if err != nil {
		return nil, err
	}
	return &SubscriptionUpserted{
		CustomerID:             sub.Customer,
		ProviderSubscriptionID: sub.ID,
		ProviderPriceID:        sub.firstPriceID(),
		UserID:                 userID,
		Tier:                   tier,
		MonthlyPriceCents:      price,
		Status:                 sub.Status,
		PeriodStart:            unixTime(sub.periodStart()),
		PeriodEnd:              unixTime(sub.periodEnd()),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}, nil
}

// subscriptionFromAPI normalizes a typed SDK subscription (pull path).
func subscriptionFromAPI(sub *stripe.Subscription) (*SubscriptionUpserted, error) {
	userID, _, tier, price, err := parseQuoteMetadata(sub.Metadata)
	if err != nil {
		return nil, err
	}

	out := &SubscriptionUpserted{
		CustomerID:             customerID(sub.Customer),
		ProviderSubscriptionID: sub.ID,
		UserID:                 userID,
		Tier:                   tier,
		MonthlyPriceCents:      price,
		Status:                 string(sub.Status),
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.ProviderPriceID = item.Price.ID
		}
		out.PeriodStart = unixTime(item.CurrentPeriodStart)
		out.PeriodEnd = unixTime(item.CurrentPeriodEnd)
	}

	return out, nil
}

// parseQuoteMetadata reads the locked-in quote out of provider metadata.
// Absent keys yield zero values for the reconciler to treat as a data gap;
// present-but-unparseable values reject the whole event.
func parseQuoteMetadata(md map[string]string) (userID string, userNumber int64, tier pricing.Tier, priceCents int64, err error) {
	userID = md[MetaUserID]

	if raw, ok := md[MetaUserNumber]; ok && raw != "" {
		userNumber, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", 0, "", 0, errors.Join(ErrMalformedEvent, fmt.Errorf("bad %s metadata: %q", MetaUserNumber, raw))
		}
	}

	if raw, ok := md[MetaTier]; ok && raw != "" {
		tier = pricing.Tier(raw)
		if !tier.Valid() {
			return "", 0, "", 0, errors.Join(ErrMalformedEvent, fmt.Errorf("bad %s metadata: %q", MetaTier, raw))
		}
	}

	if raw, ok := md[MetaMonthlyPriceCents]; ok && raw != "" {
		priceCents, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return "", 0, "", 0, errors.Join(ErrMalformedEvent, fmt.Errorf("bad %s metadata: %q", MetaMonthlyPriceCents, raw))
		}
	}

	return userID, userNumber, tier, priceCents, nil
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
