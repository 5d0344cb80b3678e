package billing

import "errors"

var (
	ErrMissingAPIKey        = errors.New("payment provider API key is required")
	ErrMissingWebhookSecret = errors.New("payment provider webhook secret is required")
	ErrMissingPriceID       = errors.New("no provider price ID configured for tier")

	ErrSignatureVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedEvent              = errors.New("webhook payload has unrecognized shape")

	ErrNoCheckoutURL      = errors.New("no checkout URL returned from provider")
	ErrSessionNotFound    = errors.New("checkout session not found")
	ErrProviderCallFailed = errors.New("payment provider call failed")
)
