package membership

import "errors"

var (
	ErrUserNotFound         = errors.New("member not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrAlreadySubscribed    = errors.New("member already has an active subscription")
	ErrCheckoutIncomplete   = errors.New("checkout session is not complete")

	ErrFailedToStartCheckout = errors.New("failed to start checkout")
	ErrFailedToApplyEvent    = errors.New("failed to apply billing event")
)
