package billing

// EventsFromSession converts a completed checkout session into the same
// normalized events the webhook feed produces, so the synchronous
// post-checkout pull path and the push path share one convergence rule and
// can race harmlessly.
//
// Returns ErrMalformedEvent when the session metadata carries unparseable
// quote fields.
func EventsFromSession(sess *CheckoutSession) ([]*Event, error) {
	if sess == nil || !sess.Complete {
		return nil, nil
	}

	userID, userNumber, tier, price, err := parseQuoteMetadata(sess.Metadata)
	if err != nil {
		return nil, err
	}

	events := []*Event{
		{
			Type:          EventCheckoutCompleted,
			ProviderEvent: "checkout.session.completed",
			Checkout: &CheckoutCompleted{
				SessionID:         sess.ID,
				CustomerID:        sess.CustomerID,
				UserID:            userID,
				UserNumber:        userNumber,
				Tier:              tier,
				MonthlyPriceCents: price,
			},
		},
	}

	if sess.Subscription != nil {
		sub := *sess.Subscription
		if sub.CustomerID == "" {
			sub.CustomerID = sess.CustomerID
		}
		events = append(events, &Event{
			Type:          EventSubscriptionUpserted,
			ProviderEvent: "checkout.session.retrieved",
			Subscription:  &sub,
		})
	}

	return events, nil
}
