package membership

import (
	"errors"
	"net/http"
	"time"

	"github.com/mobilityhq/blueprint/pkg/logger"
	"github.com/mobilityhq/blueprint/pkg/membership"
	"github.com/mobilityhq/blueprint/pkg/pricing"
	"github.com/mobilityhq/blueprint/pkg/principal"
)

func (h *Handler) currentPricing(w http.ResponseWriter, r *http.Request) {
	quote, err := h.svc.CurrentQuote(r.Context())
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to resolve pricing quote", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve pricing")
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) startCheckout(w http.ResponseWriter, r *http.Request) {
	email := principal.MustFromContext(r.Context())

	intent, err := h.svc.StartCheckout(r.Context(), email)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, intent)
	case errors.Is(err, membership.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, membership.ErrAlreadySubscribed):
		writeError(w, http.StatusConflict, "already subscribed")
	default:
		h.log.ErrorContext(r.Context(), "failed to start checkout", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start checkout")
	}
}

// checkoutSuccess is the synchronous pull path the provider redirects to. It
// finalizes from the session object directly so the member sees their access
// even when webhook delivery lags.
func (h *Handler) checkoutSuccess(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}

	err := h.svc.FinalizeCheckout(r.Context(), sessionID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "finalized"})
	case errors.Is(err, membership.ErrCheckoutIncomplete):
		writeError(w, http.StatusConflict, "checkout not completed")
	default:
		h.log.ErrorContext(r.Context(), "failed to finalize checkout",
			logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to finalize checkout")
	}
}

// checkoutCanceled is the provider's redirect target for an abandoned
// checkout. Nothing to roll back: no state was written optimistically.
func (h *Handler) checkoutCanceled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

type subscriptionResponse struct {
	Status            membership.Status `json:"status"`
	Tier              pricing.Tier      `json:"tier,omitempty"`
	TierName          string            `json:"tierName,omitempty"`
	MonthlyPriceCents int64             `json:"monthlyPriceCents,omitempty"`
	UserNumber        int64             `json:"userNumber,omitempty"`
	SubscriptionStart *time.Time        `json:"subscriptionStart,omitempty"`
	SubscriptionEnd   *time.Time        `json:"subscriptionEnd,omitempty"`
	CurrentPeriodEnd  *time.Time        `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool              `json:"cancelAtPeriodEnd,omitempty"`
	HasAccess         bool              `json:"hasAccess"`
}

func (h *Handler) subscriptionState(w http.ResponseWriter, r *http.Request) {
	email := principal.MustFromContext(r.Context())

	user, sub, err := h.svc.MemberState(r.Context(), email)
	if err != nil {
		if errors.Is(err, membership.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return
		}
		h.log.ErrorContext(r.Context(), "failed to load member state", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	resp := subscriptionResponse{
		Status:            user.Status,
		Tier:              user.Tier,
		MonthlyPriceCents: user.MonthlyPriceCents,
		UserNumber:        user.UserNumber,
		SubscriptionStart: user.SubscriptionStart,
		SubscriptionEnd:   user.SubscriptionEnd,
		HasAccess:         user.HasAccessAt(time.Now().UTC()),
	}
	if user.Tier.Valid() {
		resp.TierName = pricing.TierInfo(user.Tier).Name
	}
	if sub != nil {
		if !sub.CurrentPeriodEnd.IsZero() {
			end := sub.CurrentPeriodEnd
			resp.CurrentPeriodEnd = &end
		}
		resp.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	}
	writeJSON(w, http.StatusOK, resp)
}
