package membership

import (
	"errors"
	"io"
	"net/http"

	"github.com/mobilityhq/blueprint/pkg/billing"
	"github.com/mobilityhq/blueprint/pkg/logger"
)

const webhookBodyLimit = 1024 * 1024 // 1 MiB

// webhook terminates the provider's push feed. Signature verification runs
// before any state access; a handler failure returns a generic 500 so the
// provider redelivers.
func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookBodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "missing signature")
		return
	}

	event, err := h.provider.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrSignatureVerificationFailed) {
			writeError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		h.log.WarnContext(r.Context(), "webhook payload rejected", logger.Error(err))
		writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if err := h.svc.ApplyEvent(r.Context(), event); err != nil {
		h.log.ErrorContext(r.Context(), "webhook processing failed",
			logger.EventType(event.ProviderEvent), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
