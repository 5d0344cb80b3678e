package membership

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mobilityhq/blueprint/pkg/billing"
	"github.com/mobilityhq/blueprint/pkg/membership"
	"github.com/mobilityhq/blueprint/pkg/principal"
)

// Handler bundles the membership HTTP surface: public pricing, checkout
// initiation, the post-checkout pull path, and the provider webhook feed.
type Handler struct {
	svc      *membership.Service
	provider billing.PaymentProvider
	log      *slog.Logger
}

// NewHandler creates the membership HTTP handler. Panics if a required
// collaborator is nil.
func NewHandler(svc *membership.Service, provider billing.PaymentProvider, log *slog.Logger) *Handler {
	if svc == nil {
		panic("membership module: service is required")
	}
	if provider == nil {
		panic("membership module: payment provider is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, provider: provider, log: log}
}

// Router mounts the membership endpoints.
func Router(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/pricing/current", h.currentPricing)
	r.Post("/webhooks/stripe", h.webhook)
	r.Get("/checkout/success", h.checkoutSuccess)
	r.Get("/checkout/canceled", h.checkoutCanceled)

	r.Group(func(auth chi.Router) {
		auth.Use(principal.RequireAuth)
		auth.Post("/checkout", h.startCheckout)
		auth.Get("/subscription", h.subscriptionState)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
