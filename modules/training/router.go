package training

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mobilityhq/blueprint/pkg/logger"
	"github.com/mobilityhq/blueprint/pkg/membership"
	"github.com/mobilityhq/blueprint/pkg/principal"
	"github.com/mobilityhq/blueprint/pkg/training"
)

// Handler bundles the training HTTP surface. Every endpoint sits behind the
// membership access gate: the content is what members pay for.
type Handler struct {
	members  *membership.Service
	sessions *training.Service
	log      *slog.Logger
}

// NewHandler creates the training HTTP handler. Panics if a required
// collaborator is nil.
func NewHandler(members *membership.Service, sessions *training.Service, log *slog.Logger) *Handler {
	if members == nil {
		panic("training module: membership service is required")
	}
	if sessions == nil {
		panic("training module: training service is required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{members: members, sessions: sessions, log: log}
}

// Router mounts the training endpoints. Intended to be mounted under
// /exercises.
func Router(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(principal.RequireAuth)
	r.Use(h.requireAccess)

	r.Post("/{id}/complete", h.complete)
	r.Get("/suggestions", h.suggestions)
	r.Get("/completed/today", h.completedToday)

	return r
}

// requireAccess blocks members without an active (or still-paid canceled)
// subscription.
func (h *Handler) requireAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := principal.MustFromContext(r.Context())

		ok, err := h.members.HasAccess(r.Context(), email)
		if err != nil {
			h.log.ErrorContext(r.Context(), "access check failed", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "access check failed")
			return
		}
		if !ok {
			writeError(w, http.StatusForbidden, "subscription required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// member resolves the authenticated principal to a member record.
func (h *Handler) member(w http.ResponseWriter, r *http.Request) (*membership.User, bool) {
	email := principal.MustFromContext(r.Context())

	user, _, err := h.members.MemberState(r.Context(), email)
	if err != nil {
		if errors.Is(err, membership.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "member not found")
			return nil, false
		}
		h.log.ErrorContext(r.Context(), "failed to resolve member", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to resolve member")
		return nil, false
	}
	return user, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
