package training

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mobilityhq/blueprint/pkg/logger"
	"github.com/mobilityhq/blueprint/pkg/training"
)

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}

	exerciseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid exercise id")
		return
	}

	completion, err := h.sessions.Complete(r.Context(), user.ID, exerciseID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, completion)
	case errors.Is(err, training.ErrExerciseNotFound):
		writeError(w, http.StatusNotFound, "exercise not found")
	case errors.Is(err, training.ErrCompletedRecently):
		writeError(w, http.StatusConflict, "exercise completed within the last month")
	default:
		h.log.ErrorContext(r.Context(), "failed to record completion",
			logger.UserID(user.ID), logger.ExerciseID(exerciseID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to record completion")
	}
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}

	exercises, err := h.sessions.DailySuggestions(r.Context(), user.ID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to build suggestions",
			logger.UserID(user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to build suggestions")
		return
	}
	if exercises == nil {
		exercises = []training.Exercise{}
	}
	writeJSON(w, http.StatusOK, exercises)
}

func (h *Handler) completedToday(w http.ResponseWriter, r *http.Request) {
	user, ok := h.member(w, r)
	if !ok {
		return
	}

	completions, err := h.sessions.CompletedToday(r.Context(), user.ID)
	if err != nil {
		h.log.ErrorContext(r.Context(), "failed to list today's completions",
			logger.UserID(user.ID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	if completions == nil {
		completions = []training.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}
