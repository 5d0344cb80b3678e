package training

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mobilityhq/blueprint/pkg/logger"
)

// cooldownWindow computes the start of the rolling one-month cooldown. A
// calendar month, not thirty days, so the gate lines up with the monthly
// billing cycle.
func cooldownWindow(now time.Time) time.Time {
	return now.AddDate(0, -1, 0)
}

// Service gates exercise completions behind a rolling one-month cooldown and
// serves daily suggestions built from what is still off cooldown.
type Service struct {
	exercises   ExerciseStore
	completions CompletionStore
	log         *slog.Logger
	now         func() time.Time
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
// deterministic cooldown arithmetic.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a training Service. Panics if a required collaborator
// is nil to fail fast during initialization.
func NewService(exercises ExerciseStore, completions CompletionStore, opts ...Option) *Service {
	if exercises == nil {
		panic("training: ExerciseStore is required")
	}
	if completions == nil {
		panic("training: CompletionStore is required")
	}

	s := &Service{
		exercises:   exercises,
		completions: completions,
		log:         slog.New(slog.DiscardHandler),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Complete records that the member finished the exercise. A completion
// stamped at or after one month ago blocks the attempt with
// ErrCompletedRecently. On success the previous record for the pair is
// replaced, so the store always holds the latest completion only.
func (s *Service) Complete(ctx context.Context, userID, exerciseID uuid.UUID) (*Completion, error) {
	if _, err := s.exercises.ByID(ctx, exerciseID); err != nil {
		return nil, err
	}

	now := s.now()
	windowStart := cooldownWindow(now)

	latest, err := s.completions.LatestForPair(ctx, userID, exerciseID)
	if err != nil && !errors.Is(err, ErrCompletionNotFound) {
		return nil, errors.Join(ErrFailedToRecordCompletion, err)
	}
	if latest != nil && !latest.CompletedAt.Before(windowStart) {
		return nil, ErrCompletedRecently
	}

	completion := &Completion{
		ID:          uuid.New(),
		UserID:      userID,
		ExerciseID:  exerciseID,
		CompletedAt: now,
	}
	if err := s.completions.Replace(ctx, completion); err != nil {
		if errors.Is(err, ErrCompletedRecently) {
			return nil, ErrCompletedRecently
		}
		return nil, errors.Join(ErrFailedToRecordCompletion, err)
	}

	s.log.InfoContext(ctx, "exercise completed",
		logger.UserID(userID),
		logger.ExerciseID(exerciseID))
	return completion, nil
}

// DailySuggestions returns one random exercise per (category, subcategory),
// excluding anything the member completed inside the cooldown window.
func (s *Service) DailySuggestions(ctx context.Context, userID uuid.UUID) ([]Exercise, error) {
	suggestions, err := s.exercises.SuggestionsExcluding(ctx, userID, cooldownWindow(s.now()))
	if err != nil {
		return nil, errors.Join(ErrFailedToListExercises, err)
	}
	return suggestions, nil
}

// CompletedToday returns the member's completions since midnight UTC.
func (s *Service) CompletedToday(ctx context.Context, userID uuid.UUID) ([]Completion, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.completions.ListSince(ctx, userID, midnight)
}
