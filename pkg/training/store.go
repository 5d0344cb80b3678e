package training

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ExerciseStore reads exercise reference data.
type ExerciseStore interface {
	// ByID retrieves an exercise. Returns ErrExerciseNotFound if none exists.
	ByID(ctx context.Context, id uuid.UUID) (*Exercise, error)

	// SuggestionsExcluding returns one random exercise per
	// (category, subcategory) group, skipping exercises the member completed
	// at or after the given cutoff.
	SuggestionsExcluding(ctx context.Context, userID uuid.UUID, completedSince time.Time) ([]Exercise, error)
}

// CompletionStore persists completion records.
type CompletionStore interface {
	// LatestForPair returns the completion row for the pair, if any.
	// Returns ErrCompletionNotFound when the member never completed the
	// exercise (or the previous record was replaced away).
	LatestForPair(ctx context.Context, userID, exerciseID uuid.UUID) (*Completion, error)

	// Replace deletes any prior row for the (user, exercise) pair and inserts
	// the given one, atomically. Implementations return ErrCompletedRecently
	// when a concurrent racer already inserted a row for the pair.
	Replace(ctx context.Context, c *Completion) error

	// ListSince returns the member's completions stamped at or after the
	// given time, most recent first.
	ListSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]Completion, error)
}
