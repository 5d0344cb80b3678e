package training_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilityhq/blueprint/pkg/training"
)

type memExerciseStore struct {
	exercises map[uuid.UUID]training.Exercise

	// lastCutoff records the exclusion cutoff handed to SuggestionsExcluding.
	lastCutoff time.Time
}

func newMemExerciseStore(exercises ...training.Exercise) *memExerciseStore {
	s := &memExerciseStore{exercises: make(map[uuid.UUID]training.Exercise)}
	for _, e := range exercises {
		s.exercises[e.ID] = e
	}
	return s
}

func (s *memExerciseStore) ByID(_ context.Context, id uuid.UUID) (*training.Exercise, error) {
	e, ok := s.exercises[id]
	if !ok {
		return nil, training.ErrExerciseNotFound
	}
	return &e, nil
}

func (s *memExerciseStore) SuggestionsExcluding(_ context.Context, _ uuid.UUID, completedSince time.Time) ([]training.Exercise, error) {
	s.lastCutoff = completedSince
	out := make([]training.Exercise, 0, len(s.exercises))
	for _, e := range s.exercises {
		out = append(out, e)
	}
	return out, nil
}

type pairKey struct {
	userID     uuid.UUID
	exerciseID uuid.UUID
}

type memCompletionStore struct {
	mu   sync.Mutex
	rows map[pairKey]training.Completion
}

func newMemCompletionStore() *memCompletionStore {
	return &memCompletionStore{rows: make(map[pairKey]training.Completion)}
}

func (s *memCompletionStore) LatestForPair(_ context.Context, userID, exerciseID uuid.UUID) (*training.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.rows[pairKey{userID, exerciseID}]
	if !ok {
		return nil, training.ErrCompletionNotFound
	}
	return &c, nil
}

func (s *memCompletionStore) Replace(_ context.Context, c *training.Completion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[pairKey{c.UserID, c.ExerciseID}] = *c
	return nil
}

func (s *memCompletionStore) ListSince(_ context.Context, userID uuid.UUID, since time.Time) ([]training.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []training.Completion
	for _, c := range s.rows {
		if c.UserID == userID && !c.CompletedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func TestService_Complete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()
	squat := training.Exercise{ID: uuid.New(), Name: "Back Squat", Category: "strength", Subcategory: "legs"}

	// January has 31 days, so a month after Jan 15 lands on Feb 15 and the
	// rolling-window arithmetic is unambiguous.
	t0 := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

	newService := func(clk *fakeClock) (*training.Service, *memCompletionStore) {
		completions := newMemCompletionStore()
		svc := training.NewService(newMemExerciseStore(squat), completions,
			training.WithClock(clk.Now))
		return svc, completions
	}

	t.Run("first completion is recorded", func(t *testing.T) {
		t.Parallel()

		svc, completions := newService(&fakeClock{t: t0})

		got, err := svc.Complete(ctx, userID, squat.ID)
		require.NoError(t, err)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, squat.ID, got.ExerciseID)
		assert.Equal(t, t0, got.CompletedAt)
		assert.Len(t, completions.rows, 1)
	})

	t.Run("unknown exercise", func(t *testing.T) {
		t.Parallel()

		svc, completions := newService(&fakeClock{t: t0})

		_, err := svc.Complete(ctx, userID, uuid.New())
		require.ErrorIs(t, err, training.ErrExerciseNotFound)
		assert.Empty(t, completions.rows)
	})

	t.Run("repeat inside the window is rejected", func(t *testing.T) {
		t.Parallel()

		clk := &fakeClock{t: t0}
		svc, completions := newService(clk)

		_, err := svc.Complete(ctx, userID, squat.ID)
		require.NoError(t, err)

		clk.Set(t0.AddDate(0, 0, 29))
		_, err = svc.Complete(ctx, userID, squat.ID)
		require.ErrorIs(t, err, training.ErrCompletedRecently)

		require.Len(t, completions.rows, 1)
		row, err := completions.LatestForPair(ctx, userID, squat.ID)
		require.NoError(t, err)
		assert.Equal(t, t0, row.CompletedAt, "rejected attempt must not touch the record")
	})

	t.Run("completion exactly at the window boundary still blocks", func(t *testing.T) {
		t.Parallel()

		clk := &fakeClock{t: t0}
		svc, _ := newService(clk)

		_, err := svc.Complete(ctx, userID, squat.ID)
		require.NoError(t, err)

		// One calendar month later the boundary falls exactly on t0.
		clk.Set(t0.AddDate(0, 1, 0))
		_, err = svc.Complete(ctx, userID, squat.ID)
		require.ErrorIs(t, err, training.ErrCompletedRecently)
	})

	t.Run("repeat after the window replaces the record", func(t *testing.T) {
		t.Parallel()

		clk := &fakeClock{t: t0}
		svc, completions := newService(clk)

		_, err := svc.Complete(ctx, userID, squat.ID)
		require.NoError(t, err)

		later := t0.AddDate(0, 0, 31).Add(time.Minute)
		clk.Set(later)
		got, err := svc.Complete(ctx, userID, squat.ID)
		require.NoError(t, err)
		assert.Equal(t, later, got.CompletedAt)

		require.Len(t, completions.rows, 1, "the pair keeps a single row")
		row, err := completions.LatestForPair(ctx, userID, squat.ID)
		require.NoError(t, err)
		assert.Equal(t, later, row.CompletedAt)
	})

	t.Run("different members do not share cooldowns", func(t *testing.T) {
		t.Parallel()

		svc, completions := newService(&fakeClock{t: t0})

		_, err := svc.Complete(ctx, userID, squat.ID)
		require.NoError(t, err)
		_, err = svc.Complete(ctx, uuid.New(), squat.ID)
		require.NoError(t, err)

		assert.Len(t, completions.rows, 2)
	})

	t.Run("store-level conflict surfaces as recently completed", func(t *testing.T) {
		t.Parallel()

		svc := training.NewService(newMemExerciseStore(squat), conflictingCompletionStore{},
			training.WithClock((&fakeClock{t: t0}).Now))

		_, err := svc.Complete(ctx, userID, squat.ID)
		require.ErrorIs(t, err, training.ErrCompletedRecently)
	})
}

// conflictingCompletionStore simulates losing the insert race to a concurrent
// request that passed the cooldown check at the same time.
type conflictingCompletionStore struct{}

func (conflictingCompletionStore) LatestForPair(context.Context, uuid.UUID, uuid.UUID) (*training.Completion, error) {
	return nil, training.ErrCompletionNotFound
}

func (conflictingCompletionStore) Replace(context.Context, *training.Completion) error {
	return training.ErrCompletedRecently
}

func (conflictingCompletionStore) ListSince(context.Context, uuid.UUID, time.Time) ([]training.Completion, error) {
	return nil, nil
}

func TestService_DailySuggestions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)

	exercises := newMemExerciseStore(
		training.Exercise{ID: uuid.New(), Name: "Back Squat", Category: "strength", Subcategory: "legs"},
		training.Exercise{ID: uuid.New(), Name: "Plank", Category: "core", Subcategory: "static"},
	)
	svc := training.NewService(exercises, newMemCompletionStore(),
		training.WithClock(func() time.Time { return now }))

	got, err := svc.DailySuggestions(ctx, uuid.New())
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, now.AddDate(0, -1, 0), exercises.lastCutoff,
		"exclusion cutoff matches the cooldown window")
}

func TestService_CompletedToday(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	userID := uuid.New()
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	completions := newMemCompletionStore()
	require.NoError(t, completions.Replace(ctx, &training.Completion{
		ID: uuid.New(), UserID: userID, ExerciseID: uuid.New(),
		CompletedAt: time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, completions.Replace(ctx, &training.Completion{
		ID: uuid.New(), UserID: userID, ExerciseID: uuid.New(),
		CompletedAt: time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC),
	}))
	require.NoError(t, completions.Replace(ctx, &training.Completion{
		ID: uuid.New(), UserID: uuid.New(), ExerciseID: uuid.New(),
		CompletedAt: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
	}))

	svc := training.NewService(newMemExerciseStore(), completions,
		training.WithClock(func() time.Time { return now }))

	got, err := svc.CompletedToday(ctx, userID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC), got[0].CompletedAt)
}
