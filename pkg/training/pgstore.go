package training

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mobilityhq/blueprint/pkg/pg"
)

// PgExerciseStore is the Postgres-backed ExerciseStore.
type PgExerciseStore struct {
	pool *pgxpool.Pool
}

func NewPgExerciseStore(pool *pgxpool.Pool) *PgExerciseStore {
	return &PgExerciseStore{pool: pool}
}

const exerciseColumns = `id, name, COALESCE(description, ''), COALESCE(image_url, ''),
	category, subcategory, created_at, updated_at`

func scanExercise(row pgx.Row) (*Exercise, error) {
	var e Exercise
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.ImageURL,
		&e.Category, &e.Subcategory, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrExerciseNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (s *PgExerciseStore) ByID(ctx context.Context, id uuid.UUID) (*Exercise, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+exerciseColumns+` FROM exercises WHERE id = $1`, id)
	return scanExercise(row)
}

// SuggestionsExcluding picks one random exercise per (category, subcategory)
// group, skipping exercises the member completed at or after the cutoff. The
// exclusion runs inside the ranking so a group whose random pick happens to
// be on cooldown still surfaces another exercise from the same group.
func (s *PgExerciseStore) SuggestionsExcluding(ctx context.Context, userID uuid.UUID, completedSince time.Time) ([]Exercise, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, description, image_url, category, subcategory, created_at, updated_at
		FROM (
			SELECT e.id, e.name, COALESCE(e.description, '') AS description,
				COALESCE(e.image_url, '') AS image_url, e.category, e.subcategory,
				e.created_at, e.updated_at,
				row_number() OVER (PARTITION BY e.category, e.subcategory ORDER BY random()) AS rn
			FROM exercises e
			WHERE NOT EXISTS (
				SELECT 1 FROM exercise_completions c
				WHERE c.user_id = $1
					AND c.exercise_id = e.id
					AND c.completed_at >= $2
			)
		) ranked
		WHERE rn = 1
		ORDER BY category, subcategory`, userID, completedSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exercises []Exercise
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.ImageURL,
			&e.Category, &e.Subcategory, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		exercises = append(exercises, e)
	}
	return exercises, rows.Err()
}

// PgCompletionStore is the Postgres-backed CompletionStore.
type PgCompletionStore struct {
	pool *pgxpool.Pool
}

func NewPgCompletionStore(pool *pgxpool.Pool) *PgCompletionStore {
	return &PgCompletionStore{pool: pool}
}

func (s *PgCompletionStore) LatestForPair(ctx context.Context, userID, exerciseID uuid.UUID) (*Completion, error) {
	var c Completion
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, exercise_id, completed_at
		FROM exercise_completions
		WHERE user_id = $1 AND exercise_id = $2`, userID, exerciseID).
		Scan(&c.ID, &c.UserID, &c.ExerciseID, &c.CompletedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrCompletionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// Replace swaps the pair's completion record inside one transaction. The
// unique (user_id, exercise_id) constraint backstops two racers that both
// passed the cooldown check; the loser's duplicate key surfaces as
// ErrCompletedRecently.
func (s *PgCompletionStore) Replace(ctx context.Context, c *Completion) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		DELETE FROM exercise_completions
		WHERE user_id = $1 AND exercise_id = $2`, c.UserID, c.ExerciseID)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO exercise_completions (id, user_id, exercise_id, completed_at)
		VALUES ($1, $2, $3, $4)`, c.ID, c.UserID, c.ExerciseID, c.CompletedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrCompletedRecently
		}
		return err
	}

	return tx.Commit(ctx)
}

func (s *PgCompletionStore) ListSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]Completion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, exercise_id, completed_at
		FROM exercise_completions
		WHERE user_id = $1 AND completed_at >= $2
		ORDER BY completed_at DESC`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completions []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.ID, &c.UserID, &c.ExerciseID, &c.CompletedAt); err != nil {
			return nil, err
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}
