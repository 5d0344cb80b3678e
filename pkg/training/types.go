package training

import (
	"time"

	"github.com/google/uuid"
)

// Exercise is read-only reference data maintained by the upstream content
// feed. The service never mutates it.
type Exercise struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Completion records the single most recent time a member finished an
// exercise. The store keeps at most one row per (user, exercise) pair;
// recording a new completion replaces the previous one.
type Completion struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	ExerciseID  uuid.UUID `json:"exerciseId"`
	CompletedAt time.Time `json:"completedAt"`
}
