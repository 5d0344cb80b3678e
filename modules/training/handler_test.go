package training_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	module "github.com/mobilityhq/blueprint/modules/training"
	"github.com/mobilityhq/blueprint/pkg/billing"
	"github.com/mobilityhq/blueprint/pkg/membership"
	"github.com/mobilityhq/blueprint/pkg/pricing"
	"github.com/mobilityhq/blueprint/pkg/principal"
	"github.com/mobilityhq/blueprint/pkg/training"
)

type singleUserStore struct {
	user membership.User
}

func (s *singleUserStore) ByID(_ context.Context, id uuid.UUID) (*membership.User, error) {
	if id != s.user.ID {
		return nil, membership.ErrUserNotFound
	}
	u := s.user
	return &u, nil
}

func (s *singleUserStore) ByEmail(_ context.Context, email string) (*membership.User, error) {
	if email != s.user.Email {
		return nil, membership.ErrUserNotFound
	}
	u := s.user
	return &u, nil
}

func (s *singleUserStore) ByCustomerID(_ context.Context, customerID string) (*membership.User, error) {
	if customerID == "" || customerID != s.user.CustomerID {
		return nil, membership.ErrUserNotFound
	}
	u := s.user
	return &u, nil
}

func (s *singleUserStore) CountActive(context.Context) (int64, error) { return 1, nil }

func (s *singleUserStore) Save(_ context.Context, u *membership.User) error {
	s.user = *u
	return nil
}

type noSubscriptionStore struct{}

func (noSubscriptionStore) Upsert(context.Context, *membership.Subscription) error { return nil }

func (noSubscriptionStore) CancelByProviderID(context.Context, string, time.Time) error { return nil }

func (noSubscriptionStore) ByUserID(context.Context, uuid.UUID) (*membership.Subscription, error) {
	return nil, membership.ErrSubscriptionNotFound
}

type offlineProvider struct{}

func (offlineProvider) EnsureCustomer(context.Context, string, string, map[string]string) (string, error) {
	return "", billing.ErrProviderCallFailed
}

func (offlineProvider) CreateCheckoutSession(context.Context, billing.CheckoutSessionRequest) (*billing.CheckoutSession, error) {
	return nil, billing.ErrProviderCallFailed
}

func (offlineProvider) GetCheckoutSession(context.Context, string) (*billing.CheckoutSession, error) {
	return nil, billing.ErrProviderCallFailed
}

func (offlineProvider) ParseEvent([]byte, string) (*billing.Event, error) {
	return nil, billing.ErrSignatureVerificationFailed
}

type exerciseStore struct {
	exercises map[uuid.UUID]training.Exercise
}

func (s *exerciseStore) ByID(_ context.Context, id uuid.UUID) (*training.Exercise, error) {
	e, ok := s.exercises[id]
	if !ok {
		return nil, training.ErrExerciseNotFound
	}
	return &e, nil
}

func (s *exerciseStore) SuggestionsExcluding(context.Context, uuid.UUID, time.Time) ([]training.Exercise, error) {
	out := make([]training.Exercise, 0, len(s.exercises))
	for _, e := range s.exercises {
		out = append(out, e)
	}
	return out, nil
}

type completionStore struct {
	rows map[uuid.UUID]training.Completion // keyed by exercise id, single user
}

func (s *completionStore) LatestForPair(_ context.Context, _, exerciseID uuid.UUID) (*training.Completion, error) {
	c, ok := s.rows[exerciseID]
	if !ok {
		return nil, training.ErrCompletionNotFound
	}
	return &c, nil
}

func (s *completionStore) Replace(_ context.Context, c *training.Completion) error {
	s.rows[c.ExerciseID] = *c
	return nil
}

func (s *completionStore) ListSince(_ context.Context, _ uuid.UUID, since time.Time) ([]training.Completion, error) {
	var out []training.Completion
	for _, c := range s.rows {
		if !c.CompletedAt.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

type fixture struct {
	router      http.Handler
	user        membership.User
	squat       training.Exercise
	completions *completionStore
}

func newFixture(t *testing.T, status membership.Status) *fixture {
	t.Helper()

	user := membership.User{
		ID:     uuid.New(),
		Email:  "member@example.com",
		Status: status,
	}
	squat := training.Exercise{
		ID:       uuid.New(),
		Name:     "Back Squat",
		Category: "strength", Subcategory: "legs",
	}

	members := membership.NewService(
		membership.Config{BaseURL: "https://fit.example.com"},
		&singleUserStore{user: user}, noSubscriptionStore{}, offlineProvider{},
		pricing.NewService(func(context.Context) (int64, error) { return 1, nil }))

	completions := &completionStore{rows: make(map[uuid.UUID]training.Completion)}
	sessions := training.NewService(
		&exerciseStore{exercises: map[uuid.UUID]training.Exercise{squat.ID: squat}},
		completions)

	root := chi.NewRouter()
	root.Mount("/exercises", module.Router(module.NewHandler(members, sessions, nil)))
	router := principal.Middleware(root)
	return &fixture{router: router, user: user, squat: squat, completions: completions}
}

func (f *fixture) do(t *testing.T, method, path, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if email != "" {
		req.Header.Set(principal.HeaderName, email)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAccessGate(t *testing.T) {
	t.Parallel()

	t.Run("anonymous request", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusActive)
		rec := f.do(t, http.MethodGet, "/exercises/suggestions", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("member without subscription", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusNone)
		rec := f.do(t, http.MethodGet, "/exercises/suggestions", "member@example.com")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("active member passes", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusActive)
		rec := f.do(t, http.MethodGet, "/exercises/suggestions", "member@example.com")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestCompleteEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("records a completion", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusActive)
		rec := f.do(t, http.MethodPost, "/exercises/"+f.squat.ID.String()+"/complete", "member@example.com")
		require.Equal(t, http.StatusCreated, rec.Code)

		var completion training.Completion
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completion))
		assert.Equal(t, f.user.ID, completion.UserID)
		assert.Equal(t, f.squat.ID, completion.ExerciseID)
	})

	t.Run("second attempt inside the window conflicts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusActive)
		path := "/exercises/" + f.squat.ID.String() + "/complete"

		require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, path, "member@example.com").Code)
		rec := f.do(t, http.MethodPost, path, "member@example.com")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown exercise", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusActive)
		rec := f.do(t, http.MethodPost, "/exercises/"+uuid.NewString()+"/complete", "member@example.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed exercise id", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, membership.StatusActive)
		rec := f.do(t, http.MethodPost, "/exercises/not-a-uuid/complete", "member@example.com")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestCompletedTodayEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, membership.StatusActive)
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/exercises/"+f.squat.ID.String()+"/complete", "member@example.com").Code)

	rec := f.do(t, http.MethodGet, "/exercises/completed/today", "member@example.com")
	require.Equal(t, http.StatusOK, rec.Code)

	var completions []training.Completion
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &completions))
	require.Len(t, completions, 1)
	assert.Equal(t, f.squat.ID, completions[0].ExerciseID)
}
