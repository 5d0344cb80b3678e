package membership_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilityhq/blueprint/pkg/membership"
	"github.com/mobilityhq/blueprint/pkg/pricing"
	"github.com/mobilityhq/blueprint/pkg/principal"
)

func get(t *testing.T, router http.Handler, path, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if email != "" {
		req.Header.Set(principal.HeaderName, email)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func post(t *testing.T, router http.Handler, path, email string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if email != "" {
		req.Header.Set(principal.HeaderName, email)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCurrentPricing(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, newUserStore(), &stubProvider{})

	rec := get(t, router, "/pricing/current", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var quote pricing.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quote))
	assert.Equal(t, pricing.TierInnerCircle, quote.Tier)
	assert.Equal(t, int64(1), quote.UserNumber)
	assert.Equal(t, int64(100), quote.PriceCents)
}

func TestStartCheckoutEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, newUserStore(), &stubProvider{})
		rec := post(t, router, "/checkout", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("active member gets a conflict", func(t *testing.T) {
		t.Parallel()

		users := newUserStore()
		seed := membership.User{Email: "a@example.com", Status: membership.StatusActive}
		require.NoError(t, users.Save(context.Background(), &seed))

		router := newTestRouter(t, users, &stubProvider{})
		rec := post(t, router, "/checkout", "a@example.com")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown member", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, newUserStore(), &stubProvider{})
		rec := post(t, router, "/checkout", "ghost@example.com")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubscriptionState(t *testing.T) {
	t.Parallel()

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, newUserStore(), &stubProvider{})
		rec := get(t, router, "/subscription", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("returns the member snapshot", func(t *testing.T) {
		t.Parallel()

		users := newUserStore()
		seed := membership.User{
			Email:             "a@example.com",
			Status:            membership.StatusActive,
			Tier:              pricing.TierFounder,
			MonthlyPriceCents: 500,
			UserNumber:        142,
		}
		require.NoError(t, users.Save(context.Background(), &seed))

		router := newTestRouter(t, users, &stubProvider{})
		rec := get(t, router, "/subscription", "a@example.com")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "ACTIVE", resp["status"])
		assert.Equal(t, "FOUNDER", resp["tier"])
		assert.Equal(t, "Founder", resp["tierName"])
		assert.Equal(t, true, resp["hasAccess"])
	})
}

func TestCheckoutSuccessEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("missing session id", func(t *testing.T) {
		t.Parallel()

		router := newTestRouter(t, newUserStore(), &stubProvider{})
		rec := get(t, router, "/checkout/success", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
