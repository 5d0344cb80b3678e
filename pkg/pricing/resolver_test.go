package pricing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobilityhq/blueprint/pkg/pricing"
)

func TestQuoteForCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		active     int64
		tier       pricing.Tier
		priceCents int64
		userNumber int64
		spotsLeft  int64
	}{
		{"first member", 0, pricing.TierInnerCircle, 100, 1, 100},
		{"last inner circle spot", 99, pricing.TierInnerCircle, 100, 100, 1},
		{"first founder spot", 100, pricing.TierFounder, 500, 101, 100},
		{"last founder spot", 199, pricing.TierFounder, 500, 200, 1},
		{"first pioneer spot", 200, pricing.TierPioneer, 1000, 201, 100},
		{"last pioneer spot", 299, pricing.TierPioneer, 1000, 300, 1},
		{"first standard member", 300, pricing.TierStandard, 2000, 301, 0},
		{"deep into standard", 305, pricing.TierStandard, 2000, 306, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			q := pricing.QuoteForCount(tt.active)
			assert.Equal(t, tt.tier, q.Tier)
			assert.Equal(t, tt.priceCents, q.PriceCents)
			assert.Equal(t, tt.userNumber, q.UserNumber)
			assert.Equal(t, tt.spotsLeft, q.SpotsLeft)
		})
	}
}

func TestQuoteForCount_PriceMonotonic(t *testing.T) {
	t.Parallel()

	prev := int64(0)
	for n := int64(0); n <= 400; n++ {
		q := pricing.QuoteForCount(n)
		require.GreaterOrEqual(t, q.PriceCents, prev, "price must never decrease as members join (n=%d)", n)
		require.Equal(t, n+1, q.UserNumber)
		prev = q.PriceCents
	}
}

func TestService_Current(t *testing.T) {
	t.Parallel()

	t.Run("resolves quote from counter", func(t *testing.T) {
		t.Parallel()
		svc := pricing.NewService(func(ctx context.Context) (int64, error) {
			return 150, nil
		})

		q, err := svc.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, pricing.TierFounder, q.Tier)
		assert.Equal(t, int64(151), q.UserNumber)
		assert.Equal(t, int64(50), q.SpotsLeft)
	})

	t.Run("wraps counter failure", func(t *testing.T) {
		t.Parallel()
		dbDown := errors.New("connection refused")
		svc := pricing.NewService(func(ctx context.Context) (int64, error) {
			return 0, dbDown
		})

		_, err := svc.Current(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, pricing.ErrFailedToCountMembers)
		assert.ErrorIs(t, err, dbDown)
	})

	t.Run("panics without counter", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() { pricing.NewService(nil) })
	})
}

func TestTierInfo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Inner Circle", pricing.TierInfo(pricing.TierInnerCircle).Name)
	assert.Equal(t, int64(500), pricing.TierInfo(pricing.TierFounder).PriceCents)
	assert.Equal(t, "201-300", pricing.TierInfo(pricing.TierPioneer).UserRange)

	// Unknown tiers render as standard rather than a zero value.
	assert.Equal(t, "Standard", pricing.TierInfo(pricing.Tier("BOGUS")).Name)
}

func TestTierValid(t *testing.T) {
	t.Parallel()

	assert.True(t, pricing.TierFounder.Valid())
	assert.False(t, pricing.Tier("").Valid())
	assert.False(t, pricing.Tier("GOLD").Valid())
}
