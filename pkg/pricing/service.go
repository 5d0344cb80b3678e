package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrFailedToCountMembers = errors.New("failed to count active members")

// ActiveMemberCounter returns the current number of members with an active
// paid subscription. Called on every uncached quote request, so it should be
// a cheap aggregate query.
type ActiveMemberCounter func(ctx context.Context) (int64, error)

const cacheKey = "pricing:quote"

// Service resolves the live quote for a prospective subscriber.
//
// The count-then-quote window is racy under concurrent signups: two callers
// may both be told they are member #100. That is accepted, because the
// commercial guarantee is price lock-in at checkout-session creation, not
// strict slot ordering.
type Service struct {
	count ActiveMemberCounter
	cache *redis.Client
	ttl   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables short-lived quote caching in Redis. Useful for the
// public pricing endpoint, which is hit by anonymous landing-page traffic.
// A stale quote within the TTL is harmless: the authoritative quote is
// re-resolved at checkout-session creation.
func WithCache(client *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		if client != nil && ttl > 0 {
			s.cache = client
			s.ttl = ttl
		}
	}
}

// NewService creates a quote Service. Panics if counter is nil to fail fast
// during initialization.
func NewService(counter ActiveMemberCounter, opts ...Option) *Service {
	if counter == nil {
		panic("pricing: ActiveMemberCounter is required")
	}
	s := &Service{count: counter}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the quote a new subscriber would receive at call time.
func (s *Service) Current(ctx context.Context) (Quote, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var q Quote
			if err := json.Unmarshal(raw, &q); err == nil {
				return q, nil
			}
			// Corrupt cache entry, fall through and recompute.
		}
	}

	n, err := s.count(ctx)
	if err != nil {
		return Quote{}, errors.Join(ErrFailedToCountMembers, err)
	}

	q := QuoteForCount(n)

	if s.cache != nil {
		if raw, err := json.Marshal(q); err == nil {
			// Cache write failures are non-fatal, the next request recomputes.
			_ = s.cache.Set(ctx, cacheKey, raw, s.ttl).Err()
		}
	}

	return q, nil
}
