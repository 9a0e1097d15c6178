// Package identity provides bearer-token acquisition for downstream
// identity providers with single-flight refresh.
package identity

import (
	"fmt"
	"sync"
	"time"

	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ditare/internal/interfaces"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBuffer is subtracted from the server lifetime so a token is
	// refreshed before it actually expires.
	DefaultBuffer = 60 * time.Second

	// DefaultFloor is the minimum stored lifetime, guarding against
	// providers that return very short expiries.
	DefaultFloor = 30 * time.Second
)

// RefreshResult is the outcome of one refresh exchange. A non-empty
// RefreshToken means the provider rotated it.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// RefreshFunc performs one token-refresh exchange.
type RefreshFunc func(ctx context.Context, refreshToken string) (*RefreshResult, error)

// TokenCache caches one access token and refreshes it on demand. Concurrent
// callers during a refresh all await the same exchange. Safe for concurrent
// use.
type TokenCache struct {
	refresh RefreshFunc
	buffer  time.Duration
	floor   time.Duration
	now     func() time.Time
	logger  arbor.ILogger

	group singleflight.Group

	mu           sync.Mutex
	accessToken  string
	expiresAt    time.Time
	refreshToken string
}

// NewTokenCache creates a cache seeded with the initial refresh token.
func NewTokenCache(refresh RefreshFunc, refreshToken string, logger arbor.ILogger) *TokenCache {
	return &TokenCache{
		refresh:      refresh,
		buffer:       DefaultBuffer,
		floor:        DefaultFloor,
		now:          time.Now,
		logger:       logger,
		refreshToken: refreshToken,
	}
}

var _ interfaces.TokenSource = (*TokenCache)(nil)

// Token returns a valid access token, refreshing through a single in-flight
// exchange when the cached one is missing or inside the expiry buffer.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	result, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		// A waiter queued behind the previous refresh sees its result here
		// without another exchange.
		if token, ok := c.cached(); ok {
			return token, nil
		}

		c.mu.Lock()
		refreshToken := c.refreshToken
		c.mu.Unlock()

		outcome, refreshErr := c.refresh(ctx, refreshToken)
		if refreshErr != nil {
			c.Invalidate()
			return nil, fmt.Errorf("token refresh failed: %w", refreshErr)
		}

		lifetime := outcome.ExpiresIn - c.buffer
		if lifetime < c.floor {
			lifetime = c.floor
		}

		c.mu.Lock()
		c.accessToken = outcome.AccessToken
		c.expiresAt = c.now().Add(lifetime)
		if outcome.RefreshToken != "" {
			c.refreshToken = outcome.RefreshToken
		}
		c.mu.Unlock()

		if c.logger != nil {
			c.logger.Debug().
				Dur("lifetime", lifetime).
				Bool("rotated", outcome.RefreshToken != "").
				Msg("Access token refreshed")
		}

		return outcome.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate clears the cached access token so the next Token call refreshes.
// The refresh token is kept.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.accessToken = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken == "" {
		return "", false
	}
	if !c.now().Before(c.expiresAt.Add(-c.buffer)) {
		return "", false
	}
	return c.accessToken, true
}
