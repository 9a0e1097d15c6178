package interfaces

import (
	"context"
)

// TokenSource produces valid bearer tokens for one downstream identity
// provider. Implementations must be safe for concurrent use.
type TokenSource interface {
	// Token returns a valid access token, refreshing if necessary
	Token(ctx context.Context) (string, error)

	// Invalidate clears the cached token. Called by a consumer that observed
	// an authorization failure using a cached token, forcing the next Token
	// call to refresh.
	Invalidate()
}
