package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/ditare/internal/common"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// NewMicrosoftRefresher returns a RefreshFunc that exchanges a refresh token
// against the Azure AD token endpoint for the configured tenant.
func NewMicrosoftRefresher(cfg *common.IdentityConfig) RefreshFunc {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
		Scopes: []string{
			"https://graph.microsoft.com/Tasks.ReadWrite",
			"offline_access",
		},
	}

	return func(ctx context.Context, refreshToken string) (*RefreshResult, error) {
		source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
		token, err := source.Token()
		if err != nil {
			return nil, fmt.Errorf("azure token exchange failed: %w", err)
		}

		return &RefreshResult{
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ExpiresIn:    time.Until(token.Expiry),
		}, nil
	}
}
