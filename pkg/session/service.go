package session

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/sharesphere/sharesphere/pkg/authz"
	"github.com/sharesphere/sharesphere/pkg/observability"
)

// TokenExchanger exchanges a stored refresh token for a fresh token
// pair. The production implementation talks to the OIDC provider; tests
// inject a fake.
type TokenExchanger interface {
	Exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OIDCExchanger performs the refresh grant against a discovered OIDC
// provider.
type OIDCExchanger struct {
	config *oauth2.Config
}

// NewOIDCExchanger discovers the issuer and builds the refresh client.
func NewOIDCExchanger(ctx context.Context, issuerURL, clientID, clientSecret string) (*OIDCExchanger, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCExchanger{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email", oidc.ScopeOfflineAccess},
		},
	}, nil
}

// Exchange runs the refresh grant once.
func (e *OIDCExchanger) Exchange(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := e.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to refresh credentials: %w", err)
	}
	return token, nil
}

// Credentials is the refresh result handed back to the caller.
type Credentials struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expiry"`
}

// Service refreshes user credentials under the per-user lock.
type Service struct {
	store     *Store
	exchanger TokenExchanger
	authz     *authz.Service
	logger    *observability.Logger
}

// NewService creates the session service.
func NewService(store *Store, exchanger TokenExchanger, authzService *authz.Service, logger *observability.Logger) *Service {
	return &Service{
		store:     store,
		exchanger: exchanger,
		authz:     authzService,
		logger:    logger,
	}
}

// RefreshCredentials exchanges the user's stored refresh token and
// stores the rotated one. The whole cycle holds the user's lock so a
// concurrent refresh or role mutation cannot interleave, and ends with
// a snapshot invalidation.
func (s *Service) RefreshCredentials(ctx context.Context, userID int64) (*Credentials, error) {
	var creds *Credentials
	err := s.authz.Locks().WithLock(userID, func() error {
		stored, err := s.store.GetRefreshToken(ctx, userID)
		if err != nil {
			return err
		}

		token, err := s.exchanger.Exchange(ctx, stored)
		if err != nil {
			return err
		}

		// Providers that rotate refresh tokens return the replacement;
		// others echo the old one back or omit it.
		if token.RefreshToken != "" && token.RefreshToken != stored {
			if err := s.store.SetRefreshToken(ctx, userID, token.RefreshToken); err != nil {
				return err
			}
		}

		creds = &Credentials{
			AccessToken: token.AccessToken,
			TokenType:   token.TokenType,
			Expiry:      token.Expiry,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.authz.InvalidateUser(ctx, userID)
	s.logger.WithUserID(userID).Info("credentials refreshed")
	return creds, nil
}
