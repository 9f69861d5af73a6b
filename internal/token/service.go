package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"calmux/internal/models"
)

// expirySkew refreshes tokens slightly before they actually expire, so
// an in-flight provider call never races the expiry instant.
const expirySkew = 5 * time.Minute

// Service hands out valid access tokens, refreshing transparently.
// Refreshes for the same (userID, provider) pair are serialized through
// singleflight so concurrent aggregate reads trigger at most one refresh
// and no lost updates on the store.
type Service struct {
	store   *FileStore
	configs map[models.Provider]*oauth2.Config
	group   singleflight.Group
	logger  *slog.Logger
}

// NewService creates a token service. configs holds the oauth2 client
// config per provider that supports refresh; providers absent from the
// map (CalDAV) use non-expiring stored secrets.
func NewService(store *FileStore, configs map[models.Provider]*oauth2.Config, logger *slog.Logger) *Service {
	return &Service{store: store, configs: configs, logger: logger}
}

// IsAuthenticated reports whether stored credentials exist for the pair.
func (s *Service) IsAuthenticated(provider models.Provider, userID string) bool {
	_, err := s.store.Get(provider, userID)
	return err == nil
}

// GetCredentials returns the stored credentials, or ErrNoCredentials.
func (s *Service) GetCredentials(provider models.Provider, userID string) (*models.CalendarCredentials, error) {
	return s.store.Get(provider, userID)
}

// SaveCredentials persists credentials (OAuth callback, resync, refresh).
func (s *Service) SaveCredentials(creds *models.CalendarCredentials) error {
	return s.store.Put(creds)
}

// DeleteCredentials removes credentials on explicit de-authentication.
func (s *Service) DeleteCredentials(provider models.Provider, userID string) error {
	return s.store.Delete(provider, userID)
}

// AuthenticatedProviders lists providers the user can currently reach.
func (s *Service) AuthenticatedProviders(userID string) ([]models.Provider, error) {
	return s.store.Providers(userID)
}

// GetValidAccessToken returns a usable access token for the pair,
// refreshing and persisting expired tokens transparently.
func (s *Service) GetValidAccessToken(ctx context.Context, provider models.Provider, userID string) (string, error) {
	creds, err := s.store.Get(provider, userID)
	if err != nil {
		return "", err
	}
	if creds.Token == nil || creds.Token.AccessToken == "" {
		return "", fmt.Errorf("%w: %s for user %s", models.ErrNoValidToken, provider, userID)
	}

	// Providers without an oauth2 config carry non-expiring secrets.
	config, refreshable := s.configs[provider]
	if !refreshable || creds.Token.Expiry.IsZero() || time.Now().Before(creds.Token.Expiry.Add(-expirySkew)) {
		return creds.Token.AccessToken, nil
	}

	key := fmt.Sprintf("%s/%s", userID, provider)
	refreshed, err, _ := s.group.Do(key, func() (any, error) {
		accessToken, err := s.refresh(ctx, config, creds)
		if err != nil {
			return nil, err
		}
		return accessToken, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: refresh failed for %s: %v", models.ErrNoValidToken, provider, err)
	}
	return refreshed.(string), nil
}

func (s *Service) refresh(ctx context.Context, config *oauth2.Config, creds *models.CalendarCredentials) (string, error) {
	s.logger.Info("Refreshing access token", "provider", creds.Provider, "userID", creds.UserID)

	fresh, err := config.TokenSource(ctx, creds.Token).Token()
	if err != nil {
		return "", err
	}

	creds.Token = fresh
	if err := s.store.Put(creds); err != nil {
		// The token is valid even when persisting lags; log and serve it.
		s.logger.Error("Failed to persist refreshed token", "provider", creds.Provider, "error", err)
	}
	return fresh.AccessToken, nil
}
