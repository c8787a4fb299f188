package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
)

// ErrReauthRequired means stored credentials are unusable and every grant
// failed. Retrying cannot help; only the property owner reconnecting the
// marketplace account resolves it.
var ErrReauthRequired = errors.New("marketplace authorization expired, reconnect required")

// expirySkew is how long before its hard expiry a token stops being handed
// out, covering clock drift plus the duration of the calls it authorizes.
const expirySkew = 60 * time.Second

// Credentials identify this application to the marketplace.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Manager hands out valid access tokens for integrations, refreshing and
// re-encrypting them as needed. Concurrent refreshes of one integration are
// tolerated: both succeed remotely and the last write wins.
type Manager struct {
	integrations models.IntegrationRepository
	syncLogs     models.SyncLogRepository
	cipher       *encryption.Cipher
	creds        Credentials
	endpoint     oauth2.Endpoint
	cache        Cache
	logger       *zap.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCache replaces the default in-process cache.
func WithCache(cache Cache) ManagerOption {
	return func(m *Manager) {
		m.cache = cache
	}
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager builds a token manager.
func NewManager(
	integrations models.IntegrationRepository,
	syncLogs models.SyncLogRepository,
	cipher *encryption.Cipher,
	creds Credentials,
	endpoint oauth2.Endpoint,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		integrations: integrations,
		syncLogs:     syncLogs,
		cipher:       cipher,
		creds:        creds,
		endpoint:     endpoint,
		cache:        NewMemoryCache(),
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// AccessToken returns a token valid for at least the expiry skew, refreshing
// it first when needed.
func (m *Manager) AccessToken(ctx context.Context, integrationID int64) (string, error) {
	if entry, ok := m.cache.Get(ctx, integrationID); ok && fresh(entry.ExpiresAt) {
		return entry.AccessToken, nil
	}

	integration, err := m.integrations.Get(ctx, integrationID)
	if err != nil {
		return "", fmt.Errorf("load integration %d: %w", integrationID, err)
	}

	if fresh(integration.TokenExpiresAt) && len(integration.AccessToken) > 0 {
		token, err := m.cipher.Decrypt(integration.AccessToken)
		if err == nil {
			m.cache.Set(ctx, integrationID, Entry{AccessToken: token, ExpiresAt: integration.TokenExpiresAt})

			return token, nil
		}

		m.logger.Warn("stored access token unreadable, refreshing",
			zap.Int64("integration_id", integrationID), zap.Error(err))
	}

	return m.refresh(ctx, integration)
}

// ForceRefresh discards any cached token and runs the refresh flow now.
// Callers use it after the marketplace rejects a token mid-flight.
func (m *Manager) ForceRefresh(ctx context.Context, integrationID int64) (string, error) {
	m.cache.Invalidate(ctx, integrationID)

	integration, err := m.integrations.Get(ctx, integrationID)
	if err != nil {
		return "", fmt.Errorf("load integration %d: %w", integrationID, err)
	}

	return m.refresh(ctx, integration)
}

// Invalidate drops the cached token for an integration.
func (m *Manager) Invalidate(ctx context.Context, integrationID int64) {
	m.cache.Invalidate(ctx, integrationID)
}

func fresh(expiresAt time.Time) bool {
	return time.Now().Add(expirySkew).Before(expiresAt)
}

func (m *Manager) refresh(ctx context.Context, integration *models.Integration) (string, error) {
	if len(integration.RefreshToken) == 0 {
		m.audit(ctx, integration.ID, "no refresh token stored")

		return "", ErrReauthRequired
	}

	refreshToken, err := m.cipher.Decrypt(integration.RefreshToken)
	if err != nil {
		m.audit(ctx, integration.ID, "refresh token unreadable")

		return "", fmt.Errorf("decrypt refresh token: %w", ErrReauthRequired)
	}

	token, err := m.refreshGrant(ctx, refreshToken)
	if err != nil {
		m.logger.Warn("refresh grant failed, trying client credentials",
			zap.Int64("integration_id", integration.ID), zap.Error(err))

		token, err = m.clientCredentialsGrant(ctx)
	}

	if err != nil {
		m.audit(ctx, integration.ID, "all token grants failed")
		m.logger.Error("token refresh failed on every grant",
			zap.Int64("integration_id", integration.ID), zap.Error(err))

		return "", ErrReauthRequired
	}

	if err := m.persist(ctx, integration, token); err != nil {
		return "", err
	}

	m.cache.Set(ctx, integration.ID, Entry{AccessToken: token.AccessToken, ExpiresAt: token.Expiry})

	return token.AccessToken, nil
}

func (m *Manager) refreshGrant(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	cfg := &oauth2.Config{
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
		Endpoint:     m.endpoint,
	}

	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

func (m *Manager) clientCredentialsGrant(ctx context.Context) (*oauth2.Token, error) {
	cfg := clientcredentials.Config{
		ClientID:     m.creds.ClientID,
		ClientSecret: m.creds.ClientSecret,
		TokenURL:     m.endpoint.TokenURL,
		AuthStyle:    m.endpoint.AuthStyle,
	}

	return cfg.Token(ctx)
}

// persist re-encrypts and stores the new tokens. Grants that do not rotate
// the refresh token keep the previous one.
func (m *Manager) persist(ctx context.Context, integration *models.Integration, token *oauth2.Token) error {
	access, err := m.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}

	refresh := integration.RefreshToken

	if token.RefreshToken != "" {
		refresh, err = m.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	scope := integration.Scope
	if s, ok := token.Extra("scope").(string); ok && s != "" {
		scope = s
	}

	if err := m.integrations.UpdateTokens(ctx, integration.ID, access, refresh, token.Expiry, scope); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}

	return nil
}

func (m *Manager) audit(ctx context.Context, integrationID int64, detail string) {
	entry := &models.SyncLog{
		IntegrationID: integrationID,
		Action:        "token_refresh",
		Status:        models.LogError,
		Detail:        detail,
	}

	if err := m.syncLogs.Append(ctx, entry); err != nil {
		m.logger.Warn("sync log append failed", zap.Int64("integration_id", integrationID), zap.Error(err))
	}
}
