package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
)

// Service turns marketplace consent callbacks into connected integrations.
type Service struct {
	integrations models.IntegrationRepository
	properties   models.PropertyRepository
	queue        models.SyncQueueRepository
	cipher       *encryption.Cipher
	cfg          *oauth2.Config
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds the callback service. cfg carries the client credentials, the
// marketplace endpoint and the registered redirect URL.
func New(
	integrations models.IntegrationRepository,
	properties models.PropertyRepository,
	queue models.SyncQueueRepository,
	cipher *encryption.Cipher,
	cfg *oauth2.Config,
	opts ...Option,
) *Service {
	s := &Service{
		integrations: integrations,
		properties:   properties,
		queue:        queue,
		cipher:       cipher,
		cfg:          cfg,
		logger:       zap.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// AuthURL builds the consent screen URL for a flow.
func (s *Service) AuthURL(state State) (string, error) {
	encoded, err := state.Encode()
	if err != nil {
		return "", err
	}

	scopes := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("scope", avito.ScopeShortTermRent),
	}

	if state.Flow == FlowMessenger {
		scopes = []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("scope",
			strings.Join([]string{avito.ScopeShortTermRent, avito.ScopeMessengerRead, avito.ScopeMessengerWrite}, " "))}
	}

	return s.cfg.AuthCodeURL(encoded, scopes...), nil
}

// HandleCallback exchanges the authorization code, resolves which
// integration the grant belongs to, and persists the credentials. Every
// failure carries a reason code the frontend can act on.
func (s *Service) HandleCallback(ctx context.Context, code, state, redirectURI string) (*models.Integration, error) {
	st, err := DecodeState(state)
	if err != nil {
		return nil, callbackErr(ReasonInvalidState, err)
	}

	log := s.logger.With(
		zap.Int64("user_id", st.UserID),
		zap.String("flow", st.Flow),
	)

	token, err := s.exchange(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	scope := grantedScope(token)

	if st.Flow == FlowMessenger && !avito.ScopeContains(scope, avito.ScopeMessengerRead) {
		log.Warn("messenger flow granted without messenger scope", zap.String("scope", scope))

		return nil, callbackErr(ReasonScopeMissing,
			fmt.Errorf("grant scope %q lacks %s", scope, avito.ScopeMessengerRead))
	}

	integration, err := s.resolveIntegration(ctx, st)
	if err != nil {
		return nil, err
	}

	if err := s.persist(ctx, integration, token, scope); err != nil {
		return nil, err
	}

	if err := s.queue.Ensure(ctx, integration.ID, time.Now()); err != nil {
		log.Warn("sync queue ensure failed after connect",
			zap.Int64("integration_id", integration.ID), zap.Error(err))
	}

	log.Info("integration connected",
		zap.Int64("integration_id", integration.ID),
		zap.Int64("property_id", integration.PropertyID),
		zap.String("scope", scope))

	return integration, nil
}

// exchange runs the authorization-code grant, mapping vendor rejections to
// reason codes.
func (s *Service) exchange(ctx context.Context, code, redirectURI string) (*oauth2.Token, error) {
	cfg := *s.cfg
	if redirectURI != "" {
		cfg.RedirectURL = redirectURI
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && strings.Contains(strings.ToLower(retrieveErr.ErrorCode+retrieveErr.ErrorDescription), "redirect") {
			return nil, callbackErr(ReasonRedirectMismatch, err)
		}

		return nil, callbackErr(ReasonInvalidCode, err)
	}

	return token, nil
}

// resolveIntegration finds the integration this grant belongs to: the one
// named by state when the caller owns it, else the active integration on
// the property state names, else the caller's single active integration
// for the platform.
func (s *Service) resolveIntegration(ctx context.Context, st State) (*models.Integration, error) {
	if st.IntegrationID != 0 {
		integration, err := s.integrations.Get(ctx, st.IntegrationID)
		if err != nil {
			return nil, callbackErr(ReasonNoIntegration,
				fmt.Errorf("integration %d: %w", st.IntegrationID, err))
		}

		if err := s.verifyOwnership(ctx, integration, st.UserID); err != nil {
			return nil, err
		}

		return integration, nil
	}

	active, err := s.integrations.ActiveByUser(ctx, st.UserID, models.PlatformAvito)
	if err != nil {
		return nil, callbackErr(ReasonNoIntegration, err)
	}

	// ActiveByUser only returns integrations on properties the caller owns,
	// so a property match here is already ownership-checked.
	if st.PropertyID != 0 {
		for _, integration := range active {
			if integration.PropertyID == st.PropertyID {
				return integration, nil
			}
		}

		return nil, callbackErr(ReasonNoIntegration,
			fmt.Errorf("user %d has no active integration on property %d", st.UserID, st.PropertyID))
	}

	switch len(active) {
	case 1:
		return active[0], nil
	case 0:
		return nil, callbackErr(ReasonNoIntegration,
			fmt.Errorf("user %d has no active integration to attach the grant to", st.UserID))
	default:
		return nil, callbackErr(ReasonNoIntegration,
			fmt.Errorf("user %d has %d active integrations, state must name one", st.UserID, len(active)))
	}
}

// verifyOwnership stops a state payload from pointing the grant at someone
// else's integration.
func (s *Service) verifyOwnership(ctx context.Context, integration *models.Integration, userID int64) error {
	property, err := s.properties.Get(ctx, integration.PropertyID)
	if err != nil {
		return callbackErr(ReasonNoIntegration,
			fmt.Errorf("property %d: %w", integration.PropertyID, err))
	}

	if property.UserID != userID {
		return callbackErr(ReasonNoIntegration,
			fmt.Errorf("user %d does not own property %d", userID, property.ID))
	}

	return nil
}

// persist encrypts and stores the grant, activating the integration. A
// grant that did not rotate the refresh token keeps the stored one.
func (s *Service) persist(ctx context.Context, integration *models.Integration, token *oauth2.Token, scope string) error {
	access, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}

	integration.AccessToken = access

	if token.RefreshToken != "" {
		refresh, err := s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}

		integration.RefreshToken = refresh
	}

	integration.TokenExpiresAt = token.Expiry

	if scope != "" {
		integration.Scope = scope
	}

	integration.IsActive = true
	integration.IsEnabled = true

	if err := s.integrations.Save(ctx, integration); err != nil {
		return fmt.Errorf("save integration %d: %w", integration.ID, err)
	}

	return nil
}

func grantedScope(token *oauth2.Token) string {
	if s, ok := token.Extra("scope").(string); ok {
		return s
	}

	return ""
}
