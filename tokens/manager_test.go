package tokens_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
)

var testCreds = tokens.Credentials{ClientID: "client-id", ClientSecret: "client-secret"}

type fakeIntegrations struct {
	mu           sync.Mutex
	byID         map[int64]*models.Integration
	tokenUpdates int
}

func newFakeIntegrations(list ...*models.Integration) *fakeIntegrations {
	f := &fakeIntegrations{byID: make(map[int64]*models.Integration)}
	for _, i := range list {
		f.byID[i.ID] = i
	}

	return f
}

func (f *fakeIntegrations) Get(_ context.Context, id int64) (*models.Integration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	cp := *i

	return &cp, nil
}

func (f *fakeIntegrations) GetByListing(context.Context, string, string) (*models.Integration, error) {
	return nil, models.ErrNotFound
}

func (f *fakeIntegrations) ActiveByUser(context.Context, int64, string) ([]*models.Integration, error) {
	return nil, nil
}

func (f *fakeIntegrations) Save(_ context.Context, integration *models.Integration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.byID[integration.ID] = integration

	return nil
}

func (f *fakeIntegrations) UpdateTokens(_ context.Context, id int64, access, refresh []byte, expiresAt time.Time, scope string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	i, ok := f.byID[id]
	if !ok {
		return models.ErrNotFound
	}

	i.AccessToken = access
	i.RefreshToken = refresh
	i.TokenExpiresAt = expiresAt
	i.Scope = scope
	f.tokenUpdates++

	return nil
}

func (f *fakeIntegrations) TouchLastSync(context.Context, int64, time.Time) error { return nil }

type fakeSyncLogs struct {
	mu      sync.Mutex
	entries []*models.SyncLog
}

func (f *fakeSyncLogs) Append(_ context.Context, entry *models.SyncLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = append(f.entries, entry)

	return nil
}

func (f *fakeSyncLogs) ListByIntegration(context.Context, int64, int) ([]models.SyncLog, error) {
	return nil, nil
}

// tokenServer records the grant types it sees and answers per grant.
type tokenServer struct {
	srv    *httptest.Server
	mu     sync.Mutex
	grants []string
	// fail marks grant types that answer 400.
	fail map[string]bool
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()

	ts := &tokenServer{fail: make(map[string]bool)}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		grant := r.FormValue("grant_type")

		ts.mu.Lock()
		ts.grants = append(ts.grants, grant)
		failing := ts.fail[grant]
		ts.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"granted-%s","token_type":"Bearer","expires_in":3600,"refresh_token":"rotated-refresh","scope":"short_term_rent messenger:read"}`, grant)
	}))
	t.Cleanup(ts.srv.Close)

	return ts
}

func (ts *tokenServer) seen() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	return append([]string(nil), ts.grants...)
}

func newTestCipher(t *testing.T) *encryption.Cipher {
	t.Helper()

	c, err := encryption.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	return c
}

func seal(t *testing.T, c *encryption.Cipher, value string) []byte {
	t.Helper()

	sealed, err := c.Encrypt(value)
	require.NoError(t, err)

	return sealed
}

func TestAccessTokenUsesStoredTokenWhileFresh(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)

	repo := newFakeIntegrations(&models.Integration{
		ID:             1,
		AccessToken:    seal(t, cipher, "stored-token"),
		RefreshToken:   seal(t, cipher, "stored-refresh"),
		TokenExpiresAt: time.Now().Add(time.Hour),
	})

	m := tokens.NewManager(repo, &fakeSyncLogs{}, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	token, err := m.AccessToken(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "stored-token", token)
	require.Empty(t, ts.seen(), "a fresh stored token must not trigger any grant")
}

func TestAccessTokenRefreshesNearExpiry(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)

	// 30s left is inside the 60s validity skew, so the token counts as expired.
	repo := newFakeIntegrations(&models.Integration{
		ID:             1,
		AccessToken:    seal(t, cipher, "stale-token"),
		RefreshToken:   seal(t, cipher, "stored-refresh"),
		TokenExpiresAt: time.Now().Add(30 * time.Second),
	})

	logs := &fakeSyncLogs{}
	m := tokens.NewManager(repo, logs, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	token, err := m.AccessToken(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "granted-refresh_token", token)
	require.Equal(t, []string{"refresh_token"}, ts.seen())

	stored, err := repo.Get(context.Background(), 1)
	require.NoError(t, err)

	access, err := cipher.Decrypt(stored.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "granted-refresh_token", access)

	refresh, err := cipher.Decrypt(stored.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "rotated-refresh", refresh)

	require.Equal(t, "short_term_rent messenger:read", stored.Scope)
	require.Greater(t, stored.TokenExpiresAt, time.Now().Add(30*time.Minute))
	require.Empty(t, logs.entries)
}

func TestAccessTokenCachesRefreshedToken(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)

	repo := newFakeIntegrations(&models.Integration{
		ID:           1,
		RefreshToken: seal(t, cipher, "stored-refresh"),
	})

	m := tokens.NewManager(repo, &fakeSyncLogs{}, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	_, err := m.AccessToken(context.Background(), 1)
	require.NoError(t, err)

	_, err = m.AccessToken(context.Background(), 1)
	require.NoError(t, err)

	require.Equal(t, []string{"refresh_token"}, ts.seen(), "second call must come from cache")
}

func TestAccessTokenWithoutRefreshTokenFailsFast(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)

	repo := newFakeIntegrations(&models.Integration{
		ID:             1,
		AccessToken:    seal(t, cipher, "expired"),
		TokenExpiresAt: time.Now().Add(-time.Hour),
	})

	logs := &fakeSyncLogs{}
	m := tokens.NewManager(repo, logs, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	_, err := m.AccessToken(context.Background(), 1)
	require.ErrorIs(t, err, tokens.ErrReauthRequired)
	require.Empty(t, ts.seen(), "reauth must be decided without marketplace calls")
	require.Len(t, logs.entries, 1)
	require.Equal(t, "token_refresh", logs.entries[0].Action)
	require.Equal(t, models.LogError, logs.entries[0].Status)
}

func TestAccessTokenFallsBackToClientCredentials(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)
	ts.fail["refresh_token"] = true

	repo := newFakeIntegrations(&models.Integration{
		ID:           1,
		RefreshToken: seal(t, cipher, "revoked-refresh"),
	})

	m := tokens.NewManager(repo, &fakeSyncLogs{}, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	token, err := m.AccessToken(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "granted-client_credentials", token)
	require.Equal(t, []string{"refresh_token", "client_credentials"}, ts.seen())
}

func TestAccessTokenReauthWhenAllGrantsFail(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)
	ts.fail["refresh_token"] = true
	ts.fail["client_credentials"] = true

	repo := newFakeIntegrations(&models.Integration{
		ID:           1,
		RefreshToken: seal(t, cipher, "revoked-refresh"),
	})

	logs := &fakeSyncLogs{}
	m := tokens.NewManager(repo, logs, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	_, err := m.AccessToken(context.Background(), 1)
	require.ErrorIs(t, err, tokens.ErrReauthRequired)
	require.Len(t, logs.entries, 1)
}

func TestForceRefreshSkipsCacheAndStoredToken(t *testing.T) {
	cipher := newTestCipher(t)
	ts := newTokenServer(t)

	repo := newFakeIntegrations(&models.Integration{
		ID:             1,
		AccessToken:    seal(t, cipher, "rejected-by-marketplace"),
		RefreshToken:   seal(t, cipher, "stored-refresh"),
		TokenExpiresAt: time.Now().Add(time.Hour),
	})

	m := tokens.NewManager(repo, &fakeSyncLogs{}, cipher, testCreds, avito.Endpoint(ts.srv.URL))

	token, err := m.AccessToken(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "rejected-by-marketplace", token)

	token, err = m.ForceRefresh(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "granted-refresh_token", token)
	require.Equal(t, []string{"refresh_token"}, ts.seen())
}
