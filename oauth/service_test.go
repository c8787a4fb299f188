package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	oauth2lib "golang.org/x/oauth2"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/oauth"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
)

type fakeIntegrations struct {
	rows   map[int64]*models.Integration
	active []*models.Integration
	saved  *models.Integration
}

func (f *fakeIntegrations) Get(_ context.Context, id int64) (*models.Integration, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	cp := *row

	return &cp, nil
}

func (f *fakeIntegrations) GetByListing(context.Context, string, string) (*models.Integration, error) {
	return nil, models.ErrNotFound
}

func (f *fakeIntegrations) ActiveByUser(_ context.Context, userID int64, platform string) ([]*models.Integration, error) {
	var out []*models.Integration

	for _, row := range f.active {
		if row.Platform == platform {
			cp := *row
			out = append(out, &cp)
		}
	}

	_ = userID

	return out, nil
}

func (f *fakeIntegrations) Save(_ context.Context, integration *models.Integration) error {
	cp := *integration
	f.saved = &cp

	return nil
}

func (f *fakeIntegrations) UpdateTokens(context.Context, int64, []byte, []byte, time.Time, string) error {
	return nil
}

func (f *fakeIntegrations) TouchLastSync(context.Context, int64, time.Time) error {
	return nil
}

type fakeProperties struct {
	rows map[int64]*models.Property
}

func (f *fakeProperties) Get(_ context.Context, id int64) (*models.Property, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	return row, nil
}

type fakeQueue struct {
	ensured []int64
}

func (f *fakeQueue) Ensure(_ context.Context, integrationID int64, _ time.Time) error {
	f.ensured = append(f.ensured, integrationID)

	return nil
}

func (f *fakeQueue) ClaimDue(context.Context, time.Time, int) ([]models.SyncQueueItem, error) {
	return nil, nil
}

func (f *fakeQueue) Reschedule(context.Context, int64, time.Time) error { return nil }
func (f *fakeQueue) Release(context.Context, []int64) error            { return nil }

// tokenResponse is what the fake marketplace token endpoint returns.
type tokenResponse struct {
	status int
	body   map[string]any
}

func grantOK(scope string, withRefresh bool) tokenResponse {
	body := map[string]any{
		"access_token": "access-fresh",
		"token_type":   "Bearer",
		"expires_in":   86400,
		"scope":        scope,
	}
	if withRefresh {
		body["refresh_token"] = "refresh-fresh"
	}

	return tokenResponse{status: http.StatusOK, body: body}
}

func grantError(code, description string) tokenResponse {
	return tokenResponse{
		status: http.StatusBadRequest,
		body:   map[string]any{"error": code, "error_description": description},
	}
}

type fixture struct {
	service      *oauth.Service
	integrations *fakeIntegrations
	queue        *fakeQueue
	cipher       *encryption.Cipher
	server       *httptest.Server
	tokenForm    url.Values
}

func newFixture(t *testing.T, resp tokenResponse) *fixture {
	t.Helper()

	f := &fixture{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.tokenForm = r.Form

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.status)
		_ = json.NewEncoder(w).Encode(resp.body)
	}))
	t.Cleanup(server.Close)

	cipher, err := encryption.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	oldRefresh, err := cipher.Encrypt("refresh-old")
	require.NoError(t, err)

	integrations := &fakeIntegrations{
		rows: map[int64]*models.Integration{
			1: {
				ID:           1,
				PropertyID:   10,
				Platform:     models.PlatformAvito,
				RefreshToken: oldRefresh,
			},
		},
	}

	properties := &fakeProperties{
		rows: map[int64]*models.Property{
			10: {ID: 10, UserID: 77},
		},
	}

	queue := &fakeQueue{}

	cfg := &oauth2lib.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     avito.Endpoint(server.URL),
		RedirectURL:  "https://app.example.com/oauth/avito/callback",
	}

	f.service = oauth.New(integrations, properties, queue, cipher, cfg)
	f.integrations = integrations
	f.queue = queue
	f.cipher = cipher
	f.server = server

	return f
}

func encodeState(t *testing.T, st oauth.State) string {
	t.Helper()

	encoded, err := st.Encode()
	require.NoError(t, err)

	return encoded
}

func TestStateRoundTrip(t *testing.T) {
	st := oauth.NewState(77, 1, 10, oauth.FlowMessenger)
	require.NotEmpty(t, st.Nonce)

	encoded, err := st.Encode()
	require.NoError(t, err)

	decoded, err := oauth.DecodeState(encoded)
	require.NoError(t, err)
	require.Equal(t, st, decoded)
}

func TestDecodeStatePlainJSON(t *testing.T) {
	raw := `{"integration_id":3,"user_id":42,"nonce":"n-1"}`

	decoded, err := oauth.DecodeState(raw)
	require.NoError(t, err)
	require.Equal(t, int64(3), decoded.IntegrationID)
	require.Equal(t, int64(42), decoded.UserID)
}

func TestDecodeStateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{
		"",
		"not json at all",
		`{"nonce":"missing user"}`,
		"eyJub25jZSI6Im5vIHVzZXIifQ==",
	} {
		_, err := oauth.DecodeState(raw)
		require.Error(t, err, "raw=%q", raw)
	}
}

func TestHandleCallbackConnects(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	state := encodeState(t, oauth.NewState(77, 1, 10, oauth.FlowConnect))

	integration, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.NoError(t, err)
	require.NotNil(t, integration)
	require.Equal(t, int64(1), integration.ID)

	require.Equal(t, "client-id", f.tokenForm.Get("client_id"))
	require.Equal(t, "good-code", f.tokenForm.Get("code"))

	saved := f.integrations.saved
	require.NotNil(t, saved)
	require.True(t, saved.IsActive)
	require.True(t, saved.IsEnabled)
	require.Equal(t, avito.ScopeShortTermRent, saved.Scope)
	require.WithinDuration(t, time.Now().Add(86400*time.Second), saved.TokenExpiresAt, time.Minute)

	access, err := f.cipher.Decrypt(saved.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "access-fresh", access)

	refresh, err := f.cipher.Decrypt(saved.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "refresh-fresh", refresh)

	require.Equal(t, []int64{1}, f.queue.ensured)
}

func TestHandleCallbackKeepsRefreshWhenNotRotated(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, false))
	state := encodeState(t, oauth.NewState(77, 1, 10, oauth.FlowConnect))

	_, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.NoError(t, err)

	refresh, err := f.cipher.Decrypt(f.integrations.saved.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "refresh-old", refresh)
}

func TestHandleCallbackInvalidState(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))

	_, err := f.service.HandleCallback(context.Background(), "good-code", "###", "")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonInvalidState, oauth.ReasonOf(err))
	require.Nil(t, f.integrations.saved)
}

func TestHandleCallbackInvalidCode(t *testing.T) {
	f := newFixture(t, grantError("invalid_grant", "authorization code expired"))
	state := encodeState(t, oauth.NewState(77, 1, 10, oauth.FlowConnect))

	_, err := f.service.HandleCallback(context.Background(), "stale-code", state, "")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonInvalidCode, oauth.ReasonOf(err))
}

func TestHandleCallbackRedirectMismatch(t *testing.T) {
	f := newFixture(t, grantError("invalid_request", "redirect_uri does not match the registered value"))
	state := encodeState(t, oauth.NewState(77, 1, 10, oauth.FlowConnect))

	_, err := f.service.HandleCallback(context.Background(), "good-code", state, "https://elsewhere.example.com/cb")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonRedirectMismatch, oauth.ReasonOf(err))
	require.Equal(t, "https://elsewhere.example.com/cb", f.tokenForm.Get("redirect_uri"))
}

func TestHandleCallbackScopeMissing(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	state := encodeState(t, oauth.NewState(77, 1, 10, oauth.FlowMessenger))

	_, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonScopeMissing, oauth.ReasonOf(err))
	require.Nil(t, f.integrations.saved)
}

func TestHandleCallbackMessengerScopeGranted(t *testing.T) {
	scope := avito.ScopeShortTermRent + " " + avito.ScopeMessengerRead + " " + avito.ScopeMessengerWrite
	f := newFixture(t, grantOK(scope, true))
	state := encodeState(t, oauth.NewState(77, 1, 10, oauth.FlowMessenger))

	integration, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.NoError(t, err)
	require.Equal(t, scope, integration.Scope)
}

func TestHandleCallbackOwnershipMismatch(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	state := encodeState(t, oauth.NewState(999, 1, 10, oauth.FlowConnect))

	_, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonNoIntegration, oauth.ReasonOf(err))
	require.Nil(t, f.integrations.saved)
}

func TestHandleCallbackUnknownIntegration(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	state := encodeState(t, oauth.NewState(77, 404, 10, oauth.FlowConnect))

	_, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonNoIntegration, oauth.ReasonOf(err))
}

func TestHandleCallbackSingleActiveFallback(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	f.integrations.active = []*models.Integration{
		{ID: 8, PropertyID: 10, Platform: models.PlatformAvito},
	}

	state := encodeState(t, oauth.NewState(77, 0, 0, oauth.FlowConnect))

	integration, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.NoError(t, err)
	require.Equal(t, int64(8), integration.ID)
	require.Equal(t, []int64{8}, f.queue.ensured)
}

func TestHandleCallbackPropertyScopedState(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	f.integrations.active = []*models.Integration{
		{ID: 8, PropertyID: 10, Platform: models.PlatformAvito},
		{ID: 9, PropertyID: 20, Platform: models.PlatformAvito},
	}

	state := encodeState(t, oauth.NewState(77, 0, 10, oauth.FlowConnect))

	integration, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.NoError(t, err)
	require.Equal(t, int64(8), integration.ID)
	require.Equal(t, []int64{8}, f.queue.ensured)
}

func TestHandleCallbackPropertyScopedStateNoMatch(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
	f.integrations.active = []*models.Integration{
		{ID: 8, PropertyID: 10, Platform: models.PlatformAvito},
	}

	state := encodeState(t, oauth.NewState(77, 0, 30, oauth.FlowConnect))

	_, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
	require.Error(t, err)
	require.Equal(t, oauth.ReasonNoIntegration, oauth.ReasonOf(err))
	require.Nil(t, f.integrations.saved)
}

func TestHandleCallbackFallbackAmbiguity(t *testing.T) {
	tests := []struct {
		name   string
		active []*models.Integration
	}{
		{name: "none active", active: nil},
		{
			name: "several active",
			active: []*models.Integration{
				{ID: 8, Platform: models.PlatformAvito},
				{ID: 9, Platform: models.PlatformAvito},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))
			f.integrations.active = tc.active

			state := encodeState(t, oauth.NewState(77, 0, 0, oauth.FlowConnect))

			_, err := f.service.HandleCallback(context.Background(), "good-code", state, "")
			require.Error(t, err)
			require.Equal(t, oauth.ReasonNoIntegration, oauth.ReasonOf(err))
		})
	}
}

func TestAuthURLCarriesState(t *testing.T) {
	f := newFixture(t, grantOK(avito.ScopeShortTermRent, true))

	st := oauth.NewState(77, 1, 10, oauth.FlowConnect)
	rawURL, err := f.service.AuthURL(st)
	require.NoError(t, err)

	parsed, err := url.Parse(rawURL)
	require.NoError(t, err)

	encoded, err := st.Encode()
	require.NoError(t, err)
	require.Equal(t, encoded, parsed.Query().Get("state"))
	require.Equal(t, avito.ScopeShortTermRent, parsed.Query().Get("scope"))

	decoded, err := oauth.DecodeState(parsed.Query().Get("state"))
	require.NoError(t, err)
	require.Equal(t, st, decoded)
}
