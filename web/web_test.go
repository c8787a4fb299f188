package web_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/oauth"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/web"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/webhooks"
)

type fakeIntegrations struct {
	byID map[int64]*models.Integration
}

func (f *fakeIntegrations) Get(_ context.Context, id int64) (*models.Integration, error) {
	integration, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	copied := *integration

	return &copied, nil
}

func (f *fakeIntegrations) GetByListing(context.Context, string, string) (*models.Integration, error) {
	return nil, models.ErrNotFound
}

func (f *fakeIntegrations) ActiveByUser(context.Context, int64, string) ([]*models.Integration, error) {
	return nil, nil
}

func (f *fakeIntegrations) Save(context.Context, *models.Integration) error { return nil }

func (f *fakeIntegrations) UpdateTokens(context.Context, int64, []byte, []byte, time.Time, string) error {
	return nil
}

func (f *fakeIntegrations) TouchLastSync(context.Context, int64, time.Time) error { return nil }

type fakeOAuth struct {
	integration *models.Integration
	err         error
}

func (f *fakeOAuth) HandleCallback(context.Context, string, string, string) (*models.Integration, error) {
	return f.integration, f.err
}

type fakeIngester struct {
	disposition webhooks.Disposition
	err         error
	gotBody     []byte
}

func (f *fakeIngester) Ingest(_ context.Context, _ http.Header, body []byte) (webhooks.Disposition, error) {
	f.gotBody = body

	return f.disposition, f.err
}

type fakeCalendar struct {
	feed   string
	exists bool
	err    error
}

func (f *fakeCalendar) Feed(context.Context, int64) (string, error) {
	if f.err != nil {
		return "", f.err
	}

	return f.feed, nil
}

func (f *fakeCalendar) Exists(context.Context, int64) (bool, error) { return f.exists, f.err }

type fakeEngine struct {
	result *syncer.Result
	calls  int
}

func (f *fakeEngine) Sync(_ context.Context, integrationID int64, _ syncer.Options) *syncer.Result {
	f.calls++

	if f.result != nil {
		return f.result
	}

	return &syncer.Result{RunID: "run-1", IntegrationID: integrationID}
}

type fakeEnqueuer struct {
	enqueued []int64
	err      error
}

func (f *fakeEnqueuer) EnqueueSync(_ context.Context, integrationID int64) error {
	if f.err != nil {
		return f.err
	}

	f.enqueued = append(f.enqueued, integrationID)

	return nil
}

func activeIntegration(id int64) *models.Integration {
	return &models.Integration{
		ID:           id,
		PropertyID:   7,
		Platform:     models.PlatformAvito,
		RefreshToken: []byte("ciphertext"),
		IsActive:     true,
		IsEnabled:    true,
	}
}

func newServer(t *testing.T, services web.Services, apiKey string) http.Handler {
	t.Helper()

	if services.Integrations == nil {
		services.Integrations = &fakeIntegrations{byID: map[int64]*models.Integration{}}
	}

	return web.New(services, ":0", apiKey, zap.NewNop()).Handler()
}

func TestHealth(t *testing.T) {
	h := newServer(t, web.Services{}, "")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestWebhook(t *testing.T) {
	t.Run("applied event", func(t *testing.T) {
		ingester := &fakeIngester{disposition: webhooks.Applied}
		h := newServer(t, web.Services{Webhooks: ingester}, "")

		body := `{"event":"booking.created"}`
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/avito", strings.NewReader(body)))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"applied"}`, rec.Body.String())
		assert.Equal(t, body, string(ingester.gotBody))
	})

	t.Run("bad payload answers 400", func(t *testing.T) {
		ingester := &fakeIngester{err: webhooks.ErrBadPayload}
		h := newServer(t, web.Services{Webhooks: ingester}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/avito", strings.NewReader("{42")))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get is not routed", func(t *testing.T) {
		h := newServer(t, web.Services{Webhooks: &fakeIngester{}}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhooks/avito", nil))

		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestOAuthCallback(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		svc := &fakeOAuth{integration: activeIntegration(3)}
		h := newServer(t, web.Services{OAuth: svc}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/avito/callback?code=abc&state=xyz", nil))

		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "connected", body["status"])
		assert.EqualValues(t, 3, body["integration_id"])
	})

	t.Run("missing code", func(t *testing.T) {
		h := newServer(t, web.Services{OAuth: &fakeOAuth{}}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/avito/callback?state=xyz", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("consent declined", func(t *testing.T) {
		h := newServer(t, web.Services{OAuth: &fakeOAuth{}}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/avito/callback?error=access_denied", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "access_denied")
	})

	t.Run("reason codes map to statuses", func(t *testing.T) {
		tests := []struct {
			reason string
			status int
		}{
			{oauth.ReasonInvalidState, http.StatusBadRequest},
			{oauth.ReasonInvalidCode, http.StatusBadRequest},
			{oauth.ReasonScopeMissing, http.StatusForbidden},
			{oauth.ReasonNoIntegration, http.StatusNotFound},
		}

		for _, tt := range tests {
			t.Run(tt.reason, func(t *testing.T) {
				svc := &fakeOAuth{err: &oauth.CallbackError{Reason: tt.reason}}
				h := newServer(t, web.Services{OAuth: svc}, "")

				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/avito/callback?code=abc", nil))

				require.Equal(t, tt.status, rec.Code)
				assert.Contains(t, rec.Body.String(), tt.reason)
			})
		}
	})
}

func TestCalendar(t *testing.T) {
	t.Run("get serves the document", func(t *testing.T) {
		cal := &fakeCalendar{feed: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", exists: true}
		h := newServer(t, web.Services{Calendar: cal}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calendar/7.ics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, cal.feed, rec.Body.String())
	})

	t.Run("head checks existence without a body", func(t *testing.T) {
		cal := &fakeCalendar{exists: true}
		h := newServer(t, web.Services{Calendar: cal}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/calendar/7.ics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})

	t.Run("head on unknown property is 404", func(t *testing.T) {
		h := newServer(t, web.Services{Calendar: &fakeCalendar{exists: false}}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/calendar/9.ics", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unknown property is 404", func(t *testing.T) {
		h := newServer(t, web.Services{Calendar: &fakeCalendar{err: models.ErrNotFound}}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/calendar/9.ics", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestBearerAuth(t *testing.T) {
	integrations := &fakeIntegrations{byID: map[int64]*models.Integration{4: activeIntegration(4)}}

	t.Run("missing token", func(t *testing.T) {
		h := newServer(t, web.Services{Integrations: integrations}, "sekret")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/integrations/4/status", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		h := newServer(t, web.Services{Integrations: integrations}, "sekret")

		req := httptest.NewRequest(http.MethodGet, "/api/integrations/4/status", nil)
		req.Header.Set("Authorization", "Bearer nope")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		h := newServer(t, web.Services{Integrations: integrations}, "sekret")

		req := httptest.NewRequest(http.MethodGet, "/api/integrations/4/status", nil)
		req.Header.Set("Authorization", "Bearer sekret")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("no key configured leaves api open", func(t *testing.T) {
		h := newServer(t, web.Services{Integrations: integrations}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/integrations/4/status", nil))

		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestIntegrationStatus(t *testing.T) {
	connected := activeIntegration(4)
	lastSync := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	connected.LastSyncAt = &lastSync

	needsReauth := activeIntegration(5)
	needsReauth.RefreshToken = nil

	integrations := &fakeIntegrations{byID: map[int64]*models.Integration{
		4: connected,
		5: needsReauth,
	}}

	get := func(t *testing.T, path string) (int, map[string]any) {
		t.Helper()

		h := newServer(t, web.Services{Integrations: integrations}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		var body map[string]any
		if rec.Body.Len() > 0 {
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		}

		return rec.Code, body
	}

	t.Run("connected", func(t *testing.T) {
		code, body := get(t, "/api/integrations/4/status")

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["connected"])
		assert.Equal(t, false, body["needs_reconnect"])
		assert.NotEmpty(t, body["last_sync_at"])
	})

	t.Run("missing refresh token needs reconnect", func(t *testing.T) {
		code, body := get(t, "/api/integrations/5/status")

		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, false, body["connected"])
		assert.Equal(t, true, body["needs_reconnect"])
	})

	t.Run("unknown id", func(t *testing.T) {
		code, _ := get(t, "/api/integrations/999/status")
		require.Equal(t, http.StatusNotFound, code)
	})
}

func TestTriggerSync(t *testing.T) {
	integrations := &fakeIntegrations{byID: map[int64]*models.Integration{4: activeIntegration(4)}}

	t.Run("inline run without queue", func(t *testing.T) {
		engine := &fakeEngine{}
		h := newServer(t, web.Services{Integrations: integrations, Engine: engine}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/integrations/4/sync", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, engine.calls)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
	})

	t.Run("enqueued when a queue is wired", func(t *testing.T) {
		engine := &fakeEngine{}
		enqueuer := &fakeEnqueuer{}
		h := newServer(t, web.Services{Integrations: integrations, Engine: engine, Enqueuer: enqueuer}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/integrations/4/sync", nil))

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, []int64{4}, enqueuer.enqueued)
		assert.Zero(t, engine.calls, "inline engine must not run when the queue took the job")
	})

	t.Run("unknown integration", func(t *testing.T) {
		h := newServer(t, web.Services{Integrations: integrations, Engine: &fakeEngine{}}, "")

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/integrations/999/sync", nil))

		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}
