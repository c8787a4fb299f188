package web

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/oauth"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/webhooks"
)

// maxWebhookBody caps event deliveries; marketplace payloads are small.
const maxWebhookBody = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")

		return
	}

	disposition, err := s.services.Webhooks.Ingest(r.Context(), r.Header, body)
	if err != nil {
		if errors.Is(err, webhooks.ErrBadPayload) {
			writeError(w, http.StatusBadRequest, "bad webhook payload")

			return
		}

		s.logger.Error("webhook ingestion failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingestion failed")

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": disposition.String()})
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errCode := q.Get("error"); errCode != "" {
		// The user declined on the consent screen; nothing to exchange.
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "authorization declined",
			"reason": errCode,
		})

		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")

		return
	}

	integration, err := s.services.OAuth.HandleCallback(r.Context(), code, q.Get("state"), q.Get("redirect_uri"))
	if err != nil {
		reason := oauth.ReasonOf(err)
		s.logger.Warn("oauth callback failed", zap.String("reason", reason), zap.Error(err))
		writeJSON(w, callbackStatus(reason), map[string]string{
			"error":  "connection failed",
			"reason": reason,
		})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "connected",
		"integration_id": integration.ID,
		"property_id":    integration.PropertyID,
	})
}

// callbackStatus maps callback reason codes to HTTP statuses. Unknown
// reasons are treated as server-side failures.
func callbackStatus(reason string) int {
	switch reason {
	case oauth.ReasonInvalidState, oauth.ReasonInvalidCode, oauth.ReasonRedirectMismatch:
		return http.StatusBadRequest
	case oauth.ReasonScopeMissing:
		return http.StatusForbidden
	case oauth.ReasonNoIntegration:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	propertyID, err := strconv.ParseInt(mux.Vars(r)["propertyID"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad property id")

		return
	}

	if r.Method == http.MethodHead {
		exists, err := s.services.Calendar.Exists(r.Context(), propertyID)
		if err != nil {
			s.logger.Error("calendar existence check failed", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		if !exists {
			w.WriteHeader(http.StatusNotFound)

			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.WriteHeader(http.StatusOK)

		return
	}

	feed, err := s.services.Calendar.Feed(r.Context(), propertyID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown property")

			return
		}

		s.logger.Error("calendar feed failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "feed generation failed")

		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(feed))
}

// syncResponse is the inline-run answer for a manual trigger.
type syncResponse struct {
	Success       bool             `json:"success"`
	RunID         string           `json:"run_id"`
	IntegrationID int64            `json:"integration_id"`
	Errors        []syncer.Step    `json:"errors"`
	Warnings      []syncer.Step    `json:"warnings"`
	Pull          syncer.PullStats `json:"pull"`
}

func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	integration, ok := s.loadIntegration(w, r)
	if !ok {
		return
	}

	if s.services.Enqueuer != nil {
		if err := s.services.Enqueuer.EnqueueSync(r.Context(), integration.ID); err != nil {
			s.logger.Error("manual sync enqueue failed", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "could not schedule sync")

			return
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":         "queued",
			"integration_id": integration.ID,
		})

		return
	}

	result := s.services.Engine.Sync(r.Context(), integration.ID, syncer.Options{})

	writeJSON(w, http.StatusOK, syncResponse{
		Success:       result.Success(),
		RunID:         result.RunID,
		IntegrationID: result.IntegrationID,
		Errors:        result.Errors(),
		Warnings:      result.Warnings(),
		Pull:          result.Pull,
	})
}

// statusResponse tells the frontend whether to show "connected" or the
// reconnect call-to-action.
type statusResponse struct {
	IntegrationID  int64      `json:"integration_id"`
	PropertyID     int64      `json:"property_id"`
	Platform       string     `json:"platform"`
	Connected      bool       `json:"connected"`
	NeedsReconnect bool       `json:"needs_reconnect"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	TokenExpiresAt time.Time  `json:"token_expires_at"`
}

func (s *Server) handleIntegrationStatus(w http.ResponseWriter, r *http.Request) {
	integration, ok := s.loadIntegration(w, r)
	if !ok {
		return
	}

	needsReconnect := !integration.IsActive || len(integration.RefreshToken) == 0

	writeJSON(w, http.StatusOK, statusResponse{
		IntegrationID:  integration.ID,
		PropertyID:     integration.PropertyID,
		Platform:       integration.Platform,
		Connected:      integration.IsActive && !needsReconnect,
		NeedsReconnect: needsReconnect,
		LastSyncAt:     integration.LastSyncAt,
		TokenExpiresAt: integration.TokenExpiresAt,
	})
}

func (s *Server) loadIntegration(w http.ResponseWriter, r *http.Request) (*models.Integration, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad integration id")

		return nil, false
	}

	integration, err := s.services.Integrations.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, http.StatusNotFound, "unknown integration")

			return nil, false
		}

		s.logger.Error("integration lookup failed", zap.Int64("integration_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "lookup failed")

		return nil, false
	}

	return integration, true
}
