// Package web is the HTTP surface: marketplace webhooks, the OAuth
// callback, the calendar feed and a small authenticated API.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/web/auth"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/web/middleware"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/webhooks"
)

// SyncRunner runs one integration sync inline.
type SyncRunner interface {
	Sync(ctx context.Context, integrationID int64, opts syncer.Options) *syncer.Result
}

// Enqueuer hands a sync off to the task queue instead of running it in the
// request. Optional; without it manual triggers run inline.
type Enqueuer interface {
	EnqueueSync(ctx context.Context, integrationID int64) error
}

// Services are the collaborators the handlers call into.
type Services struct {
	OAuth        OAuthService
	Webhooks     WebhookIngester
	Calendar     CalendarFeed
	Integrations models.IntegrationRepository
	Engine       SyncRunner
	Enqueuer     Enqueuer
}

// OAuthService is the slice of the oauth package the callback route needs.
type OAuthService interface {
	HandleCallback(ctx context.Context, code, state, redirectURI string) (*models.Integration, error)
}

// WebhookIngester applies one marketplace event delivery.
type WebhookIngester interface {
	Ingest(ctx context.Context, header http.Header, body []byte) (webhooks.Disposition, error)
}

// CalendarFeed renders and probes per-property calendar documents.
type CalendarFeed interface {
	Feed(ctx context.Context, propertyID int64) (string, error)
	Exists(ctx context.Context, propertyID int64) (bool, error)
}

// Server serves the HTTP surface.
type Server struct {
	services Services
	srv      *http.Server
	logger   *zap.Logger
}

// New builds the server. An empty apiKey leaves the /api routes open;
// auth logs that loudly.
func New(services Services, addr, apiKey string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		services: services,
		logger:   logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/webhooks/avito", s.handleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/oauth/avito/callback", s.handleOAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/calendar/{propertyID:[0-9]+}.ics", s.handleCalendar).Methods(http.MethodGet, http.MethodHead)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(auth.BearerTokenMiddleware(apiKey, logger))
	api.HandleFunc("/integrations/{id}/sync", s.handleTriggerSync).Methods(http.MethodPost)
	api.HandleFunc("/integrations/{id}/status", s.handleIntegrationStatus).Methods(http.MethodGet)

	handler := middleware.Chain(r,
		middleware.RequestLogger(logger),
		middleware.Recover(logger),
		middleware.SecurityHeaders,
	)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	return s
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens until ctx is cancelled, then drains connections.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.srv.Addr))

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.srv.Shutdown(shutdownCtx)
}
