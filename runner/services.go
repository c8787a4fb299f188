package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/avito"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/ical"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/oauth"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/encryption"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/poller"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/postgres"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/sqlite"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/syncer"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/tokens"
	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/webhooks"
)

// Services is the wired object graph every run mode starts from. Which
// store backs it depends on the configuration: postgres behind a DSN,
// embedded sqlite otherwise.
type Services struct {
	Stores   syncer.Stores
	Queue    models.SyncQueueRepository
	Chats    models.ChatRepository
	Cipher   *encryption.Cipher
	Tokens   *tokens.Manager
	Avito    *avito.Client
	Engine   *syncer.Engine
	Poller   *poller.Poller
	OAuth    *oauth.Service
	Webhooks *webhooks.Ingester
	Calendar *ical.Generator

	closers []func() error
}

// ServicesOption adjusts the wiring before construction.
type ServicesOption func(*servicesConfig)

type servicesConfig struct {
	enqueuer   webhooks.Enqueuer
	tokenCache tokens.Cache
}

// WithEnqueuer makes webhook booking events schedule an immediate sync on
// the task queue.
func WithEnqueuer(e webhooks.Enqueuer) ServicesOption {
	return func(c *servicesConfig) {
		c.enqueuer = e
	}
}

// WithTokenCache replaces the default in-process token cache.
func WithTokenCache(cache tokens.Cache) ServicesOption {
	return func(c *servicesConfig) {
		c.tokenCache = cache
	}
}

// BuildServices opens the store, runs migrations where the store has them,
// and wires the sync engine with its collaborators.
func BuildServices(ctx context.Context, cfg *Config, logger *zap.Logger, opts ...ServicesOption) (*Services, error) {
	var sc servicesConfig
	for _, opt := range opts {
		opt(&sc)
	}

	if cfg.AvitoClientID == "" || cfg.AvitoClientSecret == "" {
		return nil, fmt.Errorf("AVITO_CLIENT_ID and AVITO_CLIENT_SECRET must be set")
	}

	cipher, err := encryption.NewFromEnv()
	if err != nil {
		return nil, err
	}

	svc := &Services{Cipher: cipher}

	if cfg.Dsn != "" {
		if err := postgres.NewMigrationRunner(cfg.Dsn, postgres.WithMigrationLogger(logger)).Run(); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}

		db, err := postgres.Open(ctx, cfg.Dsn)
		if err != nil {
			return nil, err
		}

		store := postgres.NewStore(db)
		svc.Stores = syncer.Stores{
			Integrations: store.Integrations,
			Properties:   store.Properties,
			Rates:        store.Rates,
			Bookings:     store.Bookings,
			SyncLogs:     store.SyncLogs,
		}
		svc.Queue = store.Queue
		svc.Chats = store.Chats
		svc.closers = append(svc.closers, db.Close)
	} else {
		if err := os.MkdirAll(cfg.DataFolder, 0o755); err != nil {
			return nil, fmt.Errorf("create data folder: %w", err)
		}

		store, err := sqlite.New(filepath.Join(cfg.DataFolder, "cmbolt.db"))
		if err != nil {
			return nil, err
		}

		if err := store.AutoMigrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}

		svc.Stores = syncer.Stores{
			Integrations: store.Integrations,
			Properties:   store.Properties,
			Rates:        store.Rates,
			Bookings:     store.Bookings,
			SyncLogs:     store.SyncLogs,
		}
		svc.Queue = store.Queue
		svc.Chats = store.Chats
		svc.closers = append(svc.closers, store.Close)
	}

	svc.Avito = avito.NewClient(cfg.AvitoBaseURL, avito.WithLogger(logger))

	creds := tokens.Credentials{
		ClientID:     cfg.AvitoClientID,
		ClientSecret: cfg.AvitoClientSecret,
	}

	managerOpts := []tokens.ManagerOption{tokens.WithLogger(logger)}
	if sc.tokenCache != nil {
		managerOpts = append(managerOpts, tokens.WithCache(sc.tokenCache))
	}

	svc.Tokens = tokens.NewManager(
		svc.Stores.Integrations,
		svc.Stores.SyncLogs,
		cipher,
		creds,
		avito.Endpoint(cfg.AvitoBaseURL),
		managerOpts...,
	)

	svc.Engine = syncer.New(svc.Avito, svc.Tokens, svc.Stores, logger)

	svc.Poller = poller.New(svc.Queue, svc.Stores.Integrations, svc.Engine,
		poller.WithLogger(logger),
		poller.WithTelemetry(Telemetry()),
	)

	svc.OAuth = oauth.New(
		svc.Stores.Integrations,
		svc.Stores.Properties,
		svc.Queue,
		cipher,
		&oauth2.Config{
			ClientID:     cfg.AvitoClientID,
			ClientSecret: cfg.AvitoClientSecret,
			Endpoint:     avito.Endpoint(cfg.AvitoBaseURL),
			RedirectURL:  cfg.OAuthRedirectURL,
		},
		oauth.WithLogger(logger),
	)

	webhookOpts := []webhooks.Option{webhooks.WithLogger(logger)}
	if sc.enqueuer != nil {
		webhookOpts = append(webhookOpts, webhooks.WithEnqueuer(sc.enqueuer))
	}

	svc.Webhooks = webhooks.New(
		models.PlatformAvito,
		svc.Stores.Integrations,
		svc.Stores.Bookings,
		svc.Chats,
		webhookOpts...,
	)

	svc.Calendar = ical.New(svc.Stores.Properties, svc.Stores.Bookings, ical.WithLogger(logger))

	return svc, nil
}

// Close releases the store connections.
func (s *Services) Close() error {
	var first error

	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && first == nil {
			first = err
		}
	}

	return first
}
