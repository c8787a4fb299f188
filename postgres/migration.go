package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// MigrationRunner applies the .up.sql files under scripts/migrations with
// golang-migrate. Applied versions are tracked in schema_migrations.
type MigrationRunner struct {
	dsn           string
	migrationsDir string
	logger        *zap.Logger
	timeout       time.Duration
}

// MigrationOption configures a MigrationRunner.
type MigrationOption func(*MigrationRunner)

// WithMigrationsDir overrides the migrations directory.
func WithMigrationsDir(dir string) MigrationOption {
	return func(m *MigrationRunner) {
		m.migrationsDir = dir
	}
}

// WithMigrationLogger sets the logger.
func WithMigrationLogger(l *zap.Logger) MigrationOption {
	return func(m *MigrationRunner) {
		if l != nil {
			m.logger = l
		}
	}
}

func NewMigrationRunner(dsn string, opts ...MigrationOption) *MigrationRunner {
	m := &MigrationRunner{
		dsn:     dsn,
		logger:  zap.NewNop(),
		timeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run applies all pending migrations.
func (m *MigrationRunner) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	dir, err := m.findMigrationsDir()
	if err != nil {
		return fmt.Errorf("find migrations directory: %w", err)
	}

	m.logger.Info("running migrations", zap.String("dir", dir))

	migrator, cleanup, err := m.newMigrator(ctx, dir)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("schema up to date")

			return nil
		}

		return fmt.Errorf("apply migrations: %w", err)
	}

	m.logger.Info("migrations applied")

	return nil
}

func (m *MigrationRunner) newMigrator(ctx context.Context, dir string) (*migrate.Migrate, func(), error) {
	db, err := sql.Open("pgx", normalizeDSN(m.dsn))
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres for migrations: %w", err)
	}

	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, nil, fmt.Errorf("ping postgres for migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		_ = db.Close()

		return nil, nil, fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, nil, fmt.Errorf("create migrator: %w", err)
	}

	return migrator, func() { _ = db.Close() }, nil
}

func (m *MigrationRunner) findMigrationsDir() (string, error) {
	if m.migrationsDir != "" {
		abs, err := filepath.Abs(m.migrationsDir)
		if err != nil {
			return "", err
		}

		if _, err := os.Stat(abs); err != nil {
			return "", err
		}

		return abs, nil
	}

	candidates := []string{filepath.Join("scripts", "migrations")}

	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), "scripts", "migrations"))
	}

	for _, dir := range candidates {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}

		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			return abs, nil
		}
	}

	return "", fmt.Errorf("no migrations directory in %v", candidates)
}

func normalizeDSN(dsn string) string {
	if strings.Contains(dsn, "://") || strings.Contains(dsn, "=") {
		return dsn
	}

	return "postgres://" + dsn
}
