package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Minute * 10)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Store bundles every repository over one connection pool.
type Store struct {
	Integrations *IntegrationRepository
	Properties   *PropertyRepository
	Bookings     *BookingRepository
	Rates        *RateRepository
	Queue        *SyncQueueRepository
	SyncLogs     *SyncLogRepository
	Chats        *ChatRepository
}

// NewStore builds repositories sharing db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		Integrations: NewIntegrationRepository(db),
		Properties:   NewPropertyRepository(db),
		Bookings:     NewBookingRepository(db),
		Rates:        NewRateRepository(db),
		Queue:        NewSyncQueueRepository(db),
		SyncLogs:     NewSyncLogRepository(db),
		Chats:        NewChatRepository(db),
	}
}
