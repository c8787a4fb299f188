package sqlite

import (
	"context"

	driver "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// Store is the embedded database used when no postgres DSN is configured.
// Single-process only; the poller and web surface share one handle.
type Store struct {
	db *gorm.DB

	Integrations *IntegrationRepository
	Properties   *PropertyRepository
	Bookings     *BookingRepository
	Rates        *RateRepository
	Queue        *SyncQueueRepository
	SyncLogs     *SyncLogRepository
	Chats        *ChatRepository
}

func New(path string) (*Store, error) {
	db, err := gorm.Open(driver.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	s := Store{
		db:           db,
		Integrations: &IntegrationRepository{db: db},
		Properties:   &PropertyRepository{db: db},
		Bookings:     &BookingRepository{db: db},
		Rates:        &RateRepository{db: db},
		Queue:        &SyncQueueRepository{db: db},
		SyncLogs:     &SyncLogRepository{db: db},
		Chats:        &ChatRepository{db: db},
	}

	return &s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}

	return db.Close()
}

func (s *Store) AutoMigrate(_ context.Context) error {
	dbos := []any{
		&property{},
		&integration{},
		&booking{},
		&propertyRate{},
		&syncQueueItem{},
		&syncLog{},
		&chat{},
		&chatMessage{},
	}

	return s.db.AutoMigrate(dbos...)
}
