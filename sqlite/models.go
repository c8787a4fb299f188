package sqlite

import (
	"time"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

type property struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	BasePrice float64   `gorm:"column:base_price;not null"`
	MinStay   int       `gorm:"column:min_stay;not null"`
	Currency  string    `gorm:"column:currency;not null"`
	IsActive  bool      `gorm:"column:is_active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (p *property) toModel() *models.Property {
	return &models.Property{
		ID:        p.ID,
		UserID:    p.UserID,
		Name:      p.Name,
		BasePrice: p.BasePrice,
		MinStay:   p.MinStay,
		Currency:  p.Currency,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type integration struct {
	ID                  int64      `gorm:"column:id;primaryKey"`
	PropertyID          int64      `gorm:"column:property_id;not null;index"`
	Platform            string     `gorm:"column:platform;not null"`
	RemoteAccountID     string     `gorm:"column:remote_account_id;not null"`
	RemoteListingID     string     `gorm:"column:remote_listing_id;not null;index"`
	AccessToken         []byte     `gorm:"column:access_token;type:blob"`
	RefreshToken        []byte     `gorm:"column:refresh_token;type:blob"`
	TokenExpiresAt      time.Time  `gorm:"column:token_expires_at"`
	Scope               string     `gorm:"column:scope;not null"`
	MarkupType          string     `gorm:"column:markup_type;not null"`
	MarkupValue         float64    `gorm:"column:markup_value;not null"`
	CancelUnpaid        bool       `gorm:"column:cancel_unpaid;not null"`
	IsActive            bool       `gorm:"column:is_active;not null"`
	IsEnabled           bool       `gorm:"column:is_enabled;not null"`
	SyncIntervalSeconds int        `gorm:"column:sync_interval_seconds;not null"`
	LastSyncAt          *time.Time `gorm:"column:last_sync_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;not null"`
}

func (i *integration) toModel() *models.Integration {
	return &models.Integration{
		ID:                  i.ID,
		PropertyID:          i.PropertyID,
		Platform:            i.Platform,
		RemoteAccountID:     i.RemoteAccountID,
		RemoteListingID:     i.RemoteListingID,
		AccessToken:         i.AccessToken,
		RefreshToken:        i.RefreshToken,
		TokenExpiresAt:      i.TokenExpiresAt,
		Scope:               i.Scope,
		MarkupType:          i.MarkupType,
		MarkupValue:         i.MarkupValue,
		CancelUnpaid:        i.CancelUnpaid,
		IsActive:            i.IsActive,
		IsEnabled:           i.IsEnabled,
		SyncIntervalSeconds: i.SyncIntervalSeconds,
		LastSyncAt:          i.LastSyncAt,
		CreatedAt:           i.CreatedAt,
		UpdatedAt:           i.UpdatedAt,
	}
}

func integrationFromModel(m *models.Integration) integration {
	return integration{
		ID:                  m.ID,
		PropertyID:          m.PropertyID,
		Platform:            m.Platform,
		RemoteAccountID:     m.RemoteAccountID,
		RemoteListingID:     m.RemoteListingID,
		AccessToken:         m.AccessToken,
		RefreshToken:        m.RefreshToken,
		TokenExpiresAt:      m.TokenExpiresAt,
		Scope:               m.Scope,
		MarkupType:          m.MarkupType,
		MarkupValue:         m.MarkupValue,
		CancelUnpaid:        m.CancelUnpaid,
		IsActive:            m.IsActive,
		IsEnabled:           m.IsEnabled,
		SyncIntervalSeconds: m.SyncIntervalSeconds,
		LastSyncAt:          m.LastSyncAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// booking stores platform/remote_id as pointers so local bookings carry
// NULLs and never collide on the marketplace unique pair.
type booking struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	PropertyID int64     `gorm:"column:property_id;not null;index"`
	Platform   *string   `gorm:"column:platform;index:bookings_remote,unique"`
	RemoteID   *string   `gorm:"column:remote_id;index:bookings_remote,unique"`
	CheckIn    time.Time `gorm:"column:check_in;not null"`
	CheckOut   time.Time `gorm:"column:check_out;not null"`
	GuestName  string    `gorm:"column:guest_name;not null"`
	GuestPhone string    `gorm:"column:guest_phone;not null"`
	GuestEmail string    `gorm:"column:guest_email;not null"`
	Status     string    `gorm:"column:status;not null"`
	Source     string    `gorm:"column:source;not null"`
	TotalPrice float64   `gorm:"column:total_price;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (b *booking) toModel() *models.Booking {
	return &models.Booking{
		ID:         b.ID,
		PropertyID: b.PropertyID,
		Platform:   strDeref(b.Platform),
		RemoteID:   strDeref(b.RemoteID),
		CheckIn:    b.CheckIn,
		CheckOut:   b.CheckOut,
		GuestName:  b.GuestName,
		GuestPhone: b.GuestPhone,
		GuestEmail: b.GuestEmail,
		Status:     b.Status,
		Source:     b.Source,
		TotalPrice: b.TotalPrice,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func bookingFromModel(m *models.Booking) booking {
	return booking{
		ID:         m.ID,
		PropertyID: m.PropertyID,
		Platform:   strPtr(m.Platform),
		RemoteID:   strPtr(m.RemoteID),
		CheckIn:    m.CheckIn,
		CheckOut:   m.CheckOut,
		GuestName:  m.GuestName,
		GuestPhone: m.GuestPhone,
		GuestEmail: m.GuestEmail,
		Status:     m.Status,
		Source:     m.Source,
		TotalPrice: m.TotalPrice,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

type propertyRate struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	PropertyID int64     `gorm:"column:property_id;not null;index:rates_property_date,unique"`
	Date       time.Time `gorm:"column:date;not null;index:rates_property_date,unique"`
	Price      float64   `gorm:"column:price;not null"`
	MinStay    int       `gorm:"column:min_stay;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (r *propertyRate) toModel() models.PropertyRate {
	return models.PropertyRate{
		ID:         r.ID,
		PropertyID: r.PropertyID,
		Date:       r.Date,
		Price:      r.Price,
		MinStay:    r.MinStay,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type syncQueueItem struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	IntegrationID int64     `gorm:"column:integration_id;not null;uniqueIndex"`
	Status        string    `gorm:"column:status;not null;index:sync_queue_due"`
	NextSyncAt    time.Time `gorm:"column:next_sync_at;not null;index:sync_queue_due"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (syncQueueItem) TableName() string { return "sync_queue" }

func (i *syncQueueItem) toModel() models.SyncQueueItem {
	return models.SyncQueueItem{
		ID:            i.ID,
		IntegrationID: i.IntegrationID,
		Status:        i.Status,
		NextSyncAt:    i.NextSyncAt,
		CreatedAt:     i.CreatedAt,
		UpdatedAt:     i.UpdatedAt,
	}
}

type syncLog struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	IntegrationID int64     `gorm:"column:integration_id;not null;index"`
	RunID         string    `gorm:"column:run_id;not null"`
	Action        string    `gorm:"column:action;not null"`
	Status        string    `gorm:"column:status;not null"`
	Detail        string    `gorm:"column:detail;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

func (l *syncLog) toModel() models.SyncLog {
	return models.SyncLog{
		ID:            l.ID,
		IntegrationID: l.IntegrationID,
		RunID:         l.RunID,
		Action:        l.Action,
		Status:        l.Status,
		Detail:        l.Detail,
		CreatedAt:     l.CreatedAt,
	}
}

type chat struct {
	ID            int64      `gorm:"column:id;primaryKey"`
	PropertyID    *int64     `gorm:"column:property_id"`
	Platform      string     `gorm:"column:platform;not null;index:chats_remote,unique"`
	RemoteChatID  string     `gorm:"column:remote_chat_id;not null;index:chats_remote,unique"`
	Subject       string     `gorm:"column:subject;not null"`
	LastMessageAt *time.Time `gorm:"column:last_message_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;not null"`
}

type chatMessage struct {
	ID              int64     `gorm:"column:id;primaryKey"`
	Platform        string    `gorm:"column:platform;not null;index:messages_remote,unique"`
	RemoteChatID    string    `gorm:"column:remote_chat_id;not null"`
	RemoteMessageID string    `gorm:"column:remote_message_id;not null;index:messages_remote,unique"`
	AuthorID        string    `gorm:"column:author_id;not null"`
	Text            string    `gorm:"column:text;not null"`
	SentAt          time.Time `gorm:"column:sent_at"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func strDeref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
