package sqlite

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.ChatRepository = (*ChatRepository)(nil)

type ChatRepository struct {
	db *gorm.DB
}

func (r *ChatRepository) UpsertChat(ctx context.Context, m *models.Chat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing chat

		err := tx.Where("platform = ? AND remote_chat_id = ?", m.Platform, m.RemoteChatID).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			dbo := chat{
				Platform:      m.Platform,
				RemoteChatID:  m.RemoteChatID,
				Subject:       m.Subject,
				LastMessageAt: m.LastMessageAt,
			}
			if m.PropertyID != 0 {
				dbo.PropertyID = &m.PropertyID
			}

			if err := tx.Create(&dbo).Error; err != nil {
				return err
			}

			m.ID = dbo.ID

			return nil
		}

		if err != nil {
			return err
		}

		if m.PropertyID != 0 {
			existing.PropertyID = &m.PropertyID
		}

		if m.Subject != "" {
			existing.Subject = m.Subject
		}

		if m.LastMessageAt != nil &&
			(existing.LastMessageAt == nil || m.LastMessageAt.After(*existing.LastMessageAt)) {
			existing.LastMessageAt = m.LastMessageAt
		}

		if err := tx.Save(&existing).Error; err != nil {
			return err
		}

		m.ID = existing.ID

		return nil
	})
}

func (r *ChatRepository) InsertMessage(ctx context.Context, m *models.ChatMessage) (bool, error) {
	var created bool

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing chatMessage

		err := tx.Where("platform = ? AND remote_message_id = ?", m.Platform, m.RemoteMessageID).
			First(&existing).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			dbo := chatMessage{
				Platform:        m.Platform,
				RemoteChatID:    m.RemoteChatID,
				RemoteMessageID: m.RemoteMessageID,
				AuthorID:        m.AuthorID,
				Text:            m.Text,
				SentAt:          m.SentAt,
			}

			if err := tx.Create(&dbo).Error; err != nil {
				return err
			}

			m.ID = dbo.ID
			created = true

			return nil
		case err != nil:
			return err
		default:
			m.ID = existing.ID

			return nil
		}
	})
	if err != nil {
		return false, err
	}

	return created, nil
}
