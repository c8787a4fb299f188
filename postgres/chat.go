package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/models"
)

var _ models.ChatRepository = (*ChatRepository)(nil)

type ChatRepository struct {
	db *sql.DB
}

func NewChatRepository(db *sql.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// UpsertChat writes a chat keyed by (platform, remote_chat_id). Fields the
// event did not carry keep their stored value; last_message_at only moves
// forward.
func (r *ChatRepository) UpsertChat(ctx context.Context, chat *models.Chat) error {
	q := `INSERT INTO chats (property_id, platform, remote_chat_id, subject, last_message_at, created_at, updated_at)
		VALUES (NULLIF($1, 0::bigint), $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (platform, remote_chat_id) DO UPDATE SET
			property_id = COALESCE(EXCLUDED.property_id, chats.property_id),
			subject = CASE WHEN EXCLUDED.subject = '' THEN chats.subject ELSE EXCLUDED.subject END,
			last_message_at = GREATEST(chats.last_message_at, EXCLUDED.last_message_at),
			updated_at = NOW()
		RETURNING id`

	var lastMessageAt sql.NullTime
	if chat.LastMessageAt != nil {
		lastMessageAt = sql.NullTime{Time: *chat.LastMessageAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, q,
		chat.PropertyID, chat.Platform, chat.RemoteChatID, chat.Subject, lastMessageAt,
	).Scan(&chat.ID)
	if err != nil {
		return fmt.Errorf("upsert chat %s/%s: %w", chat.Platform, chat.RemoteChatID, err)
	}

	return nil
}

// InsertMessage stores a message once; redelivered webhooks are no-ops.
func (r *ChatRepository) InsertMessage(ctx context.Context, msg *models.ChatMessage) (bool, error) {
	q := `INSERT INTO chat_messages
		(platform, remote_chat_id, remote_message_id, author_id, text, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (platform, remote_message_id) DO NOTHING
		RETURNING id`

	var sentAt sql.NullTime
	if !msg.SentAt.IsZero() {
		sentAt = sql.NullTime{Time: msg.SentAt, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, q,
		msg.Platform, msg.RemoteChatID, msg.RemoteMessageID, msg.AuthorID, msg.Text, sentAt,
	).Scan(&msg.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}

		return false, fmt.Errorf("insert chat message %s/%s: %w", msg.Platform, msg.RemoteMessageID, err)
	}

	return true, nil
}
