package models

import (
	"context"
	"time"
)

// Chat is a marketplace conversation thread, fed by webhooks.
type Chat struct {
	ID            int64      `json:"id"`
	PropertyID    int64      `json:"property_id,omitempty"` // 0 when the listing could not be resolved
	Platform      string     `json:"platform"`
	RemoteChatID  string     `json:"remote_chat_id"`
	Subject       string     `json:"subject,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ChatMessage is one message in a chat, unique by (platform, remote message id).
type ChatMessage struct {
	ID              int64     `json:"id"`
	Platform        string    `json:"platform"`
	RemoteChatID    string    `json:"remote_chat_id"`
	RemoteMessageID string    `json:"remote_message_id"`
	AuthorID        string    `json:"author_id,omitempty"`
	Text            string    `json:"text"`
	SentAt          time.Time `json:"sent_at"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChatRepository stores webhook-delivered chats and messages
type ChatRepository interface {
	UpsertChat(ctx context.Context, chat *Chat) error
	// InsertMessage reports created=false for a message already stored.
	InsertMessage(ctx context.Context, msg *ChatMessage) (created bool, err error)
}
