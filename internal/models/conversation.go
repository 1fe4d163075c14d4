package models

import (
	"database/sql"
	"time"
)

// Conversation is a direct (two-member) or group chat.
type Conversation struct {
	ID            int            `db:"id" json:"id"`
	IsGroup       bool           `db:"is_group" json:"is_group"`
	Name          sql.NullString `db:"name" json:"-"`
	DirectKey     sql.NullString `db:"direct_key" json:"-"`
	LastMessageID sql.NullInt64  `db:"last_message_id" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// Membership binds a user to a conversation and carries their unread counter.
type Membership struct {
	ConversationID int `db:"conversation_id" json:"conversation_id"`
	UserID         int `db:"user_id" json:"user_id"`
	UnreadCount    int `db:"unread_count" json:"unread_count"`
}
