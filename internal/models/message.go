package models

import (
	"database/sql"
	"time"
)

// Message is a single conversation message. Deleted messages keep their row
// with empty content so ordering and reaction history survive.
type Message struct {
	ID             int           `db:"id" json:"id"`
	ConversationID int           `db:"conversation_id" json:"conversation_id"`
	SenderID       int           `db:"sender_id" json:"sender_id"`
	Content        string        `db:"content" json:"content"`
	IsDeleted      bool          `db:"is_deleted" json:"is_deleted"`
	IsEdited       bool          `db:"is_edited" json:"is_edited"`
	ReplyToID      sql.NullInt64 `db:"reply_to_id" json:"-"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
}

// Reaction is one (message, user, emoji) tuple. A user may hold several
// distinct emoji on a message but at most one of each.
type Reaction struct {
	MessageID int    `db:"message_id" json:"message_id"`
	UserID    int    `db:"user_id" json:"user_id"`
	Emoji     string `db:"emoji" json:"emoji"`
}

// ConversationEvent is broadcasted through websockets to conversation rooms.
type ConversationEvent struct {
	Type      string    `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
	Reaction  *Reaction `json:"reaction,omitempty"`
	UserID    int       `json:"user_id,omitempty"`
	IsTyping  bool      `json:"is_typing,omitempty"`
}
