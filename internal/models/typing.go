package models

import "time"

// TypingFreshness is how long a typing indicator counts as live after its
// last update. Stale entries are filtered at read time; a client that
// crashed without sending a stop simply ages out.
const TypingFreshness = 3000 * time.Millisecond

// TypingIndicator is the ephemeral per-(conversation, user) typing state.
type TypingIndicator struct {
	ConversationID int       `json:"conversation_id"`
	UserID         int       `json:"user_id"`
	IsTyping       bool      `json:"is_typing"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Live reports whether the indicator still counts as typing at the given time.
func (t TypingIndicator) Live(now time.Time) bool {
	return t.IsTyping && now.Sub(t.UpdatedAt) < TypingFreshness
}
