package models

import "time"

// User is the durable profile record backing an identity-provider subject.
type User struct {
	ID              int       `db:"id" json:"id"`
	ExternalSubject string    `db:"external_subject" json:"-"`
	DisplayName     string    `db:"display_name" json:"display_name"`
	Email           string    `db:"email" json:"email"`
	AvatarURL       string    `db:"avatar_url" json:"avatar_url,omitempty"`
	IsOnline        bool      `db:"is_online" json:"is_online"`
	LastSeenAt      time.Time `db:"last_seen_at" json:"last_seen_at"`
}

// Identity is the narrow contract at the identity-provider boundary.
// Only these fields may cross into the data model.
type Identity struct {
	Subject     string
	DisplayName string
	Email       string
	AvatarURL   string
}
