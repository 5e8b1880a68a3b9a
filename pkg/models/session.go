package models

import "time"

// Session is a per-device login handle: an opaque UUID carried in an
// HTTP-only cookie, with sliding idle expiration.
type Session struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	UserID string `gorm:"not null;size:36;index" json:"user_id"`

	// Number is a small, per-user monotonic handle shown to the user instead
	// of the opaque UUID (e.g. "revoke session #3").
	Number int `gorm:"not null" json:"number"`

	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	LastUsedAt   time.Time `gorm:"not null" json:"last_used_at"`
	IdleDuration int64     `gorm:"not null" json:"idle_duration"` // seconds

	ClientInfo string `gorm:"size:255" json:"client_info,omitempty"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// Expired reports whether the session's sliding window has elapsed as of now.
func (s *Session) Expired(now time.Time) bool {
	return s.LastUsedAt.Add(time.Duration(s.IdleDuration) * time.Second).Before(now)
}
