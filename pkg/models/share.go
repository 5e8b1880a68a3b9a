package models

import "time"

// ShareUser grants a specific user view or edit access to a file (and,
// transitively via the Authorization Engine's ancestor walk, its subtree).
// The key is rewrapped for the receiver's public key by the sharing client;
// the server stores it opaquely.
type ShareUser struct {
	FileID string `gorm:"primaryKey;size:36" json:"file_id"`
	UserID string `gorm:"primaryKey;size:36;index" json:"user_id"`

	EncryptedKey   string `gorm:"not null;type:text" json:"encrypted_key"`
	EditPermission bool   `gorm:"not null;default:false" json:"edit_permission"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ShareUser.
func (ShareUser) TableName() string {
	return "share_users"
}

// ShareLink grants anonymous or password-gated access to a file. Anonymous
// uploads auto-create a 24-hour, non-editing, passwordless link.
type ShareLink struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	FileID string `gorm:"not null;size:36;index" json:"file_id"`

	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	PasswordHash   *string    `gorm:"type:text" json:"-"`
	EditPermission bool       `gorm:"not null;default:false" json:"edit_permission"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ShareLink.
func (ShareLink) TableName() string {
	return "share_links"
}

// Expired reports whether the link's expiry has passed as of now. A link
// with no ExpiresAt never expires.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// RequiresPassword reports whether the link is password-gated.
func (l *ShareLink) RequiresPassword() bool {
	return l.PasswordHash != nil
}

// ShareResponse is the public projection of a ShareLink returned to owners.
type ShareResponse struct {
	ID             string     `json:"id"`
	FileID         string     `json:"file_id"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	HasPassword    bool       `json:"has_password"`
	EditPermission bool       `json:"edit_permission"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ToResponse projects a ShareLink to its public view.
func (l *ShareLink) ToResponse() ShareResponse {
	return ShareResponse{
		ID:             l.ID,
		FileID:         l.FileID,
		ExpiresAt:      l.ExpiresAt,
		HasPassword:    l.RequiresPassword(),
		EditPermission: l.EditPermission,
		CreatedAt:      l.CreatedAt,
	}
}
