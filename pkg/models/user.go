package models

import "time"

// RootKeyLength and ChildKeyLength are the expected byte lengths of a file's
// encrypted_key field depending on whether the file sits at tree root
// (wrapped for the owner's public key) or under a parent (wrapped for the
// parent's symmetric key). Values follow NaCl secretbox/box framing: a
// 32-byte key plus a 16-byte Poly1305 tag, with box additionally carrying a
// 32-byte ephemeral public key at the root.
const (
	RootKeyLength  = 80 // ephemeral pubkey(32) + key(32) + tag(16)
	ChildKeyLength = 48 // key(32) + tag(16)

	// NonceLength is the length in raw bytes of every *_nonce field (stored
	// base64-encoded in transit and at rest).
	NonceLength = 12

	PublicKeyLength = 32
)

// User is an account holder: username/password authentication, optional
// TOTP second factor, end-to-end-encryption key material the server never
// inspects, and per-owner storage quota.
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Username     string `gorm:"uniqueIndex;not null;size:20" json:"username"`
	Email        *string `gorm:"uniqueIndex;size:255" json:"email,omitempty"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Client-held key material. The server stores it opaquely and never
	// decrypts it.
	EncryptedPrivateKey string `gorm:"not null;type:text" json:"encrypted_private_key"`
	PrivateKeyIV        string `gorm:"not null;size:24" json:"private_key_iv"`
	PrivateKeySalt      string `gorm:"not null;type:text" json:"private_key_salt"`
	PublicKey           string `gorm:"not null;type:text" json:"public_key"`

	// TOTP second factor.
	TOTPSecret   *string `gorm:"size:255" json:"-"`
	TOTPEnabled  bool    `gorm:"default:false" json:"totp_enabled"`
	TOTPVerified bool    `gorm:"default:false" json:"-"`

	TotalSpace int64 `gorm:"not null" json:"total_space"`
	UsedSpace  int64 `gorm:"not null;default:0" json:"used_space"`

	AvatarExtension *string `gorm:"size:16" json:"avatar_extension,omitempty"`

	IsAdmin bool `gorm:"default:false" json:"is_admin"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// PublicUser is the redacted projection of a User returned to other callers
// (search results, share recipient listings) — never the password hash,
// TOTP state, or quota.
type PublicUser struct {
	ID              string  `json:"id"`
	Username        string  `json:"username"`
	PublicKey       string  `json:"public_key"`
	AvatarExtension *string `json:"avatar_extension,omitempty"`
}

// ToPublic projects a User to its PublicUser view.
func (u *User) ToPublic() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Username:        u.Username,
		PublicKey:       u.PublicKey,
		AvatarExtension: u.AvatarExtension,
	}
}

// SessionUser is the view returned from GET /api/profile: everything the
// authenticated owner needs to unwrap their own key material, minus secrets.
type SessionUser struct {
	ID                  string  `json:"id"`
	Username            string  `json:"username"`
	Email               *string `json:"email,omitempty"`
	EncryptedPrivateKey string  `json:"encrypted_private_key"`
	PrivateKeyIV        string  `json:"private_key_iv"`
	PrivateKeySalt      string  `json:"private_key_salt"`
	PublicKey           string  `json:"public_key"`
	TOTPEnabled         bool    `json:"totp_enabled"`
	TotalSpace          int64   `json:"total_space"`
	UsedSpace           int64   `json:"used_space"`
	AvatarExtension     *string `json:"avatar_extension,omitempty"`
	IsAdmin             bool    `json:"is_admin"`
}

// ToSessionView projects a User to the SessionUser view.
func (u *User) ToSessionView() SessionUser {
	return SessionUser{
		ID:                  u.ID,
		Username:            u.Username,
		Email:               u.Email,
		EncryptedPrivateKey: u.EncryptedPrivateKey,
		PrivateKeyIV:        u.PrivateKeyIV,
		PrivateKeySalt:      u.PrivateKeySalt,
		PublicKey:           u.PublicKey,
		TOTPEnabled:         u.TOTPEnabled,
		TotalSpace:          u.TotalSpace,
		UsedSpace:           u.UsedSpace,
		AvatarExtension:     u.AvatarExtension,
		IsAdmin:             u.IsAdmin,
	}
}

// RemainingSpace returns TotalSpace - UsedSpace, floored at zero.
func (u *User) RemainingSpace() int64 {
	if r := u.TotalSpace - u.UsedSpace; r > 0 {
		return r
	}
	return 0
}
