package models

import "time"

// File is a node in the per-owner tree: either a directory (no encrypted
// payload) or a leaf carrying an opaque, client-encrypted blob. The server
// never decrypts encrypted_name/encrypted_mime/encrypted_key/file content —
// it only enforces the structural invariants in §3 of the locker's data
// model: directory-ness implies no file_nonce, key_nonce presence mirrors
// parent presence, and encrypted_key length matches root vs. child framing.
type File struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	ParentID   *string `gorm:"size:36;index" json:"parent_id,omitempty"`
	OwnerID    *string `gorm:"size:36;index" json:"owner_id,omitempty"`
	UploaderID *string `gorm:"size:36" json:"uploader_id,omitempty"`

	IsDirectory bool  `gorm:"not null" json:"is_directory"`
	Size        int64 `gorm:"not null;default:0" json:"size"`

	EncryptedName string `gorm:"not null;type:text" json:"encrypted_name"`
	NameNonce     string `gorm:"not null;size:24" json:"name_nonce"`

	EncryptedMime *string `gorm:"type:text" json:"encrypted_mime,omitempty"`
	MimeNonce     *string `gorm:"size:24" json:"mime_nonce,omitempty"`

	EncryptedKey string  `gorm:"not null;type:text" json:"encrypted_key"`
	KeyNonce     *string `gorm:"size:24" json:"key_nonce,omitempty"`

	FileNonce *string `gorm:"size:24" json:"file_nonce,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for File.
func (File) TableName() string {
	return "files"
}

// ReportedSize returns the size exposed to clients: the stored ciphertext
// size minus the trailing 16-byte authentication tag, floored at zero.
// Directories always report zero.
func (f *File) ReportedSize() int64 {
	if f.IsDirectory {
		return 0
	}
	if f.Size < 16 {
		return 0
	}
	return f.Size - 16
}

// TreeNode is the shape returned from the Tree Engine's normalize step:
// a File's fields plus a materialized list of child ids.
type TreeNode struct {
	File
	Children []string `json:"children"`
}
