package models

import "time"

// MinChunkSize is the smallest permitted chunk size for a chunked upload
// (2^19 bytes).
const MinChunkSize = 1 << 19

// MaxFileSize is the largest file size (expected_size) a single upload,
// chunked or single-shot, may declare.
const MaxFileSize = 1_000_000_000

// UploadTransaction tracks an in-flight chunked upload: the file metadata
// that will become the finished File row, plus chunk bookkeeping. It carries
// the same encryption-metadata invariants as File except file_nonce, which
// is absent here — each chunk's ciphertext carries its own nonce prefix.
type UploadTransaction struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	ParentID   *string `gorm:"size:36" json:"parent_id,omitempty"`
	OwnerID    *string `gorm:"size:36" json:"owner_id,omitempty"`
	UploaderID *string `gorm:"size:36" json:"uploader_id,omitempty"`

	EncryptedName string `gorm:"not null;type:text" json:"encrypted_name"`
	NameNonce     string `gorm:"not null;size:24" json:"name_nonce"`

	EncryptedMime *string `gorm:"type:text" json:"encrypted_mime,omitempty"`
	MimeNonce     *string `gorm:"size:24" json:"mime_nonce,omitempty"`

	EncryptedKey string  `gorm:"not null;type:text" json:"encrypted_key"`
	KeyNonce     *string `gorm:"size:24" json:"key_nonce,omitempty"`

	ChunkSize     int64 `gorm:"not null" json:"chunk_size"`
	TotalChunks   int   `gorm:"not null" json:"total_chunks"`
	CurrentChunks int   `gorm:"not null;default:0" json:"current_chunks"`
	ExpectedSize  int64 `gorm:"not null" json:"expected_size"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for UploadTransaction.
func (UploadTransaction) TableName() string {
	return "upload_transactions"
}

// Ready reports whether every declared chunk has arrived.
func (t *UploadTransaction) Ready() bool {
	return t.CurrentChunks >= t.TotalChunks
}

// ValidateSizeEquation checks the §3 invariant relating chunk_size,
// total_chunks, and expected_size: (total_chunks-1)*chunk_size < expected_size
// <= total_chunks*chunk_size.
func (t *UploadTransaction) ValidateSizeEquation() bool {
	lower := int64(t.TotalChunks-1) * t.ChunkSize
	upper := int64(t.TotalChunks) * t.ChunkSize
	return lower < t.ExpectedSize && t.ExpectedSize <= upper
}

// LastChunkSize returns the expected byte length of the final chunk.
func (t *UploadTransaction) LastChunkSize() int64 {
	return t.ExpectedSize - int64(t.TotalChunks-1)*t.ChunkSize
}
