// Package blobstore implements the Blob Store (§4.2): the content-addressed
// ciphertext backend backing uploaded files, avatars, and in-flight chunked
// upload staging. The server only ever moves opaque bytes through here; it
// never inspects them.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrNotFound is returned by Read/ReadRange when the path doesn't exist.
var ErrNotFound = errors.New("blobstore: object not found")

// ErrAlreadyExists is returned by CreateExclusive when the path is already
// occupied — used to reject a re-uploaded chunk index (§4.6 Chunk upload).
var ErrAlreadyExists = errors.New("blobstore: object already exists")

// Store is the Blob Store surface (§4.2). Paths are logical, forward-slash
// separated keys such as "uploads/{file_id}", "avatars/{user_id}.{ext}", or
// "transactions/{tx_id}/{chunk_index}" — backends map them onto their own
// storage layout.
type Store interface {
	// CreateExclusive writes data to path, failing with ErrAlreadyExists if
	// the path is already occupied. Used for chunk uploads, where a second
	// write to the same index must be rejected rather than overwrite.
	CreateExclusive(ctx context.Context, path string, r io.Reader) error

	// WriteStream buffers r to path, creating or overwriting it.
	WriteStream(ctx context.Context, path string, r io.Reader) error

	// Read opens path for reading. Callers must Close the returned reader.
	// Returns ErrNotFound if the path doesn't exist.
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// Concat assembles parts, in order, into out via buffered copy — used to
	// finalize a chunked upload into its single uploads/{file_id} blob.
	Concat(ctx context.Context, parts []string, out string) error

	// Remove deletes path. A missing path is not an error (§4.2 tolerant
	// delete; §4.6 Rollback, §4.9 Janitor cleanup all rely on this).
	Remove(ctx context.Context, path string) error

	// RemoveDir recursively deletes everything under path. A missing path is
	// not an error. Used to clear a transaction's chunk staging directory
	// once its upload finalizes (§4.6 Finalize).
	RemoveDir(ctx context.Context, path string) error

	// Healthcheck verifies the store is reachable and writable.
	Healthcheck(ctx context.Context) error

	Close() error
}

// UploadPath returns the canonical path for a finished file's blob.
func UploadPath(fileID string) string {
	return fmt.Sprintf("uploads/%s", fileID)
}

// AvatarPath returns the canonical path for a user's avatar.
func AvatarPath(userID, ext string) string {
	return fmt.Sprintf("avatars/%s.%s", userID, ext)
}

// TransactionDir returns the canonical staging directory for a chunked
// upload transaction.
func TransactionDir(txID string) string {
	return fmt.Sprintf("transactions/%s", txID)
}

// ChunkPath returns the canonical path for one chunk of a transaction.
func ChunkPath(txID string, index int) string {
	return fmt.Sprintf("transactions/%s/%d", txID, index)
}

// StaleTransactionLister is an optional capability (C.3) for backends that
// can enumerate abandoned transaction staging directories by age. The
// Janitor type-asserts for it and skips the sweep on backends that don't
// implement it, so the core Store interface stays minimal.
type StaleTransactionLister interface {
	// StaleTransactionDirs returns the transaction IDs (suitable for
	// TransactionDir) whose staging directory's newest entry is older than
	// olderThan.
	StaleTransactionDirs(ctx context.Context, olderThan time.Duration) ([]string, error)
}
