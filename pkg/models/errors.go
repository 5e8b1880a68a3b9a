package models

import "errors"

// Sentinel errors returned by the store and domain packages. Handlers map
// these to HTTP problem responses via MapError (pkg/api/handlers).
var (
	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrDuplicateEmail     = errors.New("email already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTOTPRequired       = errors.New("totp code required")
	ErrTOTPInvalid        = errors.New("invalid totp code")
	ErrTOTPNotVerified    = errors.New("totp secret not verified")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")

	// File errors
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidParent   = errors.New("invalid parent id")
	ErrNotADirectory   = errors.New("parent is not a directory")
	ErrQuotaExceeded   = errors.New("quota exceeded")
	ErrCyclicMove      = errors.New("move would create a cycle")
	ErrOwnerMismatch   = errors.New("new parent has a different owner")
	ErrChildException  = errors.New("share root cannot be mutated by grantee")

	// Share errors
	ErrShareNotFound     = errors.New("share not found")
	ErrInvalidSharee     = errors.New("invalid sharee id")
	ErrSelfShare         = errors.New("cannot share with yourself")
	ErrLinkExpired       = errors.New("link expired")
	ErrLinkPasswordBad   = errors.New("incorrect link password")
	ErrLinkPasswordReq   = errors.New("link password required")
	ErrEmptyLinkPassword = errors.New("link password must not be empty")

	// Upload transaction errors
	ErrTransactionNotFound = errors.New("upload transaction not found")
	ErrChunkOutOfRange     = errors.New("chunk index out of range")
	ErrChunkAlreadySent    = errors.New("chunk already uploaded")
	ErrChunkSizeMismatch   = errors.New("chunk size does not match declared size")
	ErrTransactionNotReady = errors.New("not all chunks have been received")

	// Store-level retryable error kind
	ErrStoreBusy = errors.New("store busy, retry")
)
