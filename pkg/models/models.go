// Package models defines the persisted entities of the file locker: users,
// sessions, the file tree, shares, and in-flight chunked upload transactions.
package models

// AllModels returns every GORM model for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Session{},
		&File{},
		&ShareUser{},
		&ShareLink{},
		&UploadTransaction{},
	}
}
