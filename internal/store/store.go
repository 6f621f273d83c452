package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique column already holds the value.
	ErrConflict = errors.New("conflict")
)

// Role is an account role.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleStreamer Role = "streamer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleViewer || r == RoleStreamer
}

// User represents an account. StreamKey doubles as the account's room code.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	StreamKey    string
	CreatedAt    time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser inserts a new account. Returns ErrConflict when the username
	// or stream key is taken.
	CreateUser(ctx context.Context, username, passwordHash string, role Role, streamKey string) (*User, error)

	// GetUserByID retrieves an account by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves an account by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// GetUserByStreamKey retrieves the account owning a stream key.
	GetUserByStreamKey(ctx context.Context, streamKey string) (*User, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore

	// Close closes the underlying database connection.
	Close() error
}
