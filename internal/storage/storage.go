// Package storage defines the persistence contract for users and conversations
// and provides its backends.
//
// Lookups report absence as a nil result with a nil error. Errors are reserved
// for backend failures. Uniqueness of email and username is checked by the
// caller before CreateUser; the memory backend does not re-check it, so two
// concurrent registrations can both pass the check. Backends that can enforce
// it atomically (SQL unique indexes, bolt index buckets) return ErrDuplicate.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/skybound-ai/gateway/internal/model"
)

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

var (
	// ErrDuplicate is returned when a backend rejects a user whose email or
	// username is already taken.
	ErrDuplicate = errors.New("duplicate user")

	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// Store is the capability set over users and conversations.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	CreateUser(ctx context.Context, req *model.RegisterRequest, passwordHash string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) (*model.User, error)

	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	GetConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, userID string) (*model.Conversation, error)
	AddMessageToConversation(ctx context.Context, conversationID string, msg *model.ChatMessage) (*model.Conversation, error)

	Close() error
}

// Open returns the backend for driver. dsn is a file path for sqlite3 and
// bolt, a connection string for postgres, and ignored for memory.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite, DriverPostgres:
		return NewSQLStore(ctx, driver, dsn)
	case DriverBolt:
		return NewBoltStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
