package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/skybound-ai/gateway/internal/model"
)

//go:embed migrations
var migrations embed.FS

const pgUniqueViolation = "23505"

// SQLStore persists users and conversations in SQLite or Postgres.
// Email and username uniqueness is enforced by unique indexes.
type SQLStore struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

// NewSQLStore opens the database, runs migrations and returns the store.
// driver is DriverSQLite or DriverPostgres.
func NewSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var (
		sqlDriver  string
		gooseDial  goose.Dialect
		migrateDir string
	)
	switch driver {
	case DriverSQLite:
		sqlDriver, gooseDial, migrateDir = "sqlite3", goose.DialectSQLite3, "migrations/sqlite"
	case DriverPostgres:
		sqlDriver, gooseDial, migrateDir = "pgx", goose.DialectPostgres, "migrations/postgres"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if driver == DriverSQLite {
		// every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &SQLStore{db: db, dialect: driver, now: time.Now}
	if err := s.migrate(ctx, gooseDial, migrateDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context, dialect goose.Dialect, dir string) error {
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, s.db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(ctx)
	return err
}

// rebind rewrites ? placeholders for Postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DriverPostgres {
		return query
	}
	n := strings.Count(query, "?")
	for i := 1; i <= n; i++ {
		query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
	}
	return query
}

const userColumns = "id, email, username, password_hash, full_name, avatar, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		fullName sql.NullString
		avatar   sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &fullName, &avatar, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if fullName.Valid {
		u.FullName = &fullName.String
	}
	if avatar.Valid {
		u.Avatar = &avatar.String
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return &u, nil
}

func (s *SQLStore) getUserBy(ctx context.Context, q queryer, column, value string) (*model.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE " + column + " = ?")
	return scanUser(q.QueryRowContext(ctx, query, value))
}

// GetUser retrieves a user by ID.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.getUserBy(ctx, s.db, "id", id)
}

// GetUserByEmail retrieves a user by email.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getUserBy(ctx, s.db, "email", email)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.getUserBy(ctx, s.db, "username", username)
}

// CreateUser inserts a new user. A taken email or username yields ErrDuplicate.
func (s *SQLStore) CreateUser(ctx context.Context, req *model.RegisterRequest, passwordHash string) (*model.User, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: passwordHash,
		FullName:     req.FullName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := s.rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Email, u.Username, u.PasswordHash, nullString(u.FullName), nullString(u.Avatar), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return u, nil
}

// UpdateUser merges the supplied profile fields into the user.
func (s *SQLStore) UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	var out *model.User
	err := withTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		u, err := s.getUserBy(ctx, tx, "id", id)
		if err != nil || u == nil {
			return err
		}

		applyUpdate(u, req)
		u.UpdatedAt = advance(u.UpdatedAt, s.now().UTC())

		query := s.rebind("UPDATE users SET full_name = ?, avatar = ?, updated_at = ? WHERE id = ?")
		if _, err := tx.ExecContext(ctx, query, nullString(u.FullName), nullString(u.Avatar), u.UpdatedAt, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdatePassword replaces the user's password hash.
func (s *SQLStore) UpdatePassword(ctx context.Context, id, passwordHash string) (*model.User, error) {
	var out *model.User
	err := withTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		u, err := s.getUserBy(ctx, tx, "id", id)
		if err != nil || u == nil {
			return err
		}

		u.PasswordHash = passwordHash
		u.UpdatedAt = advance(u.UpdatedAt, s.now().UTC())

		query := s.rebind("UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?")
		if _, err := tx.ExecContext(ctx, query, u.PasswordHash, u.UpdatedAt, id); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetConversation retrieves a conversation and its messages in append order.
func (s *SQLStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	return s.getConversation(ctx, s.db, id)
}

func (s *SQLStore) getConversation(ctx context.Context, q queryer, id string) (*model.Conversation, error) {
	query := s.rebind("SELECT id, user_id, created_at, updated_at FROM conversations WHERE id = ?")

	var c model.Conversation
	err := q.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()

	msgs, err := s.messages(ctx, q, id)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	return &c, nil
}

func (s *SQLStore) messages(ctx context.Context, q queryer, conversationID string) ([]model.ChatMessage, error) {
	query := s.rebind("SELECT payload FROM conversation_messages WHERE conversation_id = ? ORDER BY position")

	rows, err := q.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	msgs := []model.ChatMessage{}
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		var m model.ChatMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return msgs, nil
}

// GetConversationsByUser returns the user's conversations, oldest first.
func (s *SQLStore) GetConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	query := s.rebind("SELECT id FROM conversations WHERE user_id = ? ORDER BY created_at, id")

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	convs := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := s.getConversation(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if c != nil {
			convs = append(convs, *c)
		}
	}
	return convs, nil
}

// CreateConversation creates an empty conversation owned by userID.
func (s *SQLStore) CreateConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	c := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Messages:  []model.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := s.rebind("INSERT INTO conversations (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, c.ID, c.UserID, c.CreatedAt, c.UpdatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

// AddMessageToConversation appends msg and advances the updated timestamp in
// one transaction. An unknown conversation yields nil and writes nothing.
func (s *SQLStore) AddMessageToConversation(ctx context.Context, conversationID string, msg *model.ChatMessage) (*model.Conversation, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	var out *model.Conversation
	err = withTx(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var prev time.Time
		query := s.rebind("SELECT updated_at FROM conversations WHERE id = ?")
		if err := tx.QueryRowContext(ctx, query, conversationID).Scan(&prev); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("db error: %w", err)
		}

		updated := advance(prev.UTC(), s.now().UTC())
		query = s.rebind("UPDATE conversations SET updated_at = ? WHERE id = ?")
		if _, err := tx.ExecContext(ctx, query, updated, conversationID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		var next int
		query = s.rebind("SELECT COALESCE(MAX(position), -1) + 1 FROM conversation_messages WHERE conversation_id = ?")
		if err := tx.QueryRowContext(ctx, query, conversationID).Scan(&next); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		query = s.rebind("INSERT INTO conversation_messages (conversation_id, position, payload) VALUES (?, ?, ?)")
		if _, err := tx.ExecContext(ctx, query, conversationID, next, string(payload)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		c, err := s.getConversation(ctx, tx, conversationID)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction, committing on success and rolling back on
// error or panic.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(ctx, tx)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
