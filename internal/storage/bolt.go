package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/skybound-ai/gateway/internal/model"
)

var (
	bucketUsers             = []byte("users")
	bucketUsersByEmail      = []byte("users_by_email")
	bucketUsersByUsername   = []byte("users_by_username")
	bucketConversations     = []byte("conversations")
	bucketUserConversations = []byte("user_conversations")
)

// BoltStore persists users and conversations in a single BoltDB file.
// Records are JSON values; email and username index buckets are written in
// the same transaction as the user, so duplicates are rejected atomically.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// userRecord is the stored form of a user, including the password hash.
type userRecord struct {
	model.User
	PasswordHash string `json:"passwordHash"`
}

// NewBoltStore opens (or creates) the BoltDB file at path.
func NewBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store requires a file path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt open error: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketUsers, bucketUsersByEmail, bucketUsersByUsername, bucketConversations, bucketUserConversations} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt init error: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

func getUserTx(tx *bolt.Tx, id []byte) (*model.User, error) {
	if id == nil {
		return nil, nil
	}
	v := tx.Bucket(bucketUsers).Get(id)
	if v == nil {
		return nil, nil
	}
	var rec userRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	u := rec.User
	u.PasswordHash = rec.PasswordHash
	return &u, nil
}

func putUserTx(tx *bolt.Tx, u *model.User) error {
	data, err := json.Marshal(userRecord{User: *u, PasswordHash: u.PasswordHash})
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return tx.Bucket(bucketUsers).Put([]byte(u.ID), data)
}

func (s *BoltStore) viewUser(index []byte, key string) (*model.User, error) {
	var out *model.User
	err := s.db.View(func(tx *bolt.Tx) error {
		id := []byte(key)
		if index != nil {
			id = tx.Bucket(index).Get([]byte(key))
		}
		u, err := getUserTx(tx, id)
		out = u
		return err
	})
	return out, err
}

// GetUser retrieves a user by ID.
func (s *BoltStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.viewUser(nil, id)
}

// GetUserByEmail retrieves a user by email.
func (s *BoltStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.viewUser(bucketUsersByEmail, email)
}

// GetUserByUsername retrieves a user by username.
func (s *BoltStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.viewUser(bucketUsersByUsername, username)
}

// CreateUser stores a new user. A taken email or username yields ErrDuplicate.
func (s *BoltStore) CreateUser(ctx context.Context, req *model.RegisterRequest, passwordHash string) (*model.User, error) {
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

	err := s.db.Update(func(tx *bolt.Tx) error {
		byEmail := tx.Bucket(bucketUsersByEmail)
		byUsername := tx.Bucket(bucketUsersByUsername)
		if byEmail.Get([]byte(u.Email)) != nil || byUsername.Get([]byte(u.Username)) != nil {
			return ErrDuplicate
		}
		if err := byEmail.Put([]byte(u.Email), []byte(u.ID)); err != nil {
			return err
		}
		if err := byUsername.Put([]byte(u.Username), []byte(u.ID)); err != nil {
			return err
		}
		return putUserTx(tx, u)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *BoltStore) mutateUser(id string, fn func(u *model.User)) (*model.User, error) {
	var out *model.User
	err := s.db.Update(func(tx *bolt.Tx) error {
		u, err := getUserTx(tx, []byte(id))
		if err != nil || u == nil {
			return err
		}
		fn(u)
		u.UpdatedAt = advance(u.UpdatedAt, s.now().UTC())
		if err := putUserTx(tx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateUser merges the supplied profile fields into the user.
func (s *BoltStore) UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	return s.mutateUser(id, func(u *model.User) { applyUpdate(u, req) })
}

// UpdatePassword replaces the user's password hash.
func (s *BoltStore) UpdatePassword(ctx context.Context, id, passwordHash string) (*model.User, error) {
	return s.mutateUser(id, func(u *model.User) { u.PasswordHash = passwordHash })
}

func getConversationTx(tx *bolt.Tx, id []byte) (*model.Conversation, error) {
	v := tx.Bucket(bucketConversations).Get(id)
	if v == nil {
		return nil, nil
	}
	var c model.Conversation
	if err := json.Unmarshal(v, &c); err != nil {
		return nil, fmt.Errorf("decode conversation: %w", err)
	}
	if c.Messages == nil {
		c.Messages = []model.ChatMessage{}
	}
	return &c, nil
}

func putConversationTx(tx *bolt.Tx, c *model.Conversation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	return tx.Bucket(bucketConversations).Put([]byte(c.ID), data)
}

func userConversationKey(userID, conversationID string) []byte {
	return []byte(userID + "/" + conversationID)
}

// GetConversation retrieves a conversation by ID.
func (s *BoltStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		c, err := getConversationTx(tx, []byte(id))
		out = c
		return err
	})
	return out, err
}

// GetConversationsByUser returns the user's conversations ordered by ID.
func (s *BoltStore) GetConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs := []model.Conversation{}
	prefix := []byte(userID + "/")

	err := s.db.View(func(tx *bolt.Tx) error {
		cur := tx.Bucket(bucketUserConversations).Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			c, err := getConversationTx(tx, k[len(prefix):])
			if err != nil {
				return err
			}
			if c != nil {
				convs = append(convs, *c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// CreateConversation creates an empty conversation owned by userID.
func (s *BoltStore) CreateConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	c := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Messages:  []model.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := putConversationTx(tx, c); err != nil {
			return err
		}
		return tx.Bucket(bucketUserConversations).Put(userConversationKey(userID, c.ID), []byte{})
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddMessageToConversation appends msg and advances the updated timestamp.
// An unknown conversation yields nil and writes nothing.
func (s *BoltStore) AddMessageToConversation(ctx context.Context, conversationID string, msg *model.ChatMessage) (*model.Conversation, error) {
	var out *model.Conversation
	err := s.db.Update(func(tx *bolt.Tx) error {
		c, err := getConversationTx(tx, []byte(conversationID))
		if err != nil || c == nil {
			return err
		}
		c.Messages = append(c.Messages, *msg)
		c.UpdatedAt = advance(c.UpdatedAt, s.now().UTC())
		if err := putConversationTx(tx, c); err != nil {
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

// Close closes the BoltDB file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
