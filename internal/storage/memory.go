package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skybound-ai/gateway/internal/model"
)

// MemoryStore keeps users and conversations in process memory.
// The mutex protects the maps only; it does not make check-then-create
// sequences at the caller atomic.
type MemoryStore struct {
	users         map[string]*model.User
	conversations map[string]*model.Conversation
	mu            sync.RWMutex

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		now:           time.Now,
	}
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return copyUser(u), nil
}

// GetUserByEmail retrieves a user by email.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// GetUserByUsername retrieves a user by username.
func (s *MemoryStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return copyUser(u), nil
		}
	}
	return nil, nil
}

// CreateUser stores a new user. It does not check email or username uniqueness.
func (s *MemoryStore) CreateUser(ctx context.Context, req *model.RegisterRequest, passwordHash string) (*model.User, error) {
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

	s.mu.Lock()
	s.users[u.ID] = u
	s.mu.Unlock()

	return copyUser(u), nil
}

// UpdateUser merges the supplied profile fields into the user.
func (s *MemoryStore) UpdateUser(ctx context.Context, id string, req *model.UpdateUserRequest) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}

	applyUpdate(u, req)
	u.UpdatedAt = advance(u.UpdatedAt, s.now().UTC())

	return copyUser(u), nil
}

// UpdatePassword replaces the user's password hash.
func (s *MemoryStore) UpdatePassword(ctx context.Context, id, passwordHash string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = advance(u.UpdatedAt, s.now().UTC())

	return copyUser(u), nil
}

// GetConversation retrieves a conversation by ID.
func (s *MemoryStore) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}
	return copyConversation(c), nil
}

// GetConversationsByUser returns the user's conversations in no particular order.
func (s *MemoryStore) GetConversationsByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := []model.Conversation{}
	for _, c := range s.conversations {
		if c.UserID == userID {
			convs = append(convs, *copyConversation(c))
		}
	}
	return convs, nil
}

// CreateConversation creates an empty conversation owned by userID.
func (s *MemoryStore) CreateConversation(ctx context.Context, userID string) (*model.Conversation, error) {
	now := s.now().UTC().Truncate(time.Microsecond)
	c := &model.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Messages:  []model.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[c.ID] = c
	s.mu.Unlock()

	return copyConversation(c), nil
}

// AddMessageToConversation appends msg and advances the updated timestamp.
// An unknown conversation yields nil and leaves the store untouched.
func (s *MemoryStore) AddMessageToConversation(ctx context.Context, conversationID string, msg *model.ChatMessage) (*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok {
		return nil, nil
	}

	c.Messages = append(c.Messages, *msg)
	c.UpdatedAt = advance(c.UpdatedAt, s.now().UTC())

	return copyConversation(c), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

func applyUpdate(u *model.User, req *model.UpdateUserRequest) {
	if req == nil {
		return
	}
	if req.FullName != nil {
		v := *req.FullName
		u.FullName = &v
	}
	if req.Avatar != nil {
		v := *req.Avatar
		u.Avatar = &v
	}
}

// advance returns now, or one microsecond past prev when the clock has not
// moved. Microseconds survive every backend's timestamp precision.
func advance(prev, now time.Time) time.Time {
	now = now.Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func copyUser(u *model.User) *model.User {
	cp := *u
	return &cp
}

func copyConversation(c *model.Conversation) *model.Conversation {
	cp := *c
	cp.Messages = make([]model.ChatMessage, len(c.Messages))
	copy(cp.Messages, c.Messages)
	return &cp
}
