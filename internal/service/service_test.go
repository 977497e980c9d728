package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/skybound-ai/gateway/internal/auth"
	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/internal/storage"
	"github.com/skybound-ai/gateway/pkg/logger"
)

func strPtr(s string) *string { return &s }

func newAuthService(t *testing.T, store storage.Store) (*AuthService, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret", time.Hour)
	require.NoError(t, err)
	return NewAuthService(store, tokens, bcrypt.MinCost, logger.Nop()), tokens
}

func alice() *model.RegisterRequest {
	return &model.RegisterRequest{Email: "a@x.com", Username: "alice", Password: "secret1"}
}

func assertKind(t *testing.T, err error, kind error, message string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, kind)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, message, svcErr.Message)
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newAuthService(t, storage.NewMemoryStore())

	reg, err := svc.Register(ctx, alice())
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", reg.User.Email)
	assert.Equal(t, "alice", reg.User.Username)

	claims, ok := tokens.Verify(reg.Token)
	require.True(t, ok)
	assert.Equal(t, reg.User.ID, claims.UserID)

	login, err := svc.Login(ctx, &model.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, login.User.ID)
	assert.NotEmpty(t, login.Token)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	svc, _ := newAuthService(t, storage.NewMemoryStore())

	tests := []struct {
		name    string
		req     *model.RegisterRequest
		message string
	}{
		{"bad email", &model.RegisterRequest{Email: "nope", Username: "alice", Password: "secret1"}, "Invalid email"},
		{"short username", &model.RegisterRequest{Email: "a@x.com", Username: "al", Password: "secret1"}, "username must contain at least 3 character(s)"},
		{"short password", &model.RegisterRequest{Email: "a@x.com", Username: "alice", Password: "12345"}, "password must contain at least 6 character(s)"},
		{"multibyte password too long", &model.RegisterRequest{Email: "a@x.com", Username: "alice", Password: strings.Repeat("€", 30)}, "password must be at most 72 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.req)
			assertKind(t, err, ErrValidation, tt.message)
		})
	}
}

func TestAuthService_RegisterConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, storage.NewMemoryStore())

	_, err := svc.Register(ctx, alice())
	require.NoError(t, err)

	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "a@x.com", Username: "bob", Password: "secret1"})
	assertKind(t, err, ErrConflict, "Email already registered")

	_, err = svc.Register(ctx, &model.RegisterRequest{Email: "b@x.com", Username: "alice", Password: "secret1"})
	assertKind(t, err, ErrConflict, "Username already taken")
}

// racingStore reports a duplicate on create after letting a rival user in,
// as an enforcing backend does when two registrations interleave.
type racingStore struct {
	storage.Store
	once sync.Once
}

func (s *racingStore) CreateUser(ctx context.Context, req *model.RegisterRequest, hash string) (*model.User, error) {
	s.once.Do(func() {
		_, _ = s.Store.CreateUser(ctx, &model.RegisterRequest{Email: "other@x.com", Username: req.Username, Password: "x"}, hash)
	})
	return nil, storage.ErrDuplicate
}

func TestAuthService_RegisterDuplicateFromBackend(t *testing.T) {
	svc, _ := newAuthService(t, &racingStore{Store: storage.NewMemoryStore()})

	_, err := svc.Register(context.Background(), alice())
	assertKind(t, err, ErrConflict, "Username already taken")
}

func TestAuthService_LoginFailuresIndistinguishable(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, storage.NewMemoryStore())
	_, err := svc.Register(ctx, alice())
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, &model.LoginRequest{Email: "a@x.com", Password: "wrong"})
	_, unknownEmail := svc.Login(ctx, &model.LoginRequest{Email: "nobody@x.com", Password: "secret1"})

	assertKind(t, wrongPassword, ErrInvalidCredentials, "Invalid credentials")
	assertKind(t, unknownEmail, ErrInvalidCredentials, "Invalid credentials")
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAuthService_LoginMissingFields(t *testing.T) {
	svc, _ := newAuthService(t, storage.NewMemoryStore())

	for _, req := range []*model.LoginRequest{{Email: "a@x.com"}, {Password: "secret1"}, {}} {
		_, err := svc.Login(context.Background(), req)
		assertKind(t, err, ErrValidation, "Email and password required")
	}
}

func TestAuthService_MeAndProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, storage.NewMemoryStore())
	reg, err := svc.Register(ctx, alice())
	require.NoError(t, err)

	me, err := svc.Me(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, me.ID)

	updated, err := svc.UpdateProfile(ctx, reg.User.ID, &model.UpdateUserRequest{FullName: strPtr("Alice A")})
	require.NoError(t, err)
	require.NotNil(t, updated.FullName)
	assert.Equal(t, "Alice A", *updated.FullName)

	_, err = svc.UpdateProfile(ctx, reg.User.ID, &model.UpdateUserRequest{Avatar: strPtr("not a url")})
	assertKind(t, err, ErrValidation, "avatar must be a valid URL")

	_, err = svc.Me(ctx, "missing")
	assertKind(t, err, ErrNotFound, "User not found")

	_, err = svc.UpdateProfile(ctx, "missing", &model.UpdateUserRequest{})
	assertKind(t, err, ErrNotFound, "User not found")
}

func TestAuthService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newAuthService(t, storage.NewMemoryStore())
	reg, err := svc.Register(ctx, alice())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, reg.User.ID, &model.ChangePasswordRequest{CurrentPassword: "wrong", NewPassword: "secret2"})
	assertKind(t, err, ErrInvalidCredentials, "Invalid credentials")

	err = svc.ChangePassword(ctx, reg.User.ID, &model.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "123"})
	assertKind(t, err, ErrValidation, "newPassword must contain at least 6 character(s)")

	err = svc.ChangePassword(ctx, reg.User.ID, &model.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: strings.Repeat("€", 30)})
	assertKind(t, err, ErrValidation, "newPassword must be at most 72 bytes")

	require.NoError(t, svc.ChangePassword(ctx, reg.User.ID, &model.ChangePasswordRequest{CurrentPassword: "secret1", NewPassword: "secret2"}))

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "a@x.com", Password: "secret1"})
	assertKind(t, err, ErrInvalidCredentials, "Invalid credentials")

	_, err = svc.Login(ctx, &model.LoginRequest{Email: "a@x.com", Password: "secret2"})
	require.NoError(t, err)
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []*model.ChatMessage
	events   []*model.ConversationEvent
	err      error
}

func (p *recordingPublisher) PublishMessage(_ context.Context, _, _ string, msg *model.ChatMessage) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return uint64(len(p.messages)), p.err
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event *model.ConversationEvent) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return uint64(len(p.events)), p.err
}

func TestHistoryService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewHistoryService(storage.NewMemoryStore(), pub, logger.Nop())

	conv, err := svc.Create(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", conv.UserID)
	assert.Empty(t, conv.Messages)

	updated, err := svc.Append(ctx, "u1", conv.ID, &model.AppendMessageRequest{Role: model.RoleUser, Content: "Flights to Paris?"})
	require.NoError(t, err)
	require.Len(t, updated.Messages, 1)
	assert.NotEmpty(t, updated.Messages[0].ID)
	assert.Equal(t, "Flights to Paris?", updated.Messages[0].Content)

	_, err = svc.Append(ctx, "u1", conv.ID, &model.AppendMessageRequest{ID: "m2", Role: model.RoleAssistant, Content: "Here are some options."})
	require.NoError(t, err)

	got, err := svc.Get(ctx, "u1", conv.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "m2", got.Messages[1].ID)

	list, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	empty, err := svc.List(ctx, "u2")
	require.NoError(t, err)
	assert.NotNil(t, empty.Conversations)
	assert.Zero(t, empty.Total)

	require.Len(t, pub.events, 1)
	assert.Equal(t, model.EventTypeConversationCreated, pub.events[0].Type)
	assert.Len(t, pub.messages, 2)
}

func TestHistoryService_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	svc := NewHistoryService(storage.NewMemoryStore(), nil, logger.Nop())

	conv, err := svc.Create(ctx, "owner")
	require.NoError(t, err)

	_, err = svc.Get(ctx, "intruder", conv.ID)
	assertKind(t, err, ErrNotFound, "Conversation not found")

	_, err = svc.Append(ctx, "intruder", conv.ID, &model.AppendMessageRequest{Role: model.RoleUser, Content: "hi"})
	assertKind(t, err, ErrNotFound, "Conversation not found")

	_, err = svc.Get(ctx, "owner", "missing")
	assertKind(t, err, ErrNotFound, "Conversation not found")
}

func TestHistoryService_AppendValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewHistoryService(storage.NewMemoryStore(), nil, logger.Nop())
	conv, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Append(ctx, "u1", conv.ID, &model.AppendMessageRequest{Role: "robot", Content: "hi"})
	assertKind(t, err, ErrValidation, "role must be one of: user, assistant, system")

	_, err = svc.Append(ctx, "u1", conv.ID, &model.AppendMessageRequest{Role: model.RoleUser})
	assertKind(t, err, ErrValidation, "content is required")
}

func TestHistoryService_PublishFailureDoesNotFailRequest(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("nats down")}
	svc := NewHistoryService(storage.NewMemoryStore(), pub, logger.Nop())

	conv, err := svc.Create(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.Append(ctx, "u1", conv.ID, &model.AppendMessageRequest{Role: model.RoleUser, Content: "hi"})
	require.NoError(t, err)

	svc.RecordUnavailable(ctx, "u1", conv.ID, "/api/chat", "timeout")
	require.Len(t, pub.events, 2)
	assert.Equal(t, model.EventTypeUpstreamUnavailable, pub.events[1].Type)
	assert.Equal(t, "timeout", pub.events[1].Reason)
}
