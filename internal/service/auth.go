package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skybound-ai/gateway/internal/auth"
	"github.com/skybound-ai/gateway/internal/model"
	"github.com/skybound-ai/gateway/internal/storage"
	"github.com/skybound-ai/gateway/pkg/logger"
	"github.com/skybound-ai/gateway/pkg/metrics"
)

// AuthService handles registration, login and profile operations.
type AuthService struct {
	store      storage.Store
	tokens     *auth.TokenService
	bcryptCost int
	logger     *logger.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(store storage.Store, tokens *auth.TokenService, bcryptCost int, log *logger.Logger) *AuthService {
	return &AuthService{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     log,
	}
}

// Register creates an account and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResponse, error) {
	if err := model.Validate(req); err != nil {
		metrics.RecordAuth("register", "invalid")
		return nil, validationError(err.Error())
	}

	if err := s.checkAvailable(ctx, req.Email, req.Username); err != nil {
		metrics.RecordAuth("register", "conflict")
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, req, hash)
	if errors.Is(err, storage.ErrDuplicate) {
		// Lost a race with a concurrent registration.
		metrics.RecordAuth("register", "conflict")
		if cerr := s.checkAvailable(ctx, req.Email, req.Username); cerr != nil {
			return nil, cerr
		}
		return nil, conflictError("Email already registered")
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordAuth("register", "success")
	s.logger.Info("user registered", zap.String("user_id", user.ID))

	return &model.AuthResponse{User: user.Public(), Token: token}, nil
}

func (s *AuthService) checkAvailable(ctx context.Context, email, username string) error {
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		return conflictError("Email already registered")
	}

	existing, err = s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("lookup username: %w", err)
	}
	if existing != nil {
		return conflictError("Username already taken")
	}
	return nil
}

// Login checks credentials and returns the user with a fresh token. Unknown
// email and wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		metrics.RecordAuth("login", "invalid")
		return nil, validationError("Email and password required")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if user == nil {
		auth.BurnVerification(req.Password)
		metrics.RecordAuth("login", "failure")
		return nil, invalidCredentials
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		metrics.RecordAuth("login", "failure")
		return nil, invalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	metrics.RecordAuth("login", "success")

	return &model.AuthResponse{User: user.Public(), Token: token}, nil
}

// Me returns the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*model.PublicUser, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFoundError("User not found")
	}
	return user.Public(), nil
}

// UpdateProfile applies the supplied profile fields.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req *model.UpdateUserRequest) (*model.PublicUser, error) {
	if err := model.Validate(req); err != nil {
		return nil, validationError(err.Error())
	}

	user, err := s.store.UpdateUser(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if user == nil {
		return nil, notFoundError("User not found")
	}
	return user.Public(), nil
}

// ChangePassword replaces the password after checking the current one.
// Issued tokens stay valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *model.ChangePasswordRequest) error {
	if err := model.Validate(req); err != nil {
		return validationError(err.Error())
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return notFoundError("User not found")
	}

	if !auth.VerifyPassword(req.CurrentPassword, user.PasswordHash) {
		metrics.RecordAuth("change_password", "failure")
		return invalidCredentials
	}

	hash, err := auth.HashPassword(req.NewPassword, s.bcryptCost)
	if err != nil {
		return err
	}

	updated, err := s.store.UpdatePassword(ctx, userID, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if updated == nil {
		return notFoundError("User not found")
	}

	metrics.RecordAuth("change_password", "success")
	s.logger.Info("password changed", zap.String("user_id", userID))

	return nil
}
