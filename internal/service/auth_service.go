package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

const (
	minPasswordLength = 8
	// bcrypt only reads the first 72 bytes and rejects longer input.
	maxPasswordBytes = 72
)

// TokenRevoker blocks a token id until it expires.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// ResetNotifier delivers password reset tokens out of band.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, user *domain.User, token *domain.PasswordResetToken) error
}

// AuthResult is returned by register and login.
type AuthResult struct {
	User  *domain.User
	Token auth.IssuedToken
}

// RegisterInput is the public sign-up payload.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	revoker    TokenRevoker
	notifier   ResetNotifier
	tokenMgr   *auth.TokenManager
	logger     *zap.Logger
	bcryptCost int
	resetTTL   time.Duration
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Revoker           TokenRevoker
	ResetNotifier     ResetNotifier
	TokenManager      *auth.TokenManager
	Logger            *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.TokenManager
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	resetTTL := time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute
	if resetTTL <= 0 {
		resetTTL = 30 * time.Minute
	}
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		revoker:    deps.Revoker,
		notifier:   deps.ResetNotifier,
		tokenMgr:   tokens,
		logger:     logger,
		bcryptCost: cfg.BcryptCost,
		resetTTL:   resetTTL,
		now:        time.Now,
	}
}

// Register creates a requester account. Staff and admins are created by an admin.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.issue(user)
}

// Login authenticates any account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.Active() {
		return nil, apperrors.NewForbidden("account suspended")
	}
	return s.issue(user)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Logout revokes the caller's current token.
func (s *AuthService) Logout(ctx context.Context, principal *auth.Principal) error {
	if principal == nil || s.revoker == nil {
		return nil
	}
	if err := s.revoker.RevokeToken(ctx, principal.TokenID, principal.TokenExpiry); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// RequestPasswordReset issues a reset token for email. Unknown addresses are
// not reported so the endpoint cannot be used to discover accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (*domain.PasswordResetToken, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Active() {
		return nil, nil
	}

	if err := s.resets.InvalidateForUser(ctx, user.ID); err != nil {
		return nil, apperrors.MapError(err)
	}
	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		ExpiresAt: s.now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.notifier != nil {
		if err := s.notifier.SendPasswordReset(ctx, user, token); err != nil {
			s.logger.Warn("password reset delivery failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return token, nil
}

// ConfirmPasswordReset validates the reset token and updates password.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	token, err := s.resets.Consume(ctx, strings.TrimSpace(tokenStr), s.now())
	if err != nil {
		if apperrors.IsNotFound(err) {
			return apperrors.NewValidationError("reset token invalid or expired", nil)
		}
		return apperrors.MapError(err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		return notFoundOr(err, "user", token.UserID)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFoundOr(err, "user", userID)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": minPasswordLength})
	}
	if len(password) > maxPasswordBytes {
		return apperrors.NewValidationError("password too long", map[string]any{"max_bytes": maxPasswordBytes})
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
