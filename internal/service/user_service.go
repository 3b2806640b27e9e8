package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/repository"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
	Role       *domain.Role
	Status     *domain.UserStatus
	SearchTerm *string
	Limit      int
	Offset     int
}

// CreateUserInput is an admin-created account of any role.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UpdateUserInput carries optional changes; nil fields are left alone.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
	Role     *domain.Role
}

// UserService implements account administration.
type UserService struct {
	users       repository.UserRepository
	attachments repository.AttachmentRepository
	files       FileStore
	stats       StatsInvalidator
	policy      *auth.Policy
	bcryptCost  int
	logger      *zap.Logger
}

// UserDependencies groups the collaborators of UserService. Attachments,
// Files and Stats are only needed to clean up after deleting a user.
type UserDependencies struct {
	UserRepo       repository.UserRepository
	AttachmentRepo repository.AttachmentRepository
	Files          FileStore
	Stats          StatsInvalidator
	Policy         *auth.Policy
	BcryptCost     int
	Logger         *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{
		users:       deps.UserRepo,
		attachments: deps.AttachmentRepo,
		files:       deps.Files,
		stats:       deps.Stats,
		policy:      deps.Policy,
		bcryptCost:  deps.BcryptCost,
		logger:      logger,
	}
}

func (s *UserService) requireManage(actor *domain.User) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !s.policy.Can(actor.Role, auth.ActionUserManage) {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// ListUsers returns accounts matching filter.
func (s *UserService) ListUsers(ctx context.Context, actor *domain.User, filter UserListFilter) ([]domain.User, error) {
	if err := s.requireManage(actor); err != nil {
		return nil, err
	}
	repoFilter := repository.UserFilter{
		Status:     filter.Status,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if filter.Role != nil {
		repoFilter.Roles = []domain.Role{*filter.Role}
	}
	users, err := s.users.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// ListStaff returns active accounts that can be assigned tickets, sorted by name.
func (s *UserService) ListStaff(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !s.policy.Can(actor.Role, auth.ActionUserListStaff) {
		return nil, apperrors.NewForbidden("staff role required")
	}
	active := domain.UserStatusActive
	users, err := s.users.List(ctx, repository.UserFilter{
		Roles:   []domain.Role{domain.RoleStaff, domain.RoleAdmin},
		Status:  &active,
		OrderBy: "name",
		Limit:   500,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// GetUser fetches a single account.
func (s *UserService) GetUser(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := s.requireManage(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	return user, nil
}

// CreateUser provisions an account with an explicit role.
func (s *UserService) CreateUser(ctx context.Context, actor *domain.User, input CreateUserInput) (*domain.User, error) {
	if err := s.requireManage(actor); err != nil {
		return nil, err
	}
	return s.createAccount(ctx, input)
}

// SeedAdmin makes sure an active admin with email exists. An existing account
// is promoted and reactivated; its password is left alone. The bool reports
// whether a new account was created.
func (s *UserService) SeedAdmin(ctx context.Context, name, email, password string) (*domain.User, bool, error) {
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		if existing.Role == domain.RoleAdmin && existing.Active() {
			return existing, false, nil
		}
		existing.Role = domain.RoleAdmin
		existing.Status = domain.UserStatusActive
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, false, apperrors.MapError(err)
		}
		return existing, false, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, false, apperrors.MapError(err)
	}
	user, err := s.createAccount(ctx, CreateUserInput{Name: name, Email: email, Password: password, Role: domain.RoleAdmin})
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (s *UserService) createAccount(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role_id": int(input.Role)})
	}
	if err := validatePassword(input.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Status:       domain.UserStatusActive,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// UpdateUser applies admin edits. Admins cannot demote themselves.
func (s *UserService) UpdateUser(ctx context.Context, actor *domain.User, id string, input UpdateUserInput) (*domain.User, error) {
	if err := s.requireManage(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewValidationError("name cannot be empty", nil)
		}
		user.Name = name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if email == "" {
			return nil, apperrors.NewValidationError("email cannot be empty", nil)
		}
		user.Email = email
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"role_id": int(*input.Role)})
		}
		if user.ID == actor.ID && *input.Role != user.Role {
			return nil, apperrors.NewForbidden("cannot change your own role")
		}
		user.Role = *input.Role
	}
	if input.Password != nil {
		if err := validatePassword(*input.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ToggleStatus flips an account between ACTIVE and SUSPENDED.
func (s *UserService) ToggleStatus(ctx context.Context, actor *domain.User, id string) (*domain.User, error) {
	if err := s.requireManage(actor); err != nil {
		return nil, err
	}
	if id == actor.ID {
		return nil, apperrors.NewForbidden("cannot suspend yourself")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user", id)
	}
	if user.Status == domain.UserStatusActive {
		user.Status = domain.UserStatusSuspended
	} else {
		user.Status = domain.UserStatusActive
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// DeleteUser removes an account and, through cascades, its tickets.
func (s *UserService) DeleteUser(ctx context.Context, actor *domain.User, id string) error {
	if err := s.requireManage(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return apperrors.NewForbidden("cannot delete yourself")
	}
	var orphaned []domain.Attachment
	if s.attachments != nil && s.files != nil {
		owned, err := s.attachments.ListOwnedBy(ctx, id)
		if err != nil {
			return apperrors.MapError(err)
		}
		orphaned = owned
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return notFoundOr(err, "user", id)
	}
	for _, a := range orphaned {
		if err := s.files.Remove(a.StoredName); err != nil {
			s.logger.Warn("failed to remove attachment file", zap.String("file", a.StoredName), zap.Error(err))
		}
	}
	if s.stats != nil {
		if err := s.stats.InvalidateStats(ctx); err != nil {
			s.logger.Warn("failed to invalidate stats cache", zap.Error(err))
		}
	}
	return nil
}
