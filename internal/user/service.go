package user

import (
	"log/slog"
	"net/mail"
	"strings"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/auth"
	"github.com/icastillejo/practice-management/internal/core/i18n"
)

// Repository defines the data access methods for account administration.
// Mutating methods persist the given audit entry in the same transaction.
type Repository interface {
	List() ([]*auth.User, error)
	GetByID(id int64) (*auth.User, error)
	GetByEmail(email string) (*auth.User, error)
	Create(u *auth.User, passwordHash string, entry *audit.Entry) (*auth.User, error)
	Update(id int64, role string, active bool, entry *audit.Entry) (*auth.User, error)
	UpdatePassword(id int64, passwordHash string, entry *audit.Entry) error
}

// Service handles account administration. HTTP callers always carry an admin
// actor; a nil actor marks a trusted CLI caller and skips the capability
// check.
type Service struct {
	repo    Repository
	caps    *auth.Capabilities
	catalog *i18n.Catalog
	sec     internal.SecurityConfig
	logger  *slog.Logger
}

func NewService(repo Repository, caps *auth.Capabilities, catalog *i18n.Catalog, sec internal.SecurityConfig, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		caps:    caps,
		catalog: catalog,
		sec:     sec,
		logger:  logger,
	}
}

func (s *Service) allowed(actor *auth.User) bool {
	return actor == nil || s.caps.Can(actor, auth.ActionManageUsers)
}

func (s *Service) ListUsers(actor *auth.User) ([]*auth.UserResponse, error) {
	if !s.allowed(actor) {
		return nil, internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	users, err := s.repo.List()
	if err != nil {
		s.logger.Error("failed to list users", "error", err)
		return nil, internal.NewInternalError("could not list users", err)
	}

	out := make([]*auth.UserResponse, len(users))
	for i, u := range users {
		resp := u.ToResponse()
		out[i] = &resp
	}
	return out, nil
}

func (s *Service) GetUserByEmail(actor *auth.User, email string) (*auth.User, error) {
	if !s.allowed(actor) {
		return nil, internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	u, err := s.repo.GetByEmail(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "email", email)
		return nil, internal.NewInternalError("could not get user", err)
	}
	if u == nil {
		return nil, internal.NewNotFoundError(s.catalog.T("user.not_found"), internal.ErrCodeUserNotFound)
	}
	return u, nil
}

// CreateUser provisions an account without the registration allowlist; it is
// the admin/CLI counterpart of self-service registration.
func (s *Service) CreateUser(actor *auth.User, meta internal.RequestMeta, dto CreateUserDTO) (*auth.User, string, error) {
	if !s.allowed(actor) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	email := strings.TrimSpace(strings.ToLower(dto.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", internal.NewValidationFieldError("email", s.catalog.T("auth.email_invalid"), internal.ErrCodeInvalidEmail)
	}
	if appErr := auth.ValidatePassword(dto.Password, s.sec.PasswordMinLength, s.catalog); appErr != nil {
		return nil, "", appErr
	}

	role := dto.Role
	if role == "" {
		role = auth.RoleTherapist
	}
	if !auth.ValidRole(role) {
		return nil, "", internal.NewValidationError(s.catalog.T("user.role_invalid"), internal.ErrCodeInvalidRole)
	}

	existing, err := s.repo.GetByEmail(email)
	if err != nil {
		s.logger.Error("failed to check email", "error", err, "email", email)
		return nil, "", internal.NewInternalError("could not create user", err)
	}
	if existing != nil {
		return nil, "", internal.NewConflictError(s.catalog.T("auth.email_taken"), internal.ErrCodeDuplicateEmail)
	}

	name := strings.TrimSpace(dto.Name)
	if name == "" {
		name = email
		if i := strings.IndexByte(email, '@'); i > 0 {
			name = email[:i]
		}
	}

	hash, err := auth.HashPassword(dto.Password, s.sec.BCryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, "", internal.NewInternalError("could not create user", err)
	}

	entry := audit.NewEntry(actorID(actor), audit.ActionCreate, audit.TargetUsers, 0, "user created").
		WithChanges(nil, map[string]string{"email": email, "role": role}).
		WithRequest(meta)

	created, err := s.repo.Create(&auth.User{
		Email:    email,
		Name:     name,
		Role:     role,
		IsActive: true,
	}, hash, entry)
	if err != nil {
		s.logger.Error("failed to create user", "error", err, "email", email)
		return nil, "", internal.NewInternalError("could not create user", err)
	}

	s.logger.Info("user created", "user_id", created.ID, "email", email, "role", role)
	return created, s.catalog.T("user.created"), nil
}

// UpdateUser changes role and/or active state. The confirmation message
// reflects an activation or deactivation when that is the only change.
func (s *Service) UpdateUser(actor *auth.User, meta internal.RequestMeta, id int64, dto UpdateUserDTO) (*auth.UserResponse, string, error) {
	if !s.allowed(actor) {
		return nil, "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	current, err := s.repo.GetByID(id)
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "user_id", id)
		return nil, "", internal.NewInternalError("could not update user", err)
	}
	if current == nil {
		return nil, "", internal.NewNotFoundError(s.catalog.T("user.not_found"), internal.ErrCodeUserNotFound)
	}

	role := current.Role
	if dto.Role != nil {
		role = *dto.Role
		if !auth.ValidRole(role) {
			return nil, "", internal.NewValidationError(s.catalog.T("user.role_invalid"), internal.ErrCodeInvalidRole)
		}
	}
	active := current.IsActive
	if dto.IsActive != nil {
		active = *dto.IsActive
	}

	entry := audit.NewEntry(actorID(actor), audit.ActionUpdate, audit.TargetUsers, id, "user updated").
		WithChanges(
			map[string]interface{}{"role": current.Role, "is_active": current.IsActive},
			map[string]interface{}{"role": role, "is_active": active},
		).
		WithRequest(meta)

	updated, err := s.repo.Update(id, role, active, entry)
	if err != nil {
		s.logger.Error("failed to update user", "error", err, "user_id", id)
		return nil, "", internal.NewInternalError("could not update user", err)
	}

	key := "user.updated"
	if dto.Role == nil && dto.IsActive != nil {
		if active {
			key = "user.activated"
		} else {
			key = "user.deactivated"
		}
	}

	s.logger.Info("user updated", "user_id", id, "role", role, "is_active", active)
	resp := updated.ToResponse()
	return &resp, s.catalog.T(key), nil
}

// ResetPassword sets a new password for the account with the given email.
func (s *Service) ResetPassword(actor *auth.User, meta internal.RequestMeta, email, newPassword string) (string, error) {
	if !s.allowed(actor) {
		return "", internal.NewForbiddenError(s.catalog.T("permission.denied"), internal.ErrCodePermissionDenied)
	}

	target, err := s.repo.GetByEmail(strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		s.logger.Error("failed to get user", "error", err, "email", email)
		return "", internal.NewInternalError("could not reset password", err)
	}
	if target == nil {
		return "", internal.NewNotFoundError(s.catalog.T("user.not_found"), internal.ErrCodeUserNotFound)
	}

	if appErr := auth.ValidatePassword(newPassword, s.sec.PasswordMinLength, s.catalog); appErr != nil {
		return "", appErr
	}

	hash, err := auth.HashPassword(newPassword, s.sec.BCryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return "", internal.NewInternalError("could not reset password", err)
	}

	entry := audit.NewEntry(actorID(actor), audit.ActionPasswordReset, audit.TargetUsers, target.ID, "password reset").
		WithChanges(map[string]string{"password_hash": "REDACTED"}, map[string]string{"password_hash": "REDACTED"}).
		WithRequest(meta)

	if err := s.repo.UpdatePassword(target.ID, hash, entry); err != nil {
		s.logger.Error("failed to reset password", "error", err, "user_id", target.ID)
		return "", internal.NewInternalError("could not reset password", err)
	}

	s.logger.Info("password reset", "user_id", target.ID)
	return s.catalog.T("auth.password_changed"), nil
}

func actorID(actor *auth.User) *int64 {
	if actor == nil {
		return nil
	}
	return audit.ActorID(actor.ID)
}
