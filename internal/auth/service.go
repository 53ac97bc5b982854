package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"

	"github.com/icastillejo/practice-management/internal"
	"github.com/icastillejo/practice-management/internal/audit"
	"github.com/icastillejo/practice-management/internal/core/i18n"
)

// RepositoryAPI is the persistence surface the auth service needs. Mutating
// methods take the audit entry that must commit atomically with the change.
type RepositoryAPI interface {
	GetByEmail(email string) (user *User, passwordHash string, err error)
	GetByID(id int64) (*User, error)
	Create(u *User, passwordHash string, entry *audit.Entry) (*User, error)
	UpdatePassword(userID int64, passwordHash string, entry *audit.Entry) error
	RecordLogin(userID int64, at time.Time, entry *audit.Entry) error
	InsertAudit(entry *audit.Entry) error
}

// Service is the main auth service with dependencies
type Service struct {
	userRepo       RepositoryAPI
	tokenGenerator TokenGenerator
	catalog        *i18n.Catalog
	caps           *Capabilities
	bcryptCost     int
	allowedEmails  map[string]bool
	passwordMin    int
	logger         *slog.Logger
}

// NewService creates a new auth service
func NewService(userRepo RepositoryAPI, tokenGen TokenGenerator, catalog *i18n.Catalog, cfg internal.SecurityConfig, caps *Capabilities, logger *slog.Logger) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedEmails))
	for _, email := range cfg.AllowedEmails {
		allowed[strings.ToLower(strings.TrimSpace(email))] = true
	}

	return &Service{
		userRepo:       userRepo,
		tokenGenerator: tokenGen,
		catalog:        catalog,
		caps:           caps,
		bcryptCost:     cfg.BCryptCost,
		allowedEmails:  allowed,
		passwordMin:    cfg.PasswordMinLength,
		logger:         logger,
	}
}

// RBACAuthorization exposes route middleware built on the same capability
// table the services consult.
func (s *Service) RBACAuthorization() *RBACAuthorization {
	return NewRBACAuthorization(s.caps, s.logger)
}

// NewJWTTokenGenerator creates a new JWT token generator
func NewJWTTokenGenerator(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTTokenGenerator {
	return &JWTTokenGenerator{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
	}
}

// Authenticate validates credentials, records the login in the audit trail
// and returns tokens. A wrong password leaves a LOGIN_FAILED entry; an
// unknown email does not, so the trail never confirms which emails exist.
func (s *Service) Authenticate(dto LoginDTO, meta internal.RequestMeta) (*LoginResponse, string, error) {
	if dto.Email == "" || dto.Password == "" {
		return nil, "", internal.NewValidationError(s.catalog.T("auth.fields_required"), internal.ErrCodeValidationFailed)
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))

	user, storedHash, err := s.userRepo.GetByEmail(email)
	if err != nil {
		s.logger.Error("failed to look up user for login", "error", err)
		return nil, "", internal.NewInternalError("could not authenticate", err)
	}

	if user == nil {
		s.logger.Warn("login attempt for unknown email")
		return nil, "", internal.NewUnauthorizedError(s.catalog.T("auth.invalid_credentials"), internal.ErrCodeInvalidCredentials).WithCause(ErrInvalidCredentials)
	}

	if !user.IsActive {
		s.logger.Warn("login attempt for inactive user", "user_id", user.ID)
		return nil, "", internal.NewUnauthorizedError(s.catalog.T("auth.account_disabled"), internal.ErrCodeUserInactive)
	}

	if err := VerifyPassword(storedHash, dto.Password); err != nil {
		entry := audit.NewEntry(nil, audit.ActionLoginFailed, audit.TargetUsers, user.ID, "failed login attempt").
			WithRequest(meta)
		if auditErr := s.userRepo.InsertAudit(entry); auditErr != nil {
			s.logger.Error("failed to record failed login", "error", auditErr, "user_id", user.ID)
		}

		s.logger.Warn("failed login attempt", "user_id", user.ID)
		return nil, "", internal.NewUnauthorizedError(s.catalog.T("auth.invalid_credentials"), internal.ErrCodeInvalidCredentials).WithCause(ErrInvalidCredentials)
	}

	now := time.Now().UTC()
	entry := audit.NewEntry(audit.ActorID(user.ID), audit.ActionLogin, audit.TargetUsers, user.ID, "user logged in").
		WithRequest(meta)
	if err := s.userRepo.RecordLogin(user.ID, now, entry); err != nil {
		s.logger.Error("failed to record login", "error", err, "user_id", user.ID)
		return nil, "", internal.NewInternalError("could not authenticate", err)
	}
	user.LastLoginAt = &now

	userID := strconv.FormatInt(user.ID, 10)
	accessToken, err := s.tokenGenerator.GenerateAccessToken(userID, user.Email)
	if err != nil {
		return nil, "", internal.NewInternalError("could not issue tokens", err)
	}
	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(userID, user.Email)
	if err != nil {
		return nil, "", internal.NewInternalError("could not issue tokens", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)

	return &LoginResponse{
		Tokens: AuthTokens{AccessToken: accessToken, RefreshToken: refreshToken},
		User:   user.ToResponse(),
	}, s.catalog.T("auth.login_ok"), nil
}

// Register creates an account. When an allowlist is configured only listed
// emails may register; everyone starts as an active therapist.
func (s *Service) Register(dto RegisterDTO, meta internal.RequestMeta) (*User, string, error) {
	if dto.Email == "" || dto.Password == "" {
		return nil, "", internal.NewValidationError(s.catalog.T("auth.fields_required"), internal.ErrCodeValidationFailed)
	}

	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", internal.NewValidationFieldError("email", s.catalog.T("auth.email_invalid"), internal.ErrCodeInvalidEmail)
	}
	if len(email) > 255 {
		return nil, "", internal.NewValidationFieldError("email", s.catalog.T("auth.email_too_long"), internal.ErrCodeInvalidEmail)
	}

	if appErr := s.validatePassword(dto.Password); appErr != nil {
		return nil, "", appErr
	}

	if len(s.allowedEmails) > 0 && !s.allowedEmails[email] {
		s.logger.Warn("registration attempt with unauthorized email")
		return nil, "", internal.NewForbiddenError(s.catalog.T("auth.email_not_allowed"), internal.ErrCodeEmailNotAllowed)
	}

	existing, _, err := s.userRepo.GetByEmail(email)
	if err != nil {
		s.logger.Error("failed to check existing email", "error", err)
		return nil, "", internal.NewInternalError("could not register", err)
	}
	if existing != nil {
		return nil, "", internal.NewConflictError(s.catalog.T("auth.email_taken"), internal.ErrCodeDuplicateEmail)
	}

	hash, err := HashPassword(dto.Password, s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err)
		return nil, "", internal.NewInternalError("could not register", err)
	}

	name := strings.TrimSpace(dto.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	user := &User{
		Email:    email,
		Name:     name,
		Role:     RoleTherapist,
		IsActive: true,
	}

	entry := audit.NewEntry(nil, audit.ActionCreate, audit.TargetUsers, 0, "user registered").
		WithChanges(nil, map[string]string{"email": email, "role": user.Role}).
		WithRequest(meta)

	created, err := s.userRepo.Create(user, hash, entry)
	if err != nil {
		s.logger.Error("failed to create user", "error", err)
		return nil, "", internal.NewInternalError("could not register", err)
	}

	s.logger.Info("new user registered", "user_id", created.ID)
	return created, s.catalog.T("auth.registered"), nil
}

// ChangePassword verifies the current password before storing a new one.
func (s *Service) ChangePassword(actor *User, dto ChangePasswordDTO, meta internal.RequestMeta) (string, error) {
	if actor == nil {
		return "", internal.NewUnauthorizedError(s.catalog.T("auth.token_invalid"), internal.ErrCodeInvalidToken)
	}

	_, storedHash, err := s.userRepo.GetByEmail(actor.Email)
	if err != nil {
		s.logger.Error("failed to load user for password change", "error", err, "user_id", actor.ID)
		return "", internal.NewInternalError("could not change password", err)
	}

	if err := VerifyPassword(storedHash, dto.CurrentPassword); err != nil {
		return "", internal.NewValidationFieldError("current_password", s.catalog.T("auth.password_wrong"), internal.ErrCodeInvalidPassword)
	}

	if appErr := s.validatePassword(dto.NewPassword); appErr != nil {
		return "", appErr
	}

	newHash, err := HashPassword(dto.NewPassword, s.bcryptCost)
	if err != nil {
		s.logger.Error("failed to hash password", "error", err, "user_id", actor.ID)
		return "", internal.NewInternalError("could not change password", err)
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionUpdate, audit.TargetUsers, actor.ID, "password changed").
		WithChanges(map[string]string{"password_hash": "REDACTED"}, map[string]string{"password_hash": "REDACTED"}).
		WithRequest(meta)

	if err := s.userRepo.UpdatePassword(actor.ID, newHash, entry); err != nil {
		s.logger.Error("failed to update password", "error", err, "user_id", actor.ID)
		return "", internal.NewInternalError("could not change password", err)
	}

	s.logger.Info("password changed", "user_id", actor.ID)
	return s.catalog.T("auth.password_changed"), nil
}

// Logout records the logout. Tokens are stateless so there is nothing to
// revoke server-side.
func (s *Service) Logout(actor *User, meta internal.RequestMeta) (string, error) {
	if actor == nil {
		return "", internal.NewUnauthorizedError(s.catalog.T("auth.token_invalid"), internal.ErrCodeInvalidToken)
	}

	entry := audit.NewEntry(audit.ActorID(actor.ID), audit.ActionLogout, audit.TargetUsers, actor.ID, "user logged out").
		WithRequest(meta)
	if err := s.userRepo.InsertAudit(entry); err != nil {
		s.logger.Error("failed to record logout", "error", err, "user_id", actor.ID)
		return "", internal.NewInternalError("could not log out", err)
	}

	s.logger.Info("user logged out", "user_id", actor.ID)
	return s.catalog.T("auth.logout_ok"), nil
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateToken(refreshToken)
	if err != nil {
		return AuthTokens{}, err
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return AuthTokens{}, ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		s.logger.Error("failed to load user for token refresh", "error", err, "user_id", userID)
		return AuthTokens{}, err
	}
	if user == nil {
		return AuthTokens{}, ErrInvalidToken
	}
	if !user.IsActive {
		return AuthTokens{}, ErrUserInactive
	}

	accessToken, err := s.tokenGenerator.GenerateAccessToken(claims.UserID, claims.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	newRefreshToken, err := s.tokenGenerator.GenerateRefreshToken(claims.UserID, claims.Email)
	if err != nil {
		return AuthTokens{}, err
	}

	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

// ValidateAccessToken validates access token and returns claims
func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

// GetUserByID loads the full user record, nil when absent.
func (s *Service) GetUserByID(id int64) (*User, error) {
	return s.userRepo.GetByID(id)
}

func (s *Service) validatePassword(password string) *internal.AppError {
	return ValidatePassword(password, s.passwordMin, s.catalog)
}

// ValidatePassword enforces the password policy: a minimum length plus at
// least one letter and one digit.
func ValidatePassword(password string, minLength int, catalog *i18n.Catalog) *internal.AppError {
	if minLength <= 0 {
		minLength = 8
	}

	if utf8.RuneCountInString(password) < minLength {
		return internal.NewValidationFieldError("password", catalog.T("auth.password_too_short", minLength), internal.ErrCodeInvalidPassword)
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return internal.NewValidationFieldError("password", catalog.T("auth.password_weak"), internal.ErrCodeInvalidPassword)
	}

	return nil
}

// GenerateAccessToken creates a new access token
func (j *JWTTokenGenerator) GenerateAccessToken(userID string, email string) (string, error) {
	expiresAt := time.Now().Add(j.AccessTokenTTL)

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.AccessTokenSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GenerateRefreshToken creates a new refresh token
func (j *JWTTokenGenerator) GenerateRefreshToken(userID string, email string) (string, error) {
	expiresAt := time.Now().Add(j.RefreshTokenTTL)

	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.RefreshTokenSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTTokenGenerator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Check signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		// Refresh tokens outlive the access TTL, so pick the secret by the
		// claimed expiry.
		if claims, ok := token.Claims.(*Claims); ok {
			if time.Until(claims.ExpiresAt.Time) > j.AccessTokenTTL {
				return j.RefreshTokenSecret, nil
			}
		}
		return j.AccessTokenSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
