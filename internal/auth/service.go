package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/users"
	pkgAuth "github.com/angelmondragon/farmlink-backend/pkg/auth"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/reset"
	"github.com/angelmondragon/farmlink-backend/pkg/auth/session"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/security"
)

const (
	invalidCredentialsMessage = "invalid credentials"
	minPasswordLength         = 8
)

var errResetUnavailable = pkgerrors.New(pkgerrors.CodeDependency, "password reset is not configured")

// Service defines the behavior needed by the auth controller.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Result, error)
	Login(ctx context.Context, req LoginRequest) (*Result, error)
	Refresh(ctx context.Context, refreshToken string) (*Result, error)
	Logout(ctx context.Context, accessID string) error
	ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type userRepository interface {
	Create(ctx context.Context, dto users.NewUser) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error
}

// rehasher is implemented by hashers that can tell when a stored hash was
// produced with outdated costs.
type rehasher interface {
	NeedsRehash(encoded string) bool
}

type sessionManager interface {
	Start(ctx context.Context, userID uuid.UUID, role enums.UserRole) (session.Session, error)
	Rotate(ctx context.Context, refreshToken string) (session.Session, error)
	Revoke(ctx context.Context, accessID string) error
	RevokeAll(ctx context.Context, userID uuid.UUID) error
}

type resetCodes interface {
	Issue(ctx context.Context, userID uuid.UUID) (reset.Code, error)
	Consume(ctx context.Context, userID uuid.UUID, code string) error
}

// ResetNotifier delivers a password reset code to the account holder.
type ResetNotifier interface {
	PasswordResetRequested(ctx context.Context, user *models.User, code reset.Code) error
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	UserRepo       userRepository
	SessionManager sessionManager
	Hasher         security.Hasher
	JWTConfig      config.JWTConfig
	Now            func() time.Time
	// ResetCodes and ResetNotifier enable forgot/reset password. Without
	// both, those calls fail with DEPENDENCY_ERROR.
	ResetCodes    resetCodes
	ResetNotifier ResetNotifier
}

type service struct {
	users    userRepository
	session  sessionManager
	hasher   security.Hasher
	jwtCfg   config.JWTConfig
	now      func() time.Time
	codes    resetCodes
	notifier ResetNotifier
}

// NewService constructs the auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if params.SessionManager == nil {
		return nil, fmt.Errorf("session manager is required")
	}
	if params.Hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		users:    params.UserRepo,
		session:  params.SessionManager,
		hasher:   params.Hasher,
		jwtCfg:   params.JWTConfig,
		now:      now,
		codes:    params.ResetCodes,
		notifier: params.ResetNotifier,
	}, nil
}

// Register creates the account and signs the user in.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*Result, error) {
	email := normalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := checkPassword(req.Password); err != nil {
		return nil, err
	}
	role, err := enums.ParseUserRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "role must be FARMER or CUSTOMER")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var phone *string
	if req.Phone != nil {
		if trimmed := strings.TrimSpace(*req.Phone); trimmed != "" {
			phone = &trimmed
		}
	}

	user, err := s.users.Create(ctx, users.NewUser{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
	}
	return s.issue(ctx, user)
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Result, error) {
	user, err := s.authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update last login")
	}
	user.LastLoginAt = &now
	s.upgradeHash(ctx, user, req.Password)
	return s.issue(ctx, user)
}

// Refresh rotates the session: the old refresh token stops working and the
// role is re-read from the user record.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refresh token is required")
	}
	sess, err := s.session.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, session.ErrInvalidRefreshToken) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
	}

	user, err := s.users.FindByID(ctx, sess.UserID)
	if err != nil || !user.IsActive {
		_ = s.session.Revoke(ctx, sess.AccessID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account unavailable")
	}
	return s.mint(user, sess)
}

func (s *service) Logout(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session missing")
	}
	if err := s.session.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
	}
	return nil
}

// ForgotPassword sends a reset code when the email belongs to an active
// account. Unknown emails succeed silently so accounts cannot be enumerated.
func (s *service) ForgotPassword(ctx context.Context, req ForgotPasswordRequest) error {
	if s.codes == nil || s.notifier == nil {
		return errResetUnavailable
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if !user.IsActive {
		return nil
	}
	code, err := s.codes.Issue(ctx, user.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "issue reset code")
	}
	if err := s.notifier.PasswordResetRequested(ctx, user, code); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue reset code")
	}
	return nil
}

// ResetPassword sets a new password after the emailed code checks out and
// ends every session the user had.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	if s.codes == nil || s.notifier == nil {
		return errResetUnavailable
	}
	if err := checkPassword(req.NewPassword); err != nil {
		return err
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, reset.ErrInvalidCode.Error())
	}
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, reset.ErrInvalidCode.Error())
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	if err := s.codes.Consume(ctx, user.ID, req.Code); err != nil {
		switch {
		case errors.Is(err, reset.ErrTooManyAttempts):
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "too many attempts, request a new code")
		case errors.Is(err, reset.ErrInvalidCode):
			return pkgerrors.New(pkgerrors.CodeUnauthorized, reset.ErrInvalidCode.Error())
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check reset code")
	}
	if !user.IsActive {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "account unavailable")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update password")
	}
	if err := s.session.RevokeAll(ctx, user.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke sessions")
	}
	return nil
}

func (s *service) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	input := normalizeEmail(email)
	if input == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	user, err := s.users.FindByEmail(ctx, input)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	valid, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !valid || !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
	}
	return user, nil
}

// upgradeHash re-encodes the password when the hasher's costs changed since
// it was stored. Failures are ignored; the old hash still verifies.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	rh, ok := s.hasher.(rehasher)
	if !ok || !rh.NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err == nil {
		user.PasswordHash = hash
	}
}

func (s *service) issue(ctx context.Context, user *models.User) (*Result, error) {
	sess, err := s.session.Start(ctx, user.ID, user.Role)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session")
	}
	return s.mint(user, sess)
}

func (s *service) mint(user *models.User, sess session.Session) (*Result, error) {
	now := s.now()
	token, err := pkgAuth.MintAccessToken(s.jwtCfg, now, pkgAuth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
		JTI:    sess.AccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
	}
	return &Result{
		User:         users.ToDTO(user),
		Token:        token,
		RefreshToken: sess.RefreshToken,
		ExpiresAt:    now.Add(time.Duration(s.jwtCfg.ExpirationMinutes) * time.Minute),
	}, nil
}

func checkPassword(password string) error {
	if len(password) < minPasswordLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
