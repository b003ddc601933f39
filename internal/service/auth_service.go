package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/auth"
	"github.com/repairdesk/repair-service/internal/config"
	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	users    repository.UserRepository
	resets   repository.PasswordResetRepository
	tokenMgr *auth.TokenManager
	lockout  LoginLimiter
	mail     MailQueue
	logger   *zap.Logger
	cfg      config.AuthConfig
	now      func() time.Time
}

// AuthDependencies encapsulates requirements for auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Lockout           LoginLimiter
	Mail              MailQueue
	Logger            *zap.Logger
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:    deps.UserRepo,
		resets:   deps.PasswordResetRepo,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.Issuer, cfg.Audience, cfg.AccessTokenTTLMinutes),
		lockout:  deps.Lockout,
		mail:     deps.Mail,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// Register creates a User-role account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, input AccountInput) (*AuthResult, error) {
	input.Role = domain.RoleUser
	user, err := createAccount(ctx, s.users, s.cfg.BcryptCost, input)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Login authenticates by username and password.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}
	if err := s.checkLockout(ctx, username); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, s.failLogin(ctx, username)
		}
		return nil, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failLogin(ctx, username)
	}

	s.clearLockout(ctx, username)
	s.upgradeHash(ctx, user, password)
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	return s.issue(user)
}

// Me returns the current account.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": userID})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// ChangePassword verifies current password before updating to new hash.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	user, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"field": "old_password"})
	}
	hash, err := auth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return apperrors.MapError(s.users.Update(ctx, user))
}

// RequestPasswordReset mails a single-use token when email belongs to an
// account. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", map[string]any{"field": "email"})
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		return apperrors.MapError(err)
	}

	value, err := newResetToken()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	token := &domain.PasswordResetToken{
		UserID:    user.ID,
		Token:     value,
		ExpiresAt: s.now().Add(time.Duration(s.cfg.PasswordResetTTLMinutes) * time.Minute),
	}
	if err := s.resets.Create(ctx, token); err != nil {
		return apperrors.MapError(err)
	}
	if s.mail != nil {
		if err := s.mail.Enqueue(passwordResetMessage(user, token)); err != nil {
			s.logger.Warn("password reset mail not queued", zap.String("user_id", user.ID), zap.Error(err))
		}
	}
	return nil
}

// ConfirmPasswordReset redeems a reset token and sets the new password. The
// token is claimed and the password written together, so a token works once.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, tokenStr, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	token, err := s.resets.GetByToken(ctx, strings.TrimSpace(tokenStr))
	if err != nil {
		if apperrors.IsNotFound(err) {
			return errInvalidResetToken()
		}
		return apperrors.MapError(err)
	}
	if !token.Usable(s.now()) {
		return errInvalidResetToken()
	}

	user, err := s.Me(ctx, token.UserID)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.resets.Redeem(ctx, token.ID, hash, s.now()); err != nil {
		if apperrors.IsNotFound(err) {
			return errInvalidResetToken()
		}
		return apperrors.MapError(err)
	}
	s.clearLockout(ctx, user.Username)
	return nil
}

func errInvalidResetToken() error {
	return apperrors.NewValidationError("invalid or expired token", nil)
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// upgradeHash re-hashes with the configured cost after a successful login.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) {
	if !auth.NeedsRehash(user.PasswordHash, s.cfg.BcryptCost) {
		return
	}
	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err == nil {
		user.PasswordHash = hash
		err = s.users.Update(ctx, user)
	}
	if err != nil {
		s.logger.Warn("failed to upgrade password hash", zap.String("user_id", user.ID), zap.Error(err))
	}
}

func (s *AuthService) lockoutWindow() time.Duration {
	return time.Duration(s.cfg.LockoutMinutes) * time.Minute
}

// checkLockout fails open: a Redis outage must not block logins.
func (s *AuthService) checkLockout(ctx context.Context, username string) error {
	if s.lockout == nil || s.cfg.LockoutThreshold <= 0 {
		return nil
	}
	state, err := s.lockout.Get(ctx, username)
	if err != nil {
		s.logger.Warn("lockout store unavailable", zap.Error(err))
		return nil
	}
	if state.Locked(s.now()) {
		return apperrors.NewTooManyAttempts("too many failed login attempts", map[string]any{
			"retry_after": state.LockedUntil.UTC().Format(time.RFC3339),
		})
	}
	return nil
}

func (s *AuthService) failLogin(ctx context.Context, username string) error {
	if s.lockout != nil && s.cfg.LockoutThreshold > 0 {
		state, err := s.lockout.RecordFailure(ctx, username, s.now(), s.cfg.LockoutThreshold, s.lockoutWindow())
		if err != nil {
			s.logger.Warn("lockout store unavailable", zap.Error(err))
		} else if state.LockedUntil != nil {
			s.logger.Warn("login locked", zap.String("username", username), zap.Int("failures", state.FailedCount))
		}
	}
	return apperrors.NewUnauthorized("invalid credentials")
}

func (s *AuthService) clearLockout(ctx context.Context, username string) {
	if s.lockout == nil {
		return
	}
	if err := s.lockout.Clear(ctx, username); err != nil {
		s.logger.Warn("lockout store unavailable", zap.Error(err))
	}
}

func newResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
