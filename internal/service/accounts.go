package service

import (
	"context"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/repairdesk/repair-service/internal/auth"
	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// AccountInput describes a new account.
type AccountInput struct {
	Username   string
	Password   string
	Name       string
	Email      string
	Phone      string
	Department string
	Role       domain.Role
}

func validatePassword(password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "password"})
	}
	return nil
}

func (in AccountInput) normalized() (AccountInput, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Department = strings.TrimSpace(in.Department)
	if in.Role == "" {
		in.Role = domain.RoleUser
	}

	fields := map[string]any{}
	if n := utf8.RuneCountInString(in.Username); n < 3 || n > 50 {
		fields["username"] = "must be 3 to 50 characters"
	}
	if n := utf8.RuneCountInString(in.Name); n == 0 || n > 100 {
		fields["name"] = "must be 1 to 100 characters"
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			fields["email"] = "invalid email address"
		}
	}
	if !in.Role.Valid() {
		fields["role"] = "unknown role"
	}
	if len(fields) > 0 {
		return in, apperrors.NewValidationError("invalid account", fields)
	}
	return in, validatePassword(in.Password)
}

// createAccount validates input, enforces unique username and email, and stores the user.
func createAccount(ctx context.Context, users repository.UserRepository, bcryptCost int, input AccountInput) (*domain.User, error) {
	in, err := input.normalized()
	if err != nil {
		return nil, err
	}

	if _, err := users.GetByUsername(ctx, in.Username); err == nil {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": in.Username})
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}
	if in.Email != "" {
		if _, err := users.GetByEmail(ctx, in.Email); err == nil {
			return nil, apperrors.NewConflict("email already registered", map[string]any{"email": in.Email})
		} else if !apperrors.IsNotFound(err) {
			return nil, apperrors.MapError(err)
		}
	}

	hash, err := auth.HashPassword(in.Password, bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Username:     in.Username,
		Name:         in.Name,
		Role:         in.Role,
		Phone:        in.Phone,
		Department:   in.Department,
		PasswordHash: hash,
	}
	if in.Email != "" {
		email := in.Email
		user.Email = &email
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
