package service

import (
	"context"

	"github.com/repairdesk/repair-service/internal/domain"
	"github.com/repairdesk/repair-service/internal/repository"
	apperrors "github.com/repairdesk/repair-service/pkg/util/errorutil"
)

// UserService exposes account administration.
type UserService struct {
	users      repository.UserRepository
	bcryptCost int
}

// NewUserService builds the service.
func NewUserService(users repository.UserRepository, bcryptCost int) *UserService {
	return &UserService{users: users, bcryptCost: bcryptCost}
}

// UserPage is a page of accounts.
type UserPage struct {
	Items []domain.User
	PageInfo
}

// List returns accounts, optionally limited to one role.
func (s *UserService) List(ctx context.Context, role *domain.Role, page PageRequest) (*UserPage, error) {
	if role != nil && !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": *role})
	}
	page = page.normalize(20, 100)
	items, total, err := s.users.List(ctx, repository.UserFilter{Role: role, Page: page.repoPage()})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &UserPage{Items: items, PageInfo: page.info(total)}, nil
}

// Technicians lists every account with the Technician role.
func (s *UserService) Technicians(ctx context.Context) ([]domain.User, error) {
	role := domain.RoleTechnician
	items, _, err := s.users.List(ctx, repository.UserFilter{Role: &role, Page: repository.Page{Limit: 1000}})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// Get loads one account.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// Create provisions an account with any role.
func (s *UserService) Create(ctx context.Context, input AccountInput) (*domain.User, error) {
	return createAccount(ctx, s.users, s.bcryptCost, input)
}

// UpdateRole changes a user's role. Admins cannot demote themselves.
func (s *UserService) UpdateRole(ctx context.Context, actor *domain.User, id string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}
	if actor != nil && actor.ID == id && role != domain.RoleAdmin {
		return nil, apperrors.NewConflict("admins cannot demote themselves", nil)
	}
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	return user, nil
}
