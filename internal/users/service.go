package users

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/natours/natours/internal/shared"
)

// ProfileInput is the body accepted by the self-service profile update.
// Only name, email and photo are applied; the password fields exist so that
// attempts to change a password through this path can be rejected.
type ProfileInput struct {
	Name            *string `json:"name" validate:"omitempty,max=100"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Photo           *string `json:"photo" validate:"omitempty,max=255"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
	PasswordCurrent *string `json:"passwordCurrent"`
}

// AdminInput is the body accepted by the administrative user update.
type AdminInput struct {
	Name            *string `json:"name" validate:"omitempty,max=100"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Photo           *string `json:"photo" validate:"omitempty,max=255"`
	Role            *string `json:"role" validate:"omitempty,oneof=user admin guide lead-guide"`
	Password        *string `json:"password"`
	PasswordConfirm *string `json:"passwordConfirm"`
}

// Service handles user profile business logic.
type Service struct {
	repo     Repository
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: shared.NewValidator()}
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id uuid.UUID, opts ...FindOption) (*User, error) {
	user, err := s.repo.FindByID(ctx, id, opts...)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFound(shared.ReasonNotFound, "No user found with that ID.")
		}
		return nil, err
	}
	return user, nil
}

// List returns one page of active users in creation order.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	list, err := s.repo.List(ctx, Window(p.Offset(), p.PerPage))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, p, nil
}

// UpdateProfile applies an allow-listed profile change for the caller.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*User, error) {
	if in.Password != nil || in.PasswordConfirm != nil || in.PasswordCurrent != nil {
		return nil, shared.Validation(shared.ReasonPasswordField, "This route is not for password updates. Please use /updatePassword.")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.ValidationFailure(err)
	}
	changes := Changes{Name: in.Name, Email: in.Email, Photo: in.Photo}
	if err := checkChanges(changes); err != nil {
		return nil, err
	}
	return s.update(ctx, id, changes)
}

// AdminUpdate applies an administrative change, which may include the role.
func (s *Service) AdminUpdate(ctx context.Context, id uuid.UUID, in AdminInput) (*User, error) {
	if in.Password != nil || in.PasswordConfirm != nil {
		return nil, shared.Validation(shared.ReasonPasswordField, "Passwords cannot be changed through this route.")
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, shared.ValidationFailure(err)
	}
	changes := Changes{Name: in.Name, Email: in.Email, Photo: in.Photo}
	if in.Role != nil {
		role := Role(*in.Role)
		changes.Role = &role
	}
	if err := checkChanges(changes); err != nil {
		return nil, err
	}
	return s.update(ctx, id, changes)
}

// Deactivate soft-deletes a user.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound(shared.ReasonNotFound, "No user found with that ID.")
		}
		return err
	}
	return nil
}

func (s *Service) update(ctx context.Context, id uuid.UUID, changes Changes) (*User, error) {
	user, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrDuplicate):
			return nil, shared.Validation(shared.ReasonDuplicate, "Duplicate field value: email. Please use another value.")
		case errors.Is(err, shared.ErrNotFound):
			return nil, shared.NotFound(shared.ReasonNotFound, "No user found with that ID.")
		}
		return nil, err
	}
	return user, nil
}

func checkChanges(c Changes) error {
	if c.Name != nil && strings.TrimSpace(*c.Name) == "" {
		return shared.Validation(shared.ReasonInvalidInput, "Invalid input data. Please provide name")
	}
	if c.Email != nil && strings.TrimSpace(*c.Email) == "" {
		return shared.Validation(shared.ReasonInvalidInput, "Invalid input data. Please provide a valid email")
	}
	return nil
}
