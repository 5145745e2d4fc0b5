package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"duet/internal/apperr"
	"duet/internal/models"
	"duet/internal/repository"
	"duet/internal/validation"
)

// UserService handles accounts. Authentication itself happens upstream; a
// registered user is identified by the bearer tokens issued for them.
type UserService struct {
	base
}

// NewUserService creates a new user service
func NewUserService(d Deps) *UserService {
	return &UserService{base: newBase(d, "user")}
}

// Register creates a SINGLE user
func (s *UserService) Register(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := validation.ValidateName(name); err != nil {
		return nil, err
	}

	st := s.reads()
	_, err := st.Users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperr.IllegalArgument("email is already registered")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	s.loaded(ctx, "user", 0)

	user, err := st.Users.CreateUser(ctx, email, name)
	if err != nil {
		// A concurrent registration of the same email fills the unique index
		// between the lookup and the insert.
		if s.db.GetDialect().IsWriteConflict(err) {
			if _, lookupErr := st.Users.GetUserByEmail(ctx, email); lookupErr == nil {
				return nil, apperr.IllegalArgument("email is already registered")
			}
		}
		return nil, err
	}
	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// GetUser returns a user by id
func (s *UserService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.reads().Users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user")
	}
	return u, nil
}
