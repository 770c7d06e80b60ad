package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/damir-m/splitmate/internal/apperr"
	"github.com/damir-m/splitmate/internal/models"
	"github.com/damir-m/splitmate/internal/storage"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// UserService encapsulates registration and authentication. It sits at the
// identity boundary; the engine itself trusts whatever principal the
// middleware hands it.
type UserService struct {
	users storage.UserStore
}

// NewUserService creates a new UserService.
func NewUserService(users storage.UserStore) *UserService {
	return &UserService{users: users}
}

// RegisterUser registers a new user after hashing their password. Handles
// and emails must be unique.
func (s *UserService) RegisterUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.Email == "" || user.Username == "" || user.HashedPassword == "" {
		return nil, fmt.Errorf("%w: missing required user fields", apperr.ErrValidation)
	}
	if !emailRegex.MatchString(user.Email) {
		return nil, fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
	}
	if user.DisplayName == "" {
		user.DisplayName = user.Username
	}

	if existing, err := s.users.GetUserByEmail(ctx, user.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: email already in use", apperr.ErrValidation)
	} else if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}
	if existing, err := s.users.GetUserByUsername(ctx, user.Username); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: username already taken", apperr.ErrValidation)
	} else if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(user.HashedPassword), bcrypt.DefaultCost)
	if err != nil {
		logrus.WithError(err).Error("Password hashing failed")
		return nil, fmt.Errorf("failed to hash password: %v", err)
	}
	user.HashedPassword = string(hashedPwd)

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		logrus.WithError(err).Error("User registration failed")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"userID":   created.ID.Hex(),
		"username": created.Username,
	}).Info("User registered successfully")

	return created, nil
}

// AuthenticateUser checks credentials and returns the matching user.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrForbidden)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrForbidden)
	}

	return user, nil
}
