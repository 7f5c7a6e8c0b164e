package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/recipevault/apiserver/internal/store"
	"github.com/recipevault/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByUsernameOrEmail(ctx context.Context, login string) (types.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(user types.User) (string, error)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token string
	User  types.UserProfile
}

// AuthService encapsulates registration, login and account lookups.
type AuthService struct {
	users  UserRepository
	tokens TokenIssuer
	now    func() time.Time
	cost   int

	// dummyHash is compared against when the login does not exist so both
	// failure paths cost one bcrypt comparison.
	dummyOnce sync.Once
	dummyHash []byte
}

func NewAuthService(users UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		cost:   bcrypt.DefaultCost,
	}
}

// Register creates an active USER account and returns its profile.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (types.UserProfile, error) {
	if err := in.validate(); err != nil {
		return types.UserProfile{}, err
	}

	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)

	taken, err := s.users.ExistsByUsername(ctx, username)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("check username: %w", err)
	}
	if taken {
		return types.UserProfile{}, ErrDuplicateUsername
	}

	taken, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return types.UserProfile{}, ErrDuplicateEmail
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return types.UserProfile{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Role:         types.RoleUser,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			return types.UserProfile{}, ErrDuplicateUsername
		case errors.Is(err, store.ErrDuplicateEmail):
			return types.UserProfile{}, ErrDuplicateEmail
		}
		return types.UserProfile{}, fmt.Errorf("create user: %w", err)
	}
	return user.Profile(), nil
}

// Login verifies the password of the account whose username or email equals
// login. Unknown accounts, disabled accounts and wrong passwords all fail with
// ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, login, password string) (LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		errs := fieldErrors{}
		if login == "" {
			errs.add("usernameOrEmail", "Username or email is required")
		}
		if password == "" {
			errs.add("password", "Password is required")
		}
		return LoginResult{}, errs.err()
	}

	user, err := s.users.GetByUsernameOrEmail(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.burnComparison(password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !user.Active {
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResult{Token: token, User: user.Profile()}, nil
}

func (s *AuthService) burnComparison(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("recipevault"), s.cost)
	})
	if s.dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
	}
}

func (s *AuthService) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.users.ExistsByUsername(ctx, strings.TrimSpace(username))
}

func (s *AuthService) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.users.ExistsByEmail(ctx, strings.TrimSpace(email))
}

// GetUser loads an account by id.
func (s *AuthService) GetUser(ctx context.Context, id uuid.UUID) (types.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, &NotFoundError{Message: "User not found with id: " + id.String()}
		}
		return types.User{}, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
