// Package auth provides username/password accounts and the bearer tokens
// that authenticate requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/chxlky/kanban-api/internal/models"
)

const defaultTokenTTL = 24 * time.Hour

// UserStore defines the storage interface for accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByName(ctx context.Context, username string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// Provisioner seeds a new account with its default boards.
type Provisioner interface {
	ProvisionUser(ctx context.Context, userID string) error
}

type Service struct {
	store       UserStore
	provisioner Provisioner
	secret      []byte
	ttl         time.Duration
	now         func() time.Time
	log         *zap.Logger
}

// NewService creates the auth service. A zero ttl means 24 hours.
func NewService(store UserStore, provisioner Provisioner, secret string, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:       store,
		provisioner: provisioner,
		secret:      []byte(secret),
		ttl:         ttl,
		now:         time.Now,
		log:         log,
	}
}

// SignUp creates the account, provisions its Work and Personal boards and
// returns a token.
func (s *Service) SignUp(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", models.Validation("Username and password are required")
	}

	if _, err := s.store.UserByName(ctx, username); err == nil {
		return "", models.Conflict("Username already exists")
	} else if !errors.Is(err, models.ErrNotFound) {
		return "", fmt.Errorf("look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{Username: username, PasswordHash: string(hash)}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// lost a race with another signup of the same name
		if errors.Is(err, models.ErrConflict) {
			return "", models.Conflict("Username already exists")
		}
		return "", fmt.Errorf("create user: %w", err)
	}

	if err := s.provisioner.ProvisionUser(ctx, user.ID); err != nil {
		return "", fmt.Errorf("provision boards: %w", err)
	}
	s.log.Info("User signed up", zap.String("userID", user.ID), zap.String("username", username))

	return s.issueToken(user.ID)
}

// Login checks the credentials and returns a fresh token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", models.Validation("Username and password are required")
	}

	user, err := s.store.UserByName(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.Unauthorized("Invalid credentials")
		}
		return "", fmt.Errorf("look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", models.Unauthorized("Invalid credentials")
	}
	return s.issueToken(user.ID)
}

// Authenticate resolves an Authorization header value to the user it
// belongs to.
func (s *Service) Authenticate(ctx context.Context, header string) (*models.User, error) {
	tokenStr, err := BearerToken(header)
	if errors.Is(err, errMissingToken) {
		return nil, models.Unauthorized("Token is missing!")
	}
	if err != nil {
		return nil, models.Unauthorized("Token is invalid!")
	}

	userID, err := s.parseToken(tokenStr)
	if err != nil {
		s.log.Debug("Rejected token", zap.Error(err))
		return nil, models.Unauthorized("Token is invalid!")
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Unauthorized("Token is invalid!")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	return user, nil
}
