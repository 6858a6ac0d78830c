package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ms-busticketing/internal/logger"
	"ms-busticketing/internal/models"
)

type UserDBLayer interface {
	GetActiveUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type SessionStore interface {
	Save(ctx context.Context, s models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	Users    UserDBLayer
	Sessions SessionStore
	Tokens   *TokenIssuer
	TTL      time.Duration
	Logger   *logger.Logger
	Now      func() time.Time
}

func NewService(users UserDBLayer, sessions SessionStore, tokens *TokenIssuer, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		Users:    users,
		Sessions: sessions,
		Tokens:   tokens,
		TTL:      ttl,
		Logger:   log,
		Now:      time.Now,
	}
}

// Login checks the password, opens a session and returns its signed token.
func (s *Service) Login(ctx context.Context, username, password string) (*models.LoginResponse, error) {
	user, err := s.Users.GetActiveUserByUsername(ctx, username)
	if errors.Is(err, models.ErrInvalidCredentials) {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("unknown or inactive user %q", username))
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.Logger.LogSecurity("LOGIN_FAILED", fmt.Sprintf("wrong password for %q", username))
		return nil, models.ErrInvalidCredentials
	}

	now := s.Now().UTC()
	session := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: now.Add(s.TTL),
	}
	if err := s.Sessions.Save(ctx, session); err != nil {
		return nil, err
	}

	token, err := s.Tokens.Issue(session, now)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.Logger.LogSecurity("LOGIN", fmt.Sprintf("user %s (%s) signed in", user.Username, user.Role))
	return &models.LoginResponse{Token: token, ExpiresAt: session.ExpiresAt, User: *user}, nil
}

// Authenticate resolves a bearer token to its live session. Tokens of closed
// sessions are rejected even before they expire.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.Session, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.Sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if session.UserID != claims.Subject {
		return nil, models.ErrInvalidCredentials
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if err := s.Sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.Logger.LogSecurity("LOGOUT", fmt.Sprintf("session %s closed", sessionID))
	return nil
}
