package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alphadeck/papertrade/internal/domain"
)

const (
	// loginLimit caps password attempts per username per window.
	loginLimit  = 5
	loginWindow = time.Minute

	minPasswordLen = 8
	maxUsernameLen = 32
)

// AuthService handles registration, login, and session resolution.
// Passwords are stored as bcrypt hashes; sessions are opaque uuids held
// server-side with a TTL.
type AuthService struct {
	users      domain.UserStore
	sessions   domain.SessionStore
	limiter    domain.RateLimiter
	sessionTTL time.Duration

	// startingCoins is the virtual balance granted on registration.
	startingCoins float64

	logger *slog.Logger
}

// NewAuthService creates an AuthService.
func NewAuthService(users domain.UserStore, sessions domain.SessionStore, limiter domain.RateLimiter, sessionTTL time.Duration, startingCoins float64, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		limiter:       limiter,
		sessionTTL:    sessionTTL,
		startingCoins: startingCoins,
		logger:        logger,
	}
}

// Register creates a new user account with the starting coin balance.
func (s *AuthService) Register(ctx context.Context, username, password string) (domain.User, error) {
	if username == "" || len(username) > maxUsernameLen {
		return domain.User{}, fmt.Errorf("auth_service: username must be 1-%d characters: %w", maxUsernameLen, domain.ErrValidation)
	}
	if len(password) < minPasswordLen {
		return domain.User{}, fmt.Errorf("auth_service: password must be at least %d characters: %w", minPasswordLen, domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("auth_service: hash password: %w", err)
	}

	u, err := s.users.Create(ctx, domain.User{
		Username:     username,
		Role:         domain.RoleUser,
		Coins:        s.startingCoins,
		PasswordHash: string(hash),
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("auth_service: create user: %w", err)
	}

	s.logger.InfoContext(ctx, "auth_service: registered user",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return u, nil
}

// Login verifies credentials and issues a session. Attempts are rate
// limited per username; unknown users and wrong passwords both surface as
// ErrInvalidCredential.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.User, string, error) {
	allowed, err := s.limiter.Allow(ctx, "login:"+username, loginLimit, loginWindow)
	if err != nil {
		// Redis trouble should not lock everyone out.
		s.logger.WarnContext(ctx, "auth_service: login rate limit check failed",
			slog.String("error", err.Error()),
		)
	} else if !allowed {
		return domain.User{}, "", fmt.Errorf("auth_service: too many login attempts: %w", domain.ErrRateLimited)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, "", domain.ErrInvalidCredential
		}
		return domain.User{}, "", fmt.Errorf("auth_service: lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, "", domain.ErrInvalidCredential
	}

	sessionID := uuid.NewString()
	if err := s.sessions.Create(ctx, sessionID, u.ID, s.sessionTTL); err != nil {
		return domain.User{}, "", fmt.Errorf("auth_service: create session: %w", err)
	}

	s.logger.InfoContext(ctx, "auth_service: login",
		slog.Int64("user_id", u.ID),
	)
	return u, sessionID, nil
}

// Logout destroys a session. Unknown sessions are not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("auth_service: logout: %w", err)
	}
	return nil
}

// Authenticate resolves a session id to its user. Expired or unknown
// sessions return ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (domain.User, error) {
	userID, err := s.sessions.Lookup(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrUnauthenticated
		}
		return domain.User{}, fmt.Errorf("auth_service: session lookup: %w", err)
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Session outlived the account.
			return domain.User{}, domain.ErrUnauthenticated
		}
		return domain.User{}, fmt.Errorf("auth_service: load user %d: %w", userID, err)
	}
	return u, nil
}
