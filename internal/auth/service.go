package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/livestream-server/internal/store"
	"github.com/vovakirdan/livestream-server/internal/utils"
)

// maxStreamKeyAttempts bounds retries when a generated stream key is taken.
const maxStreamKeyAttempts = 5

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidRole is returned for roles other than viewer and streamer.
	ErrInvalidRole = errors.New("invalid role")
	// ErrStreamKeyExhausted is returned when no free stream key was found.
	ErrStreamKeyExhausted = errors.New("could not allocate a unique stream key")
)

// Identity is the public view of an account carried in session tokens.
type Identity struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	StreamKey string `json:"stream_key"`
}

// Session is a signed token plus the identity it was issued for.
type Session struct {
	Token string
	User  Identity
}

// IdentityFromUser builds the public identity of a stored account.
func IdentityFromUser(u *store.User) Identity {
	return Identity{
		ID:        u.ID,
		Username:  u.Username,
		Role:      string(u.Role),
		StreamKey: u.StreamKey,
	}
}

// IdentityFromClaims rebuilds the identity from verified token claims.
func IdentityFromClaims(c *Claims) Identity {
	return Identity{
		ID:        c.UserID,
		Username:  c.Username,
		Role:      c.Role,
		StreamKey: c.StreamKey,
	}
}

// Service provides authentication operations.
type Service struct {
	store        store.UserStore
	jwtConfig    *JWTConfig
	newStreamKey func() string
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:        userStore,
		jwtConfig:    jwtConfig,
		newStreamKey: utils.NewStreamKey,
	}
}

// Register creates a new account with a hashed password and a fresh stream key,
// and returns a session for it. An empty role means viewer.
func (s *Service) Register(ctx context.Context, username, password string, role store.Role) (*Session, error) {
	username = strings.TrimSpace(username)
	if len(username) < 3 || len(username) > 32 {
		return nil, ErrInvalidUsername
	}
	if len(password) < 6 || len(password) > maxPasswordBytes {
		return nil, ErrInvalidPassword
	}
	if role == "" {
		role = store.RoleViewer
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	taken, err := s.usernameTaken(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.createWithFreshStreamKey(ctx, username, hashedPassword, role)
	if err != nil {
		return nil, err
	}

	return s.issue(user)
}

// Login validates credentials and returns a session.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := PasswordMatches(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}

// OwnerOf returns the account whose stream key is roomCode.
func (s *Service) OwnerOf(ctx context.Context, roomCode string) (*store.User, error) {
	return s.store.GetUserByStreamKey(ctx, roomCode)
}

func (s *Service) issue(user *store.User) (*Session, error) {
	identity := IdentityFromUser(user)
	token, err := GenerateToken(s.jwtConfig, identity)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	return &Session{Token: token, User: identity}, nil
}

func (s *Service) usernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check username: %w", err)
	}
}

func (s *Service) createWithFreshStreamKey(ctx context.Context, username, hashedPassword string, role store.Role) (*store.User, error) {
	for range maxStreamKeyAttempts {
		streamKey := s.newStreamKey()

		_, err := s.store.GetUserByStreamKey(ctx, streamKey)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("check stream key: %w", err)
		}

		user, err := s.store.CreateUser(ctx, username, hashedPassword, role, streamKey)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// lost a race on either the username or the stream key
		taken, checkErr := s.usernameTaken(ctx, username)
		if checkErr != nil {
			return nil, checkErr
		}
		if taken {
			return nil, ErrUserExists
		}
	}
	return nil, ErrStreamKeyExhausted
}
