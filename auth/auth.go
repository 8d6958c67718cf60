package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"elclasico/apperr"
	"elclasico/store"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const resetTokenTTL = time.Hour

var (
	ErrInvalidUsername    = apperr.New(apperr.Validation, "username must be 3-32 letters, digits, dots, dashes or underscores")
	ErrInvalidPassword    = apperr.New(apperr.Validation, "password must be at least 6 characters")
	ErrPasswordTooLong    = apperr.New(apperr.Validation, "password must be at most 72 bytes")
	ErrInvalidEmail       = apperr.New(apperr.Validation, "email address is not valid")
	ErrUserExists         = apperr.New(apperr.Validation, "username or email already exists")
	ErrInvalidCredentials = apperr.New(apperr.Unauthenticated, "invalid username or password")
	ErrWrongPassword      = apperr.New(apperr.Validation, "current password is incorrect")
	ErrMissingToken       = apperr.New(apperr.Unauthenticated, "authentication required")
	ErrInvalidToken       = apperr.New(apperr.Unauthenticated, "invalid token")
	ErrTokenExpired       = apperr.New(apperr.Unauthenticated, "token expired")
	ErrEmailNotFound      = apperr.New(apperr.NotFound, "no account uses this email")
	ErrInvalidResetToken  = apperr.New(apperr.Validation, "reset token is invalid or expired")
	ErrUserNotFound       = apperr.New(apperr.NotFound, "user not found")
)

// PublicUser is the client-facing view of a user.
type PublicUser struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	Role      store.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
}

func Public(u *store.User) PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// Session is returned by login and registration.
type Session struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      PublicUser `json:"user"`
}

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileInput changes the caller's own account. CurrentPassword is
// required for any change.
type ProfileInput struct {
	Username        *string `json:"username"`
	Email           *string `json:"email"`
	Password        *string `json:"password"`
	CurrentPassword string  `json:"current_password"`
}

type Service struct {
	store  store.Store
	tokens *TokenManager
	log    *log.Helper
	now    func() time.Time
}

func NewService(s store.Store, tokens *TokenManager, logger log.Logger) *Service {
	return &Service{
		store:  s,
		tokens: tokens,
		log:    log.NewHelper(log.With(logger, "module", "auth")),
		now:    time.Now,
	}
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Service) session(u *store.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: Public(u)}, nil
}

// createUser validates and stores a new account with the given role.
func (s *Service) createUser(ctx context.Context, in RegisterInput, role store.Role) (*store.User, error) {
	username := SanitizeUsername(in.Username)
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u, err := s.store.CreateUser(ctx, &store.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.createUser(ctx, in, store.RolePlayer)
	if err != nil {
		return nil, err
	}
	s.log.Infof("user %q registered", u.Username)
	return s.session(u)
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	username = SanitizeUsername(username)

	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil || !checkPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Authenticate resolves a bearer token to the current state of its user, so
// deleted accounts and role changes take effect before the token expires.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}

func (s *Service) Me(ctx context.Context, userID int64) (*store.User, error) {
	u, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*store.User, error) {
	var newHash string
	if in.Password != nil {
		if err := validatePassword(*in.Password); err != nil {
			return nil, err
		}
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		newHash = hash
	}

	u, err := s.store.UpdateUser(ctx, userID, func(u *store.User) error {
		if !checkPassword(u.PasswordHash, in.CurrentPassword) {
			return ErrWrongPassword
		}
		if in.Username != nil {
			username := SanitizeUsername(*in.Username)
			if err := validateUsername(username); err != nil {
				return err
			}
			u.Username = username
		}
		if in.Email != nil {
			email := normalizeEmail(*in.Email)
			if err := validateEmail(email); err != nil {
				return err
			}
			u.Email = email
		}
		if newHash != "" {
			u.PasswordHash = newHash
		}
		return nil
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrUserNotFound
	case errors.Is(err, store.ErrDuplicate):
		return nil, ErrUserExists
	case err != nil:
		return nil, err
	}
	return u, nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RequestPasswordReset issues a single-use reset token for the account with
// the given email. Nothing is mailed; the token is logged for the operator.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil {
		return "", ErrEmailNotFound
	}

	token := uuid.NewString()
	err = s.store.CreatePasswordReset(ctx, store.PasswordReset{
		TokenHash: hashResetToken(token),
		UserID:    u.ID,
		ExpiresAt: s.now().UTC().Add(resetTokenTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save reset token: %w", err)
	}

	s.log.Infow("msg", "password reset requested", "user", u.Username, "reset_token", token)
	return token, nil
}

func (s *Service) ResetPassword(ctx context.Context, token, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	reset, err := s.store.ConsumePasswordReset(ctx, hashResetToken(token), s.now())
	if err != nil {
		return fmt.Errorf("failed to consume reset token: %w", err)
	}
	if reset == nil {
		return ErrInvalidResetToken
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.store.UpdateUser(ctx, reset.UserID, func(u *store.User) error {
		u.PasswordHash = hash
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidResetToken
	}
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	s.log.Infof("password reset for user %d", reset.UserID)
	return nil
}

// EnsureSuperadmin creates the superadmin account when no user holds the
// role yet. It reports whether an account was created.
func (s *Service) EnsureSuperadmin(ctx context.Context, username, password string) (bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list users: %w", err)
	}
	for _, u := range users {
		if u.Role == store.RoleSuperadmin {
			return false, nil
		}
	}

	u, err := s.createUser(ctx, RegisterInput{Username: username, Password: password}, store.RoleSuperadmin)
	if err != nil {
		return false, fmt.Errorf("failed to seed superadmin: %w", err)
	}
	s.log.Infof("superadmin %q created", u.Username)
	return true, nil
}
