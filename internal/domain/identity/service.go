package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
)

// TokenIssuer signs session tokens and verifies refresh tokens.
type TokenIssuer interface {
	Issue(userID int64, email string) (auth.TokenPair, error)
	VerifyRefresh(token string) (*auth.TokenClaims, error)
}

type Service struct {
	users      UserRepository
	tokens     TokenIssuer
	bcryptCost int
	logger     zerolog.Logger
}

func NewService(users UserRepository, tokens TokenIssuer, bcryptCost int, logger zerolog.Logger) *Service {
	return &Service{users: users, tokens: tokens, bcryptCost: bcryptCost, logger: logger}
}

// LoginOrRegister signs in an existing user or, when the email is unknown,
// registers it with the requested role. created reports which path ran.
func (s *Service) LoginOrRegister(ctx context.Context, req LoginRequest) (sess *Session, created bool, err error) {
	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, false, apperr.Validation("Email and password are required.")
	}
	if !validEmail(email) {
		return nil, false, apperr.Validation("Please provide a valid email address.",
			apperr.FieldError{Field: "email", Message: "Please provide a valid email address."})
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		sess, err := s.login(user, req.Password)
		return sess, false, err
	case !errors.Is(err, ErrUserNotFound):
		return nil, false, err
	}

	if strings.TrimSpace(req.Role) == "" {
		return nil, false, apperr.Validation("A 'role' is required to register a new user.")
	}
	user, err = s.register(ctx, email, req.Password, req.Role)
	if errors.Is(err, ErrEmailTaken) {
		// Another request registered the same email first.
		existing, gerr := s.users.GetByEmail(ctx, email)
		if gerr != nil {
			return nil, false, gerr
		}
		sess, err := s.login(existing, req.Password)
		return sess, false, err
	}
	if err != nil {
		return nil, false, err
	}

	sess, err = s.session(user)
	if err != nil {
		return nil, false, err
	}
	return sess, true, nil
}

func (s *Service) login(user *User, password string) (*Session, error) {
	ok, err := auth.ComparePassword(user.PasswordHash, password)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, apperr.Unauthorized("Invalid Password!")
	}
	return s.session(user)
}

func passwordLengthError() error {
	msg := fmt.Sprintf("Password must be between %d and %d characters.", auth.MinPasswordLength, auth.MaxPasswordLength)
	return apperr.Validation(msg, apperr.FieldError{Field: "password", Message: msg})
}

func (s *Service) register(ctx context.Context, email, password, rawRole string) (*User, error) {
	role, err := auth.ParseRole(rawRole)
	if err != nil {
		return nil, apperr.Validation(invalidRoleMessage(), apperr.FieldError{Field: "role", Message: invalidRoleMessage()})
	}
	if n := utf8.RuneCountInString(password); n < auth.MinPasswordLength || n > auth.MaxPasswordLength {
		return nil, passwordLengthError()
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, passwordLengthError()
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}

	user := &User{Email: email, PasswordHash: hash, Role: role}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("role", string(role)).
		Msg("user registered")
	return user, nil
}

func (s *Service) session(user *User) (*Session, error) {
	pair, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{
		User:         UserSummary{ID: user.ID, Email: user.Email},
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Refresh exchanges a valid refresh token for a new token pair. The user
// must still exist.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperr.Validation("Refresh token is required.")
	}
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Token has expired.")
		}
		return nil, apperr.Unauthorized("Invalid token.")
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, apperr.Unauthorized("Invalid token.")
		}
		return nil, err
	}
	return s.session(user)
}

// CreateUser registers a user directly, e.g. to seed the first Super Admin.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (*User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required.")
	}
	if !validEmail(email) {
		return nil, apperr.Validation("Please provide a valid email address.")
	}
	user, err := s.register(ctx, email, password, role)
	if errors.Is(err, ErrEmailTaken) {
		return nil, apperr.Conflict("User with this email already exists.")
	}
	return user, err
}

// RoleOf loads the current role of a user. It satisfies auth.RoleLoader.
func (s *Service) RoleOf(ctx context.Context, userID int64) (auth.Role, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", apperr.NotFound("User not found.")
		}
		return "", err
	}
	return user.Role, nil
}

func invalidRoleMessage() string {
	names := make([]string, len(auth.AllRoles))
	for i, r := range auth.AllRoles {
		names[i] = string(r)
	}
	return "Invalid role. Must be one of: " + strings.Join(names, ", ")
}
