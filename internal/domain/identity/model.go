package identity

import (
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/claimtrack/claimtrack/internal/platform/auth"
)

// User maps to the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         auth.Role `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// LoginRequest is the body of POST /auth/login. Role is only read when the
// email is not yet registered.
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" form:"refreshToken"`
}

// UserSummary is the public view of a user embedded in session responses.
type UserSummary struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

// Session is returned by login, registration and refresh.
type Session struct {
	User         UserSummary `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmail accepts a bare address with a dotted domain.
func validEmail(email string) bool {
	if !utf8.ValidString(email) {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
