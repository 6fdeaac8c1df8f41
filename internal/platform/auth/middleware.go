package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserRoleKey  contextKey = "user_role"
)

// AccessTokenHeader is checked before Authorization.
const AccessTokenHeader = "x-access-token"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccess(token string) (*TokenClaims, error)
}

// Authenticate resolves the caller from the access token and stores the user
// id and email on the request context.
func Authenticate(v TokenVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := extractToken(c)
			if tokenStr == "" {
				return apperr.Forbidden("No token provided in headers (x-access-token or Authorization).")
			}

			claims, err := v.VerifyAccess(tokenStr)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					return apperr.Unauthorized("Token has expired.")
				}
				return apperr.Unauthorized("Invalid token.")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("user_id", claims.UserID)

			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	h := c.Request().Header
	raw := strings.TrimSpace(h.Get(AccessTokenHeader))
	if raw == "" {
		raw = strings.TrimSpace(h.Get(echo.HeaderAuthorization))
	}
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}

func UserIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(UserIDKey).(int64)
	return id
}

func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

// RoleFromContext returns the role loaded by Require, or "" outside it.
func RoleFromContext(ctx context.Context) Role {
	r, _ := ctx.Value(UserRoleKey).(Role)
	return r
}

// WithIdentity attaches a caller to ctx. Used by the CLI and tests.
func WithIdentity(ctx context.Context, id int64, email string, role Role) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, id)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	if role != "" {
		ctx = context.WithValue(ctx, UserRoleKey, role)
	}
	return ctx
}
