package auth

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

// RoleLoader reads the caller's current role from the user store. It returns
// a NotFound error when the user no longer exists.
type RoleLoader interface {
	RoleOf(ctx context.Context, userID int64) (Role, error)
}

// Require loads the caller's role on every request and checks it against the
// policy table. Must run after Authenticate.
func Require(loader RoleLoader, res Resource, op Operation) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, err := loadRole(c, loader)
			if err != nil {
				return err
			}
			if err := Authorize(role, res, op); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// Identify loads the caller's role into the context without consulting the
// policy. Handlers that must validate input before authorizing use it and
// call Authorize themselves.
func Identify(loader RoleLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, err := loadRole(c, loader); err != nil {
				return err
			}
			return next(c)
		}
	}
}

func loadRole(c echo.Context, loader RoleLoader) (Role, error) {
	ctx := c.Request().Context()
	uid := UserIDFromContext(ctx)
	if uid == 0 {
		return "", apperr.Forbidden("No token provided in headers (x-access-token or Authorization).")
	}

	role, err := loader.RoleOf(ctx, uid)
	if err != nil {
		return "", err
	}
	c.SetRequest(c.Request().WithContext(context.WithValue(ctx, UserRoleKey, role)))
	return role, nil
}
