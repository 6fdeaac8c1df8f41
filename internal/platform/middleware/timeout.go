package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/pkg/envelope"
)

// RequestTimeout puts a deadline on each request context. The handler runs
// on the request goroutine and owns the response; once it returns past the
// deadline without having written anything, a 504 envelope is sent in place
// of its result. Store calls observe the same context, so a handler stuck on
// the database returns promptly.
func RequestTimeout(timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Response().Committed {
				return c.JSON(http.StatusGatewayTimeout,
					envelope.Fail("Request processing exceeded the allowed time limit.", nil))
			}
			return err
		}
	}
}
