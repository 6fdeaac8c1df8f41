package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
)

const maxStackBytes = 4 << 10

// Recovery turns a handler panic into an internal error so the envelope
// handler answers 500 and the server keeps serving.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				stack := make([]byte, maxStackBytes)
				stack = stack[:runtime.Stack(stack, false)]

				rid, _ := c.Get("request_id").(string)
				logger.Error().
					Str("request_id", rid).
					Str("method", c.Request().Method).
					Str("path", c.Path()).
					Interface("panic", r).
					Bytes("stack", stack).
					Msg("handler panicked")

				err = apperr.Internal(fmt.Errorf("panic: %v", r))
			}()
			return next(c)
		}
	}
}
