package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/claimtrack/claimtrack/pkg/envelope"
)

// HTTPErrorHandler renders every handler error as the response envelope.
// Internal and unavailable failures are logged with their cause and rendered
// with a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status >= http.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Msg("write error response")
		}
	}
}

func render(err error) (int, *envelope.Response) {
	var appErr *Error
	if errors.As(err, &appErr) {
		var data interface{}
		if len(appErr.Fields) > 0 {
			data = appErr.Fields
		}
		return appErr.Kind.HTTPStatus(), envelope.Fail(appErr.Message, data)
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		msg := http.StatusText(httpErr.Code)
		if s, ok := httpErr.Message.(string); ok && s != "" {
			msg = s
		}
		if httpErr.Code >= http.StatusInternalServerError {
			msg = "An unexpected error occurred."
		}
		return httpErr.Code, envelope.Fail(msg, nil)
	}

	return http.StatusInternalServerError, envelope.Fail("An unexpected error occurred.", nil)
}
