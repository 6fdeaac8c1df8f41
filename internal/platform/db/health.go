package db

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/pkg/envelope"
)

const healthCheckTimeout = 2 * time.Second

var errNoPool = errors.New("database pool not configured")

// Health is the payload of GET /health/db.
type Health struct {
	Healthy       bool   `json:"healthy"`
	Latency       string `json:"latency,omitempty"`
	TotalConns    int32  `json:"totalConns"`
	IdleConns     int32  `json:"idleConns"`
	AcquiredConns int32  `json:"acquiredConns"`
	MaxConns      int32  `json:"maxConns"`
}

// Check pings the store and reports pool usage. A handle without a pool is
// unhealthy.
func (h *Handle) Check(ctx context.Context) (*Health, error) {
	if h == nil || h.Pool == nil {
		return &Health{}, errNoPool
	}
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.Pool.Ping(ctx)
	st := h.Pool.Stat()
	out := &Health{
		Healthy:       err == nil,
		TotalConns:    st.TotalConns(),
		IdleConns:     st.IdleConns(),
		AcquiredConns: st.AcquiredConns(),
		MaxConns:      st.MaxConns(),
	}
	if err == nil {
		out.Latency = time.Since(start).String()
	}
	return out, err
}

// HealthHandler serves the store health check. An unreachable store is 503.
func HealthHandler(h *Handle) echo.HandlerFunc {
	return func(c echo.Context) error {
		health, err := h.Check(c.Request().Context())
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, envelope.Fail("Database unreachable.", health))
		}
		return c.JSON(http.StatusOK, envelope.OK("Database healthy.", health))
	}
}
