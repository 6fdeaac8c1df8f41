package identity

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/pkg/envelope"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the unauthenticated session endpoints.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
	g.POST("/auth/refresh", h.Refresh)
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}

	sess, created, err := h.svc.LoginOrRegister(c.Request().Context(), req)
	if err != nil {
		return err
	}
	if created {
		return c.JSON(http.StatusCreated, envelope.OK("New user registered and logged in successfully", sess))
	}
	return c.JSON(http.StatusOK, envelope.OK("Login successful", sess))
}

func (h *Handler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}

	sess, err := h.svc.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Token refreshed successfully", sess))
}
