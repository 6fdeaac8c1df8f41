package admin

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
	"github.com/claimtrack/claimtrack/pkg/envelope"
	"github.com/claimtrack/claimtrack/pkg/pagination"
)

type Handler struct {
	svc   *Service
	roles auth.RoleLoader
}

func NewHandler(svc *Service, roles auth.RoleLoader) *Handler {
	return &Handler{svc: svc, roles: roles}
}

// RegisterRoutes mounts /hospitals and /tpas on an authenticated group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	hosp := api.Group("/hospitals")
	hosp.POST("", h.CreateHospital, auth.Require(h.roles, auth.ResourceHospital, auth.OpCreate))
	hosp.GET("", h.ListHospitals, auth.Require(h.roles, auth.ResourceHospital, auth.OpRead))
	hosp.GET("/:id", h.GetHospital, auth.Require(h.roles, auth.ResourceHospital, auth.OpRead))
	hosp.PUT("/:id", h.UpdateHospital, auth.Require(h.roles, auth.ResourceHospital, auth.OpUpdate))
	hosp.DELETE("/:id", h.DeleteHospital, auth.Require(h.roles, auth.ResourceHospital, auth.OpDelete))

	tpa := api.Group("/tpas")
	tpa.POST("", h.CreateTPA, auth.Require(h.roles, auth.ResourceTPA, auth.OpCreate))
	tpa.GET("", h.ListTPAs, auth.Require(h.roles, auth.ResourceTPA, auth.OpRead))
	tpa.GET("/:id", h.GetTPA, auth.Require(h.roles, auth.ResourceTPA, auth.OpRead))
	tpa.PUT("/:id", h.UpdateTPA, auth.Require(h.roles, auth.ResourceTPA, auth.OpUpdate))
	tpa.DELETE("/:id", h.DeleteTPA, auth.Require(h.roles, auth.ResourceTPA, auth.OpDelete))
}

func pathID(c echo.Context, label string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid " + label + " ID.")
	}
	return id, nil
}

// -- Hospital Handlers --

func (h *Handler) CreateHospital(c echo.Context) error {
	var in HospitalInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	hosp, err := h.svc.CreateHospital(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope.OK("Hospital created successfully.", hosp))
}

func (h *Handler) GetHospital(c echo.Context) error {
	id, err := pathID(c, "hospital")
	if err != nil {
		return err
	}
	hosp, err := h.svc.GetHospital(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Hospital retrieved successfully.", hosp))
}

func (h *Handler) ListHospitals(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListHospitals(c.Request().Context(), ListFilter{Name: c.QueryParam("name")}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Hospitals retrieved successfully.", pagination.NewPage("hospitals", items, total, p)))
}

func (h *Handler) UpdateHospital(c echo.Context) error {
	id, err := pathID(c, "hospital")
	if err != nil {
		return err
	}
	var in HospitalInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	hosp, err := h.svc.UpdateHospital(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Hospital updated successfully.", hosp))
}

func (h *Handler) DeleteHospital(c echo.Context) error {
	id, err := pathID(c, "hospital")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteHospital(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Hospital deleted successfully.", nil))
}

// -- TPA Handlers --

func (h *Handler) CreateTPA(c echo.Context) error {
	var in TPAInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	t, err := h.svc.CreateTPA(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope.OK("TPA created successfully.", t))
}

func (h *Handler) GetTPA(c echo.Context) error {
	id, err := pathID(c, "TPA")
	if err != nil {
		return err
	}
	t, err := h.svc.GetTPA(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("TPA retrieved successfully.", t))
}

func (h *Handler) ListTPAs(c echo.Context) error {
	p := pagination.FromContext(c)
	items, total, err := h.svc.ListTPAs(c.Request().Context(), ListFilter{Name: c.QueryParam("name")}, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("TPAs retrieved successfully.", pagination.NewPage("tpas", items, total, p)))
}

func (h *Handler) UpdateTPA(c echo.Context) error {
	id, err := pathID(c, "TPA")
	if err != nil {
		return err
	}
	var in TPAInput
	if err := c.Bind(&in); err != nil {
		return apperr.Validation("Invalid request body.")
	}
	t, err := h.svc.UpdateTPA(c.Request().Context(), id, in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("TPA updated successfully.", t))
}

func (h *Handler) DeleteTPA(c echo.Context) error {
	id, err := pathID(c, "TPA")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteTPA(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("TPA deleted successfully.", nil))
}
