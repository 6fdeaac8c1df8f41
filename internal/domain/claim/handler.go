package claim

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/claimtrack/claimtrack/internal/platform/apperr"
	"github.com/claimtrack/claimtrack/internal/platform/auth"
	"github.com/claimtrack/claimtrack/internal/platform/blobstore"
	"github.com/claimtrack/claimtrack/pkg/envelope"
	"github.com/claimtrack/claimtrack/pkg/nullable"
	"github.com/claimtrack/claimtrack/pkg/pagination"
)

type Handler struct {
	svc   *Service
	roles auth.RoleLoader
}

func NewHandler(svc *Service, roles auth.RoleLoader) *Handler {
	return &Handler{svc: svc, roles: roles}
}

// RegisterRoutes mounts /claims on an authenticated group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/claims")
	g.POST("", h.Create, auth.Require(h.roles, auth.ResourceClaim, auth.OpCreate))
	g.GET("", h.List, auth.Require(h.roles, auth.ResourceClaim, auth.OpRead))
	g.GET("/:id", h.Get, auth.Require(h.roles, auth.ResourceClaim, auth.OpRead))
	g.PUT("/:id", h.Update, auth.Require(h.roles, auth.ResourceClaim, auth.OpUpdate))
	// The lifecycle authorizes after validating the requested status.
	g.PUT("/:id/status", h.SetStatus, auth.Identify(h.roles))
}

// RegisterPublicRoutes mounts the unauthenticated lookup.
func (h *Handler) RegisterPublicRoutes(public *echo.Group) {
	public.GET("/claim-status", h.PublicStatus)
}

func claimID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation("Invalid claim ID", apperr.FieldError{Field: "id", Message: "Invalid claim ID"})
	}
	return id, nil
}

// readInput decodes a JSON or multipart body. The returned closer releases
// uploaded files.
func readInput(c echo.Context) (Input, []blobstore.Upload, func(), error) {
	noop := func() {}
	if !blobstore.IsMultipart(c) {
		var in Input
		if err := c.Bind(&in); err != nil {
			return in, nil, noop, apperr.Validation("Invalid request body.")
		}
		return in, nil, noop, nil
	}

	uploads, closer, err := blobstore.FromMultipart(c, blobstore.FormField)
	if err != nil {
		return Input{}, nil, noop, err
	}
	form, err := c.MultipartForm()
	if err != nil {
		closer()
		return Input{}, nil, noop, apperr.Validation("Invalid multipart body.")
	}
	return inputFromForm(form), uploads, closer, nil
}

// inputFromForm maps form values onto Input. A present dischargeDate or
// settlementDetails of "null" is an explicit null.
func inputFromForm(form *multipart.Form) Input {
	get := func(key string) (string, bool) {
		vs, ok := form.Value[key]
		if !ok || len(vs) == 0 {
			return "", false
		}
		return vs[0], true
	}
	str := func(key string) string {
		v, _ := get(key)
		return v
	}

	in := Input{
		ClaimNumber:   str("claimNumber"),
		PolicyNumber:  str("policyNumber"),
		PatientName:   str("patientName"),
		AdmissionDate: str("admissionDate"),
		HospitalID:    parseRefID(str("hospitalId")),
		TPAID:         parseRefID(str("tpaId")),
	}
	if v, ok := get("dischargeDate"); ok {
		if isNull(v) {
			in.DischargeDate = nullable.Null[string]()
		} else {
			in.DischargeDate = nullable.Of(v)
		}
	}
	if v, ok := get("settlementDetails"); ok {
		if isNull(v) {
			in.SettlementDetails = nullable.Null[json.RawMessage]()
		} else {
			in.SettlementDetails = nullable.Of(json.RawMessage(v))
		}
	}
	return in
}

func isNull(v string) bool {
	return strings.TrimSpace(v) == "null"
}

func (h *Handler) Create(c echo.Context) error {
	in, uploads, closer, err := readInput(c)
	if err != nil {
		return err
	}
	defer closer()

	ctx := c.Request().Context()
	claim, err := h.svc.Create(ctx, in, uploads, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, envelope.OK("Claim created successfully.", claim))
}

func (h *Handler) List(c echo.Context) error {
	p := pagination.FromContext(c)
	claims, total, err := h.svc.List(c.Request().Context(), c.QueryParam("patientName"), c.QueryParam("status"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Claims retrieved successfully.", pagination.NewPage("claims", claims, total, p)))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Claim retrieved successfully.", v))
}

func (h *Handler) Update(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	in, uploads, closer, err := readInput(c)
	if err != nil {
		return err
	}
	defer closer()

	ctx := c.Request().Context()
	claim, err := h.svc.Update(ctx, id, in, uploads, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Claim details updated successfully.", claim))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := claimID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("Invalid request body.")
	}

	ctx := c.Request().Context()
	summary, err := h.svc.SetStatus(ctx, id, req.Status, auth.RoleFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Claim status updated successfully.", summary))
}

func (h *Handler) PublicStatus(c echo.Context) error {
	q := LookupQuery{
		HospitalID:   int64(parseRefID(c.QueryParam("hospitalId"))),
		ClaimNumber:  strings.TrimSpace(c.QueryParam("claimNumber")),
		PolicyNumber: strings.TrimSpace(c.QueryParam("policyNumber")),
		PatientName:  strings.TrimSpace(c.QueryParam("patientName")),
	}
	p := pagination.FromContext(c)
	items, total, err := h.svc.PublicStatus(c.Request().Context(), q, p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, envelope.OK("Claims retrieved successfully.", pagination.NewPage("claims", items, total, p)))
}
