package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/patients", auth.RequireRole("clinician"))
	g.POST("", h.CreatePatient)
	g.GET("", h.ListPatients)
	g.GET("/:id", h.GetPatient)
	g.PUT("/:id", h.UpdatePatient)
	g.DELETE("/:id", h.DeletePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.MRN == "" || in.FamilyName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "mrn and family_name are required")
	}

	ctx := c.Request().Context()
	p, err := h.svc.Create(ctx, auth.UserIDFromContext(ctx), in)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "create patient failed")
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	v, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "get patient failed")
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	views, total, err := h.svc.List(c.Request().Context(), pg.Size, pg.Offset())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "list patients failed")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(views, total, pg))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	p, err := h.svc.Update(ctx, auth.UserIDFromContext(ctx), id, in)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "update patient failed")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ctx := c.Request().Context()
	err = h.svc.Delete(ctx, auth.UserIDFromContext(ctx), id)
	if errors.Is(err, ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "delete patient failed")
	}
	return c.NoContent(http.StatusNoContent)
}
