package breakglass

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/auth"
)

// Handler exposes grant activation, status, re-authentication, and
// revocation over HTTP. Routes require the clinician role; finer-grained
// policy stays with the deployment, not the core.
type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/break-glass", auth.RequireRole("clinician"))
	g.POST("", h.Activate)
	g.GET("/status", h.Status)
	g.POST("/:id/reauthenticate", h.Reauthenticate)
	g.DELETE("/:id", h.Deactivate)
}

type activateRequest struct {
	SubjectResourceID uuid.UUID `json:"subject_resource_id"`
	Reason            string    `json:"reason"`
	DurationMinutes   int       `json:"duration_minutes"`
}

type activateResponse struct {
	GrantID          uuid.UUID `json:"grant_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	ReauthRequiredAt time.Time `json:"reauth_required_at"`
}

func (h *Handler) Activate(c echo.Context) error {
	var req activateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SubjectResourceID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "subject_resource_id is required")
	}

	ctx := c.Request().Context()
	actor := auth.UserIDFromContext(ctx)

	grant, err := h.mgr.Activate(ctx, actor, req.SubjectResourceID, req.Reason,
		time.Duration(req.DurationMinutes)*time.Minute)
	if err != nil {
		switch {
		case errors.Is(err, ErrReasonRequired):
			return echo.NewHTTPError(http.StatusBadRequest, "reason is required")
		case errors.Is(err, ErrDurationExceedsMax):
			return echo.NewHTTPError(http.StatusBadRequest,
				"maximum break-glass duration is 240 minutes")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "break-glass activation failed")
		}
	}

	return c.JSON(http.StatusCreated, activateResponse{
		GrantID:          grant.ID,
		ExpiresAt:        grant.ExpiresAt,
		ReauthRequiredAt: grant.ReauthDeadline(),
	})
}

func (h *Handler) Status(c echo.Context) error {
	subject, err := uuid.Parse(c.QueryParam("subject_resource_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid subject_resource_id")
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	grantID, active := h.mgr.IsActive(actor, subject)

	resp := map[string]any{"active": active}
	if active {
		resp["grant_id"] = grantID
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Reauthenticate(c echo.Context) error {
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}

	if !h.mgr.Reauthenticate(grantID) {
		return echo.NewHTTPError(http.StatusNotFound, "grant not active")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Deactivate(c echo.Context) error {
	grantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}

	ctx := c.Request().Context()
	if err := h.mgr.Deactivate(ctx, grantID, auth.UserIDFromContext(ctx)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "break-glass deactivation failed")
	}
	// Deactivating an unknown or expired grant is a no-op, not an error.
	return c.NoContent(http.StatusNoContent)
}
