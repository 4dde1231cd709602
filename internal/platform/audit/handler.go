package audit

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medrec/medrec/internal/platform/auth"
	"github.com/medrec/medrec/internal/platform/tenancy"
	"github.com/medrec/medrec/pkg/pagination"
)

// Handler exposes the ledger's read-only query surface to privileged
// operators. There are no mutation routes: the ledger cannot be edited over
// HTTP any more than it can in code.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole("admin"))
	admin.GET("/audit-entries", h.ListEntries)
}

// ListEntries returns one page of ledger entries matching the query filters:
// actor_id, action, resource_type, resource_id, from, to (RFC 3339).
// Results are scoped to the caller's resolved tenant.
func (h *Handler) ListEntries(c echo.Context) error {
	ctx := c.Request().Context()

	f := Filter{
		Tenant:       tenancy.FromContext(ctx),
		ActorID:      c.QueryParam("actor_id"),
		Action:       Action(c.QueryParam("action")),
		ResourceType: c.QueryParam("resource_type"),
	}
	if f.Action != "" && !f.Action.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown action")
	}
	if rid := c.QueryParam("resource_id"); rid != "" {
		id, err := uuid.Parse(rid)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid resource_id")
		}
		f.ResourceID = &id
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid from timestamp")
		}
		f.From = &t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid to timestamp")
		}
		f.To = &t
	}

	pg := pagination.FromContext(c)
	result, err := h.store.Query(ctx, f, Page{Number: pg.Page, Size: pg.Size})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "audit query failed")
	}

	return c.JSON(http.StatusOK, result)
}
