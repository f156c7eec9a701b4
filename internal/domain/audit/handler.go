package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pulse/pulse/internal/platform/auth"
	"github.com/pulse/pulse/pkg/apierror"
	"github.com/pulse/pulse/pkg/pagination"
)

const (
	headerTotalCount = "X-Total-Count"
	headerNextOffset = "X-Next-Offset"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/audit-logs", h.Create, auth.RequireRole(auth.WriteRoles...))
	api.GET("/audit-logs", h.List, auth.RequireRole(auth.ReadRoles...))
}

func (h *Handler) Create(c echo.Context) error {
	var e Entry
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Save(c.Request().Context(), &e); err != nil {
		return apierror.ToHTTP(err, "failed to save audit log")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "changes": 1, "log_id": e.LogID})
}

// List returns a bare JSON array; paging state travels in headers.
func (h *Handler) List(c echo.Context) error {
	pg, err := pagination.FromContext(c, ListBounds)
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch audit logs")
	}
	f := Filter{
		AgentType: c.QueryParam("agent_type"),
		Status:    c.QueryParam("status"),
		Params:    pg,
	}
	items, total, err := h.svc.List(c.Request().Context(), f)
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch audit logs")
	}

	c.Response().Header().Set(headerTotalCount, strconv.Itoa(total))
	if pg.HasNext(total) {
		c.Response().Header().Set(headerNextOffset, strconv.Itoa(pg.NextOffset()))
	}
	if items == nil {
		items = []*Entry{}
	}
	return c.JSON(http.StatusOK, items)
}
