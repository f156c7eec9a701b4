package risk

import (
	"math"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulse/pulse/internal/platform/auth"
	"github.com/pulse/pulse/pkg/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/risk-assessments/:appointmentId", h.Get, auth.RequireRole(auth.ReadRoles...))
	api.POST("/risk-assessments", h.Save, auth.RequireRole(auth.WriteRoles...))
}

// Get answers with JSON null for an unscored appointment.
func (h *Handler) Get(c echo.Context) error {
	a, err := h.svc.Get(c.Request().Context(), c.Param("appointmentId"))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch risk assessment")
	}
	return c.JSON(http.StatusOK, a)
}

// saveRequest accepts a fractional risk_score, as the scorer's schema allows.
type saveRequest struct {
	Assessment
	RiskScore float64 `json:"risk_score"`
}

func (h *Handler) Save(c echo.Context) error {
	var req saveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	a := req.Assessment
	a.RiskScore = int(math.Round(req.RiskScore))
	if err := h.svc.Save(c.Request().Context(), &a); err != nil {
		return apierror.ToHTTP(err, "failed to save risk assessment")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "changes": 1, "assessment_id": a.AssessmentID})
}
