package agents

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulse/pulse/internal/platform/auth"
	"github.com/pulse/pulse/internal/platform/jobs"
	"github.com/pulse/pulse/pkg/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the agent endpoints under /agents. Extra middleware,
// such as a stricter rate limit, applies to all of them.
func (h *Handler) RegisterRoutes(api *echo.Group, mw ...echo.MiddlewareFunc) {
	g := api.Group("/agents", append([]echo.MiddlewareFunc{auth.RequireRole(auth.AgentRoles...)}, mw...)...)
	g.POST("/risk-scores", h.StartBulkScoring)
	g.GET("/jobs/:id", h.GetJob).Name = "agents.job"
	g.POST("/risk-score/:appointmentId", h.ScoreAppointment)
	g.POST("/virtual-eligibility/:appointmentId", h.AssessVirtualEligibility)
	g.POST("/campaigns", h.GenerateCampaigns)
	g.POST("/waitlist-analysis", h.AnalyzeWaitlist)
	g.POST("/daily-summary", h.DailySummary)
}

type modelRequest struct {
	Model string `json:"model"`
}

type progressResponse struct {
	*jobs.Progress
	Percent int `json:"percent"`
}

func progressView(p *jobs.Progress) progressResponse {
	return progressResponse{Progress: p, Percent: p.Percent()}
}

// bind tolerates an empty body so that optional-only requests can omit it.
func bind(c echo.Context, v any) error {
	if c.Request().ContentLength == 0 {
		return nil
	}
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return nil
}

func (h *Handler) StartBulkScoring(c echo.Context) error {
	var req BulkRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.svc.StartBulkScoring(c.Request().Context(), req)
	if err != nil {
		return apierror.ToHTTP(err, "failed to start risk scoring")
	}
	c.Response().Header().Set(echo.HeaderLocation, c.Echo().Reverse("agents.job", p.ID))
	return c.JSON(http.StatusAccepted, progressView(p))
}

func (h *Handler) GetJob(c echo.Context) error {
	p, err := h.svc.JobProgress(c.Request().Context(), c.Param("id"))
	if errors.Is(err, jobs.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch job")
	}
	return c.JSON(http.StatusOK, progressView(p))
}

func (h *Handler) ScoreAppointment(c echo.Context) error {
	var req modelRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	a, err := h.svc.ScoreAppointment(c.Request().Context(), c.Param("appointmentId"), req.Model)
	if err != nil {
		return apierror.ToHTTP(err, "failed to generate risk score")
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) AssessVirtualEligibility(c echo.Context) error {
	var req modelRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.AssessVirtualEligibility(c.Request().Context(), c.Param("appointmentId"), req.Model)
	if err != nil {
		return apierror.ToHTTP(err, "failed to assess virtual eligibility")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GenerateCampaigns(c echo.Context) error {
	var req CampaignRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.GenerateCampaigns(c.Request().Context(), req)
	if err != nil {
		return apierror.ToHTTP(err, "failed to generate campaigns")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) AnalyzeWaitlist(c echo.Context) error {
	var req WaitlistRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.AnalyzeWaitlist(c.Request().Context(), req)
	if err != nil {
		return apierror.ToHTTP(err, "failed to analyze waitlist")
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) DailySummary(c echo.Context) error {
	var req SummaryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.svc.DailySummary(c.Request().Context(), req)
	if err != nil {
		return apierror.ToHTTP(err, "failed to generate daily summary")
	}
	return c.JSON(http.StatusOK, res)
}
