package scheduling

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pulse/pulse/internal/platform/auth"
	"github.com/pulse/pulse/pkg/apierror"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.ReadRoles...))
	read.GET("/providers", h.ListProviders)
	read.GET("/appointments", h.ListAppointments)
	read.GET("/appointments/export", h.ExportAppointments)
	read.GET("/appointments/:id/details", h.GetAppointmentDetails)
	read.GET("/kpis", h.GetKPIs)
	read.GET("/waitlist", h.ListWaitlist)
	read.GET("/patients/:patientId", h.GetPatient)
	read.GET("/weather", h.GetWeather)

	write := api.Group("", auth.RequireRole(auth.WriteRoles...))
	write.POST("/waitlist/assign-slot", h.AssignSlot)
}

func filterFromQuery(c echo.Context) AppointmentFilter {
	return AppointmentFilter{
		Date:       c.QueryParam("date"),
		ProviderID: c.QueryParam("provider_id"),
		Status:     c.QueryParam("status"),
	}
}

// emptyIfNil keeps list endpoints returning [] rather than null.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (h *Handler) ListProviders(c echo.Context) error {
	items, err := h.svc.ListProviders(c.Request().Context())
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch providers")
	}
	return c.JSON(http.StatusOK, emptyIfNil(items))
}

func (h *Handler) ListAppointments(c echo.Context) error {
	items, err := h.svc.ListAppointments(c.Request().Context(), filterFromQuery(c))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch appointments")
	}
	return c.JSON(http.StatusOK, emptyIfNil(items))
}

func (h *Handler) ExportAppointments(c echo.Context) error {
	f := filterFromQuery(c)
	items, err := h.svc.ListAppointments(c.Request().Context(), f)
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch appointments")
	}
	buf, err := ExportAppointments(items)
	if err != nil {
		return apierror.ToHTTP(err, "failed to export appointments")
	}

	name := "appointments"
	if f.Date != "" {
		name += "-" + f.Date
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	return c.Stream(http.StatusOK, xlsxMIME, buf)
}

func (h *Handler) GetAppointmentDetails(c echo.Context) error {
	d, err := h.svc.GetAppointmentDetails(c.Request().Context(), c.Param("id"))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch appointment details")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) GetKPIs(c echo.Context) error {
	k, err := h.svc.GetKPIs(c.Request().Context(), filterFromQuery(c))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch KPIs")
	}
	return c.JSON(http.StatusOK, k)
}

func (h *Handler) ListWaitlist(c echo.Context) error {
	items, err := h.svc.ListWaitlist(c.Request().Context(), c.QueryParam("provider_id"))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch waitlist")
	}
	return c.JSON(http.StatusOK, emptyIfNil(items))
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatientWithHistory(c.Request().Context(), c.Param("patientId"))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch patient")
	}
	return c.JSON(http.StatusOK, p)
}

// GetWeather answers with JSON null when there is no record.
func (h *Handler) GetWeather(c echo.Context) error {
	w, err := h.svc.GetWeather(c.Request().Context(), c.QueryParam("date"), c.QueryParam("zip_code"))
	if err != nil {
		return apierror.ToHTTP(err, "failed to fetch weather")
	}
	return c.JSON(http.StatusOK, w)
}

func (h *Handler) AssignSlot(c echo.Context) error {
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := h.svc.AssignWaitlistToSlot(c.Request().Context(), req)
	if err != nil {
		return apierror.ToHTTP(err, "failed to assign waitlist patient")
	}
	return c.JSON(http.StatusOK, res)
}
