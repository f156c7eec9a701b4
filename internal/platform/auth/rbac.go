package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin     = "admin"
	RoleScheduler = "scheduler"
	RolePhysician = "physician"
)

// Role sets used by the route groups.
var (
	ReadRoles  = []string{RoleAdmin, RoleScheduler, RolePhysician}
	WriteRoles = []string{RoleAdmin, RoleScheduler}
	AgentRoles = []string{RoleAdmin, RoleScheduler}
)

// HasRole reports whether granted includes one of required. Admin passes every check.
func HasRole(granted []string, required ...string) bool {
	for _, has := range granted {
		if has == RoleAdmin {
			return true
		}
		for _, want := range required {
			if has == want {
				return true
			}
		}
	}
	return false
}

// RequireRole rejects callers that hold none of the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasRole(RolesFromContext(c.Request().Context()), roles...) {
				return echo.NewHTTPError(http.StatusForbidden,
					fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
			}
			return next(c)
		}
	}
}
