// Package pagination parses limit/offset query parameters.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/pulse/pulse/pkg/apierror"
)

// Bounds sets the default page size and the largest page a caller may ask for.
type Bounds struct {
	Default int
	Max     int
}

// Params holds pagination parameters extracted from a request.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads "limit" and "offset" from the query string. Missing values
// take the defaults; a limit above b.Max is clamped. Non-numeric or negative
// values are a validation error.
func FromContext(c echo.Context, b Bounds) (Params, error) {
	p := Params{Limit: b.Default}

	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Params{}, apierror.Invalid("limit must be a positive integer, got %q", v)
		}
		p.Limit = n
	}
	if b.Max > 0 && p.Limit > b.Max {
		p.Limit = b.Max
	}

	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Params{}, apierror.Invalid("offset must be a non-negative integer, got %q", v)
		}
		p.Offset = n
	}
	return p, nil
}

// HasNext returns true if there are more results after the current page.
func (p Params) HasNext(total int) bool {
	return p.Offset+p.Limit < total
}

// NextOffset returns the offset for the next page.
func (p Params) NextOffset() int {
	return p.Offset + p.Limit
}
