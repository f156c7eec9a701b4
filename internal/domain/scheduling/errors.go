package scheduling

import "github.com/pulse/pulse/pkg/apierror"

var (
	ErrNotFound   = apierror.ErrNotFound
	ErrConflict   = apierror.ErrConflict
	ErrValidation = apierror.ErrValidation
)

const dateLayout = "2006-01-02"
