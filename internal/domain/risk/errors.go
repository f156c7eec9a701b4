package risk

import "github.com/pulse/pulse/pkg/apierror"

var (
	ErrNotFound   = apierror.ErrNotFound
	ErrValidation = apierror.ErrValidation
)
