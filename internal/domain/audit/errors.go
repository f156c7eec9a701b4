package audit

import "github.com/pulse/pulse/pkg/apierror"

var ErrValidation = apierror.ErrValidation
