package profile

import "errors"

// Domain errors for profiles
var (
	ErrMissingTenant  = errors.New("profile tenant id is required")
	ErrNegativeExp    = errors.New("profile exp must not be negative")
	ErrNegativePoints = errors.New("points must not be negative")
)
