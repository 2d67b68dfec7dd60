package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrTooManyStages  = errors.New("too many stages in one write")
	ErrInvalidBackend = errors.New("invalid store backend")
)
