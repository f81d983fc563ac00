package domain

import "errors"

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnsupportedType     = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamProtocol    = errors.New("upstream protocol error")
	ErrMissingTemplate     = errors.New("missing template")
	ErrJobNotFound         = errors.New("job not found")
	ErrJobExists           = errors.New("job already queued or running")
	ErrJobNotFinished      = errors.New("job has not finished")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrQueueFull           = errors.New("job queue is full")
)
