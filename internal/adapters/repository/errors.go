package repository

import "errors"

// Sentinel kinds for match record errors.
var (
	ErrNotFound      = errors.New("match record not found")
	ErrInvalidLimit  = errors.New("invalid top scorers limit")
	ErrInvalidRecord = errors.New("invalid match snapshot")
	ErrClosed        = errors.New("store closed")
)
