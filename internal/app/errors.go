package service

import "errors"

// Service level errors. They are wrapped with a model kind so the HTTP
// layer can map them the same way it maps domain errors.
var (
	ErrSessionExists   = errors.New("session already open")
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
	ErrNotStarted      = errors.New("service not started")
	ErrUnknownAction   = errors.New("unknown clock action")
	ErrNotAttending    = errors.New("player is not attending for that side")
	ErrPersistPending  = errors.New("snapshot already queued")
	ErrBackpressure    = errors.New("persist queue is full")
)
