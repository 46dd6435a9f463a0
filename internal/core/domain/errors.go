package domain

import "errors"

var (
	// ErrMarkerLoad is returned when the data provider fails to deliver markers.
	// The working marker set is left untouched.
	ErrMarkerLoad = errors.New("could not load markers")

	// ErrStaleResponse marks a fetch result that arrived after a newer request was issued.
	ErrStaleResponse = errors.New("stale marker response discarded")

	// ErrUnauthorizedGesture marks a gesture the current user may not perform.
	ErrUnauthorizedGesture = errors.New("gesture not permitted")

	ErrSessionNotFound  = errors.New("map session not found")
	ErrInvalidBounds    = errors.New("invalid bounds")
	ErrLocationNotFound = errors.New("location not found")
	ErrInvalidLocation  = errors.New("invalid location")
	ErrInvalidSessionID = errors.New("invalid session id")
)
