package domain

import "errors"

var (
	ErrInvalidCost              = errors.New("invalid line cost")
	ErrInvalidPolicy            = errors.New("invalid markup policy")
	ErrNotFound                 = errors.New("not found")
	ErrUnknownLayout            = errors.New("unknown layout")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrConcurrentCommitConflict = errors.New("concurrent commit conflict")
	ErrValidation               = errors.New("validation failed")
	ErrForbidden                = errors.New("forbidden")
	ErrItineraryLocked          = errors.New("itinerary is approved and locked")
	ErrExpired                  = errors.New("link expired")
)
