package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid input")
	// ErrTransient marks store or provider timeouts and network failures; callers may retry.
	ErrTransient = errors.New("temporarily unavailable")

	ErrAlreadyRegistered = fmt.Errorf("%w: user already registered for this event", ErrConflict)
	ErrCapacityExceeded  = fmt.Errorf("%w: event is at full capacity", ErrConflict)

	// ErrCalendarAuthExpired means the stored refresh token was rejected and the
	// user has to go through the Google consent flow again.
	ErrCalendarAuthExpired  = errors.New("google calendar authorization expired")
	ErrCalendarNotConnected = errors.New("google calendar not connected")
)
