package model

import "errors"

var (
	// ErrAlreadySubmitted reports that the student already submitted the
	// section. Callers treat it as a signal to move on, not as a failure.
	ErrAlreadySubmitted = errors.New("section already submitted")
	ErrTestNotFound     = errors.New("test not found")
)
