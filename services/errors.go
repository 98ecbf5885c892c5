package services

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicateRating   = errors.New("duplicate rating")
	ErrTransientStore    = errors.New("transient store failure")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
)

// LifecycleError carries an error kind plus a stable code and a message fit
// for the API response
type LifecycleError struct {
	Kind    error
	Code    string
	Message string
	Err     error
}

func (e *LifecycleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *LifecycleError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func jobNotFound(err error) error {
	return &LifecycleError{Kind: ErrNotFound, Code: "JOB_NOT_FOUND", Message: "Job not found", Err: err}
}

func userNotFound(err error) error {
	return &LifecycleError{Kind: ErrNotFound, Code: "USER_NOT_FOUND", Message: "User profile not found. Please create a profile first.", Err: err}
}

func invalidTransition(message string) error {
	return &LifecycleError{Kind: ErrInvalidTransition, Code: "INVALID_TRANSITION", Message: message}
}

func unauthorized(message string) error {
	return &LifecycleError{Kind: ErrUnauthorized, Code: "FORBIDDEN", Message: message}
}

func insufficientFunds() error {
	return &LifecycleError{Kind: ErrInsufficientFunds, Code: "INSUFFICIENT_FUNDS", Message: "Wallet balance is too low to pay for this job"}
}

func duplicateRating() error {
	return &LifecycleError{Kind: ErrDuplicateRating, Code: "DUPLICATE_RATING", Message: "This job has already been rated"}
}

func transientStore(err error) error {
	return &LifecycleError{Kind: ErrTransientStore, Code: "STORE_UNAVAILABLE", Message: "The service is temporarily unavailable, please retry", Err: err}
}

func validation(message string) error {
	return &LifecycleError{Kind: ErrValidation, Code: "VALIDATION_ERROR", Message: message}
}

func conflict(code, message string, err error) error {
	return &LifecycleError{Kind: ErrConflict, Code: code, Message: message, Err: err}
}

// AsLifecycleError extracts the LifecycleError from err's chain
func AsLifecycleError(err error) (*LifecycleError, bool) {
	var le *LifecycleError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}
