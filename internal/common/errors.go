package common

import (
	"errors"
	"net/http"
)

var (
	// ErrIncompleteSelection is returned when an offer is committed before every step has a choice.
	ErrIncompleteSelection = errors.New("incomplete selection")
	// ErrSelectionUnavailable indicates a chosen product no longer resolves in the catalog or cart.
	ErrSelectionUnavailable = errors.New("selection unavailable")
	// ErrEmptyCart is returned when checkout is attempted without line items.
	ErrEmptyCart = errors.New("empty cart")
	// ErrInvalidLineItem flags a persisted line whose product identity is unusable.
	ErrInvalidLineItem = errors.New("invalid line item")
	// ErrInvalidField is returned for malformed address or contact input.
	ErrInvalidField = errors.New("invalid field")
	// ErrUnknownOffer is returned for offer codes outside the supported set.
	ErrUnknownOffer = errors.New("unknown offer")
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ValidationError is a local, user-facing failure raised before any network effect.
type ValidationError struct {
	Field string
	Err   error
}

// NewValidationError wraps one of the validation sentinels with an optional field name.
func NewValidationError(field string, err error) *ValidationError {
	if err == nil {
		err = ErrInvalidField
	}
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return e.Field + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UpstreamError wraps catalog or order-submission failures.
type UpstreamError struct {
	Op  string
	Err error
}

// NewUpstreamError wraps err with the failing operation name.
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Op + ": upstream failure"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsUpstream reports whether err carries an UpstreamError.
func IsUpstream(err error) bool {
	var target *UpstreamError
	return errors.As(err, &target)
}

// ToAppError maps the domain taxonomy onto the HTTP error shape.
func ToAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var app *AppError
	if errors.As(err, &app) {
		return app
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		appErr := NewAppError("VALIDATION_FAILED", ve.Error(), http.StatusUnprocessableEntity, err)
		if ve.Field != "" {
			appErr.Details = map[string]string{"field": ve.Field}
		}
		return appErr
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return NewAppError("UPSTREAM_UNAVAILABLE", ue.Error(), http.StatusBadGateway, err)
	}
	return NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
}

// WriteError renders err using the canonical error envelope.
func WriteError(w http.ResponseWriter, err error) {
	appErr := ToAppError(err)
	if appErr == nil {
		return
	}
	message := appErr.Message
	if message == "" {
		message = appErr.Error()
	}
	JSONError(w, appErr.HTTPStatus, appErr.Code, message, appErr.Details)
}
