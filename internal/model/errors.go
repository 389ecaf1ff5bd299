package model

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("task not found")
	ErrDuplicateID          = errors.New("task id already exists")
	ErrInvalidEnumValue     = errors.New("invalid value")
	ErrMissingRequiredField = errors.New("missing required field")
	ErrIllegalTransition    = errors.New("illegal transition")
	ErrUnparseableDate      = errors.New("unparseable date")
	ErrPersistence          = errors.New("persistence failure")
)

// FieldError ties a validation failure to the form field that caused it.
type FieldError struct {
	Field  string
	Value  string
	Reason string
	Err    error
}

func (e *FieldError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Field, e.Err)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Err }

// Missing reports that a required field was left empty.
func Missing(field string) error {
	return &FieldError{Field: field, Err: ErrMissingRequiredField}
}

// Invalid reports a value outside the allowed set for field.
func Invalid(field, value string) error {
	return &FieldError{Field: field, Value: value, Err: ErrInvalidEnumValue}
}

// Illegal reports a transition that the lifecycle rules forbid.
func Illegal(field, value, reason string) error {
	return &FieldError{Field: field, Value: value, Reason: reason, Err: ErrIllegalTransition}
}
