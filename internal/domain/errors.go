package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrExternalService   = errors.New("external service failure")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
)

// ValidationError lists the offending fields. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Fields []string
}

func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
