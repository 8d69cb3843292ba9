package ledger

import (
	"errors"
	"fmt"
)

// Error kinds returned by the ledger. Match them with errors.Is.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateReference = errors.New("duplicate reference")
	ErrInternal           = errors.New("internal error")
)

// DomainError is a structured ledger error. Kind is one of the Err* sentinels;
// cause, when set, is kept for logging and is not part of Error().
type DomainError struct {
	Kind    error
	Field   string
	Message string
	cause   error
}

// Error returns the formatted domain error string.
func (e *DomainError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}

	return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Field)
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *DomainError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.cause}
}

func validationError(field, message string) error {
	return &DomainError{Kind: ErrValidation, Field: field, Message: message}
}

func notFoundError(field, message string) error {
	return &DomainError{Kind: ErrNotFound, Field: field, Message: message}
}

func duplicateError(field, message string, cause error) error {
	return &DomainError{Kind: ErrDuplicateReference, Field: field, Message: message, cause: cause}
}

func internalError(message string, cause error) error {
	return &DomainError{Kind: ErrInternal, Message: message, cause: cause}
}
