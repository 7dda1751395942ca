package crud

import (
	"errors"
	"fmt"
)

// ErrDeclined is returned when the user does not confirm a delete.
var ErrDeclined = errors.New("operation declined")

// ErrEmptyRecord is returned when a detail request succeeds without data.
var ErrEmptyRecord = errors.New("detail response carries no record")

// ErrNoEndpoint is returned for operations without a configured endpoint.
var ErrNoEndpoint = errors.New("endpoint not configured")

// ValidationError is a payload rejected before reaching the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func noEndpoint(op string) error { return fmt.Errorf("%s: %w", op, ErrNoEndpoint) }
