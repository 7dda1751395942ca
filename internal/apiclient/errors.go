package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/oscarka/underwritingsystem2/pkg/types"
)

// ErrOffline is returned without dispatching when the connectivity pre-flight fails.
var ErrOffline = errors.New("network unreachable")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Status  int
	Message string
	Body    []byte
	// signalled is set when the client already cleared the session and
	// announced the 401 on the bus.
	signalled bool
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("http %d", e.Status)
}

// StatusCode satisfies the mock server's HTTPError interface.
func (e *StatusError) StatusCode() int { return e.Status }

// BusinessError is a 2xx response whose envelope code is not 200.
type BusinessError struct {
	Envelope types.Envelope
}

func (e *BusinessError) Error() string {
	if e.Envelope.Message != "" {
		return e.Envelope.Message
	}
	return fmt.Sprintf("request failed with code %d", e.Envelope.Code)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

// IsSignalled reports whether a 401 in err was already handled by the client.
func IsSignalled(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.signalled
}

// IsBusiness reports whether err is an application-level failure.
func IsBusiness(err error) bool {
	var be *BusinessError
	return errors.As(err, &be)
}

// Message returns the most user-presentable text for err.
func Message(err error) string {
	var be *BusinessError
	if errors.As(err, &be) {
		return be.Envelope.Message
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
