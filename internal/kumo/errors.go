package kumo

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError reports a rejected credential, token, or session.
type AuthError struct {
	Op  string
	Msg string
}

func (e AuthError) Error() string {
	return fmt.Sprintf("kumo %s: %s", e.Op, e.Msg)
}

// ConnectionError reports a transport failure or an unexpected HTTP status.
type ConnectionError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e ConnectionError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("kumo %s: api error %d: %s", e.Op, e.Status, strings.TrimSpace(e.Body))
	}
	return fmt.Sprintf("kumo %s: %v", e.Op, e.Err)
}

func (e ConnectionError) Unwrap() error { return e.Err }

// APIError reports a response the service returned successfully but whose
// payload does not carry what it must.
type APIError struct {
	Op  string
	Msg string
}

func (e APIError) Error() string {
	return fmt.Sprintf("kumo %s: %s", e.Op, e.Msg)
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var ae AuthError
	return errors.As(err, &ae)
}

// IsConnectionError reports whether err is (or wraps) a ConnectionError.
func IsConnectionError(err error) bool {
	var ce ConnectionError
	return errors.As(err, &ce)
}
