package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// BackendError reports a failed call to the backing store. Status follows
// HTTP semantics; zero means the call never produced a response.
type BackendError struct {
	Op     string
	Status int
	Msg    string
	Err    error
}

func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString("backend ")
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *BackendError) Unwrap() error { return e.Err }

// ConfigError reports that the backing store is not configured.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "needs configuration: missing " + strings.Join(e.Missing, ", ")
}

// Fail builds a BackendError.
func Fail(op string, status int, msg string, err error) error {
	return &BackendError{Op: op, Status: status, Msg: msg, Err: err}
}

// IsConfig reports whether err is a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StatusOf returns the HTTP status carried by a BackendError, or 0.
func StatusOf(err error) int {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Status
	}
	return 0
}

// IsUnauthorized reports a rejected or expired credential.
func IsUnauthorized(err error) bool {
	s := StatusOf(err)
	return s == http.StatusUnauthorized || s == http.StatusForbidden
}

// IsNotFound reports an Update that matched no row.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}
