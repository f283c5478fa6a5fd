package worker

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the worker has no object for the key
	ErrNotFound = errors.New("worker: file not found")

	// ErrUnexpectedResponse is returned when a 2xx body cannot be decoded
	ErrUnexpectedResponse = errors.New("worker: unexpected response")
)

// StatusError is returned for any non-2xx worker response
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("worker: %s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("worker: %s failed with status %d: %s", e.Op, e.StatusCode, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}
