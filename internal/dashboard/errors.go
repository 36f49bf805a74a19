package dashboard

import (
	"fmt"
	"strings"
)

// ValidationError reports input rejected before it was sent, or a 400
// answer from the server.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// ConflictError is a 409: a guard violation or a conflicting record.
// Code is the server's stable error code, e.g. "item_unavailable".
type ConflictError struct {
	Code    string
	Message string
}

func (e *ConflictError) Error() string { return e.Code + ": " + e.Message }

// NotFoundError is a 404.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Message }

// NetworkError is a transport failure or an answer the client did not
// expect.  Status is zero when no response arrived.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
