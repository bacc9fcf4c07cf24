package errors

import (
	"errors"
	"fmt"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrNoActiveTask       = errors.New("no task is being tracked")
	ErrCancelNotAllowed   = errors.New("task cannot be cancelled in its current state")
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrTaskInProgress     = errors.New("the tracked task is still being processed")
	ErrCheckInProgress    = errors.New("multi-part check already in progress")
	ErrNotMultiPart       = errors.New("no multi-part content loaded")
	ErrBackendNotReady    = errors.New("backend did not become ready")
	ErrBackendNotRunning  = errors.New("backend process is not running")
)

// ValidationError reports input rejected before any request was sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// ServerError is a non-2xx response carrying the backend's detail message.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Detail)
}

// RequestError means no usable response was obtained: transport failure or
// an unparseable body.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: request failed: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// NotFoundError is returned by status fetches for unknown or expired tasks.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func (e *NotFoundError) Unwrap() error { return ErrTaskNotFound }

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsServer(err error) bool {
	var target *ServerError
	return errors.As(err, &target)
}

func IsRequest(err error) bool {
	var target *RequestError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}
