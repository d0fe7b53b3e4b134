package core

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError is implemented by every error that maps onto an HTTP status.
type StatusError interface {
	error
	StatusCode() int
}

type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string   { return e.Message }
func (e *InvalidInputError) StatusCode() int { return http.StatusBadRequest }

func InvalidInput(message string) *InvalidInputError {
	return &InvalidInputError{Message: message}
}

type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string   { return e.Message }
func (e *UnauthorizedError) StatusCode() int { return http.StatusUnauthorized }

func Unauthorized(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string   { return e.Message }
func (e *ForbiddenError) StatusCode() int { return http.StatusForbidden }

func Forbidden(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

type NotFoundError struct {
	Resource string
	Id       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Could not find a %s with id: %s", e.Resource, e.Id)
}
func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

func NotFound(resource string, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, Id: id}
}

type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string   { return e.Message }
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

func Conflict(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// IncompleteRecordError is returned when a record was found but lacks the
// fields the next step needs.
type IncompleteRecordError struct {
	Missing []string
}

func (e *IncompleteRecordError) Error() string {
	return "Timesheet record is missing required fields"
}
func (e *IncompleteRecordError) StatusCode() int { return http.StatusBadRequest }

// UpstreamError wraps a database or provider failure.
type UpstreamError struct {
	Prefix string
	Cause  error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s", e.Prefix, e.Cause.Error())
}
func (e *UpstreamError) StatusCode() int { return http.StatusInternalServerError }
func (e *UpstreamError) Unwrap() error   { return e.Cause }

func Upstream(prefix string, cause error) *UpstreamError {
	return &UpstreamError{Prefix: prefix, Cause: cause}
}

// StatusOf resolves the HTTP status for err, defaulting to 500.
func StatusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) {
		return se.StatusCode()
	}
	return http.StatusInternalServerError
}
