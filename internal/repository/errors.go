// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the caller is not allowed to act
// on a record, while ErrConflict signals that an operation cannot
// proceed due to existing dependent records (e.g. deleting a technician
// that still has task history).
package repository

import "errors"

// ErrNotFound is the generic lookup miss. The per-entity errors below
// wrap it so callers may check either.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a record they may not touch. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

var (
	ErrTechnicianNotFound   = notFound("technician not found")
	ErrReferenceNotFound    = notFound("reference not found")
	ErrRackNotFound         = notFound("rack not found")
	ErrTokenNotFound        = notFound("token not found")
	ErrEmailExists          = conflict("email already exists")
	ErrDuplicateName        = conflict("name already exists")
	ErrTechnicianHasHistory = conflict("technician has task history")
)

type wrapped struct {
	msg  string
	kind error
}

func (e *wrapped) Error() string { return e.msg }
func (e *wrapped) Unwrap() error { return e.kind }

func notFound(msg string) error { return &wrapped{msg: msg, kind: ErrNotFound} }
func conflict(msg string) error { return &wrapped{msg: msg, kind: ErrConflict} }
