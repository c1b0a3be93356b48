package services

import "errors"

// Error kinds. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrDependency = errors.New("dependency failure")
)

// Error is returned by every service operation that fails. Message is safe to
// show to clients.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validationError(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

func notFoundError(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func conflictError(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func dependencyError(err error) error {
	return &Error{Kind: ErrDependency, Message: "Server error", Err: err}
}

const (
	msgTaskNotFound      = "Task not found"
	msgUserNotFound      = "User not found"
	msgTaskRequired      = "Task name and deadline are required"
	msgUserRequired      = "Name and email are required"
	msgAssigneeMissing   = "assignedUser does not exist"
	msgDuplicateEmail    = "A user with that email already exists"
	msgInvalidQuery      = "Invalid query parameters"
	msgInvalidIDOrSelect = "Invalid id or select"
)
