package service

import "fmt"

// Kind classifies a service error for the transport layer
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindForbidden
	KindUnauthorized
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	}
	return "unknown"
}

// Error is a failure that is reported to the caller as-is
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

func (e *Error) wrap(err error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Err: err}
}

func validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrUserNotFound         = &Error{Kind: KindNotFound, Message: "User not found"}
	ErrUsernameExists       = &Error{Kind: KindConflict, Message: "Username already exists"}
	ErrEmailExists          = &Error{Kind: KindConflict, Message: "Email already exists"}
	ErrIncorrectLogin       = &Error{Kind: KindUnauthorized, Message: "Incorrect email or password"}
	ErrInvalidCredentials   = &Error{Kind: KindUnauthorized, Message: "Could not validate credentials"}
	ErrNoPermission         = &Error{Kind: KindForbidden, Message: "Not enough permissions"}
	ErrTaskNotFound         = &Error{Kind: KindNotFound, Message: "Task not found"}
	ErrTaskExists           = &Error{Kind: KindConflict, Message: "Task title already exists"}
	ErrUserLocationExists   = &Error{Kind: KindConflict, Message: "Location already exists for this user"}
	ErrTaskLocationExists   = &Error{Kind: KindConflict, Message: "Location already exists for this task"}
	ErrUserLocationNotFound = &Error{Kind: KindNotFound, Message: "Could not find this user location"}
	ErrTaskLocationNotFound = &Error{Kind: KindNotFound, Message: "Task does not have a location yet"}
	ErrEmptyUsername        = &Error{Kind: KindValidation, Message: "Username must contain letters"}
)
