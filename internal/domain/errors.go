package domain

import "errors"

// ErrorCode is the stable machine-readable code exposed to callers.
type ErrorCode string

const (
	CodeValidation       ErrorCode = "validation_failed"
	CodeConflict         ErrorCode = "conflict"
	CodeNotFound         ErrorCode = "not_found"
	CodeDeadlineExceeded ErrorCode = "deadline_exceeded"
	CodePolicyViolation  ErrorCode = "policy_violation"
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string { return e.Message }

func ValidationError(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func ConflictError(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

func NotFoundError(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func DeadlineExceededError(msg string) *Error {
	return &Error{Code: CodeDeadlineExceeded, Message: msg}
}

func PolicyViolationError(msg string) *Error {
	return &Error{Code: CodePolicyViolation, Message: msg}
}

// CodeOf extracts the machine code from an error chain. Unclassified errors
// report an empty code and should be treated as internal.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

var (
	ErrRoomNotFound    = NotFoundError("room not found")
	ErrBookingNotFound = NotFoundError("booking not found")
	ErrRoomNotFree     = ConflictError("room is not free")
	ErrIntervalTaken   = ConflictError("requested interval is already booked")
)
