package control

import (
	"errors"
	"fmt"
)

// Error codes for controller construction.
const (
	ErrCodeUnknown  = "UNKNOWN_CONTROLLER"
	ErrCodeBadParam = "BAD_PARAM"
)

// Error reports a controller that could not be built.
type Error struct {
	Code    string
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Kind, e.Message)
}

// IsControlError reports whether err is or wraps a *Error.
func IsControlError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// IsUnknownController reports whether err names a controller kind that does
// not exist for the requested experiment.
func IsUnknownController(err error) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Code == ErrCodeUnknown
}

func unknownKind(testID, kind string) *Error {
	return &Error{
		Code:    ErrCodeUnknown,
		Kind:    kind,
		Message: fmt.Sprintf("not a %s controller (known: %v)", testID, Kinds(testID)),
	}
}

func badParam(kind, format string, args ...any) *Error {
	return &Error{Code: ErrCodeBadParam, Kind: kind, Message: fmt.Sprintf(format, args...)}
}
