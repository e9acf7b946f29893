package kernel

import (
	"errors"
	"fmt"
)

// ErrCodeShape is the error code carried by every ShapeError.
const ErrCodeShape = "SHAPE_MISMATCH"

// ShapeError reports an input whose dimensions an operation cannot accept,
// such as a non-square grid passed to the Poisson solver.
type ShapeError struct {
	// Op names the operation that rejected the input.
	Op string

	// Want describes the accepted shape.
	Want string

	// Got describes the shape that was passed.
	Got string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s: want %s, got %s", ErrCodeShape, e.Op, e.Want, e.Got)
}

// IsShapeError returns true if err is, or wraps, a ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

func shapeErr(op, want string, rows, cols int) *ShapeError {
	return &ShapeError{Op: op, Want: want, Got: fmt.Sprintf("%dx%d", rows, cols)}
}
