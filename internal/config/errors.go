package config

import (
	"errors"
	"fmt"
)

// ErrCodeInvalid marks a configuration that failed validation.
const ErrCodeInvalid = "CONFIG_INVALID"

// Error reports an invalid configuration field.
type Error struct {
	Code    string
	Field   string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
}

// IsConfigError reports whether err is or wraps a *Error.
func IsConfigError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Code: ErrCodeInvalid, Field: field, Message: fmt.Sprintf(format, args...)}
}

// check accumulates the first failing rule so Validate methods read as a
// flat list of constraints.
type check struct {
	err *Error
}

func (c *check) positive(field string, v float64) {
	if c.err == nil && !(v > 0) {
		c.err = invalid(field, "must be > 0, got %v", v)
	}
}

func (c *check) positiveInt(field string, v int) {
	if c.err == nil && v <= 0 {
		c.err = invalid(field, "must be > 0, got %d", v)
	}
}

func (c *check) atLeastInt(field string, v, min int) {
	if c.err == nil && v < min {
		c.err = invalid(field, "must be >= %d, got %d", min, v)
	}
}

// required rejects an unset or non-positive clip-style bound.
func (c *check) required(field string, v float64) {
	if c.err == nil && !(v > 0) {
		c.err = invalid(field, "is required and must be > 0, got %v", v)
	}
}

func (c *check) nonNegative(field string, v float64) {
	if c.err == nil && v < 0 {
		c.err = invalid(field, "must be >= 0, got %v", v)
	}
}

func (c *check) ordered(loField string, lo float64, hiField string, hi float64) {
	if c.err == nil && lo > hi {
		c.err = invalid(loField, "must not exceed %s (%v > %v)", hiField, lo, hi)
	}
}

func (c *check) within(field string, v, lo, hi float64) {
	if c.err == nil && (v < lo || v > hi) {
		c.err = invalid(field, "must be within [%v, %v], got %v", lo, hi, v)
	}
}

func (c *check) result() error {
	if c.err == nil {
		return nil
	}
	return c.err
}
