package goflow

import "github.com/pkg/errors"

// Sentinel errors. Errors returned by this module wrap one of these, so
// callers can classify failures with errors.Is.
var (
	// ErrShape is returned when an array does not have the shape required
	// by a bijection, a distribution or a vectorized call.
	ErrShape = errors.New("shape mismatch")

	// ErrCondition is returned when a condition is passed to an
	// unconditional object, or omitted for a conditional one.
	ErrCondition = errors.New("condition mismatch")

	// ErrIncompatible is returned at construction time when composed
	// objects cannot be combined, e.g. mismatched conditioning shapes.
	ErrIncompatible = errors.New("incompatible components")

	// ErrDomain is returned when a parameter lies outside its valid domain.
	ErrDomain = errors.New("parameter outside domain")
)
