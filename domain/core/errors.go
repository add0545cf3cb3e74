package core

import (
	"errors"
	"fmt"
)

// Error kinds - every failure surfaced by the pipeline wraps exactly one of these
var (
	ErrIO           = errors.New("i/o error")
	ErrParse        = errors.New("parse error")
	ErrSchema       = errors.New("schema error")
	ErrPrecondition = errors.New("statistical precondition violated")
	ErrConvergence  = errors.New("numerical convergence failure")
)

// Refined errors
var (
	// Schema errors
	ErrMissingColumn     = fmt.Errorf("%w: missing column", ErrSchema)
	ErrInvalidValue      = fmt.Errorf("%w: invalid value", ErrSchema)
	ErrUnknownGroupLabel = fmt.Errorf("%w: unknown group label", ErrSchema)
	ErrSchemaDrift       = fmt.Errorf("%w: feature schema drift", ErrSchema)
	ErrReservedColumn    = fmt.Errorf("%w: derived column already in input", ErrSchema)

	// Precondition errors
	ErrEmptyTable      = fmt.Errorf("%w: empty table", ErrPrecondition)
	ErrEmptyGroup      = fmt.Errorf("%w: empty group", ErrPrecondition)
	ErrUndefinedLift   = fmt.Errorf("%w: relative lift undefined for zero control rate", ErrPrecondition)
	ErrZeroStdError    = fmt.Errorf("%w: zero standard error", ErrPrecondition)
	ErrInvalidArgument = fmt.Errorf("%w: invalid argument", ErrPrecondition)

	// Convergence errors
	ErrSingularDesign = fmt.Errorf("%w: singular design matrix", ErrConvergence)
	ErrNotConverged   = fmt.Errorf("%w: did not converge", ErrConvergence)
)

// Error constructors with context
func NewIOError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrIO, path, err)
}

func NewParseError(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrParse, path, err)
}

func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w %q", ErrMissingColumn, column)
}

// NewCellError reports a bad value at a 1-based data row.
func NewCellError(row int, column, value, reason string) error {
	return fmt.Errorf("%w: row %d column %q value %q: %s", ErrInvalidValue, row, column, value, reason)
}

func NewUnknownGroupError(row int, label string) error {
	return fmt.Errorf("%w %q at row %d", ErrUnknownGroupLabel, label, row)
}

func NewEmptyGroupError(group string) error {
	return fmt.Errorf("%w %q", ErrEmptyGroup, group)
}

func NewSchemaDriftError(unseen []string) error {
	return fmt.Errorf("%w: categories %v not present in the reference schema", ErrSchemaDrift, unseen)
}

func NewReservedColumnError(columns []string) error {
	return fmt.Errorf("%w: %v", ErrReservedColumn, columns)
}

func NewSingularDesignError(features []string, rank int) error {
	return fmt.Errorf("%w: rank %d < %d features %v", ErrSingularDesign, rank, len(features), features)
}

func NewNotConvergedError(iterations int, reason string) error {
	return fmt.Errorf("%w after %d iterations: %s", ErrNotConverged, iterations, reason)
}

// Error checking helpers
func IsIOError(err error) bool { return errors.Is(err, ErrIO) }
func IsParseError(err error) bool { return errors.Is(err, ErrParse) }
func IsSchemaError(err error) bool { return errors.Is(err, ErrSchema) }
func IsPreconditionError(err error) bool { return errors.Is(err, ErrPrecondition) }
func IsConvergenceError(err error) bool { return errors.Is(err, ErrConvergence) }
