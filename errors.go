package idforge

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument indicates that a caller-supplied value is outside the contract
	ErrInvalidArgument = errors.New("idforge: invalid argument")

	// ErrUnknownEncoding indicates that an encoding name is not in the supported set
	ErrUnknownEncoding = errors.New("idforge: unknown encoding")

	// ErrUnknownAlgorithm indicates that a checksum algorithm name is not supported
	ErrUnknownAlgorithm = errors.New("idforge: unknown checksum algorithm")

	// ErrUnknownCompression indicates that a compression mode name is not supported
	ErrUnknownCompression = errors.New("idforge: unknown compression mode")

	// ErrCorruptPayload indicates that a decoder or decompressor was handed malformed data
	ErrCorruptPayload = errors.New("idforge: corrupt payload")

	// ErrCollisionExhausted indicates that every attempt of a collision-safe loop was rejected
	ErrCollisionExhausted = errors.New("idforge: collision attempts exhausted")

	// ErrNotEnvelope indicates that a string carries no envelope delimiter
	ErrNotEnvelope = errors.New("idforge: not a pipeline envelope")

	// ErrIntegrity indicates that a reversed envelope payload failed its integrity check
	ErrIntegrity = errors.New("idforge: envelope integrity mismatch")
)

// ValidationError reports a contract violation on a named field.
// It matches ErrInvalidArgument under errors.Is, and Err when set.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("idforge: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ExhaustedError is returned when a collision-safe loop runs out of attempts.
// It matches ErrCollisionExhausted under errors.Is.
type ExhaustedError struct {
	Strategy    string
	MaxAttempts int
}

func (e *ExhaustedError) Error() string {
	if e.Strategy == "" {
		return fmt.Sprintf("idforge: no acceptable candidate after %d attempts", e.MaxAttempts)
	}
	return fmt.Sprintf("idforge: strategy %q found no acceptable candidate after %d attempts", e.Strategy, e.MaxAttempts)
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrCollisionExhausted
}
