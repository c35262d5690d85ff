// Copyright (C) 2026 Trieguard Authors. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ferror defines the structured error taxonomy shared by every
// control-plane package in trieguard.
package ferror

import (
	"errors"
	"fmt"
)

// Kind categorizes an error into one of the taxonomy entries used across
// the rule-compilation and lookup engine.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidPort: a port range contains 0 with length > 1, or lo > hi.
	KindInvalidPort
	// KindInvalidID: a caller passed group id 0 to the classifier.
	KindInvalidID
	// KindNotExistingID: remove_by_id referenced an unknown group id.
	KindNotExistingID
	// KindExhausted: a compiled Rule Store would exceed MaxRanges, or a
	// data-plane map has reached capacity.
	KindExhausted
	// KindMalformed: an internal Rule Store invariant was violated
	// (unsorted or overlapping entries reached construction).
	KindMalformed
	// KindLogFormat: a PacketLog record decoded to an unknown version or
	// action; the record is skipped, logging continues.
	KindLogFormat
	KindMapNotFound
	KindMapError
	KindProgramError
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidPort:
		return "invalid_port"
	case KindInvalidID:
		return "invalid_id"
	case KindNotExistingID:
		return "not_existing_id"
	case KindExhausted:
		return "exhausted"
	case KindMalformed:
		return "malformed"
	case KindLogFormat:
		return "log_format_error"
	case KindMapNotFound:
		return "map_not_found"
	case KindMapError:
		return "map_error"
	case KindProgramError:
		return "program_error"
	case KindIO:
		return "io_error"
	default:
		return "unknown"
	}
}

// Error is a structured error carrying a Kind, a human message, an
// optional wrapped cause and arbitrary debugging attributes.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
	Attributes map[string]any
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// New creates a new Error of the specified kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates a new Error of the specified kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error as a new Error of the specified kind.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf wraps an existing error as a new Error with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

// Attr attaches an attribute to an error, wrapping it as KindUnknown if it
// is not already an *Error.
func Attr(err error, key string, val any) error {
	if err == nil {
		return nil
	}

	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindUnknown, Message: err.Error(), Underlying: err}
	}

	if e.Attributes == nil {
		e.Attributes = make(map[string]any)
	}
	e.Attributes[key] = val
	return e
}

// GetKind returns the Kind of err, or KindUnknown if it is not a *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// GetAttributes returns all attributes associated with err's chain.
func GetAttributes(err error) map[string]any {
	attrs := make(map[string]any)

	cur := err
	for cur != nil {
		var e *Error
		if !errors.As(cur, &e) {
			break
		}
		for k, v := range e.Attributes {
			if _, ok := attrs[k]; !ok {
				attrs[k] = v
			}
		}
		cur = e.Underlying
	}

	return attrs
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target any) bool { return errors.As(err, target) }

// Unwrap returns the result of calling Unwrap on err, if it has one.
func Unwrap(err error) error { return errors.Unwrap(err) }
