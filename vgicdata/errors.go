// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package vgicdata

import "fmt"

// ErrCData is a sentinel for use with errors.Is to check whether any error
// in a chain is a *CDataError.
var ErrCData = &CDataError{}

// ErrorKind classifies a *CDataError.
type ErrorKind string

const (
	// ErrKindTypeMismatch indicates a disagreement between a type
	// descriptor and the data it was paired with, e.g. a dictionary type
	// whose key tag does not match the key array.
	ErrKindTypeMismatch ErrorKind = "TypeMismatch"
	// ErrKindOutOfBounds indicates an index past a declared limit: a
	// dictionary key at or beyond the value pool length, or a buffer or
	// child index beyond the struct's declared count.
	ErrKindOutOfBounds ErrorKind = "OutOfBounds"
	// ErrKindInvalidStruct indicates a malformed foreign CArray: a null
	// required pointer or a misdeclared child or dictionary. These checks
	// are best-effort; a producer that violates the interchange contract
	// in ways that cannot be observed from the struct is not caught.
	ErrKindInvalidStruct ErrorKind = "InvalidStruct"
	// ErrKindUnsupported indicates a physical type the bridge does not
	// exchange (unions, run-end encoding).
	ErrKindUnsupported ErrorKind = "Unsupported"
)

// CDataError represents an error raised by the interchange bridge or the
// dictionary array constructors.
type CDataError struct {
	Kind    ErrorKind
	Message string
}

func (e *CDataError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is supports errors.Is by matching any *CDataError target, or one with
// the same kind.
func (e *CDataError) Is(target error) bool {
	t, ok := target.(*CDataError)
	if !ok {
		return false
	}
	return t.Kind == "" || t.Kind == e.Kind
}

func errTypeMismatch(format string, args ...any) error {
	return &CDataError{Kind: ErrKindTypeMismatch, Message: fmt.Sprintf(format, args...)}
}

func errOutOfBounds(format string, args ...any) error {
	return &CDataError{Kind: ErrKindOutOfBounds, Message: fmt.Sprintf(format, args...)}
}

func errInvalidStruct(format string, args ...any) error {
	return &CDataError{Kind: ErrKindInvalidStruct, Message: fmt.Sprintf(format, args...)}
}

func errUnsupported(format string, args ...any) error {
	return &CDataError{Kind: ErrKindUnsupported, Message: fmt.Sprintf(format, args...)}
}
