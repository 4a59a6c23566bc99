//  Copyright 2024 the ovf-edit-tools Authors. All Rights Reserved.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package errs defines the typed errors raised by the OVF editing core.
//
// Every error carries a Kind so that the CLI boundary can map failures onto
// its exit-code contract without string matching: user-input kinds become
// usage errors, everything else a runtime error.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error raised by the core.
type Kind string

const (
	// InvalidInput marks a malformed user-supplied scalar, e.g. a device
	// address that does not match "controller:device" syntax.
	InvalidInput Kind = "InvalidInput"
	// ValueUnsupported marks a syntactically valid value outside the
	// accepted domain of an enumeration.
	ValueUnsupported Kind = "ValueUnsupported"
	// ValueTooLow and ValueTooHigh refine ValueUnsupported for range checks.
	ValueTooLow  Kind = "ValueTooLow"
	ValueTooHigh Kind = "ValueTooHigh"
	// ValueMismatch marks two independently derived facts about the same
	// entity that disagree. Never auto-resolved.
	ValueMismatch Kind = "ValueMismatch"
	// Internal marks a violated data-model invariant: duplicate InstanceID,
	// non-disjoint profile sets, a device item without a parent controller.
	// It indicates a malformed document or a modeling bug, not bad user input.
	Internal Kind = "InternalConsistency"
	// HelperNotFound and HelperFailed classify external helper program
	// failures at the disk-image boundary.
	HelperNotFound Kind = "HelperNotFound"
	HelperFailed   Kind = "HelperFailed"
)

// Error is the concrete error type used throughout the core.
type Error struct {
	kind    Kind
	msg     string
	wrapped error

	// Label names the value being validated ("CPUs", "AddressOnParent", ...).
	Label string
	// Value is the offending value.
	Value interface{}
	// Bound is the violated bound for ValueTooLow/ValueTooHigh.
	Bound interface{}
	// Accepted is the accepted set for enum failures.
	Accepted []string
}

func (e *Error) Error() string {
	if e.wrapped != nil && e.msg == "" {
		return fmt.Sprintf("%v: %v", e.kind, e.wrapped)
	}
	return fmt.Sprintf("%v: %v", e.kind, e.msg)
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error { return e.wrapped }

// Kind returns the error's classification.
func (e *Error) Kind() Kind { return e.kind }

// Errf builds a typed error from a format string.
func Errf(kind Kind, format string, a ...interface{}) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, a...)}
}

// Wrap attaches a Kind to an existing error. A nil err yields nil.
func Wrap(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, wrapped: err}
}

// InvalidInputf builds an InvalidInput error.
func InvalidInputf(format string, a ...interface{}) *Error {
	return Errf(InvalidInput, format, a...)
}

// Internalf builds an Internal consistency error.
func Internalf(format string, a ...interface{}) *Error {
	return Errf(Internal, format, a...)
}

// Mismatchf builds a ValueMismatch error naming both disagreeing sides.
func Mismatchf(label string, a, b interface{}) *Error {
	e := Errf(ValueMismatch, "%v: %v does not match %v", label, a, b)
	e.Label = label
	return e
}

// TooLow reports value below the minimum bound for label.
func TooLow(label string, value, bound interface{}) *Error {
	e := Errf(ValueTooLow, "%v value %v is below the minimum %v", label, value, bound)
	e.Label, e.Value, e.Bound = label, value, bound
	return e
}

// TooHigh reports value above the maximum bound for label.
func TooHigh(label string, value, bound interface{}) *Error {
	e := Errf(ValueTooHigh, "%v value %v is above the maximum %v", label, value, bound)
	e.Label, e.Value, e.Bound = label, value, bound
	return e
}

// Unsupported reports a value outside the accepted set for label.
func Unsupported(label string, value interface{}, accepted []string) *Error {
	e := Errf(ValueUnsupported, "%v value %v is not supported, accepted values are: %v",
		label, value, strings.Join(accepted, ", "))
	e.Label, e.Value, e.Accepted = label, value, accepted
	return e
}

// KindOf returns the Kind of err, or "" for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return ""
}

// IsUsage reports whether err should surface as a usage error (CLI exit
// code 2) rather than a runtime error (exit code 1).
func IsUsage(err error) bool {
	switch KindOf(err) {
	case InvalidInput, ValueUnsupported, ValueTooLow, ValueTooHigh, ValueMismatch:
		return true
	}
	return false
}
