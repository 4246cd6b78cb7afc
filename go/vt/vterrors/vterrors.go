/*
Copyright 2026 The Vitess Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package vterrors provides errors that carry a canonical error code.
//
// Every error created by this package has a code drawn from
// google.golang.org/grpc/codes. Wrapping an error keeps the code of the
// wrapped error, so callers can classify an error with Code() no matter how
// many layers of context were added on the way up, and errors.Is/errors.As
// keep working through Unwrap.
package vterrors

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
)

type vtError struct {
	code  codes.Code
	msg   string
	cause error
}

// New returns an error with the supplied message and code.
func New(code codes.Code, message string) error {
	return &vtError{code: code, msg: message}
}

// Errorf formats according to a format specifier and returns the string
// as a value that satisfies error, with the given code.
func Errorf(code codes.Code, format string, args ...any) error {
	return &vtError{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an error annotating err with message. The code of err is
// preserved. If err is nil, Wrap returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return &vtError{code: Code(err), msg: message, cause: err}
}

// Wrapf returns an error annotating err with the format specifier.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &vtError{code: Code(err), msg: fmt.Sprintf(format, args...), cause: err}
}

func (e *vtError) Error() string {
	if e.cause == nil {
		return e.msg
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *vtError) Unwrap() error { return e.cause }

// ErrorCode returns the code of the error.
func (e *vtError) ErrorCode() codes.Code { return e.code }

// ErrorWithCode is implemented by errors that know their code.
type ErrorWithCode interface {
	ErrorCode() codes.Code
}

// Code returns the error code if it's a vtError, or a context error.
// It returns codes.OK for a nil error and codes.Unknown for anything else.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var withCode ErrorWithCode
	if errors.As(err, &withCode) {
		return withCode.ErrorCode()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}
	return codes.Unknown
}

// RootCause returns the innermost error in the chain started by err.
func RootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
