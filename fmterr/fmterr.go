// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fmterr provides helpers to accumulate errors while lowering and
// format errors given the location of an operation in the IR.
package fmterr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Locator is anything that can name its place in the program,
// typically an IR operation or value.
type Locator interface {
	Loc() string
}

// PrefixWith returns a function to prefix errors with a formatted string.
func PrefixWith(s string, o ...any) func(err error) error {
	return func(err error) error {
		return fmt.Errorf("%s%w", fmt.Sprintf(s, o...), err)
	}
}

// Errorf returns a formatted error positioned at an operation.
func Errorf(at Locator, format string, a ...any) error {
	return Position(at, errors.Errorf(format, a...))
}

// Position adds location information to an error.
func Position(at Locator, err error) error {
	loc := ""
	if at != nil {
		loc = at.Loc()
	}
	if loc == "" {
		return err
	}
	return &errorWithLoc{loc: loc, err: err}
}

// Internal marks an error as internal, potentially adding additional information.
func Internal(err error) error {
	return fmt.Errorf("strider internal error. This is a bug in strider. Please report it. Error:\n%+v", err)
}

// Internalf returns a formatted internal error positioned at an operation.
func Internalf(at Locator, format string, a ...any) error {
	return Internal(Errorf(at, format, a...))
}

type errorWithLoc struct {
	loc string
	err error
}

// Error returns a string description of the error.
func (err *errorWithLoc) Error() string {
	return err.loc + ": " + err.err.Error()
}

// Unwrap the error.
func (err *errorWithLoc) Unwrap() error {
	return err.err
}

// Format writes the error into the state of the formatter.
func (err *errorWithLoc) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: %+v", err.loc, err.err)
		return
	}
	fmt.Fprint(s, err.Error())
}
