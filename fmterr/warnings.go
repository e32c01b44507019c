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

package fmterr

import (
	"go.uber.org/multierr"
)

// Warnings accumulates non-fatal diagnostics. A stage records a warning
// when it skips something it cannot process; the caller decides whether
// the accumulated warnings are fatal.
type Warnings struct {
	err error
}

// Appendf records a warning positioned at an operation.
func (w *Warnings) Appendf(at Locator, format string, a ...any) {
	w.err = multierr.Append(w.err, Errorf(at, format, a...))
}

// Append records a warning.
func (w *Warnings) Append(err error) {
	w.err = multierr.Append(w.err, err)
}

// Empty returns true if no warning has been recorded.
func (w *Warnings) Empty() bool {
	return w == nil || w.err == nil
}

// All returns the recorded warnings.
func (w *Warnings) All() []error {
	if w == nil {
		return nil
	}
	return multierr.Errors(w.err)
}

// ToError returns the warnings as a single error, or nil if there are none.
func (w *Warnings) ToError() error {
	if w == nil {
		return nil
	}
	return w.err
}
