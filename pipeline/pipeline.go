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

// Package pipeline runs the pointer structuring phases in order:
// the structural type conversion, the pointer state analysis, and the
// access lowering, with dead code elimination after the analysis and
// after the lowering. No cleanup runs between the conversion and the
// analysis: it would erase the placeholders the analysis resolves.
package pipeline

import (
	"fmt"
	"io"

	"github.com/tile-org/strider/analysis"
	"github.com/tile-org/strider/convert"
	"github.com/tile-org/strider/fmterr"
	"github.com/tile-org/strider/ir"
	"github.com/tile-org/strider/lower"
)

// Phase names, in execution order.
const (
	PhaseConvert = "convert"
	PhaseAnalyze = "analyze"
	PhaseLower   = "lower"
)

// Option configures a pipeline run.
type Option func(*settings)

type settings struct {
	dump            io.Writer
	stopAfter       string
	warningsAsError bool
}

// WithDump writes the IR after each phase to w.
func WithDump(w io.Writer) Option {
	return func(s *settings) { s.dump = w }
}

// WithStopAfter stops the pipeline after the named phase.
func WithStopAfter(phase string) Option {
	return func(s *settings) { s.stopAfter = phase }
}

// WithWarningsAsErrors turns analysis warnings into a pipeline error.
func WithWarningsAsErrors() Option {
	return func(s *settings) { s.warningsAsError = true }
}

// Result reports the outcome of a pipeline run.
type Result struct {
	// Warnings accumulated by the analysis. A warning means a pointer
	// was left unstructured; the lowering fails if it is ever accessed.
	Warnings []error
}

// Run transforms the function in place.
func Run(fn *ir.Func, opts ...Option) (*Result, error) {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	res := &Result{}
	warnings := &fmterr.Warnings{}

	phases := []struct {
		name string
		run  func() error
	}{
		{PhaseConvert, func() error {
			return convert.Run(fn)
		}},
		{PhaseAnalyze, func() error {
			if err := analysis.Run(fn, warnings); err != nil {
				return err
			}
			res.Warnings = warnings.All()
			if s.warningsAsError && !warnings.Empty() {
				return warnings.ToError()
			}
			eliminateDeadOps(fn)
			return nil
		}},
		{PhaseLower, func() error {
			if err := lower.Run(fn); err != nil {
				return err
			}
			eliminateDeadOps(fn)
			return nil
		}},
	}
	for _, phase := range phases {
		if err := phase.run(); err != nil {
			return res, err
		}
		s.dumpAfter(phase.name, fn)
		if s.stopAfter == phase.name {
			return res, nil
		}
	}
	return res, fn.Verify()
}

func (s *settings) dumpAfter(phase string, fn *ir.Func) {
	if s.dump == nil {
		return
	}
	fmt.Fprintf(s.dump, "// ----- after %s -----\n%s\n", phase, fn)
}
