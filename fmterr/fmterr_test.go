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

package fmterr_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/tile-org/strider/fmterr"
)

type testLocator string

func (l testLocator) Loc() string { return string(l) }

func TestErrorf(t *testing.T) {
	tests := []struct {
		at   fmterr.Locator
		msg  string
		want string
	}{
		{at: testLocator("kernel.py:4 (load)"), msg: "boom", want: "kernel.py:4 (load): boom"},
		{at: testLocator(""), msg: "boom", want: "boom"},
		{at: nil, msg: "boom", want: "boom"},
	}
	for ti, test := range tests {
		err := fmterr.Errorf(test.at, "%s", test.msg)
		if got := err.Error(); got != test.want {
			t.Errorf("test %d: got %q but want %q", ti, got, test.want)
		}
	}
}

func TestPositionUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmterr.Position(testLocator("op"), cause)
	if !errors.Is(err, cause) {
		t.Errorf("positioned error does not unwrap to its cause")
	}
}

func TestInternal(t *testing.T) {
	err := fmterr.Internal(errors.New("boom"))
	if !strings.Contains(err.Error(), "bug in strider") {
		t.Errorf("internal error does not identify itself: %q", err.Error())
	}
}

func TestErrorsContext(t *testing.T) {
	errs := &fmterr.Errors{}
	errs.Push(fmterr.PrefixWith("while lowering %s:", "store"))
	errs.Appendf(testLocator("line 3"), "bad mask")
	errs.Pop()
	if errs.Empty() {
		t.Fatalf("errors lost after pop")
	}
	all := errs.Errors()
	if len(all) != 1 {
		t.Fatalf("got %d errors but want 1", len(all))
	}
	want := "while lowering store:"
	if !strings.Contains(all[0].Error(), want) {
		t.Errorf("error %q does not contain %q", all[0].Error(), want)
	}
	if !strings.Contains(all[0].Error(), "line 3: bad mask") {
		t.Errorf("error %q lost its position", all[0].Error())
	}
}

func TestErrorsEmptyContext(t *testing.T) {
	errs := &fmterr.Errors{}
	errs.Push(fmterr.PrefixWith("context:"))
	errs.Pop()
	if err := errs.ToError(); err != nil {
		t.Errorf("empty context produced error %v", err)
	}
}

func TestWarnings(t *testing.T) {
	w := &fmterr.Warnings{}
	if !w.Empty() {
		t.Errorf("new warning set is not empty")
	}
	w.Appendf(testLocator("line 1"), "first")
	w.Appendf(testLocator("line 2"), "second")
	all := w.All()
	if len(all) != 2 {
		t.Fatalf("got %d warnings but want 2", len(all))
	}
	if got := all[0].Error(); got != "line 1: first" {
		t.Errorf("got %q but want %q", got, "line 1: first")
	}
	if w.ToError() == nil {
		t.Errorf("non-empty warnings convert to nil error")
	}
}
