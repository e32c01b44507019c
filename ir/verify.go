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

package ir

import (
	"github.com/pkg/errors"

	"github.com/tile-org/strider/fmterr"
)

// Verify checks the structural invariants of the function. A
// verification failure is a bug in the pass that produced the IR.
func (fn *Func) Verify() error {
	var err error
	fn.Walk(func(op *Operation) WalkResult {
		if e := verifyOp(op); e != nil {
			err = fmterr.Internal(fmterr.Position(op, e))
			return WalkInterrupt
		}
		return WalkContinue
	})
	return err
}

func verifyOp(op *Operation) error {
	switch op.kind {
	case OpFor:
		if len(op.operands) < 3 {
			return errors.Errorf("for needs bounds and step, got %d operands", len(op.operands))
		}
		inits := len(op.operands) - 3
		if len(op.results) != inits {
			return errors.Errorf("for carries %d values but has %d results", inits, len(op.results))
		}
		body := op.regions[0]
		if body.NumArgs() != inits+1 {
			return errors.Errorf("for body has %d arguments, want %d", body.NumArgs(), inits+1)
		}
		return verifyYield(op, body, inits)
	case OpIf:
		if len(op.operands) != 1 {
			return errors.Errorf("if needs exactly one condition operand")
		}
		if err := verifyYield(op, op.regions[0], len(op.results)); err != nil {
			return err
		}
		if len(op.regions) > 1 {
			return verifyYield(op, op.regions[1], len(op.results))
		}
		if len(op.results) > 0 {
			return errors.Errorf("if with results needs an else branch")
		}
		return nil
	case OpGenericMap:
		res, ok := op.results[0].Type().(Tensor)
		if !ok {
			return errors.Errorf("generic_map must produce a tensor")
		}
		body := op.regions[0]
		want := res.Rank() + len(op.operands)
		if body.NumArgs() != want {
			return errors.Errorf("generic_map body has %d arguments, want %d", body.NumArgs(), want)
		}
		return verifyYield(op, body, 1)
	case OpMakePtr:
		rank := op.attrs.Rank
		wantOffsets := rank
		if rank == 0 {
			wantOffsets = 1
		}
		wantStrides := rank
		if got := len(op.operands) - 1; got != wantOffsets+wantStrides {
			return errors.Errorf("make_ptr of rank %d has %d offset/stride operands, want %d", rank, got, wantOffsets+wantStrides)
		}
		if len(op.attrs.Sizes) != rank {
			return errors.Errorf("make_ptr of rank %d has %d sizes", rank, len(op.attrs.Sizes))
		}
	case OpGetState:
		if len(op.operands) != 1 {
			return errors.Errorf("get_state needs exactly one operand")
		}
		if !IsPtrLike(op.operands[0].Type()) {
			return errors.Errorf("get_state operand must be pointer-like, got %s", op.operands[0].Type())
		}
	case OpLoad:
		if !IsPtrLike(op.operands[0].Type()) {
			return errors.Errorf("load through non-pointer type %s", op.operands[0].Type())
		}
	case OpStore:
		if !IsPtrLike(op.operands[0].Type()) {
			return errors.Errorf("store through non-pointer type %s", op.operands[0].Type())
		}
	case OpYield:
		parent := op.parent.Parent()
		if parent == nil {
			return errors.Errorf("yield outside of a structured operation")
		}
	}
	return nil
}

func verifyYield(op *Operation, r *Region, numValues int) error {
	term := r.Terminator()
	if term == nil || term.kind != OpYield {
		return errors.Errorf("%s region must end with yield", op.kind)
	}
	if len(term.operands) != numValues {
		return errors.Errorf("%s region yields %d values, want %d", op.kind, len(term.operands), numValues)
	}
	return nil
}
