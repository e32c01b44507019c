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

import "fmt"

// Typed accessors over the generic operation storage. Each accessor
// asserts the operation kind: calling it on the wrong kind is a bug.

func (op *Operation) assertKind(k OpKind) {
	if op.kind != k {
		panic(fmt.Sprintf("strider internal error: %s accessor called on %s", k, op.kind))
	}
}

// ForLowerBound returns the lower bound of a for operation.
func (op *Operation) ForLowerBound() *Value {
	op.assertKind(OpFor)
	return op.operands[0]
}

// ForUpperBound returns the upper bound of a for operation.
func (op *Operation) ForUpperBound() *Value {
	op.assertKind(OpFor)
	return op.operands[1]
}

// ForStep returns the step of a for operation.
func (op *Operation) ForStep() *Value {
	op.assertKind(OpFor)
	return op.operands[2]
}

// ForInits returns the initial carried values of a for operation.
// The returned slice must not be mutated.
func (op *Operation) ForInits() []*Value {
	op.assertKind(OpFor)
	return op.operands[3:]
}

// ForBody returns the body region of a for operation.
func (op *Operation) ForBody() *Region {
	op.assertKind(OpFor)
	return op.regions[0]
}

// ForInductionVar returns the induction variable of a for operation.
func (op *Operation) ForInductionVar() *Value {
	return op.ForBody().Arg(0)
}

// ForCarried returns the carried body arguments of a for operation.
func (op *Operation) ForCarried() []*Value {
	return op.ForBody().Args()[1:]
}

// IfThen returns the then region of an if operation.
func (op *Operation) IfThen() *Region {
	op.assertKind(OpIf)
	return op.regions[0]
}

// IfElse returns the else region of an if operation, or nil when the
// conditional has no else branch.
func (op *Operation) IfElse() *Region {
	op.assertKind(OpIf)
	if len(op.regions) < 2 {
		return nil
	}
	return op.regions[1]
}

// LoadPtr returns the pointer operand of a load.
func (op *Operation) LoadPtr() *Value {
	op.assertKind(OpLoad)
	return op.operands[0]
}

// LoadMask returns the mask operand of a load, or nil when unmasked.
func (op *Operation) LoadMask() *Value {
	op.assertKind(OpLoad)
	if len(op.operands) < 2 {
		return nil
	}
	return op.operands[1]
}

// StorePtr returns the pointer operand of a store.
func (op *Operation) StorePtr() *Value {
	op.assertKind(OpStore)
	return op.operands[0]
}

// StoreValue returns the stored value of a store.
func (op *Operation) StoreValue() *Value {
	op.assertKind(OpStore)
	return op.operands[1]
}

// StoreMask returns the mask operand of a store, or nil when unmasked.
func (op *Operation) StoreMask() *Value {
	op.assertKind(OpStore)
	if len(op.operands) < 3 {
		return nil
	}
	return op.operands[2]
}

// MakePtrBase returns the base pointer of a make_ptr operation.
func (op *Operation) MakePtrBase() *Value {
	op.assertKind(OpMakePtr)
	return op.operands[0]
}

// MakePtrOffsets returns the per-dimension offsets of a make_ptr
// operation. A rank 0 descriptor has exactly one offset.
func (op *Operation) MakePtrOffsets() []*Value {
	op.assertKind(OpMakePtr)
	n := op.attrs.Rank
	if n == 0 {
		n = 1
	}
	return op.operands[1 : 1+n]
}

// MakePtrStrides returns the per-dimension strides of a make_ptr
// operation. A rank 0 descriptor has no stride.
func (op *Operation) MakePtrStrides() []*Value {
	op.assertKind(OpMakePtr)
	if op.attrs.Rank == 0 {
		return nil
	}
	return op.operands[1+op.attrs.Rank:]
}
