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

// Package ir is the strider intermediate representation:
// an SSA graph of operations over typed values, with structured
// control flow expressed as nested regions.
//
// Values and operations are owned by the function arena and referenced
// by stable identifiers. Uses are tracked in a reverse index keyed by
// the producing value, so values never own back-pointers to their
// consumers.
package ir

import (
	"fmt"

	"github.com/pkg/errors"
)

// Location of an operation in the original program.
// It is an opaque string used only for diagnostics.
type Location string

type (
	// ValueID is the stable identifier of a value within a function.
	ValueID int32

	// OpID is the stable identifier of an operation within a function.
	OpID int32

	// Value is an SSA value: a function or region argument, or the
	// result of an operation.
	Value struct {
		fn  *Func
		id  ValueID
		typ Type

		// def is the producing operation; nil for arguments.
		def *Operation
		// owner is the region owning the value when it is an argument.
		owner *Region
		// idx is the result index within def, or the argument index
		// within owner.
		idx int
	}

	// Func is a compilation unit: a named function with a single body
	// region whose arguments are the function arguments.
	Func struct {
		name string
		body *Region

		nextValue ValueID
		nextOp    OpID
		// uses is the reverse index: producer value to consuming
		// operations, with one entry per operand slot.
		uses map[ValueID][]*Operation
	}

	// Region is an ordered list of operations with its own arguments.
	Region struct {
		fn     *Func
		parent *Operation
		args   []*Value
		ops    []*Operation
	}
)

// NewFunc returns a new function with the given argument types.
func NewFunc(name string, argTypes []Type) *Func {
	fn := &Func{
		name: name,
		uses: make(map[ValueID][]*Operation),
	}
	fn.body = &Region{fn: fn}
	for _, t := range argTypes {
		fn.body.AddArg(t)
	}
	return fn
}

// Name of the function.
func (fn *Func) Name() string { return fn.name }

// Body region of the function.
func (fn *Func) Body() *Region { return fn.body }

// Args returns the function arguments.
func (fn *Func) Args() []*Value { return fn.body.Args() }

// Arg returns the i-th function argument.
func (fn *Func) Arg(i int) *Value { return fn.body.args[i] }

func (fn *Func) newValue(t Type) *Value {
	v := &Value{fn: fn, id: fn.nextValue, typ: t}
	fn.nextValue++
	return v
}

func (fn *Func) addUse(v *Value, op *Operation) {
	fn.uses[v.id] = append(fn.uses[v.id], op)
}

func (fn *Func) removeUse(v *Value, op *Operation) {
	us := fn.uses[v.id]
	for i, u := range us {
		if u == op {
			fn.uses[v.id] = append(us[:i], us[i+1:]...)
			return
		}
	}
	panic(fmt.Sprintf("strider internal error: removing a use of %%%d which is not registered", v.id))
}

// ReplaceAllUses replaces every use of old with new.
func (fn *Func) ReplaceAllUses(old, new *Value) {
	fn.ReplaceAllUsesExcept(old, new, nil)
}

// ReplaceAllUsesExcept replaces every use of old with new, leaving the
// operands of except untouched.
func (fn *Func) ReplaceAllUsesExcept(old, new *Value, except *Operation) {
	for _, op := range old.Uses() {
		if op == except {
			continue
		}
		for i, operand := range op.operands {
			if operand == old {
				op.SetOperand(i, new)
			}
		}
	}
}

// ID returns the stable identifier of the value.
func (v *Value) ID() ValueID { return v.id }

// Type of the value.
func (v *Value) Type() Type { return v.typ }

// SetType changes the type of the value in place.
func (v *Value) SetType(t Type) { v.typ = t }

// DefiningOp returns the operation producing the value,
// or nil for arguments.
func (v *Value) DefiningOp() *Operation { return v.def }

// IsArg returns true when the value is a function or region argument.
func (v *Value) IsArg() bool { return v.def == nil }

// Owner returns the region owning the value when it is an argument.
func (v *Value) Owner() *Region { return v.owner }

// Index returns the result index within the defining operation, or the
// argument index within the owning region.
func (v *Value) Index() int { return v.idx }

// Uses returns a snapshot of the operations consuming the value.
// An operation appears once per operand slot referencing the value.
func (v *Value) Uses() []*Operation {
	us := v.fn.uses[v.id]
	return append([]*Operation{}, us...)
}

// HasUses returns true if at least one operation consumes the value.
func (v *Value) HasUses() bool { return len(v.fn.uses[v.id]) > 0 }

// Func owning the value.
func (v *Value) Func() *Func { return v.fn }

// Loc returns the location of the defining operation for diagnostics.
func (v *Value) Loc() string {
	if v.def != nil {
		return v.def.Loc()
	}
	return ""
}

// Args returns the region arguments.
func (r *Region) Args() []*Value { return r.args }

// Arg returns the i-th region argument.
func (r *Region) Arg(i int) *Value { return r.args[i] }

// NumArgs returns the number of region arguments.
func (r *Region) NumArgs() int { return len(r.args) }

// AddArg appends a new argument of the given type to the region.
func (r *Region) AddArg(t Type) *Value {
	return r.InsertArg(len(r.args), t)
}

// InsertArg inserts a new argument of the given type at position i.
func (r *Region) InsertArg(i int, t Type) *Value {
	v := r.fn.newValue(t)
	v.owner = r
	r.args = append(r.args, nil)
	copy(r.args[i+1:], r.args[i:])
	r.args[i] = v
	r.renumberArgs()
	return v
}

// EraseArg removes the i-th argument. The argument must be unused.
func (r *Region) EraseArg(i int) {
	arg := r.args[i]
	if arg.HasUses() {
		panic(fmt.Sprintf("strider internal error: erasing region argument %%%d which still has uses", arg.id))
	}
	r.args = append(r.args[:i], r.args[i+1:]...)
	r.renumberArgs()
}

func (r *Region) renumberArgs() {
	for i, arg := range r.args {
		arg.idx = i
	}
}

// Ops returns the operations of the region in order.
// The returned slice must not be mutated.
func (r *Region) Ops() []*Operation { return r.ops }

// NumOps returns the number of operations in the region.
func (r *Region) NumOps() int { return len(r.ops) }

// Terminator returns the last operation of the region, or nil when the
// region is empty.
func (r *Region) Terminator() *Operation {
	if len(r.ops) == 0 {
		return nil
	}
	return r.ops[len(r.ops)-1]
}

// Parent returns the operation owning the region, or nil for a
// function body.
func (r *Region) Parent() *Operation { return r.parent }

// Func owning the region.
func (r *Region) Func() *Func { return r.fn }

func (r *Region) indexOf(op *Operation) int {
	for i, o := range r.ops {
		if o == op {
			return i
		}
	}
	return -1
}

func (r *Region) insert(i int, op *Operation) {
	r.ops = append(r.ops, nil)
	copy(r.ops[i+1:], r.ops[i:])
	r.ops[i] = op
	op.parent = r
}

func (r *Region) remove(op *Operation) {
	i := r.indexOf(op)
	if i < 0 {
		panic(errors.Errorf("strider internal error: operation %s is not in its parent region", op.kind).Error())
	}
	r.ops = append(r.ops[:i], r.ops[i+1:]...)
	op.parent = nil
}

// IsAncestorOf returns true when the region transitively contains the
// given operation.
func (r *Region) IsAncestorOf(op *Operation) bool {
	for reg := op.parent; reg != nil; {
		if reg == r {
			return true
		}
		if reg.parent == nil {
			return false
		}
		reg = reg.parent.parent
	}
	return false
}
