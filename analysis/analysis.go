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

// Package analysis computes a strided access descriptor for every
// pointer value by walking the def-use graph of its arithmetic.
//
// The analysis resolves the get_state placeholders installed by the
// structural converter, rewrites loads and stores to read through
// materialized make_ptr descriptors, and threads loop-carried pointer
// state through the flattened scalars the converter put on the loop
// boundary. Resolution is a pure function of the static def-use graph:
// operations are visited in program order, loop bodies before loop
// exits, and partial results are memoized by value identity.
//
// A pointer whose arithmetic does not match a recognized closed form
// is skipped with a warning; the placeholder and the accesses through
// it are left untouched so the rest of the program can still be
// processed.
package analysis

import (
	"github.com/pkg/errors"

	"github.com/tile-org/strider/base/ordered"
	"github.com/tile-org/strider/desc"
	"github.com/tile-org/strider/fmterr"
	"github.com/tile-org/strider/ir"
)

// Run resolves every pointer access of the function. Unresolvable
// pointers are recorded on the warning channel; only internal errors
// abort the analysis.
func Run(fn *ir.Func, warnings *fmterr.Warnings) error {
	a := &analysis{
		fn:       fn,
		b:        ir.NewBuilder(fn),
		warnings: warnings,
		states:   ordered.NewMap[ir.ValueID, *desc.Descriptor](),
	}
	var err error
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		switch op.Kind() {
		case ir.OpFor:
			a.seedLoop(op)
		case ir.OpGetState:
			err = a.resolvePlaceholder(op)
		case ir.OpLoad, ir.OpStore:
			err = a.structureAccess(op)
		}
		if err != nil {
			return ir.WalkInterrupt
		}
		return ir.WalkContinue
	})
	return err
}

type analysis struct {
	fn       *ir.Func
	b        *ir.Builder
	warnings *fmterr.Warnings
	states   *ordered.Map[ir.ValueID, *desc.Descriptor]
}

// seedLoop installs descriptor states for the loop-carried pointer
// groups the converter flattened onto the loop boundary: a
// pointer-like argument followed by its offset and stride scalars.
// The base is taken from the descriptor materialized for the loop
// init, so the carried state stays expressed against the root pointer
// rather than a per-iteration copy.
func (a *analysis) seedLoop(op *ir.Operation) {
	carried := op.ForCarried()
	for i := 0; i < len(carried); {
		arg := carried[i]
		flat, ok := desc.FlattenedTypes(arg.Type())
		if !ok {
			i++
			continue
		}
		n := len(flat)
		if !groupAt(carried, i, n) {
			i++
			continue
		}
		init := op.ForInits()[i]
		mp := init.DefiningOp()
		if mp == nil || mp.Kind() != ir.OpMakePtr {
			// The init placeholder was not resolved; the group stays
			// opaque and accesses through it will warn.
			i += n
			continue
		}
		base := mp.MakePtrBase()
		a.states.Store(arg.ID(), groupState(base, arg.Type(), carried[i+1:i+n]))
		results := op.Results()[i : i+n]
		a.states.Store(results[0].ID(), groupState(base, arg.Type(), results[1:]))
		i += n
	}
}

// groupAt returns true when the n-1 values following position i are
// the index scalars of a flattened descriptor.
func groupAt(vals []*ir.Value, i, n int) bool {
	if i+n > len(vals) {
		return false
	}
	for _, v := range vals[i+1 : i+n] {
		if v.Type().Kind() != ir.IndexKind {
			return false
		}
	}
	return true
}

func groupState(base *ir.Value, t ir.Type, scalars []*ir.Value) *desc.Descriptor {
	rank := desc.RankOf(t)
	st := &desc.Descriptor{Base: base}
	if rank == 0 {
		st.Offsets = []desc.Index{desc.ValueIndex(scalars[0])}
		return st
	}
	for d := range rank {
		st.Offsets = append(st.Offsets, desc.ValueIndex(scalars[d]))
		st.Strides = append(st.Strides, desc.ValueIndex(scalars[rank+d]))
	}
	st.Sizes = append(st.Sizes, t.(ir.Tensor).Dims...)
	return st
}

// resolvePlaceholder replaces a get_state placeholder with the
// concrete descriptor values of its recorded pointer: a make_ptr
// carrying the descriptor, followed by the offset and stride scalars.
func (a *analysis) resolvePlaceholder(op *ir.Operation) error {
	orig := op.Operand(0)
	st, err := a.visit(orig)
	if err != nil {
		a.warnings.Appendf(op, "cannot compute structured pointer state: %v", err)
		return nil
	}
	if err := st.Validate(); err != nil {
		return err
	}
	a.b.SetInsertionPointBefore(op)
	loc := op.Location()
	offsets, strides, err := a.materializeIndices(loc, st)
	if err != nil {
		return err
	}
	mp := a.b.MakePtr(loc, orig.Type(), st.Base, offsets, strides, sizes64(st))
	replacements := append([]*ir.Value{mp}, offsets...)
	replacements = append(replacements, strides...)
	if len(replacements) != op.NumResults() {
		return fmterr.Internalf(op, "placeholder expects %d replacements, got %d", op.NumResults(), len(replacements))
	}
	op.ReplaceAllUsesWith(replacements...)
	op.Erase()
	return nil
}

// structureAccess rewires a load or store to read through the
// materialized descriptor of its pointer.
func (a *analysis) structureAccess(op *ir.Operation) error {
	ptr := op.Operand(0)
	if def := ptr.DefiningOp(); def != nil && def.Kind() == ir.OpMakePtr {
		return nil
	}
	st, err := a.visit(ptr)
	if err != nil {
		a.warnings.Appendf(op, "cannot structure memory access: %v", err)
		return nil
	}
	if err := st.Validate(); err != nil {
		return err
	}
	a.b.SetInsertionPointBefore(op)
	loc := op.Location()
	offsets, strides, err := a.materializeIndices(loc, st)
	if err != nil {
		return err
	}
	mp := a.b.MakePtr(loc, ptr.Type(), st.Base, offsets, strides, sizes64(st))
	op.SetOperand(0, mp)
	return nil
}

func (a *analysis) materializeIndices(loc ir.Location, st *desc.Descriptor) (offsets, strides []*ir.Value, err error) {
	for _, off := range st.Offsets {
		v, err := a.indexValue(loc, off)
		if err != nil {
			return nil, nil, err
		}
		offsets = append(offsets, v)
	}
	for _, s := range st.Strides {
		v, err := a.indexValue(loc, s)
		if err != nil {
			return nil, nil, err
		}
		strides = append(strides, v)
	}
	return offsets, strides, nil
}

// indexValue materializes a descriptor index as an index-typed value
// at the current insertion point.
func (a *analysis) indexValue(loc ir.Location, x desc.Index) (*ir.Value, error) {
	if x.IsConst() {
		return a.b.ConstantIndex(loc, x.Const()), nil
	}
	v := x.Value()
	if v.Type().Kind() == ir.IndexKind {
		return v, nil
	}
	if _, ok := v.Type().(ir.Scalar); !ok {
		return nil, fmterr.Internal(errors.Errorf("descriptor index of type %s cannot be cast to index", v.Type()))
	}
	return a.b.IndexCast(loc, v, ir.Index{}), nil
}

func sizes64(st *desc.Descriptor) []int64 {
	if st.Rank() == 0 {
		return nil
	}
	sizes := make([]int64, st.Rank())
	for i, s := range st.Sizes {
		sizes[i] = int64(s)
	}
	return sizes
}
