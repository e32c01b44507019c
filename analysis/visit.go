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

package analysis

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/tile-org/strider/desc"
	"github.com/tile-org/strider/ir"
)

// visit returns the descriptor state of a value, computing and
// memoizing it on first request. New index arithmetic needed to
// combine states is materialized right before the defining operation
// of the visited value, so the memoized state is valid at every use.
func (a *analysis) visit(v *ir.Value) (*desc.Descriptor, error) {
	if st, ok := a.states.Load(v.ID()); ok {
		return st, nil
	}
	st, err := a.compute(v)
	if err != nil {
		return nil, err
	}
	a.states.Store(v.ID(), st)
	return st, nil
}

func (a *analysis) compute(v *ir.Value) (*desc.Descriptor, error) {
	if st, ok := scalarState(v); ok {
		return st, nil
	}
	def := v.DefiningOp()
	if def == nil {
		return argState(v)
	}
	switch def.Kind() {
	case ir.OpMakePtr:
		return makePtrState(def), nil
	case ir.OpAddPtr, ir.OpAddI:
		l, err := a.visit(def.Operand(0))
		if err != nil {
			return nil, err
		}
		r, err := a.visit(def.Operand(1))
		if err != nil {
			return nil, err
		}
		return a.addStates(def, l, r)
	case ir.OpMulI:
		l, err := a.visit(def.Operand(0))
		if err != nil {
			return nil, err
		}
		r, err := a.visit(def.Operand(1))
		if err != nil {
			return nil, err
		}
		return a.mulStates(def, l, r)
	case ir.OpSplat:
		src, err := a.visit(def.Operand(0))
		if err != nil {
			return nil, err
		}
		return splatState(src, v.Type().(ir.Tensor).Dims)
	case ir.OpSplatConstant:
		return constantTensorState(def.Attrs().IntVal, v.Type().(ir.Tensor).Dims), nil
	case ir.OpMakeRange:
		return &desc.Descriptor{
			Offsets: []desc.Index{desc.ConstIndex(def.Attrs().Start)},
			Strides: []desc.Index{desc.ConstIndex(1)},
			Sizes:   slices.Clone(v.Type().(ir.Tensor).Dims),
		}, nil
	case ir.OpExpandDims:
		src, err := a.visit(def.Operand(0))
		if err != nil {
			return nil, err
		}
		return expandDimsState(src, def.Attrs().Axis), nil
	case ir.OpBroadcast:
		src, err := a.visit(def.Operand(0))
		if err != nil {
			return nil, err
		}
		return broadcastState(src, v.Type().(ir.Tensor).Dims)
	case ir.OpIndexCast:
		return a.visit(def.Operand(0))
	case ir.OpIf:
		return branchState(def, v)
	}
	return nil, errors.Errorf("%s: unsupported operation in pointer arithmetic", def.Loc())
}

// scalarState handles integer scalars: a constant becomes a constant
// index, anything else stays opaque. An opaque scalar is always a
// valid rank 0 state since it needs no decomposition.
func scalarState(v *ir.Value) (*desc.Descriptor, bool) {
	switch t := v.Type().(type) {
	case ir.Index:
	case ir.Scalar:
		if !t.IsInteger() {
			return nil, false
		}
	default:
		return nil, false
	}
	if def := v.DefiningOp(); def != nil && def.Kind() == ir.OpConstant {
		return &desc.Descriptor{Offsets: []desc.Index{desc.ConstIndex(def.Attrs().IntVal)}}, true
	}
	return &desc.Descriptor{Offsets: []desc.Index{desc.ValueIndex(v)}}, true
}

// argState handles values with no defining operation. Function
// arguments are roots: a pointer argument is the base of its own
// accesses, with zero offsets and a contiguous innermost dimension.
// A pointer-like region argument without a seeded state was not
// structured by the converter and cannot be traced further.
func argState(v *ir.Value) (*desc.Descriptor, error) {
	if v.Owner().Parent() != nil {
		return nil, errors.Errorf("loop-carried pointer %%%d was not structured", v.ID())
	}
	t := v.Type()
	switch {
	case ir.IsPtr(t):
		return &desc.Descriptor{Base: v, Offsets: []desc.Index{desc.ConstIndex(0)}}, nil
	case ir.IsPtrTensor(t):
		tt := t.(ir.Tensor)
		st := &desc.Descriptor{Base: v, Sizes: slices.Clone(tt.Dims)}
		for d := range tt.Rank() {
			st.Offsets = append(st.Offsets, desc.ConstIndex(0))
			stride := int64(0)
			if d == tt.Rank()-1 {
				stride = 1
			}
			st.Strides = append(st.Strides, desc.ConstIndex(stride))
		}
		return st, nil
	}
	return nil, errors.Errorf("argument %%%d of type %s has unknown contents", v.ID(), t)
}

func makePtrState(op *ir.Operation) *desc.Descriptor {
	st := &desc.Descriptor{Base: op.MakePtrBase()}
	for _, v := range op.MakePtrOffsets() {
		st.Offsets = append(st.Offsets, indexOf(v))
	}
	for _, v := range op.MakePtrStrides() {
		st.Strides = append(st.Strides, indexOf(v))
	}
	for _, s := range op.Attrs().Sizes {
		st.Sizes = append(st.Sizes, int(s))
	}
	return st
}

// branchState recovers the state of a pointer-like conditional result
// from the descriptors its branches yield. Both branches must yield a
// materialized descriptor rooted at the same base pointer; the offset
// and stride results of the conditional then select between the two.
func branchState(op *ir.Operation, v *ir.Value) (*desc.Descriptor, error) {
	i := v.Index()
	var base *ir.Value
	for _, r := range op.Regions() {
		term := r.Terminator()
		if term == nil {
			return nil, errors.Errorf("%s: branch without terminator", op.Loc())
		}
		mp := term.Operand(i).DefiningOp()
		if mp == nil || mp.Kind() != ir.OpMakePtr {
			return nil, errors.Errorf("%s: branch does not yield a structured pointer", op.Loc())
		}
		if base == nil {
			base = mp.MakePtrBase()
		} else if base != mp.MakePtrBase() {
			return nil, errors.Errorf("%s: branches yield pointers with different bases", op.Loc())
		}
	}
	flat, ok := desc.FlattenedTypes(v.Type())
	if !ok || !groupAt(op.Results(), i, len(flat)) {
		return nil, errors.Errorf("%s: conditional pointer result without flattened state", op.Loc())
	}
	return groupState(base, v.Type(), op.Results()[i+1:i+len(flat)]), nil
}

// indexOf folds an index-typed constant back into a constant index.
func indexOf(v *ir.Value) desc.Index {
	if def := v.DefiningOp(); def != nil && def.Kind() == ir.OpConstant {
		return desc.ConstIndex(def.Attrs().IntVal)
	}
	return desc.ValueIndex(v)
}

// addStates combines the states of the two sides of an addition. At
// most one side may carry a base pointer. A scalar side folds into the
// first offset of the tensor side. Strides add only when the sum is
// still expressible: one side zero, or both compile-time constants.
func (a *analysis) addStates(def *ir.Operation, l, r *desc.Descriptor) (*desc.Descriptor, error) {
	if l.Base != nil && r.Base != nil {
		return nil, errors.Errorf("%s: sum of two pointers", def.Loc())
	}
	base := l.Base
	if base == nil {
		base = r.Base
	}
	if l.Rank() == 0 && r.Rank() == 0 {
		off, err := a.addIndex(def, l.Offsets[0], r.Offsets[0])
		if err != nil {
			return nil, err
		}
		return &desc.Descriptor{Base: base, Offsets: []desc.Index{off}}, nil
	}
	if l.Rank() == 0 || r.Rank() == 0 {
		scalar, tensor := l, r
		if r.Rank() == 0 {
			scalar, tensor = r, l
		}
		off, err := a.addIndex(def, tensor.Offsets[0], scalar.Offsets[0])
		if err != nil {
			return nil, err
		}
		st := &desc.Descriptor{
			Base:    base,
			Offsets: append([]desc.Index{off}, tensor.Offsets[1:]...),
			Strides: slices.Clone(tensor.Strides),
			Sizes:   slices.Clone(tensor.Sizes),
		}
		return st, nil
	}
	if !slices.Equal(l.Sizes, r.Sizes) {
		return nil, errors.Errorf("%s: adding accesses of shapes %v and %v", def.Loc(), l.Sizes, r.Sizes)
	}
	st := &desc.Descriptor{Base: base, Sizes: slices.Clone(l.Sizes)}
	for d := range l.Rank() {
		off, err := a.addIndex(def, l.Offsets[d], r.Offsets[d])
		if err != nil {
			return nil, err
		}
		stride, err := addStride(def, l.Strides[d], r.Strides[d])
		if err != nil {
			return nil, err
		}
		st.Offsets = append(st.Offsets, off)
		st.Strides = append(st.Strides, stride)
	}
	return st, nil
}

// mulStates scales a strided state by a uniform factor, typically a
// splatted scalar. Multiplying two strided values has no strided form.
func (a *analysis) mulStates(def *ir.Operation, l, r *desc.Descriptor) (*desc.Descriptor, error) {
	f, tensor, ok := factorOf(l, r)
	if !ok {
		return nil, errors.Errorf("%s: product of two strided values", def.Loc())
	}
	if tensor.Base != nil {
		return nil, errors.Errorf("%s: scaling a pointer", def.Loc())
	}
	st := &desc.Descriptor{Sizes: slices.Clone(tensor.Sizes)}
	for d := range tensor.Rank() {
		off, err := a.mulIndex(def, tensor.Offsets[d], f)
		if err != nil {
			return nil, err
		}
		stride, err := a.mulIndex(def, tensor.Strides[d], f)
		if err != nil {
			return nil, err
		}
		st.Offsets = append(st.Offsets, off)
		st.Strides = append(st.Strides, stride)
	}
	return st, nil
}

// factorOf returns the uniform side of a product and the strided side.
func factorOf(l, r *desc.Descriptor) (desc.Index, *desc.Descriptor, bool) {
	if f, ok := uniformValue(r); ok {
		return f, l, true
	}
	if f, ok := uniformValue(l); ok {
		return f, r, true
	}
	return desc.Index{}, nil, false
}

// uniformValue returns the single element of a state whose elements
// are all equal: no base, zero strides, no offset outside the first.
func uniformValue(st *desc.Descriptor) (desc.Index, bool) {
	if st.Base != nil {
		return desc.Index{}, false
	}
	for _, s := range st.Strides {
		if !s.IsZero() {
			return desc.Index{}, false
		}
	}
	for _, o := range st.Offsets[1:] {
		if !o.IsZero() {
			return desc.Index{}, false
		}
	}
	return st.Offsets[0], true
}

func splatState(src *desc.Descriptor, dims []int) (*desc.Descriptor, error) {
	if src.Rank() != 0 {
		return nil, errors.New("splat of a non-scalar state")
	}
	st := &desc.Descriptor{Base: src.Base, Sizes: slices.Clone(dims)}
	st.Offsets = append(st.Offsets, src.Offsets[0])
	st.Strides = append(st.Strides, desc.ConstIndex(0))
	for range dims[1:] {
		st.Offsets = append(st.Offsets, desc.ConstIndex(0))
		st.Strides = append(st.Strides, desc.ConstIndex(0))
	}
	return st, nil
}

func constantTensorState(c int64, dims []int) *desc.Descriptor {
	st := &desc.Descriptor{Sizes: slices.Clone(dims)}
	st.Offsets = append(st.Offsets, desc.ConstIndex(c))
	st.Strides = append(st.Strides, desc.ConstIndex(0))
	for range dims[1:] {
		st.Offsets = append(st.Offsets, desc.ConstIndex(0))
		st.Strides = append(st.Strides, desc.ConstIndex(0))
	}
	return st
}

func expandDimsState(src *desc.Descriptor, axis int) *desc.Descriptor {
	st := &desc.Descriptor{Base: src.Base}
	st.Offsets = slices.Insert(slices.Clone(src.Offsets), axis, desc.ConstIndex(0))
	st.Strides = slices.Insert(slices.Clone(src.Strides), axis, desc.ConstIndex(0))
	st.Sizes = slices.Insert(slices.Clone(src.Sizes), axis, 1)
	return st
}

// broadcastState expands the size-1 dimensions of a state. A broadcast
// dimension repeats the same element, so its stride is zero.
func broadcastState(src *desc.Descriptor, dims []int) (*desc.Descriptor, error) {
	if src.Rank() != len(dims) {
		return nil, errors.Errorf("broadcast from rank %d to rank %d", src.Rank(), len(dims))
	}
	st := &desc.Descriptor{Base: src.Base, Sizes: slices.Clone(dims)}
	for d, size := range dims {
		st.Offsets = append(st.Offsets, src.Offsets[d])
		stride := src.Strides[d]
		if src.Sizes[d] == 1 && size != 1 {
			stride = desc.ConstIndex(0)
		}
		st.Strides = append(st.Strides, stride)
	}
	return st, nil
}

// addIndex adds two indices, materializing index arithmetic before the
// combining operation when either side is a runtime value.
func (a *analysis) addIndex(def *ir.Operation, x, y desc.Index) (desc.Index, error) {
	if x.IsConst() && y.IsConst() {
		return desc.ConstIndex(x.Const() + y.Const()), nil
	}
	if x.IsZero() {
		return y, nil
	}
	if y.IsZero() {
		return x, nil
	}
	a.b.SetInsertionPointBefore(def)
	loc := def.Location()
	xv, err := a.indexValue(loc, x)
	if err != nil {
		return desc.Index{}, err
	}
	yv, err := a.indexValue(loc, y)
	if err != nil {
		return desc.Index{}, err
	}
	return desc.ValueIndex(a.b.AddI(loc, xv, yv)), nil
}

// addStride adds two per-dimension strides. Unlike offsets, a stride
// sum involving two runtime values is rejected: the loop structure of
// the access would depend on data.
func addStride(def *ir.Operation, x, y desc.Index) (desc.Index, error) {
	if x.IsZero() {
		return y, nil
	}
	if y.IsZero() {
		return x, nil
	}
	if x.IsConst() && y.IsConst() {
		return desc.ConstIndex(x.Const() + y.Const()), nil
	}
	return desc.Index{}, errors.Errorf("%s: cannot combine two runtime strides", def.Loc())
}

// mulIndex multiplies an index by a scalar factor.
func (a *analysis) mulIndex(def *ir.Operation, x, f desc.Index) (desc.Index, error) {
	if x.IsConst() && f.IsConst() {
		return desc.ConstIndex(x.Const() * f.Const()), nil
	}
	if x.IsZero() || f.IsZero() {
		return desc.ConstIndex(0), nil
	}
	if x.IsConst() && x.Const() == 1 {
		return f, nil
	}
	if f.IsConst() && f.Const() == 1 {
		return x, nil
	}
	a.b.SetInsertionPointBefore(def)
	loc := def.Location()
	xv, err := a.indexValue(loc, x)
	if err != nil {
		return desc.Index{}, err
	}
	fv, err := a.indexValue(loc, f)
	if err != nil {
		return desc.Index{}, err
	}
	return desc.ValueIndex(a.b.MulI(loc, xv, fv)), nil
}
