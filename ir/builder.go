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
	"fmt"
	"slices"
)

// Builder creates operations at an insertion point.
type Builder struct {
	fn     *Func
	region *Region
	idx    int
}

// NewBuilder returns a builder inserting at the end of the function body.
func NewBuilder(fn *Func) *Builder {
	return &Builder{fn: fn, region: fn.body, idx: len(fn.body.ops)}
}

// SetInsertionPointToEnd moves the insertion point to the end of a region.
func (b *Builder) SetInsertionPointToEnd(r *Region) {
	b.region, b.idx = r, len(r.ops)
}

// SetInsertionPointToStart moves the insertion point to the start of a region.
func (b *Builder) SetInsertionPointToStart(r *Region) {
	b.region, b.idx = r, 0
}

// SetInsertionPointBefore moves the insertion point before an operation.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	b.region, b.idx = op.parent, op.parent.indexOf(op)
}

// SetInsertionPointAfter moves the insertion point after an operation.
func (b *Builder) SetInsertionPointAfter(op *Operation) {
	b.region, b.idx = op.parent, op.parent.indexOf(op)+1
}

// InsertionRegion returns the region the builder inserts into.
func (b *Builder) InsertionRegion() *Region { return b.region }

func (b *Builder) create(kind OpKind, loc Location, operands []*Value, resultTypes []Type, attrs Attributes, numRegions int) *Operation {
	op := &Operation{
		fn:    b.fn,
		id:    b.fn.nextOp,
		kind:  kind,
		attrs: attrs,
		loc:   loc,
	}
	b.fn.nextOp++
	op.operands = slices.Clone(operands)
	for _, v := range op.operands {
		b.fn.addUse(v, op)
	}
	for _, t := range resultTypes {
		res := b.fn.newValue(t)
		res.def = op
		res.idx = len(op.results)
		op.results = append(op.results, res)
	}
	for range numRegions {
		op.addRegion()
	}
	b.region.insert(b.idx, op)
	b.idx++
	return op
}

// ConstantInt creates an integer constant of the given scalar or index type.
func (b *Builder) ConstantInt(loc Location, t Type, v int64) *Value {
	return b.create(OpConstant, loc, nil, []Type{t}, Attributes{IntVal: v}, 0).Result(0)
}

// ConstantFloat creates a floating point constant.
func (b *Builder) ConstantFloat(loc Location, t Type, v float64) *Value {
	return b.create(OpConstant, loc, nil, []Type{t}, Attributes{FloatVal: v}, 0).Result(0)
}

// ConstantIndex creates an index constant.
func (b *Builder) ConstantIndex(loc Location, v int64) *Value {
	return b.ConstantInt(loc, Index{}, v)
}

// SplatConstantInt creates a tensor filled with an integer constant.
func (b *Builder) SplatConstantInt(loc Location, t Tensor, v int64) *Value {
	return b.create(OpSplatConstant, loc, nil, []Type{t}, Attributes{IntVal: v}, 0).Result(0)
}

// MakeRange creates the tensor [start, start+1, ..., end-1] of i32.
func (b *Builder) MakeRange(loc Location, start, end int64) *Value {
	t := TensorOf(I32, int(end-start))
	return b.create(OpMakeRange, loc, nil, []Type{t}, Attributes{Start: start, End: end}, 0).Result(0)
}

// Splat broadcasts a scalar to a tensor with the given dimensions.
func (b *Builder) Splat(loc Location, v *Value, dims []int) *Value {
	t := TensorOf(v.Type(), dims...)
	return b.create(OpSplat, loc, []*Value{v}, []Type{t}, Attributes{}, 0).Result(0)
}

// Broadcast expands the size-1 dimensions of a tensor to the given
// dimensions.
func (b *Builder) Broadcast(loc Location, v *Value, dims []int) *Value {
	t := TensorOf(v.Type().(Tensor).Elem, dims...)
	return b.create(OpBroadcast, loc, []*Value{v}, []Type{t}, Attributes{}, 0).Result(0)
}

// ExpandDims inserts a size-1 dimension at the given axis.
func (b *Builder) ExpandDims(loc Location, v *Value, axis int) *Value {
	src := v.Type().(Tensor)
	dims := make([]int, 0, len(src.Dims)+1)
	dims = append(dims, src.Dims[:axis]...)
	dims = append(dims, 1)
	dims = append(dims, src.Dims[axis:]...)
	t := TensorOf(src.Elem, dims...)
	return b.create(OpExpandDims, loc, []*Value{v}, []Type{t}, Attributes{Axis: axis}, 0).Result(0)
}

// AddPtr advances a pointer, or each pointer of a tensor, by an
// element offset. The result has the type of the pointer operand when
// it is a tensor, or a tensor of pointers when a scalar pointer is
// advanced by a tensor of offsets.
func (b *Builder) AddPtr(loc Location, ptr, off *Value) *Value {
	rt := ptr.Type()
	if IsPtr(rt) {
		if offT, ok := off.Type().(Tensor); ok {
			rt = TensorOf(rt, offT.Dims...)
		}
	}
	return b.create(OpAddPtr, loc, []*Value{ptr, off}, []Type{rt}, Attributes{}, 0).Result(0)
}

// AddI adds two integer or index values, elementwise on tensors.
func (b *Builder) AddI(loc Location, x, y *Value) *Value {
	return b.create(OpAddI, loc, []*Value{x, y}, []Type{x.Type()}, Attributes{}, 0).Result(0)
}

// MulI multiplies two integer or index values, elementwise on tensors.
func (b *Builder) MulI(loc Location, x, y *Value) *Value {
	return b.create(OpMulI, loc, []*Value{x, y}, []Type{x.Type()}, Attributes{}, 0).Result(0)
}

// IndexCast converts between integer scalars and index values.
func (b *Builder) IndexCast(loc Location, v *Value, to Type) *Value {
	return b.create(OpIndexCast, loc, []*Value{v}, []Type{to}, Attributes{}, 0).Result(0)
}

// Load reads through a pointer. mask may be nil.
func (b *Builder) Load(loc Location, ptr, mask *Value) *Value {
	var rt Type
	switch pt := ptr.Type().(type) {
	case Pointer:
		rt = pt.Elem
	case Tensor:
		rt = TensorOf(pt.Elem.(Pointer).Elem, pt.Dims...)
	default:
		panic(fmt.Sprintf("strider internal error: load through non-pointer type %s", ptr.Type()))
	}
	operands := []*Value{ptr}
	if mask != nil {
		operands = append(operands, mask)
	}
	return b.create(OpLoad, loc, operands, []Type{rt}, Attributes{}, 0).Result(0)
}

// Store writes through a pointer. mask may be nil.
func (b *Builder) Store(loc Location, ptr, value, mask *Value) *Operation {
	operands := []*Value{ptr, value}
	if mask != nil {
		operands = append(operands, mask)
	}
	return b.create(OpStore, loc, operands, nil, Attributes{}, 0)
}

// For creates a counted loop carrying the init values. The body region
// is created with the induction variable and one argument per carried
// value; the caller populates the body and must terminate it with a
// yield of the next carried values.
func (b *Builder) For(loc Location, lb, ub, step *Value, inits []*Value) *Operation {
	resultTypes := make([]Type, len(inits))
	for i, v := range inits {
		resultTypes[i] = v.Type()
	}
	operands := append([]*Value{lb, ub, step}, inits...)
	op := b.create(OpFor, loc, operands, resultTypes, Attributes{}, 1)
	body := op.regions[0]
	body.AddArg(Index{})
	for _, v := range inits {
		body.AddArg(v.Type())
	}
	return op
}

// If creates a conditional. Both branches must yield values matching
// resultTypes; when withElse is false, no else region is created and
// resultTypes must be empty.
func (b *Builder) If(loc Location, cond *Value, resultTypes []Type, withElse bool) *Operation {
	numRegions := 1
	if withElse {
		numRegions = 2
	}
	return b.create(OpIf, loc, []*Value{cond}, resultTypes, Attributes{}, numRegions)
}

// Yield terminates the current region with the given values.
func (b *Builder) Yield(loc Location, vals ...*Value) *Operation {
	return b.create(OpYield, loc, vals, nil, Attributes{}, 0)
}

// BridgeCast creates a bridge between unconverted and converted types.
func (b *Builder) BridgeCast(loc Location, resultTypes []Type, inputs ...*Value) *Operation {
	return b.create(OpBridgeCast, loc, inputs, resultTypes, Attributes{}, 0)
}

// GetState creates the placeholder standing for the structured state
// of the original pointer value.
func (b *Builder) GetState(loc Location, orig *Value, resultTypes []Type) *Operation {
	return b.create(OpGetState, loc, []*Value{orig}, resultTypes, Attributes{}, 0)
}

// MakePtr materializes a resolved access descriptor. For rank 0,
// offsets holds the single offset, strides is empty and sizes is nil.
func (b *Builder) MakePtr(loc Location, resType Type, base *Value, offsets, strides []*Value, sizes []int64) *Value {
	operands := append([]*Value{base}, offsets...)
	operands = append(operands, strides...)
	attrs := Attributes{Rank: len(sizes), Sizes: slices.Clone(sizes)}
	return b.create(OpMakePtr, loc, operands, []Type{resType}, attrs, 0).Result(0)
}

// ReinterpretCast builds a strided view over the buffer behind base,
// displaced by offset elements. A stride defined by a constant is
// folded into the view type; any other stride stays a dynamic operand.
func (b *Builder) ReinterpretCast(loc Location, base, offset *Value, sizes []int64, strides []*Value) *Value {
	pointee, ok := PointeeType(base.Type())
	if !ok {
		panic(fmt.Sprintf("strider internal error: reinterpret_cast of non-pointer type %s", base.Type()))
	}
	dims := make([]int, len(sizes))
	for i, s := range sizes {
		dims[i] = int(s)
	}
	operands := []*Value{base, offset}
	sts := make([]int, len(strides))
	static := make([]int64, len(strides))
	for i, s := range strides {
		if def := s.DefiningOp(); def != nil && def.kind == OpConstant {
			sts[i] = int(def.attrs.IntVal)
			static[i] = def.attrs.IntVal
			continue
		}
		sts[i] = DynamicDim
		static[i] = DynamicDim
		operands = append(operands, s)
	}
	t := MemRef{Elem: pointee, Dims: dims, Strides: sts}
	attrs := Attributes{Sizes: slices.Clone(sizes), Strides: static}
	return b.create(OpReinterpretCast, loc, operands, []Type{t}, attrs, 0).Result(0)
}

// ToTensor reads a memref view as a tensor.
func (b *Builder) ToTensor(loc Location, memref *Value) *Value {
	mt := memref.Type().(MemRef)
	t := TensorOf(mt.Elem, mt.Dims...)
	return b.create(OpToTensor, loc, []*Value{memref}, []Type{t}, Attributes{}, 0).Result(0)
}

// MemLoad reads one element from a memref view.
func (b *Builder) MemLoad(loc Location, memref, index *Value) *Value {
	mt := memref.Type().(MemRef)
	return b.create(OpMemLoad, loc, []*Value{memref, index}, []Type{mt.Elem}, Attributes{}, 0).Result(0)
}

// MemStore writes one element to a memref view.
func (b *Builder) MemStore(loc Location, value, memref, index *Value) *Operation {
	return b.create(OpMemStore, loc, []*Value{value, memref, index}, nil, Attributes{}, 0)
}

// Extract reads one element of a tensor.
func (b *Builder) Extract(loc Location, tensor *Value, indices ...*Value) *Value {
	t := tensor.Type().(Tensor)
	operands := append([]*Value{tensor}, indices...)
	return b.create(OpExtract, loc, operands, []Type{t.Elem}, Attributes{}, 0).Result(0)
}

// GenericMap creates a data-parallel elementwise map producing a
// tensor of the given type. The body region is created with one index
// argument per result dimension and one element argument per input;
// the caller populates the body and must terminate it with a yield of
// the output element.
func (b *Builder) GenericMap(loc Location, result Tensor, inputs []*Value) *Operation {
	op := b.create(OpGenericMap, loc, inputs, []Type{result}, Attributes{}, 1)
	body := op.regions[0]
	for range result.Dims {
		body.AddArg(Index{})
	}
	for _, in := range inputs {
		body.AddArg(in.Type().(Tensor).Elem)
	}
	return op
}
