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

package main

import (
	"github.com/tile-org/strider/ir"
)

// kernel is a named demonstration program built directly in the IR.
type kernel struct {
	name  string
	about string
	build func() *ir.Func
}

var kernels = []kernel{
	{"vector_add", "elementwise add with a masked tail", vectorAdd},
	{"strided_rows", "2-D tile copy with a runtime row stride", stridedRows},
	{"window_walk", "loop advancing a window through two buffers", windowWalk},
	{"scalar_copy", "guarded single-element copy", scalarCopy},
}

func kernelByName(name string) (kernel, bool) {
	for _, k := range kernels {
		if k.name == name {
			return k, true
		}
	}
	return kernel{}, false
}

// vectorAdd reads two 128-element vectors under a mask, adds them and
// writes the result under the same mask.
func vectorAdd() *ir.Func {
	ptrT := ir.Pointer{Elem: ir.I32}
	maskT := ir.TensorOf(ir.Bool, 128)
	fn := ir.NewFunc("vector_add", []ir.Type{ptrT, ptrT, ptrT, maskT})
	b := ir.NewBuilder(fn)
	loc := ir.Location("vector_add")

	offs := b.MakeRange(loc, 0, 128)
	mask := fn.Arg(3)
	va := b.Load(loc, b.AddPtr(loc, fn.Arg(0), offs), mask)
	vb := b.Load(loc, b.AddPtr(loc, fn.Arg(1), offs), mask)
	sum := b.AddI(loc, va, vb)
	b.Store(loc, b.AddPtr(loc, fn.Arg(2), offs), sum, mask)
	return fn
}

// stridedRows copies a 4x8 tile from a source with a runtime row
// stride into a contiguous destination.
func stridedRows() *ir.Func {
	ptrT := ir.Pointer{Elem: ir.F32}
	fn := ir.NewFunc("strided_rows", []ir.Type{ptrT, ptrT, ir.I32})
	b := ir.NewBuilder(fn)
	loc := ir.Location("strided_rows")

	rows := b.Broadcast(loc, b.ExpandDims(loc, b.MakeRange(loc, 0, 4), 1), []int{4, 8})
	cols := b.Broadcast(loc, b.ExpandDims(loc, b.MakeRange(loc, 0, 8), 0), []int{4, 8})
	stride := b.Splat(loc, fn.Arg(2), []int{4, 8})
	srcOffs := b.AddI(loc, b.MulI(loc, rows, stride), cols)
	rowLen := b.SplatConstantInt(loc, ir.TensorOf(ir.I32, 4, 8), 8)
	dstOffs := b.AddI(loc, b.MulI(loc, rows, rowLen), cols)

	tile := b.Load(loc, b.AddPtr(loc, fn.Arg(0), srcOffs), nil)
	b.Store(loc, b.AddPtr(loc, fn.Arg(1), dstOffs), tile, nil)
	return fn
}

// windowWalk carries two 16-element windows through a loop, advancing
// both by one window per iteration.
func windowWalk() *ir.Func {
	ptrT := ir.Pointer{Elem: ir.I32}
	fn := ir.NewFunc("window_walk", []ir.Type{ptrT, ptrT, ir.I32})
	b := ir.NewBuilder(fn)
	loc := ir.Location("window_walk")

	src := b.AddPtr(loc, fn.Arg(0), b.MakeRange(loc, 0, 16))
	dst := b.AddPtr(loc, fn.Arg(1), b.MakeRange(loc, 0, 16))
	lb := b.ConstantIndex(loc, 0)
	ub := b.IndexCast(loc, fn.Arg(2), ir.Index{})
	step := b.ConstantIndex(loc, 1)
	loop := b.For(loc, lb, ub, step, []*ir.Value{src, dst})

	body := loop.ForBody()
	b.SetInsertionPointToEnd(body)
	pin, pout := body.Arg(1), body.Arg(2)
	v := b.Load(loc, pin, nil)
	b.Store(loc, pout, v, nil)
	adv := b.SplatConstantInt(loc, ir.TensorOf(ir.I32, 16), 16)
	b.Yield(loc, b.AddPtr(loc, pin, adv), b.AddPtr(loc, pout, adv))
	return fn
}

// scalarCopy copies one element at a fixed offset, guarded by a
// scalar condition.
func scalarCopy() *ir.Func {
	ptrT := ir.Pointer{Elem: ir.F32}
	fn := ir.NewFunc("scalar_copy", []ir.Type{ptrT, ptrT, ir.Bool})
	b := ir.NewBuilder(fn)
	loc := ir.Location("scalar_copy")

	off := b.ConstantInt(loc, ir.I32, 5)
	on := fn.Arg(2)
	v := b.Load(loc, b.AddPtr(loc, fn.Arg(0), off), on)
	b.Store(loc, b.AddPtr(loc, fn.Arg(1), off), v, on)
	return fn
}
