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

// Package lower rewrites structured loads and stores into explicit
// strided buffer accesses.
//
// Every access must read through a materialized descriptor by the time
// lowering runs. An unmasked tensor load becomes a strided view read
// back as a tensor. A masked tensor load becomes a data-parallel map
// guarding each element read, falling back to a typed zero where the
// mask is off. Stores become loop nests writing element by element,
// with masked elements skipped. Scalar accesses read and write a
// single-element view.
package lower

import (
	"github.com/tile-org/strider/fmterr"
	"github.com/tile-org/strider/ir"
)

// Run lowers every load and store of the function. An access through a
// pointer that was not structured by the analysis is a hard failure.
// Failures are collected over the whole function before reporting, so
// every offending operation is named next to the warning the analysis
// emitted for it.
func Run(fn *ir.Func) error {
	l := &lowerer{fn: fn, b: ir.NewBuilder(fn)}
	errs := &fmterr.Errors{}
	errs.Push(fmterr.PrefixWith("cannot lower %s:", fn.Name()))
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		switch op.Kind() {
		case ir.OpLoad:
			if err := l.lowerLoad(op); err != nil {
				errs.Append(err)
			}
		case ir.OpStore:
			if err := l.lowerStore(op); err != nil {
				errs.Append(err)
			}
		case ir.OpGetState, ir.OpBridgeCast:
			errs.Appendf(op, "unresolved pointer state reached lowering")
		}
		return ir.WalkContinue
	})
	errs.Pop()
	return errs.ToError()
}

type lowerer struct {
	fn *ir.Func
	b  *ir.Builder
}

// descriptorOf returns the materialized descriptor an access reads
// through.
func descriptorOf(op *ir.Operation, ptr *ir.Value) (*ir.Operation, error) {
	mp := ptr.DefiningOp()
	if mp == nil || mp.Kind() != ir.OpMakePtr {
		return nil, fmterr.Errorf(op, "cannot lower access through an unstructured pointer")
	}
	return mp, nil
}

func (l *lowerer) lowerLoad(op *ir.Operation) error {
	mp, err := descriptorOf(op, op.LoadPtr())
	if err != nil {
		return err
	}
	l.b.SetInsertionPointBefore(op)
	loc := op.Location()
	offset := l.offsetOf(loc, mp)
	mask := op.LoadMask()

	if mp.Attrs().Rank == 0 {
		v, err := l.scalarRead(loc, mp, offset, mask, op.Result(0).Type())
		if err != nil {
			return err
		}
		l.fn.ReplaceAllUses(op.Result(0), v)
		op.Erase()
		return nil
	}

	sizes, err := staticSizes(op, mp)
	if err != nil {
		return err
	}
	var v *ir.Value
	if mask == nil {
		view := l.b.ReinterpretCast(loc, mp.MakePtrBase(), offset, sizes, mp.MakePtrStrides())
		v = l.b.ToTensor(loc, view)
	} else {
		v, err = l.maskedRead(loc, op, mp, offset, mask)
		if err != nil {
			return err
		}
	}
	l.fn.ReplaceAllUses(op.Result(0), v)
	op.Erase()
	return nil
}

// scalarRead reads one element through a rank 0 descriptor. A masked
// scalar read selects between the element and a typed zero.
func (l *lowerer) scalarRead(loc ir.Location, mp *ir.Operation, offset, mask *ir.Value, t ir.Type) (*ir.Value, error) {
	view := l.viewOfOne(loc, mp, offset)
	zero := l.b.ConstantIndex(loc, 0)
	if mask == nil {
		return l.b.MemLoad(loc, view, zero), nil
	}
	iff := l.b.If(loc, mask, []ir.Type{t}, true)
	l.b.SetInsertionPointToStart(iff.IfThen())
	l.b.Yield(loc, l.b.MemLoad(loc, view, zero))
	l.b.SetInsertionPointToStart(iff.IfElse())
	fallback, err := l.zeroOf(loc, t)
	if err != nil {
		return nil, err
	}
	l.b.Yield(loc, fallback)
	l.b.SetInsertionPointAfter(iff)
	return iff.Result(0), nil
}

// maskedRead lowers a masked tensor load into a data-parallel map over
// the output positions: where the mask is on, the element is read from
// a flat view at its linear index; elsewhere the map yields zero.
func (l *lowerer) maskedRead(loc ir.Location, op, mp *ir.Operation, offset, mask *ir.Value) (*ir.Value, error) {
	flat := l.flatView(loc, mp, offset)
	result := op.Result(0).Type().(ir.Tensor)
	rank := result.Rank()
	gm := l.b.GenericMap(loc, result, []*ir.Value{mask})
	body := gm.Region(0)
	l.b.SetInsertionPointToStart(body)
	linear := l.linearIndex(loc, body.Args()[:rank], mp.MakePtrStrides())
	iff := l.b.If(loc, body.Arg(rank), []ir.Type{result.Elem}, true)
	l.b.SetInsertionPointToStart(iff.IfThen())
	l.b.Yield(loc, l.b.MemLoad(loc, flat, linear))
	l.b.SetInsertionPointToStart(iff.IfElse())
	zero, err := l.zeroOf(loc, result.Elem)
	if err != nil {
		return nil, err
	}
	l.b.Yield(loc, zero)
	l.b.SetInsertionPointToEnd(body)
	l.b.Yield(loc, iff.Result(0))
	l.b.SetInsertionPointAfter(gm)
	return gm.Result(0), nil
}

func (l *lowerer) lowerStore(op *ir.Operation) error {
	mp, err := descriptorOf(op, op.StorePtr())
	if err != nil {
		return err
	}
	l.b.SetInsertionPointBefore(op)
	loc := op.Location()
	offset := l.offsetOf(loc, mp)
	value := op.StoreValue()
	mask := op.StoreMask()

	if mp.Attrs().Rank == 0 {
		l.scalarWrite(loc, mp, offset, value, mask)
		op.Erase()
		return nil
	}

	sizes, err := staticSizes(op, mp)
	if err != nil {
		return err
	}
	flat := l.flatView(loc, mp, offset)

	// One loop per dimension, writing element by element. A masked
	// element is skipped rather than written.
	ivs := make([]*ir.Value, len(sizes))
	for d, size := range sizes {
		lb := l.b.ConstantIndex(loc, 0)
		ub := l.b.ConstantIndex(loc, size)
		step := l.b.ConstantIndex(loc, 1)
		loop := l.b.For(loc, lb, ub, step, nil)
		ivs[d] = loop.ForInductionVar()
		l.b.SetInsertionPointToStart(loop.ForBody())
	}
	linear := l.linearIndex(loc, ivs, mp.MakePtrStrides())
	elem := l.b.Extract(loc, value, ivs...)
	if mask == nil {
		l.b.MemStore(loc, elem, flat, linear)
	} else {
		on := l.b.Extract(loc, mask, ivs...)
		iff := l.b.If(loc, on, nil, false)
		l.b.SetInsertionPointToStart(iff.IfThen())
		l.b.MemStore(loc, elem, flat, linear)
		l.b.Yield(loc)
		l.b.SetInsertionPointAfter(iff)
	}
	// Close the loop nest innermost first.
	region := l.b.InsertionRegion()
	for range sizes {
		l.b.SetInsertionPointToEnd(region)
		l.b.Yield(loc)
		region = region.Parent().Parent()
	}
	op.Erase()
	return nil
}

// scalarWrite writes one element through a rank 0 descriptor. A masked
// scalar write is guarded and skipped when the mask is off.
func (l *lowerer) scalarWrite(loc ir.Location, mp *ir.Operation, offset, value, mask *ir.Value) {
	view := l.viewOfOne(loc, mp, offset)
	zero := l.b.ConstantIndex(loc, 0)
	if mask == nil {
		l.b.MemStore(loc, value, view, zero)
		return
	}
	iff := l.b.If(loc, mask, nil, false)
	l.b.SetInsertionPointToStart(iff.IfThen())
	l.b.MemStore(loc, value, view, zero)
	l.b.Yield(loc)
	l.b.SetInsertionPointAfter(iff)
}

// offsetOf folds the per-dimension offsets of a descriptor into the
// single displacement of the view.
func (l *lowerer) offsetOf(loc ir.Location, mp *ir.Operation) *ir.Value {
	offsets := mp.MakePtrOffsets()
	sum := offsets[0]
	for _, off := range offsets[1:] {
		sum = l.b.AddI(loc, sum, off)
	}
	return sum
}

// viewOfOne builds a single-element view for scalar accesses.
func (l *lowerer) viewOfOne(loc ir.Location, mp *ir.Operation, offset *ir.Value) *ir.Value {
	one := l.b.ConstantIndex(loc, 1)
	return l.b.ReinterpretCast(loc, mp.MakePtrBase(), offset, []int64{1}, []*ir.Value{one})
}

// flatView builds an unbounded contiguous view for element-by-element
// accesses at computed linear indices.
func (l *lowerer) flatView(loc ir.Location, mp *ir.Operation, offset *ir.Value) *ir.Value {
	one := l.b.ConstantIndex(loc, 1)
	return l.b.ReinterpretCast(loc, mp.MakePtrBase(), offset, []int64{ir.DynamicDim}, []*ir.Value{one})
}

// linearIndex computes sum(ivs[d] * strides[d]) at the insertion point.
func (l *lowerer) linearIndex(loc ir.Location, ivs, strides []*ir.Value) *ir.Value {
	lin := l.b.MulI(loc, ivs[0], strides[0])
	for d := 1; d < len(ivs); d++ {
		lin = l.b.AddI(loc, lin, l.b.MulI(loc, ivs[d], strides[d]))
	}
	return lin
}

func (l *lowerer) zeroOf(loc ir.Location, t ir.Type) (*ir.Value, error) {
	sc, ok := t.(ir.Scalar)
	if !ok {
		return nil, fmterr.Internalf(nil, "masked access fallback for non-scalar element type %s", t)
	}
	if sc.IsInteger() {
		return l.b.ConstantInt(loc, sc, 0), nil
	}
	return l.b.ConstantFloat(loc, sc, 0), nil
}

func staticSizes(op, mp *ir.Operation) ([]int64, error) {
	sizes := mp.Attrs().Sizes
	for _, s := range sizes {
		if s == ir.DynamicDim {
			return nil, fmterr.Errorf(op, "cannot lower access with a dynamic extent")
		}
	}
	return sizes, nil
}
