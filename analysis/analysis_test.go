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

package analysis_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tile-org/strider/analysis"
	"github.com/tile-org/strider/convert"
	"github.com/tile-org/strider/fmterr"
	"github.com/tile-org/strider/ir"
)

const loc = ir.Location("test")

func findKind(fn *ir.Func, kind ir.OpKind) *ir.Operation {
	var found *ir.Operation
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		if op.Kind() == kind {
			found = op
			return ir.WalkInterrupt
		}
		return ir.WalkContinue
	})
	return found
}

func constOf(t *testing.T, v *ir.Value) int64 {
	t.Helper()
	def := v.DefiningOp()
	if def == nil || def.Kind() != ir.OpConstant {
		t.Fatalf("value is not a constant")
	}
	return def.Attrs().IntVal
}

func TestScalarOffset(t *testing.T) {
	ptrT := ir.Pointer{Elem: ir.F32}
	fn := ir.NewFunc("f", []ir.Type{ptrT})
	b := ir.NewBuilder(fn)
	b.Load(loc, b.AddPtr(loc, fn.Arg(0), b.ConstantInt(loc, ir.I32, 5)), nil)

	warnings := &fmterr.Warnings{}
	if err := analysis.Run(fn, warnings); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !warnings.Empty() {
		t.Fatalf("unexpected warnings: %v", warnings.All())
	}
	load := findKind(fn, ir.OpLoad)
	mp := load.LoadPtr().DefiningOp()
	if mp == nil || mp.Kind() != ir.OpMakePtr {
		t.Fatalf("load pointer was not structured")
	}
	if mp.MakePtrBase() != fn.Arg(0) {
		t.Errorf("descriptor base is not the root pointer argument")
	}
	if mp.Attrs().Rank != 0 {
		t.Errorf("descriptor has rank %d but want 0", mp.Attrs().Rank)
	}
	if got := constOf(t, mp.MakePtrOffsets()[0]); got != 5 {
		t.Errorf("descriptor offset is %d but want 5", got)
	}
}

func TestIdentityPointer(t *testing.T) {
	// A pointer tensor with no arithmetic ancestor: offsets all zero,
	// contiguous innermost stride.
	fn := ir.NewFunc("f", []ir.Type{ir.TensorOf(ir.Pointer{Elem: ir.I32}, 8)})
	b := ir.NewBuilder(fn)
	b.Load(loc, fn.Arg(0), nil)

	warnings := &fmterr.Warnings{}
	if err := analysis.Run(fn, warnings); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !warnings.Empty() {
		t.Fatalf("unexpected warnings: %v", warnings.All())
	}
	mp := findKind(fn, ir.OpMakePtr)
	if mp == nil {
		t.Fatalf("no descriptor materialized")
	}
	if mp.MakePtrBase() != fn.Arg(0) {
		t.Errorf("descriptor base is not the pointer argument")
	}
	if got := constOf(t, mp.MakePtrOffsets()[0]); got != 0 {
		t.Errorf("offset is %d but want 0", got)
	}
	if got := constOf(t, mp.MakePtrStrides()[0]); got != 1 {
		t.Errorf("stride is %d but want 1", got)
	}
}

func TestStridedComposition(t *testing.T) {
	// ptrs = base + rows*stride + cols over a 4x8 tile: the row stride
	// is a runtime value, the column stride is the constant 1.
	ptrT := ir.Pointer{Elem: ir.F32}
	fn := ir.NewFunc("f", []ir.Type{ptrT, ir.I32})
	b := ir.NewBuilder(fn)
	rows := b.Broadcast(loc, b.ExpandDims(loc, b.MakeRange(loc, 0, 4), 1), []int{4, 8})
	cols := b.Broadcast(loc, b.ExpandDims(loc, b.MakeRange(loc, 0, 8), 0), []int{4, 8})
	stride := b.Splat(loc, fn.Arg(1), []int{4, 8})
	offs := b.AddI(loc, b.MulI(loc, rows, stride), cols)
	b.Load(loc, b.AddPtr(loc, fn.Arg(0), offs), nil)

	warnings := &fmterr.Warnings{}
	if err := analysis.Run(fn, warnings); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !warnings.Empty() {
		t.Fatalf("unexpected warnings: %v", warnings.All())
	}
	mp := findKind(fn, ir.OpMakePtr)
	if mp == nil {
		t.Fatalf("no descriptor materialized")
	}
	if mp.Attrs().Rank != 2 {
		t.Fatalf("descriptor has rank %d but want 2", mp.Attrs().Rank)
	}
	if diff := cmp.Diff([]int64{4, 8}, mp.Attrs().Sizes); diff != "" {
		t.Errorf("unexpected descriptor sizes (-want +got):\n%s", diff)
	}
	offsets := mp.MakePtrOffsets()
	if got := constOf(t, offsets[0]); got != 0 {
		t.Errorf("row offset is %d but want 0", got)
	}
	if got := constOf(t, offsets[1]); got != 0 {
		t.Errorf("column offset is %d but want 0", got)
	}
	strides := mp.MakePtrStrides()
	rowStride := strides[0].DefiningOp()
	if rowStride == nil || rowStride.Kind() != ir.OpIndexCast || rowStride.Operand(0) != fn.Arg(1) {
		t.Errorf("row stride does not come from the stride argument")
	}
	if got := constOf(t, strides[1]); got != 1 {
		t.Errorf("column stride is %d but want 1", got)
	}
}

func TestLoopCarried(t *testing.T) {
	ptrT := ir.Pointer{Elem: ir.I32}
	fn := ir.NewFunc("walk", []ir.Type{ptrT, ir.Index{}})
	b := ir.NewBuilder(fn)
	p0 := b.AddPtr(loc, fn.Arg(0), b.MakeRange(loc, 0, 16))
	c0 := b.ConstantIndex(loc, 0)
	c1 := b.ConstantIndex(loc, 1)
	loop := b.For(loc, c0, fn.Arg(1), c1, []*ir.Value{p0})
	body := loop.ForBody()
	b.SetInsertionPointToEnd(body)
	v := b.Load(loc, body.Arg(1), nil)
	b.Store(loc, body.Arg(1), v, nil)
	adv := b.SplatConstantInt(loc, ir.TensorOf(ir.I32, 16), 16)
	b.Yield(loc, b.AddPtr(loc, body.Arg(1), adv))

	if err := convert.Run(fn); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	warnings := &fmterr.Warnings{}
	if err := analysis.Run(fn, warnings); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !warnings.Empty() {
		t.Fatalf("unexpected warnings: %v", warnings.All())
	}
	if placeholder := findKind(fn, ir.OpGetState); placeholder != nil {
		t.Fatalf("placeholder survived the analysis at %s", placeholder.Loc())
	}

	// The access inside the loop reads through the root base with the
	// carried offset, not through a per-iteration pointer copy.
	load := findKind(fn, ir.OpLoad)
	mp := load.LoadPtr().DefiningOp()
	if mp == nil || mp.Kind() != ir.OpMakePtr {
		t.Fatalf("loop load was not structured")
	}
	if mp.MakePtrBase() != fn.Arg(0) {
		t.Errorf("loop access base is not the root pointer argument")
	}
	if mp.MakePtrOffsets()[0] != loop.ForCarried()[1] {
		t.Errorf("loop access offset is not the carried offset scalar")
	}

	// The yield carries the advanced offset.
	yield := loop.ForBody().Terminator()
	ymp := yield.Operand(0).DefiningOp()
	if ymp == nil || ymp.Kind() != ir.OpMakePtr {
		t.Fatalf("yield does not carry a materialized descriptor")
	}
	if ymp.MakePtrBase() != fn.Arg(0) {
		t.Errorf("carried descriptor base is not the root pointer argument")
	}
	next := yield.Operand(1).DefiningOp()
	if next == nil || next.Kind() != ir.OpAddI {
		t.Errorf("carried offset was not advanced by an addition")
	}
	if err := fn.Verify(); err != nil {
		t.Errorf("analyzed function does not verify: %v", err)
	}
}

func TestBranchCarriedPointer(t *testing.T) {
	// A conditional selects between two windows of the same buffer; the
	// load through its result reads through the root base with the
	// offset and stride the conditional carries.
	ptrT := ir.Pointer{Elem: ir.F32}
	fn := ir.NewFunc("select", []ir.Type{ptrT, ir.Bool})
	b := ir.NewBuilder(fn)
	pa := b.AddPtr(loc, fn.Arg(0), b.MakeRange(loc, 0, 8))
	pb := b.AddPtr(loc, fn.Arg(0), b.MakeRange(loc, 8, 16))
	iff := b.If(loc, fn.Arg(1), []ir.Type{pa.Type()}, true)
	b.SetInsertionPointToStart(iff.IfThen())
	b.Yield(loc, pa)
	b.SetInsertionPointToStart(iff.IfElse())
	b.Yield(loc, pb)
	b.SetInsertionPointAfter(iff)
	b.Load(loc, iff.Result(0), nil)

	if err := convert.Run(fn); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	warnings := &fmterr.Warnings{}
	if err := analysis.Run(fn, warnings); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	if !warnings.Empty() {
		t.Fatalf("unexpected warnings: %v", warnings.All())
	}
	if placeholder := findKind(fn, ir.OpGetState); placeholder != nil {
		t.Fatalf("placeholder survived the analysis at %s", placeholder.Loc())
	}
	load := findKind(fn, ir.OpLoad)
	mp := load.LoadPtr().DefiningOp()
	if mp == nil || mp.Kind() != ir.OpMakePtr {
		t.Fatalf("load through the conditional was not structured")
	}
	if mp.MakePtrBase() != fn.Arg(0) {
		t.Errorf("descriptor base is not the root pointer argument")
	}
	if mp.MakePtrOffsets()[0] != iff.Result(1) {
		t.Errorf("descriptor offset is not the offset carried by the conditional")
	}
	if mp.MakePtrStrides()[0] != iff.Result(2) {
		t.Errorf("descriptor stride is not the stride carried by the conditional")
	}
	if err := fn.Verify(); err != nil {
		t.Errorf("analyzed function does not verify: %v", err)
	}
}

func TestDataDependentPointerWarns(t *testing.T) {
	ptrT := ir.Pointer{Elem: ir.I32}
	fn := ir.NewFunc("gather", []ir.Type{ptrT, ptrT})
	b := ir.NewBuilder(fn)
	idx := b.Load(loc, b.AddPtr(loc, fn.Arg(1), b.MakeRange(loc, 0, 8)), nil)
	gather := b.AddPtr(loc, b.Splat(loc, fn.Arg(0), []int{8}), idx)
	load := b.Load(loc, gather, nil).DefiningOp()

	warnings := &fmterr.Warnings{}
	if err := analysis.Run(fn, warnings); err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	all := warnings.All()
	if len(all) != 1 {
		t.Fatalf("got %d warnings but want 1: %v", len(all), all)
	}
	if !strings.Contains(all[0].Error(), "unsupported operation") {
		t.Errorf("warning %q does not name the unsupported operation", all[0])
	}
	// The unresolvable access is left untouched for the lowering to
	// report.
	if load.LoadPtr().DefiningOp().Kind() != ir.OpAddPtr {
		t.Errorf("data-dependent access was rewritten")
	}
}
