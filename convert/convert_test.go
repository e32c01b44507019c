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

package convert_test

import (
	"testing"

	"github.com/tile-org/strider/convert"
	"github.com/tile-org/strider/ir"
)

const loc = ir.Location("test")

func countKind(fn *ir.Func, kind ir.OpKind) int {
	n := 0
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		if op.Kind() == kind {
			n++
		}
		return ir.WalkContinue
	})
	return n
}

func hasTupleValues(fn *ir.Func) bool {
	found := false
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		for _, res := range op.Results() {
			if res.Type().Kind() == ir.TupleKind {
				found = true
				return ir.WalkInterrupt
			}
		}
		for _, r := range op.Regions() {
			for _, arg := range r.Args() {
				if arg.Type().Kind() == ir.TupleKind {
					found = true
					return ir.WalkInterrupt
				}
			}
		}
		return ir.WalkContinue
	})
	return found
}

// loopKernel carries a 16-element pointer window through a loop.
func loopKernel() (*ir.Func, *ir.Value, *ir.Operation) {
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
	return fn, p0, loop
}

func TestConvertLoop(t *testing.T) {
	fn, p0, loop := loopKernel()
	if err := convert.Run(fn); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}

	// One carried tensor<16xptr> becomes the original plus one offset
	// and one stride scalar.
	if got := len(loop.ForInits()); got != 3 {
		t.Fatalf("loop carries %d values but want 3", got)
	}
	if got := loop.ForBody().NumArgs(); got != 4 {
		t.Fatalf("loop body has %d arguments but want 4", got)
	}
	if got := loop.NumResults(); got != 3 {
		t.Fatalf("loop has %d results but want 3", got)
	}
	arg := loop.ForCarried()[0]
	if !arg.Type().Equal(ir.TensorOf(ir.Pointer{Elem: ir.I32}, 16)) {
		t.Errorf("carried element 0 has type %s", arg.Type())
	}
	for i, v := range loop.ForCarried()[1:] {
		if v.Type().Kind() != ir.IndexKind {
			t.Errorf("carried element %d has type %s but want index", i+1, v.Type())
		}
	}

	// One placeholder for the init, one for the yield.
	if got := countKind(fn, ir.OpGetState); got != 2 {
		t.Errorf("conversion installed %d placeholders but want 2", got)
	}
	init := loop.ForInits()[0].DefiningOp()
	if init.Kind() != ir.OpGetState {
		t.Fatalf("loop init is %s but want a placeholder", init.Kind())
	}
	if init.Operand(0) != p0 {
		t.Errorf("init placeholder does not record the original pointer")
	}

	// The reconcile pass must leave no bridges and no tuples behind.
	if got := countKind(fn, ir.OpBridgeCast); got != 0 {
		t.Errorf("%d bridge casts survived reconciliation", got)
	}
	if hasTupleValues(fn) {
		t.Errorf("tuple-typed values survived flattening")
	}
	if err := fn.Verify(); err != nil {
		t.Errorf("converted function does not verify: %v", err)
	}
}

func TestConvertIf(t *testing.T) {
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
	if got := iff.NumResults(); got != 3 {
		t.Fatalf("conditional has %d results but want 3", got)
	}
	if got := countKind(fn, ir.OpGetState); got != 2 {
		t.Errorf("conversion installed %d placeholders but want 2", got)
	}
	for _, r := range iff.Regions() {
		if got := r.Terminator().NumOperands(); got != 3 {
			t.Errorf("branch yields %d values but want 3", got)
		}
	}
	if got := countKind(fn, ir.OpBridgeCast); got != 0 {
		t.Errorf("%d bridge casts survived reconciliation", got)
	}
	if err := fn.Verify(); err != nil {
		t.Errorf("converted function does not verify: %v", err)
	}
}

func TestConvertIdempotent(t *testing.T) {
	fn, _, loop := loopKernel()
	if err := convert.Run(fn); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	before := 0
	fn.Walk(func(*ir.Operation) ir.WalkResult { before++; return ir.WalkContinue })
	if err := convert.Run(fn); err != nil {
		t.Fatalf("second conversion failed: %v", err)
	}
	after := 0
	fn.Walk(func(*ir.Operation) ir.WalkResult { after++; return ir.WalkContinue })
	if before != after {
		t.Errorf("second conversion changed the function: %d -> %d operations", before, after)
	}
	if got := len(loop.ForInits()); got != 3 {
		t.Errorf("loop carries %d values but want 3", got)
	}
	if err := fn.Verify(); err != nil {
		t.Errorf("reconverted function does not verify: %v", err)
	}
}

func TestConvertPointerFreeLoopIsNoop(t *testing.T) {
	fn := ir.NewFunc("sum", []ir.Type{ir.Index{}})
	b := ir.NewBuilder(fn)
	c0 := b.ConstantIndex(loc, 0)
	c1 := b.ConstantIndex(loc, 1)
	loop := b.For(loc, c0, fn.Arg(0), c1, []*ir.Value{c0})
	b.SetInsertionPointToEnd(loop.ForBody())
	b.Yield(loc, b.AddI(loc, loop.ForBody().Arg(1), c1))

	before := 0
	fn.Walk(func(*ir.Operation) ir.WalkResult { before++; return ir.WalkContinue })
	if err := convert.Run(fn); err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	after := 0
	fn.Walk(func(*ir.Operation) ir.WalkResult { after++; return ir.WalkContinue })
	if before != after {
		t.Errorf("conversion changed a pointer-free loop: %d -> %d operations", before, after)
	}
	if got := len(loop.ForInits()); got != 1 {
		t.Errorf("loop carries %d values but want 1", got)
	}
}
