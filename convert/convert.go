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

// Package convert is the structural type converter: it rewrites every
// pointer-like value crossing a structured control flow boundary into
// the flattened descriptor encoding of package desc.
//
// The conversion runs as two independently committed sub-steps. The
// first retypes boundary values to the tuple encoding, bridging
// old-typed producers and consumers with bridge_cast operations. The
// second splits each tuple into its flattened scalars and installs a
// single get_state placeholder per boundary value, recording the
// original pointer-producing value for the pointer analysis to walk.
// A final reconcile pass folds the bridge casts away.
//
// The get_state placeholders are inert. No general simplification may
// run between the flatten step and the pointer analysis: it would
// erase placeholders whose recorded pointer value is otherwise dead.
package convert

import (
	"github.com/pkg/errors"

	"github.com/tile-org/strider/base/ordered"
	"github.com/tile-org/strider/desc"
	"github.com/tile-org/strider/fmterr"
	"github.com/tile-org/strider/ir"
)

// Run applies both conversion sub-steps. Running it on a function with
// no pointer-like boundary values is a no-op.
func Run(fn *ir.Func) error {
	if err := ToTuples(fn); err != nil {
		return err
	}
	return Flatten(fn)
}

// ToTuples retypes every pointer-like value crossing a loop or branch
// boundary to its tuple encoding, bridging both sides with bridge
// casts. Values whose type matches no conversion rule are left
// untouched.
func ToTuples(fn *ir.Func) error {
	var err error
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		switch op.Kind() {
		case ir.OpFor:
			err = tupleForOp(fn, op)
		case ir.OpIf:
			err = tupleIfOp(fn, op)
		}
		if err != nil {
			return ir.WalkInterrupt
		}
		return ir.WalkContinue
	})
	return err
}

func tupleForOp(fn *ir.Func, op *ir.Operation) error {
	b := ir.NewBuilder(fn)
	body := op.ForBody()
	loc := op.Location()
	for i, init := range op.ForInits() {
		t := init.Type()
		tupleT, ok := desc.TupleTypeFor(t)
		if !ok {
			continue
		}
		// An init produced by a placeholder is already converted;
		// converting it again would nest the encoding.
		if def := init.DefiningOp(); def != nil && def.Kind() == ir.OpGetState {
			continue
		}
		// Init: bridge the old-typed producer to the tuple.
		b.SetInsertionPointBefore(op)
		cast := b.BridgeCast(loc, []ir.Type{tupleT}, init)
		op.SetOperand(3+i, cast.Result(0))

		// Carried argument: retype in place, bridge back for the body.
		arg := body.Arg(1 + i)
		arg.SetType(tupleT)
		b.SetInsertionPointToStart(body)
		back := b.BridgeCast(loc, []ir.Type{t}, arg)
		fn.ReplaceAllUsesExcept(arg, back.Result(0), back)

		// Yield: bridge the next carried value to the tuple.
		yield := body.Terminator()
		if yield == nil || yield.Kind() != ir.OpYield {
			return fmterr.Internal(fmterr.Position(op, errors.New("for body without a yield terminator")))
		}
		b.SetInsertionPointBefore(yield)
		ycast := b.BridgeCast(loc, []ir.Type{tupleT}, yield.Operand(i))
		yield.SetOperand(i, ycast.Result(0))

		// Result: retype in place, bridge back for later uses.
		res := op.Result(i)
		res.SetType(tupleT)
		b.SetInsertionPointAfter(op)
		rcast := b.BridgeCast(loc, []ir.Type{t}, res)
		fn.ReplaceAllUsesExcept(res, rcast.Result(0), rcast)
	}
	return nil
}

func tupleIfOp(fn *ir.Func, op *ir.Operation) error {
	b := ir.NewBuilder(fn)
	loc := op.Location()
	for i, res := range op.Results() {
		t := res.Type()
		tupleT, ok := desc.TupleTypeFor(t)
		if !ok {
			continue
		}
		if yieldsPlaceholder(op, i) {
			continue
		}
		for _, r := range op.Regions() {
			yield := r.Terminator()
			if yield == nil || yield.Kind() != ir.OpYield {
				return fmterr.Internal(fmterr.Position(op, errors.New("if branch without a yield terminator")))
			}
			b.SetInsertionPointBefore(yield)
			ycast := b.BridgeCast(loc, []ir.Type{tupleT}, yield.Operand(i))
			yield.SetOperand(i, ycast.Result(0))
		}
		res.SetType(tupleT)
		b.SetInsertionPointAfter(op)
		rcast := b.BridgeCast(loc, []ir.Type{t}, res)
		fn.ReplaceAllUsesExcept(res, rcast.Result(0), rcast)
	}
	return nil
}

// Flatten splits every tuple-typed boundary value into its flattened
// scalars, installing one get_state placeholder per converted boundary
// value, then reconciles the bridge casts left by both sub-steps.
func Flatten(fn *ir.Func) error {
	var err error
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		switch op.Kind() {
		case ir.OpFor:
			err = flattenForOp(fn, op)
		case ir.OpIf:
			err = flattenIfOp(fn, op)
		}
		if err != nil {
			return ir.WalkInterrupt
		}
		return ir.WalkContinue
	})
	if err != nil {
		return err
	}
	reconcile(fn)
	return nil
}

func flattenForOp(fn *ir.Func, op *ir.Operation) error {
	b := ir.NewBuilder(fn)
	body := op.ForBody()
	loc := op.Location()
	// Right to left so operand, argument and result positions of the
	// not-yet-processed carried values stay valid.
	for i := len(op.ForInits()) - 1; i >= 0; i-- {
		arg := body.Arg(1 + i)
		tupleT, ok := arg.Type().(ir.Tuple)
		if !ok {
			continue
		}
		flat := tupleT.Flatten(nil)

		// Init: replace the tuple operand with the results of a
		// placeholder recording the original pointer value.
		init := op.Operand(3 + i)
		orig, ok := bridgedOrigin(init)
		if !ok {
			continue
		}
		b.SetInsertionPointBefore(op)
		gs := b.GetState(loc, orig, flat)
		op.SetOperand(3+i, gs.Result(0))
		op.InsertOperands(3+i+1, gs.Results()[1:]...)

		// Carried argument: split into the flattened scalars. The
		// element 0 carries the original type and takes over the uses.
		newArgs := make([]*ir.Value, len(flat))
		for j, ft := range flat {
			newArgs[j] = body.InsertArg(1+i+1+j, ft)
		}
		fn.ReplaceAllUses(arg, newArgs[0])
		body.EraseArg(1 + i)

		// Yield: replace the tuple with placeholder results seeded
		// from the pointer value computed inside the body.
		yield := body.Terminator()
		yorig, ok := bridgedOrigin(yield.Operand(i))
		if !ok {
			return fmterr.Internal(fmterr.Position(op, errors.New("carried tuple yield without a bridge cast producer")))
		}
		b.SetInsertionPointBefore(yield)
		ygs := b.GetState(loc, yorig, flat)
		yield.SetOperand(i, ygs.Result(0))
		yield.InsertOperands(i+1, ygs.Results()[1:]...)

		// Results: split like the arguments.
		res := op.Result(i)
		newRes := make([]*ir.Value, len(flat))
		for j, ft := range flat {
			newRes[j] = op.InsertResult(i+1+j, ft)
		}
		fn.ReplaceAllUses(res, newRes[0])
		op.EraseResult(i)
	}
	return nil
}

func flattenIfOp(fn *ir.Func, op *ir.Operation) error {
	b := ir.NewBuilder(fn)
	loc := op.Location()
	for i := op.NumResults() - 1; i >= 0; i-- {
		res := op.Result(i)
		tupleT, ok := res.Type().(ir.Tuple)
		if !ok {
			continue
		}
		flat := tupleT.Flatten(nil)
		converted := true
		for _, r := range op.Regions() {
			yield := r.Terminator()
			yorig, ok := bridgedOrigin(yield.Operand(i))
			if !ok {
				converted = false
				break
			}
			b.SetInsertionPointBefore(yield)
			ygs := b.GetState(loc, yorig, flat)
			yield.SetOperand(i, ygs.Result(0))
			yield.InsertOperands(i+1, ygs.Results()[1:]...)
		}
		if !converted {
			continue
		}
		newRes := make([]*ir.Value, len(flat))
		for j, ft := range flat {
			newRes[j] = op.InsertResult(i+1+j, ft)
		}
		fn.ReplaceAllUses(res, newRes[0])
		op.EraseResult(i)
	}
	return nil
}

// yieldsPlaceholder reports whether a branch already yields a
// placeholder result at position i, meaning the result group is
// converted.
func yieldsPlaceholder(op *ir.Operation, i int) bool {
	for _, r := range op.Regions() {
		yield := r.Terminator()
		if yield == nil || i >= yield.NumOperands() {
			continue
		}
		if def := yield.Operand(i).DefiningOp(); def != nil && def.Kind() == ir.OpGetState {
			return true
		}
	}
	return false
}

// bridgedOrigin returns the value a bridge cast was built from. This
// is the original, pre-conversion pointer-producing value that the
// pointer analysis walks.
func bridgedOrigin(v *ir.Value) (*ir.Value, bool) {
	def := v.DefiningOp()
	if def == nil || def.Kind() != ir.OpBridgeCast || def.NumOperands() == 0 {
		return nil, false
	}
	return def.Operand(0), true
}

// reconcile folds bridge casts: identity casts forward their operands,
// cast-of-cast chains returning to the starting types collapse, and
// casts without remaining uses are erased. The pending casts are kept
// in an ordered map so folding is deterministic; every productive
// round retires at least one cast, which bounds the rounds by the
// cast count. Casts that fold to nothing are left for the lowering to
// report.
func reconcile(fn *ir.Func) {
	casts := ordered.NewMap[ir.OpID, *ir.Operation]()
	fn.Walk(func(op *ir.Operation) ir.WalkResult {
		if op.Kind() == ir.OpBridgeCast {
			casts.Store(op.ID(), op)
		}
		return ir.WalkContinue
	})
	for range casts.Size() + 1 {
		var folded []ir.OpID
		for id, cast := range casts.Iter() {
			if foldCast(fn, cast) {
				folded = append(folded, id)
			}
		}
		if len(folded) == 0 {
			return
		}
		for _, id := range folded {
			casts.Delete(id)
		}
	}
}

func foldCast(fn *ir.Func, cast *ir.Operation) bool {
	if dead(cast) {
		cast.Erase()
		return true
	}
	// Identity: every result type matches the corresponding operand.
	if cast.NumOperands() == cast.NumResults() {
		identity := true
		for i, res := range cast.Results() {
			if !res.Type().Equal(cast.Operand(i).Type()) {
				identity = false
				break
			}
		}
		if identity {
			cast.ReplaceAllUsesWith(cast.Operands()...)
			cast.Erase()
			return true
		}
	}
	// Chain: cast(cast(xs)) where the outer results match the inner
	// operands.
	inner := cast.Operand(0).DefiningOp()
	if cast.NumOperands() == 1 && inner != nil && inner.Kind() == ir.OpBridgeCast &&
		inner.NumResults() == 1 && inner.NumOperands() == cast.NumResults() {
		match := true
		for i, res := range cast.Results() {
			if !res.Type().Equal(inner.Operand(i).Type()) {
				match = false
				break
			}
		}
		if match {
			cast.ReplaceAllUsesWith(inner.Operands()...)
			cast.Erase()
			return true
		}
	}
	return false
}

func dead(op *ir.Operation) bool {
	for _, res := range op.Results() {
		if res.HasUses() {
			return false
		}
	}
	return true
}
