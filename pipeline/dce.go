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

package pipeline

import (
	"slices"

	"golang.org/x/exp/maps"

	"github.com/tile-org/strider/ir"
)

// Operation kinds that can be erased when all results are unused.
// Placeholders are deliberately absent: a dead placeholder still marks
// an unstructured pointer and must reach the lowering to fail there.
var pureKinds = map[ir.OpKind]bool{
	ir.OpConstant:        true,
	ir.OpSplatConstant:   true,
	ir.OpMakeRange:       true,
	ir.OpSplat:           true,
	ir.OpBroadcast:       true,
	ir.OpExpandDims:      true,
	ir.OpAddPtr:          true,
	ir.OpAddI:            true,
	ir.OpMulI:            true,
	ir.OpIndexCast:       true,
	ir.OpMakePtr:         true,
	ir.OpReinterpretCast: true,
	ir.OpToTensor:        true,
	ir.OpExtract:         true,
}

// eliminateDeadOps erases side-effect-free operations without remaining
// uses, repeating until a fixed point since erasing a user can strand
// its producers.
func eliminateDeadOps(fn *ir.Func) {
	for {
		dead := map[ir.OpID]*ir.Operation{}
		fn.Walk(func(op *ir.Operation) ir.WalkResult {
			if pureKinds[op.Kind()] && unused(op) {
				dead[op.ID()] = op
			}
			return ir.WalkContinue
		})
		if len(dead) == 0 {
			return
		}
		// Later operations first so users go before their producers.
		ids := maps.Keys(dead)
		slices.Sort(ids)
		slices.Reverse(ids)
		for _, id := range ids {
			if unused(dead[id]) {
				dead[id].Erase()
			}
		}
	}
}

func unused(op *ir.Operation) bool {
	for _, res := range op.Results() {
		if res.HasUses() {
			return false
		}
	}
	return true
}
