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

import "slices"

// WalkResult controls the traversal of Walk.
type WalkResult uint8

const (
	// WalkContinue continues the traversal.
	WalkContinue WalkResult = iota
	// WalkSkip does not descend into the regions of the current operation.
	WalkSkip
	// WalkInterrupt stops the traversal.
	WalkInterrupt
)

// Walk traverses the function pre-order: an operation is visited
// before the operations of its nested regions, and operations within a
// region are visited in order, so defining operations are always
// visited before their uses. The callback may erase the current
// operation or insert operations after it.
func (fn *Func) Walk(f func(*Operation) WalkResult) WalkResult {
	return fn.body.Walk(f)
}

// Walk traverses the region pre-order. See Func.Walk.
func (r *Region) Walk(f func(*Operation) WalkResult) WalkResult {
	// Snapshot so the callback can mutate the op list.
	for _, op := range slices.Clone(r.ops) {
		if op.parent == nil {
			// Erased by a previous callback.
			continue
		}
		switch f(op) {
		case WalkInterrupt:
			return WalkInterrupt
		case WalkSkip:
			continue
		}
		for _, nested := range op.regions {
			if nested.Walk(f) == WalkInterrupt {
				return WalkInterrupt
			}
		}
	}
	return WalkContinue
}
