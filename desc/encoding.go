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

package desc

import (
	"github.com/tile-org/strider/ir"
)

// TupleTypeFor returns the tuple encoding of a pointer-like type:
// the original type followed by an inner tuple of 2*rank index values,
// offsets before strides. A scalar pointer encodes as
// tuple<ptr, index>: a single offset and no stride.
// Returns false when the type is not pointer-like.
func TupleTypeFor(t ir.Type) (ir.Tuple, bool) {
	switch tt := t.(type) {
	case ir.Tensor:
		if !ir.IsPtrTensor(tt) {
			return ir.Tuple{}, false
		}
		inner := make([]ir.Type, 2*tt.Rank())
		for i := range inner {
			inner[i] = ir.Index{}
		}
		return ir.Tuple{Elems: []ir.Type{tt, ir.Tuple{Elems: inner}}}, true
	case ir.Pointer:
		return ir.Tuple{Elems: []ir.Type{tt, ir.Index{}}}, true
	}
	return ir.Tuple{}, false
}

// FlattenedTypes returns the position-addressable flattened encoding
// of a pointer-like type: {original, offset_0, ..., offset_{r-1},
// stride_0, ..., stride_{r-1}}. Returns false when the type is not
// pointer-like.
func FlattenedTypes(t ir.Type) ([]ir.Type, bool) {
	tuple, ok := TupleTypeFor(t)
	if !ok {
		return nil, false
	}
	return tuple.Flatten(nil), true
}

// RankOf returns the access rank of a pointer-like type: the tensor
// rank for tensors of pointers, 0 for scalar pointers.
func RankOf(t ir.Type) int {
	if tt, ok := t.(ir.Tensor); ok {
		return tt.Rank()
	}
	return 0
}
