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

// Package desc defines the strided access descriptor:
// {base, offsets, strides, shape}, and its tuple and flattened type
// encodings used while structuring pointer arithmetic.
//
// The element at multi-index (i_0, ..., i_{r-1}) of an access lives at
// the linear element index
//
//	sum(offsets) + sum(i_d * strides[d])
//
// from the base pointer. A rank 0 descriptor models a scalar pointer:
// a single offset and no shape.
package desc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/tile-org/strider/fmterr"
	"github.com/tile-org/strider/ir"
)

// Index is a per-dimension offset or stride: either a compile-time
// constant or a runtime value.
type Index struct {
	v *ir.Value
	c int64
}

// ConstIndex returns a compile-time constant index.
func ConstIndex(c int64) Index {
	return Index{c: c}
}

// ValueIndex returns a runtime index.
func ValueIndex(v *ir.Value) Index {
	return Index{v: v}
}

// IsConst returns true when the index is a compile-time constant.
func (x Index) IsConst() bool { return x.v == nil }

// Const returns the constant of the index. The index must be constant.
func (x Index) Const() int64 {
	if x.v != nil {
		panic("strider internal error: Const called on a runtime index")
	}
	return x.c
}

// Value returns the runtime value of the index, or nil when constant.
func (x Index) Value() *ir.Value { return x.v }

// IsZero returns true when the index is the constant 0.
func (x Index) IsZero() bool { return x.v == nil && x.c == 0 }

// String representation of the index.
func (x Index) String() string {
	if x.v != nil {
		return fmt.Sprintf("%%%d", x.v.ID())
	}
	return fmt.Sprintf("%d", x.c)
}

// Descriptor is a strided memory access: a base pointer, per-dimension
// starting offsets and strides in elements, and the access shape.
type Descriptor struct {
	// Base is the root pointer value. It is referenced, not owned: the
	// analysis traces it back through arithmetic to a function
	// argument, a region argument or a constant.
	Base *ir.Value

	// Offsets per dimension, in elements.
	Offsets []Index

	// Strides per dimension, in elements.
	Strides []Index

	// Sizes is the extent of the access in each dimension.
	// ir.DynamicDim marks an extent not known at compile time.
	Sizes []int
}

// Rank of the access. Rank 0 is a scalar pointer.
func (d *Descriptor) Rank() int { return len(d.Sizes) }

// Validate checks the rank invariant of the descriptor. A violation is
// a bug in the analysis, not a recoverable condition.
func (d *Descriptor) Validate() error {
	if d.Base == nil {
		return fmterr.Internal(errors.New("descriptor without a base pointer"))
	}
	if d.Rank() == 0 {
		if len(d.Offsets) != 1 || len(d.Strides) != 0 {
			return fmterr.Internal(errors.Errorf("scalar descriptor must have one offset and no stride, got %d offsets and %d strides", len(d.Offsets), len(d.Strides)))
		}
		return nil
	}
	if len(d.Offsets) != d.Rank() || len(d.Strides) != d.Rank() {
		return fmterr.Internal(errors.Errorf("descriptor of rank %d with %d offsets and %d strides", d.Rank(), len(d.Offsets), len(d.Strides)))
	}
	return nil
}

// String representation of the descriptor.
func (d *Descriptor) String() string {
	ss := make([]string, 0, 3)
	ss = append(ss, fmt.Sprintf("offsets=%v", d.Offsets))
	ss = append(ss, fmt.Sprintf("strides=%v", d.Strides))
	ss = append(ss, fmt.Sprintf("sizes=%v", d.Sizes))
	return "{" + strings.Join(ss, ", ") + "}"
}
