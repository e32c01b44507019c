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
	"strings"

	"github.com/gx-org/backend/dtype"
	"github.com/gx-org/backend/shape"
)

// Kind of a type.
type Kind uint8

const (
	// InvalidKind is the kind of no valid type.
	InvalidKind Kind = iota
	// ScalarKind is a numerical or boolean scalar.
	ScalarKind
	// IndexKind is the integer type used for address arithmetic.
	IndexKind
	// PointerKind is a pointer to scalar elements in a flat buffer.
	PointerKind
	// TensorKind is a tensor of scalars or pointers.
	TensorKind
	// TupleKind is an ordered aggregate of types.
	TupleKind
	// MemRefKind is a strided view over the buffer behind a pointer.
	MemRefKind
)

// DynamicDim marks a dimension which is not known at compile time.
const DynamicDim = -1

type (
	// Type of a value.
	Type interface {
		// Kind of the type.
		Kind() Kind

		// Equal returns true if other is the same type.
		Equal(Type) bool

		// String representation of the type.
		String() string
	}

	// Scalar is a numerical or boolean scalar type.
	Scalar struct {
		DType dtype.DataType
	}

	// Index is the address arithmetic integer type.
	Index struct{}

	// Pointer to elements of a given type in a flat buffer.
	Pointer struct {
		Elem Type
	}

	// Tensor of elements. A dimension equal to DynamicDim is unknown
	// at compile time.
	Tensor struct {
		Elem Type
		Dims []int
	}

	// Tuple of types.
	Tuple struct {
		Elems []Type
	}

	// MemRef is a strided view over the buffer behind a pointer.
	// Offset is always a runtime value supplied to the operation
	// creating the view.
	MemRef struct {
		Elem    Type
		Dims    []int
		Strides []int
	}
)

var (
	// Bool scalar type.
	Bool = Scalar{DType: dtype.Bool}
	// I32 scalar type.
	I32 = Scalar{DType: dtype.Int32}
	// I64 scalar type.
	I64 = Scalar{DType: dtype.Int64}
	// F32 scalar type.
	F32 = Scalar{DType: dtype.Float32}
	// F64 scalar type.
	F64 = Scalar{DType: dtype.Float64}
)

// Kind of the type.
func (Scalar) Kind() Kind { return ScalarKind }

// Equal returns true if other is the same type.
func (t Scalar) Equal(o Type) bool {
	ot, ok := o.(Scalar)
	return ok && ot.DType == t.DType
}

// scalarNames maps element kinds to the mnemonics of the printed
// grammar. The backend stringer spells kinds out ("Float32") and is
// not used for printing.
var scalarNames = map[dtype.DataType]string{
	dtype.Bool:     "bool",
	dtype.Int32:    "i32",
	dtype.Int64:    "i64",
	dtype.Float32:  "f32",
	dtype.Float64:  "f64",
	dtype.Bfloat16: "bf16",
}

// String representation of the type.
func (t Scalar) String() string {
	if name, ok := scalarNames[t.DType]; ok {
		return name
	}
	return strings.ToLower(t.DType.String())
}

// IsInteger returns true for integer and boolean scalars.
func (t Scalar) IsInteger() bool {
	return t.DType != dtype.Float32 && t.DType != dtype.Float64 && t.DType != dtype.Bfloat16
}

// Kind of the type.
func (Index) Kind() Kind { return IndexKind }

// Equal returns true if other is the same type.
func (Index) Equal(o Type) bool {
	_, ok := o.(Index)
	return ok
}

// String representation of the type.
func (Index) String() string { return "index" }

// Kind of the type.
func (Pointer) Kind() Kind { return PointerKind }

// Equal returns true if other is the same type.
func (t Pointer) Equal(o Type) bool {
	ot, ok := o.(Pointer)
	return ok && ot.Elem.Equal(t.Elem)
}

// String representation of the type.
func (t Pointer) String() string { return fmt.Sprintf("ptr<%s>", t.Elem.String()) }

// TensorOf returns the tensor type with the given element type and dimensions.
func TensorOf(elem Type, dims ...int) Tensor {
	return Tensor{Elem: elem, Dims: dims}
}

// Kind of the type.
func (Tensor) Kind() Kind { return TensorKind }

// Equal returns true if other is the same type.
func (t Tensor) Equal(o Type) bool {
	ot, ok := o.(Tensor)
	return ok && ot.Elem.Equal(t.Elem) && slices.Equal(ot.Dims, t.Dims)
}

// String representation of the type.
func (t Tensor) String() string {
	b := strings.Builder{}
	b.WriteString("tensor<")
	for _, d := range t.Dims {
		if d == DynamicDim {
			b.WriteString("?x")
		} else {
			fmt.Fprintf(&b, "%dx", d)
		}
	}
	b.WriteString(t.Elem.String())
	b.WriteString(">")
	return b.String()
}

// Rank of the tensor.
func (t Tensor) Rank() int { return len(t.Dims) }

// Static returns true when all dimensions are known at compile time.
func (t Tensor) Static() bool {
	return !slices.Contains(t.Dims, DynamicDim)
}

// Shape of the tensor when its element type is a scalar.
func (t Tensor) Shape() (*shape.Shape, bool) {
	sc, ok := t.Elem.(Scalar)
	if !ok || !t.Static() {
		return nil, false
	}
	return &shape.Shape{DType: sc.DType, AxisLengths: slices.Clone(t.Dims)}, true
}

// NumElements of the tensor. Returns false when a dimension is dynamic.
func (t Tensor) NumElements() (int, bool) {
	sh, ok := t.Shape()
	if ok {
		return sh.Size(), true
	}
	if !t.Static() {
		return 0, false
	}
	n := 1
	for _, d := range t.Dims {
		n *= d
	}
	return n, true
}

// Kind of the type.
func (Tuple) Kind() Kind { return TupleKind }

// Equal returns true if other is the same type.
func (t Tuple) Equal(o Type) bool {
	ot, ok := o.(Tuple)
	if !ok || len(ot.Elems) != len(t.Elems) {
		return false
	}
	for i, el := range t.Elems {
		if !el.Equal(ot.Elems[i]) {
			return false
		}
	}
	return true
}

// String representation of the type.
func (t Tuple) String() string {
	ss := make([]string, len(t.Elems))
	for i, el := range t.Elems {
		ss[i] = el.String()
	}
	return "tuple<" + strings.Join(ss, ", ") + ">"
}

// Flatten appends the scalar leaves of the tuple to types, in order.
func (t Tuple) Flatten(types []Type) []Type {
	for _, el := range t.Elems {
		if nested, ok := el.(Tuple); ok {
			types = nested.Flatten(types)
			continue
		}
		types = append(types, el)
	}
	return types
}

// Kind of the type.
func (MemRef) Kind() Kind { return MemRefKind }

// Equal returns true if other is the same type.
func (t MemRef) Equal(o Type) bool {
	ot, ok := o.(MemRef)
	return ok && ot.Elem.Equal(t.Elem) && slices.Equal(ot.Dims, t.Dims) && slices.Equal(ot.Strides, t.Strides)
}

// String representation of the type.
func (t MemRef) String() string {
	b := strings.Builder{}
	b.WriteString("memref<")
	for _, d := range t.Dims {
		if d == DynamicDim {
			b.WriteString("?x")
		} else {
			fmt.Fprintf(&b, "%dx", d)
		}
	}
	b.WriteString(t.Elem.String())
	b.WriteString(">")
	return b.String()
}

// IsPtr returns true if the type is a scalar pointer.
func IsPtr(t Type) bool {
	return t.Kind() == PointerKind
}

// IsPtrTensor returns true if the type is a tensor of pointers.
func IsPtrTensor(t Type) bool {
	tt, ok := t.(Tensor)
	return ok && tt.Elem.Kind() == PointerKind
}

// IsPtrLike returns true for scalar pointers and tensors of pointers.
func IsPtrLike(t Type) bool {
	return IsPtr(t) || IsPtrTensor(t)
}

// ElemType returns the element type of a tensor or memref type,
// or the type itself for scalar types.
func ElemType(t Type) Type {
	switch tt := t.(type) {
	case Tensor:
		return tt.Elem
	case MemRef:
		return tt.Elem
	default:
		return t
	}
}

// PointeeType returns the element type behind a pointer or a tensor
// of pointers.
func PointeeType(t Type) (Type, bool) {
	switch tt := t.(type) {
	case Pointer:
		return tt.Elem, true
	case Tensor:
		if pt, ok := tt.Elem.(Pointer); ok {
			return pt.Elem, true
		}
	}
	return nil, false
}
