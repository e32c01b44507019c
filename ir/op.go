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
)

// OpKind tags the kind of an operation. Dispatch over operations is a
// switch on the kind rather than a per-kind struct type.
type OpKind uint8

const (
	// OpInvalid is the kind of no valid operation.
	OpInvalid OpKind = iota
	// OpConstant materializes a scalar or index constant.
	// Attributes: IntVal or FloatVal depending on the result type.
	OpConstant
	// OpSplatConstant materializes a tensor filled with one constant.
	// Attributes: IntVal or FloatVal depending on the element type.
	OpSplatConstant
	// OpMakeRange produces the tensor [Start, Start+1, ..., End-1].
	OpMakeRange
	// OpSplat broadcasts a scalar operand to a tensor.
	OpSplat
	// OpBroadcast expands size-1 dimensions of a tensor operand.
	OpBroadcast
	// OpExpandDims inserts a size-1 dimension at Axis.
	OpExpandDims
	// OpAddPtr advances a pointer (or each pointer of a tensor) by an
	// element offset.
	OpAddPtr
	// OpAddI adds integers or index values, elementwise on tensors.
	OpAddI
	// OpMulI multiplies integers or index values, elementwise on tensors.
	OpMulI
	// OpIndexCast converts between integer scalars and index values.
	OpIndexCast
	// OpLoad reads a scalar or a tile through a pointer.
	// Operands: ptr [, mask].
	OpLoad
	// OpStore writes a scalar or a tile through a pointer.
	// Operands: ptr, value [, mask].
	OpStore
	// OpFor is a counted loop with carried values.
	// Operands: lb, ub, step, init...; one body region whose arguments
	// are the induction variable followed by the carried values.
	OpFor
	// OpIf is a conditional with optional results.
	// Operands: cond; then and else regions.
	OpIf
	// OpYield terminates a region, forwarding values to the parent.
	OpYield
	// OpBridgeCast bridges between unconverted and converted types
	// while a type conversion is in flight. N inputs, M outputs.
	OpBridgeCast
	// OpGetState is the placeholder standing for the not-yet-computed
	// structured state of a pointer value. Its only operand is the
	// original pointer-producing value; its results are the flattened
	// descriptor scalars. It is inert and must not outlive the
	// pointer analysis.
	OpGetState
	// OpMakePtr materializes a resolved access descriptor.
	// Operands: base, offset..., stride...; attributes: Rank, Sizes.
	OpMakePtr
	// OpReinterpretCast builds a strided view over the buffer behind a
	// pointer. Operands: base, offset, dynamic strides...; attributes:
	// Sizes, Strides with DynamicDim marking each dynamic position.
	OpReinterpretCast
	// OpToTensor reads a memref view as a tensor.
	OpToTensor
	// OpMemLoad reads one element from a memref view.
	// Operands: memref, index.
	OpMemLoad
	// OpMemStore writes one element to a memref view.
	// Operands: value, memref, index.
	OpMemStore
	// OpExtract reads one element of a tensor.
	// Operands: tensor, index...
	OpExtract
	// OpGenericMap produces a tensor by running its body once per
	// output position, in parallel. Operands: input tensors; the body
	// arguments are the position indices followed by one element per
	// input; the body yields the output element.
	OpGenericMap
)

var opNames = map[OpKind]string{
	OpConstant:        "constant",
	OpSplatConstant:   "splat_constant",
	OpMakeRange:       "make_range",
	OpSplat:           "splat",
	OpBroadcast:       "broadcast",
	OpExpandDims:      "expand_dims",
	OpAddPtr:          "addptr",
	OpAddI:            "addi",
	OpMulI:            "muli",
	OpIndexCast:       "index_cast",
	OpLoad:            "load",
	OpStore:           "store",
	OpFor:             "for",
	OpIf:              "if",
	OpYield:           "yield",
	OpBridgeCast:      "bridge_cast",
	OpGetState:        "get_state",
	OpMakePtr:         "make_ptr",
	OpReinterpretCast: "reinterpret_cast",
	OpToTensor:        "to_tensor",
	OpMemLoad:         "mem_load",
	OpMemStore:        "mem_store",
	OpExtract:         "extract",
	OpGenericMap:      "generic_map",
}

// String returns the mnemonic of the kind.
func (k OpKind) String() string {
	if s, ok := opNames[k]; ok {
		return s
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// Attributes is the static (non-SSA) payload of an operation.
// Which fields are meaningful depends on the operation kind.
type Attributes struct {
	IntVal   int64
	FloatVal float64
	Axis     int
	Start    int64
	End      int64
	Rank     int
	Sizes    []int64
	Strides  []int64
}

// Operation is a node of the SSA graph.
type Operation struct {
	fn       *Func
	id       OpID
	kind     OpKind
	operands []*Value
	results  []*Value
	regions  []*Region
	attrs    Attributes
	loc      Location
	parent   *Region
}

// ID returns the stable identifier of the operation.
func (op *Operation) ID() OpID { return op.id }

// Kind of the operation.
func (op *Operation) Kind() OpKind { return op.kind }

// Loc returns the location of the operation for diagnostics.
func (op *Operation) Loc() string {
	if op.loc == "" {
		return op.kind.String()
	}
	return fmt.Sprintf("%s (%s)", op.loc, op.kind)
}

// Location of the operation in the original program.
func (op *Operation) Location() Location { return op.loc }

// Parent returns the region containing the operation.
func (op *Operation) Parent() *Region { return op.parent }

// Func owning the operation.
func (op *Operation) Func() *Func { return op.fn }

// Attrs returns the attributes of the operation.
func (op *Operation) Attrs() *Attributes { return &op.attrs }

// NumOperands returns the number of operands.
func (op *Operation) NumOperands() int { return len(op.operands) }

// Operand returns the i-th operand.
func (op *Operation) Operand(i int) *Value { return op.operands[i] }

// Operands returns the operands in order.
// The returned slice must not be mutated.
func (op *Operation) Operands() []*Value { return op.operands }

// NumResults returns the number of results.
func (op *Operation) NumResults() int { return len(op.results) }

// Result returns the i-th result.
func (op *Operation) Result(i int) *Value { return op.results[i] }

// Results returns the results in order.
// The returned slice must not be mutated.
func (op *Operation) Results() []*Value { return op.results }

// NumRegions returns the number of nested regions.
func (op *Operation) NumRegions() int { return len(op.regions) }

// Region returns the i-th nested region.
func (op *Operation) Region(i int) *Region { return op.regions[i] }

// Regions returns the nested regions.
func (op *Operation) Regions() []*Region { return op.regions }

// SetOperand replaces the i-th operand.
func (op *Operation) SetOperand(i int, v *Value) {
	op.fn.removeUse(op.operands[i], op)
	op.operands[i] = v
	op.fn.addUse(v, op)
}

// AppendOperands appends operands at the end of the operand list.
func (op *Operation) AppendOperands(vs ...*Value) {
	op.InsertOperands(len(op.operands), vs...)
}

// InsertOperands inserts operands at position i.
func (op *Operation) InsertOperands(i int, vs ...*Value) {
	op.operands = append(op.operands[:i], append(append([]*Value{}, vs...), op.operands[i:]...)...)
	for _, v := range vs {
		op.fn.addUse(v, op)
	}
}

// EraseOperand removes the i-th operand.
func (op *Operation) EraseOperand(i int) {
	op.fn.removeUse(op.operands[i], op)
	op.operands = append(op.operands[:i], op.operands[i+1:]...)
}

// AddResult appends a new result of the given type.
func (op *Operation) AddResult(t Type) *Value {
	return op.InsertResult(len(op.results), t)
}

// InsertResult inserts a new result of the given type at position i.
func (op *Operation) InsertResult(i int, t Type) *Value {
	v := op.fn.newValue(t)
	v.def = op
	op.results = append(op.results[:i], append([]*Value{v}, op.results[i:]...)...)
	op.renumberResults()
	return v
}

// EraseResult removes the i-th result. The result must be unused.
func (op *Operation) EraseResult(i int) {
	res := op.results[i]
	if res.HasUses() {
		panic(fmt.Sprintf("strider internal error: erasing result %%%d of %s which still has uses", res.id, op.kind))
	}
	op.results = append(op.results[:i], op.results[i+1:]...)
	op.renumberResults()
}

func (op *Operation) renumberResults() {
	for i, res := range op.results {
		res.idx = i
	}
}

// ReplaceAllUsesWith replaces every use of each result of the
// operation with the corresponding replacement value.
func (op *Operation) ReplaceAllUsesWith(replacements ...*Value) {
	if len(replacements) != len(op.results) {
		panic(fmt.Sprintf("strider internal error: replacing %d results of %s with %d values", len(op.results), op.kind, len(replacements)))
	}
	for i, res := range op.results {
		op.fn.ReplaceAllUses(res, replacements[i])
	}
}

// Erase removes the operation from its parent region and unregisters
// its operand uses. All results must be unused. Nested regions must
// not contain operations whose results are used outside of them.
func (op *Operation) Erase() {
	for _, res := range op.results {
		if res.HasUses() {
			panic(fmt.Sprintf("strider internal error: erasing %s whose result %%%d still has uses", op.kind, res.id))
		}
	}
	for _, r := range op.regions {
		for len(r.ops) > 0 {
			r.ops[len(r.ops)-1].Erase()
		}
	}
	for i := len(op.operands) - 1; i >= 0; i-- {
		op.EraseOperand(i)
	}
	if op.parent != nil {
		op.parent.remove(op)
	}
}

// MoveBefore moves the operation before other, preserving uses.
func (op *Operation) MoveBefore(other *Operation) {
	op.parent.remove(op)
	other.parent.insert(other.parent.indexOf(other), op)
}

func (op *Operation) addRegion() *Region {
	r := &Region{fn: op.fn, parent: op}
	op.regions = append(op.regions, r)
	return r
}
