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
	"strings"

	"github.com/tile-org/strider/base/iter"
)

// String returns a textual dump of the function for diagnostics and
// tests. The format is stable but not parsed back.
func (fn *Func) String() string {
	p := &printer{names: make(map[ValueID]string)}
	p.printFunc(fn)
	return p.b.String()
}

type printer struct {
	b      strings.Builder
	names  map[ValueID]string
	next   int
	indent int
}

func (p *printer) name(v *Value) string {
	if n, ok := p.names[v.id]; ok {
		return n
	}
	n := fmt.Sprintf("%%%d", p.next)
	p.next++
	p.names[v.id] = n
	return n
}

func (p *printer) line(format string, a ...any) {
	p.b.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(&p.b, format, a...)
	p.b.WriteString("\n")
}

func (p *printer) printFunc(fn *Func) {
	var args []string
	for i, arg := range iter.Enumerate(fn.Args()) {
		p.names[arg.ID()] = fmt.Sprintf("%%arg%d", i)
		args = append(args, fmt.Sprintf("%s: %s", p.names[arg.ID()], arg.Type()))
	}
	p.line("func @%s(%s) {", fn.Name(), strings.Join(args, ", "))
	p.indent++
	for _, op := range fn.body.ops {
		p.printOp(op)
	}
	p.indent--
	p.line("}")
}

func (p *printer) printOp(op *Operation) {
	var ss []string
	for v := range iter.All(op.results) {
		ss = append(ss, p.name(v))
	}
	head := ""
	if len(ss) > 0 {
		head = strings.Join(ss, ", ") + " = "
	}
	var operands []string
	for v := range iter.All(op.operands) {
		operands = append(operands, p.name(v))
	}
	attrs := p.attrString(op)
	types := make([]string, len(op.results))
	for i, res := range op.results {
		types[i] = res.Type().String()
	}
	tail := ""
	if len(types) > 0 {
		tail = " : " + strings.Join(types, ", ")
	}
	if len(op.regions) == 0 {
		p.line("%s%s(%s)%s%s", head, op.kind, strings.Join(operands, ", "), attrs, tail)
		return
	}
	p.line("%s%s(%s)%s%s {", head, op.kind, strings.Join(operands, ", "), attrs, tail)
	for i, r := range op.regions {
		if i > 0 {
			p.line("} else {")
		}
		p.printRegion(r)
	}
	p.line("}")
}

func (p *printer) printRegion(r *Region) {
	p.indent++
	if len(r.args) > 0 {
		args := make([]string, len(r.args))
		for i, arg := range r.args {
			args[i] = fmt.Sprintf("%s: %s", p.name(arg), arg.Type())
		}
		p.line("^(%s):", strings.Join(args, ", "))
	}
	for _, op := range r.ops {
		p.printOp(op)
	}
	p.indent--
}

func (p *printer) attrString(op *Operation) string {
	var ss []string
	switch op.kind {
	case OpConstant, OpSplatConstant:
		if isFloatResult(op) {
			ss = append(ss, fmt.Sprintf("value=%g", op.attrs.FloatVal))
		} else {
			ss = append(ss, fmt.Sprintf("value=%d", op.attrs.IntVal))
		}
	case OpMakeRange:
		ss = append(ss, fmt.Sprintf("start=%d, end=%d", op.attrs.Start, op.attrs.End))
	case OpExpandDims:
		ss = append(ss, fmt.Sprintf("axis=%d", op.attrs.Axis))
	case OpMakePtr:
		ss = append(ss, fmt.Sprintf("rank=%d, sizes=%v", op.attrs.Rank, op.attrs.Sizes))
	case OpReinterpretCast:
		ss = append(ss, fmt.Sprintf("sizes=%v, strides=%v", op.attrs.Sizes, op.attrs.Strides))
	}
	if len(ss) == 0 {
		return ""
	}
	return " {" + strings.Join(ss, ", ") + "}"
}

func isFloatResult(op *Operation) bool {
	if len(op.results) == 0 {
		return false
	}
	sc, ok := ElemType(op.results[0].Type()).(Scalar)
	return ok && !sc.IsInteger()
}
