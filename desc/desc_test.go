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

package desc_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tile-org/strider/desc"
	"github.com/tile-org/strider/ir"
)

func TestTupleTypeFor(t *testing.T) {
	f32p := ir.Pointer{Elem: ir.F32}
	tests := []struct {
		typ  ir.Type
		want ir.Type
		ok   bool
	}{
		{
			typ:  f32p,
			want: ir.Tuple{Elems: []ir.Type{f32p, ir.Index{}}},
			ok:   true,
		},
		{
			typ: ir.TensorOf(f32p, 4, 8),
			want: ir.Tuple{Elems: []ir.Type{
				ir.TensorOf(f32p, 4, 8),
				ir.Tuple{Elems: []ir.Type{ir.Index{}, ir.Index{}, ir.Index{}, ir.Index{}}},
			}},
			ok: true,
		},
		{typ: ir.TensorOf(ir.F32, 4), ok: false},
		{typ: ir.I32, ok: false},
	}
	for ti, test := range tests {
		got, ok := desc.TupleTypeFor(test.typ)
		if ok != test.ok {
			t.Errorf("test %d: converted=%v but want %v", ti, ok, test.ok)
			continue
		}
		if !ok {
			continue
		}
		if !got.Equal(test.want) {
			t.Errorf("test %d: got %s but want %s", ti, got, test.want)
		}
	}
}

func TestFlattenedTypes(t *testing.T) {
	f32p := ir.Pointer{Elem: ir.F32}
	tests := []struct {
		typ  ir.Type
		want []string
	}{
		{typ: f32p, want: []string{"ptr<f32>", "index"}},
		{
			typ: ir.TensorOf(f32p, 4, 8),
			want: []string{
				"tensor<4x8xptr<f32>>",
				"index", "index", "index", "index",
			},
		},
	}
	for ti, test := range tests {
		flat, ok := desc.FlattenedTypes(test.typ)
		if !ok {
			t.Errorf("test %d: type %s not convertible", ti, test.typ)
			continue
		}
		got := make([]string, len(flat))
		for i, ft := range flat {
			got[i] = ft.String()
		}
		if diff := cmp.Diff(test.want, got); diff != "" {
			t.Errorf("test %d: unexpected flattened types (-want +got):\n%s", ti, diff)
		}
	}
}

func TestRankOf(t *testing.T) {
	f32p := ir.Pointer{Elem: ir.F32}
	if got := desc.RankOf(f32p); got != 0 {
		t.Errorf("scalar pointer has rank %d but want 0", got)
	}
	if got := desc.RankOf(ir.TensorOf(f32p, 4, 8)); got != 2 {
		t.Errorf("2-D pointer tensor has rank %d but want 2", got)
	}
}

func TestDescriptorValidate(t *testing.T) {
	fn := ir.NewFunc("f", []ir.Type{ir.Pointer{Elem: ir.F32}})
	base := fn.Arg(0)
	tests := []struct {
		name    string
		d       desc.Descriptor
		wantErr string
	}{
		{
			name: "scalar",
			d:    desc.Descriptor{Base: base, Offsets: []desc.Index{desc.ConstIndex(3)}},
		},
		{
			name: "rank 1",
			d: desc.Descriptor{
				Base:    base,
				Offsets: []desc.Index{desc.ConstIndex(0)},
				Strides: []desc.Index{desc.ConstIndex(1)},
				Sizes:   []int{16},
			},
		},
		{
			name:    "missing base",
			d:       desc.Descriptor{Offsets: []desc.Index{desc.ConstIndex(0)}},
			wantErr: "without a base pointer",
		},
		{
			name: "scalar with stride",
			d: desc.Descriptor{
				Base:    base,
				Offsets: []desc.Index{desc.ConstIndex(0)},
				Strides: []desc.Index{desc.ConstIndex(1)},
			},
			wantErr: "one offset and no stride",
		},
		{
			name: "rank mismatch",
			d: desc.Descriptor{
				Base:    base,
				Offsets: []desc.Index{desc.ConstIndex(0)},
				Strides: []desc.Index{desc.ConstIndex(1)},
				Sizes:   []int{4, 8},
			},
			wantErr: "rank 2",
		},
	}
	for _, test := range tests {
		err := test.d.Validate()
		if test.wantErr == "" {
			if err != nil {
				t.Errorf("%s: unexpected error: %v", test.name, err)
			}
			continue
		}
		if err == nil || !strings.Contains(err.Error(), test.wantErr) {
			t.Errorf("%s: got error %v but want it to contain %q", test.name, err, test.wantErr)
		}
	}
}

func TestIndex(t *testing.T) {
	c := desc.ConstIndex(4)
	if !c.IsConst() || c.Const() != 4 || c.IsZero() {
		t.Errorf("constant index misbehaves: %v", c)
	}
	if !desc.ConstIndex(0).IsZero() {
		t.Errorf("zero constant is not zero")
	}
	fn := ir.NewFunc("f", []ir.Type{ir.Index{}})
	v := desc.ValueIndex(fn.Arg(0))
	if v.IsConst() || v.IsZero() || v.Value() != fn.Arg(0) {
		t.Errorf("runtime index misbehaves: %v", v)
	}
}
