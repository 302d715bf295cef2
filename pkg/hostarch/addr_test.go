// Copyright 2026 The jballoon Authors.
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

package hostarch

import (
	"testing"
)

func TestAddLength(t *testing.T) {
	for _, test := range []struct {
		addr   Addr
		length uint64
		want   Addr
		wantOK bool
	}{
		{addr: 0x1000, length: 0x1000, want: 0x2000, wantOK: true},
		{addr: 0x1000, length: 0, want: 0x1000, wantOK: true},
		{addr: ^Addr(0), length: 1, wantOK: false},
		{addr: ^Addr(0) - 0xfff, length: 0xfff, want: ^Addr(0), wantOK: true},
	} {
		if got, ok := test.addr.AddLength(test.length); ok != test.wantOK || (ok && got != test.want) {
			t.Errorf("%#x.AddLength(%#x) = (%#x, %t), want (%#x, %t)", test.addr, test.length, got, ok, test.want, test.wantOK)
		}
	}
}

func TestRounding(t *testing.T) {
	for _, test := range []struct {
		addr     Addr
		wantDown Addr
		wantUp   Addr
	}{
		{addr: 0, wantDown: 0, wantUp: 0},
		{addr: 0x1000, wantDown: 0x1000, wantUp: 0x1000},
		{addr: 0x1001, wantDown: 0x1000, wantUp: 0x2000},
		{addr: 0x1fff, wantDown: 0x1000, wantUp: 0x2000},
	} {
		if got := test.addr.RoundDown(); got != test.wantDown {
			t.Errorf("%#x.RoundDown() = %#x, want %#x", test.addr, got, test.wantDown)
		}
		if got, ok := test.addr.RoundUp(); !ok || got != test.wantUp {
			t.Errorf("%#x.RoundUp() = (%#x, %t), want (%#x, true)", test.addr, got, ok, test.wantUp)
		}
	}
	if _, ok := (^Addr(0)).RoundUp(); ok {
		t.Error("RoundUp near the top of the address space did not report a wrap")
	}
}

func TestHugeRounding(t *testing.T) {
	for _, test := range []struct {
		addr     Addr
		wantDown Addr
		wantUp   Addr
	}{
		{addr: 0x200000, wantDown: 0x200000, wantUp: 0x200000},
		{addr: 0x200001, wantDown: 0x200000, wantUp: 0x400000},
		{addr: 0x3fffff, wantDown: 0x200000, wantUp: 0x400000},
	} {
		if got := test.addr.HugeRoundDown(); got != test.wantDown {
			t.Errorf("%#x.HugeRoundDown() = %#x, want %#x", test.addr, got, test.wantDown)
		}
		if got, ok := test.addr.HugeRoundUp(); !ok || got != test.wantUp {
			t.Errorf("%#x.HugeRoundUp() = (%#x, %t), want (%#x, true)", test.addr, got, ok, test.wantUp)
		}
	}
}

func TestAlign(t *testing.T) {
	for _, test := range []struct {
		addr     Addr
		align    uint64
		wantDown Addr
		wantUp   Addr
	}{
		{addr: 0x1800, align: 0x1000, wantDown: 0x1000, wantUp: 0x2000},
		{addr: 0x1800, align: 0x2000, wantDown: 0, wantUp: 0x2000},
		{addr: 0x4000, align: 0x2000, wantDown: 0x4000, wantUp: 0x4000},
		{addr: 0x101000, align: 0x200000, wantDown: 0, wantUp: 0x200000},
	} {
		if got := test.addr.AlignDown(test.align); got != test.wantDown {
			t.Errorf("%#x.AlignDown(%#x) = %#x, want %#x", test.addr, test.align, got, test.wantDown)
		}
		if got, ok := test.addr.AlignUp(test.align); !ok || got != test.wantUp {
			t.Errorf("%#x.AlignUp(%#x) = (%#x, %t), want (%#x, true)", test.addr, test.align, got, ok, test.wantUp)
		}
	}
	if _, ok := (^Addr(0)).AlignUp(0x1000); ok {
		t.Error("AlignUp near the top of the address space did not report a wrap")
	}
}

func TestIsAligned(t *testing.T) {
	if !Addr(0x4000).IsAligned(0x2000) {
		t.Error("0x4000 is not 0x2000-aligned")
	}
	if Addr(0x5000).IsAligned(0x2000) {
		t.Error("0x5000 is 0x2000-aligned")
	}
}

func TestToRange(t *testing.T) {
	ar, ok := Addr(0x1000).ToRange(0x2000)
	if !ok || ar != (AddrRange{0x1000, 0x3000}) {
		t.Errorf("ToRange = (%v, %t), want ([0x1000, 0x3000), true)", ar, ok)
	}
	if _, ok := (^Addr(0)).ToRange(2); ok {
		t.Error("ToRange past the top of the address space did not report a wrap")
	}
}

func TestAddrRange(t *testing.T) {
	ar := AddrRange{0x1000, 0x3000}
	if !ar.WellFormed() {
		t.Errorf("%v is not well-formed", ar)
	}
	if got := ar.Length(); got != 0x2000 {
		t.Errorf("%v.Length() = %#x, want 0x2000", ar, got)
	}
	if !ar.Contains(0x1000) || ar.Contains(0x3000) {
		t.Errorf("%v must contain its start and not its end", ar)
	}
	if !ar.Overlaps(AddrRange{0x2000, 0x4000}) || ar.Overlaps(AddrRange{0x3000, 0x4000}) {
		t.Errorf("%v overlap checks against adjacent ranges failed", ar)
	}
	if !ar.IsSupersetOf(AddrRange{0x1000, 0x2000}) || ar.IsSupersetOf(AddrRange{0x800, 0x2000}) {
		t.Errorf("%v superset checks failed", ar)
	}
	if got := ar.Intersect(AddrRange{0x2000, 0x4000}); got != (AddrRange{0x2000, 0x3000}) {
		t.Errorf("%v.Intersect([0x2000, 0x4000)) = %v, want [0x2000, 0x3000)", ar, got)
	}
	if got := ar.Intersect(AddrRange{0x4000, 0x5000}); got.Length() != 0 {
		t.Errorf("disjoint intersection %v is not empty", got)
	}
}
