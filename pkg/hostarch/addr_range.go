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

import "fmt"

// AddrRange is a range of Addrs.
//
// Type AddrRange <generated by hand in the image of go_generics ranges>
type AddrRange struct {
	// Start is the inclusive start of the range.
	Start Addr

	// End is the exclusive end of the range.
	End Addr
}

// WellFormed returns true if ar.Start <= ar.End. All other methods on an
// AddrRange require that the AddrRange is well-formed.
func (ar AddrRange) WellFormed() bool {
	return ar.Start <= ar.End
}

// Length returns the length of the range.
func (ar AddrRange) Length() uint64 {
	return uint64(ar.End - ar.Start)
}

// Contains returns true if ar contains x.
func (ar AddrRange) Contains(x Addr) bool {
	return ar.Start <= x && x < ar.End
}

// Overlaps returns true if ar and r2 overlap.
func (ar AddrRange) Overlaps(r2 AddrRange) bool {
	return ar.Start < r2.End && r2.Start < ar.End
}

// IsSupersetOf returns true if ar is a superset of r2.
func (ar AddrRange) IsSupersetOf(r2 AddrRange) bool {
	return ar.Start <= r2.Start && r2.End <= ar.End
}

// Intersect returns the intersection of ar and r2.
func (ar AddrRange) Intersect(r2 AddrRange) AddrRange {
	if ar.Start < r2.Start {
		ar.Start = r2.Start
	}
	if ar.End > r2.End {
		ar.End = r2.End
	}
	if ar.End < ar.Start {
		ar.End = ar.Start
	}
	return ar
}

// String implements fmt.Stringer.String.
func (ar AddrRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", ar.Start, ar.End)
}
