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

package balloon

import (
	"jballoon.dev/jballoon/pkg/hostarch"
)

// Mapper is the virtual-memory subsystem backing balloon holes.
//
// Implementations must support replacing existing mappings in place
// (MAP_FIXED semantics): relocation re-backs the old hole and reserves the
// new one, and the two ranges may partially overlap.
type Mapper interface {
	// MapFixedUninitialized reserves ar as a fixed virtual range with no
	// physical backing, and associates faults on it with b so they can be
	// routed to the fault relocation handler.
	//
	// Preconditions: ar.Length() > 0. ar must be aligned to b's granule.
	MapFixedUninitialized(ar hostarch.AddrRange, b *Balloon) error

	// MapAnonymousBacked maps ar as zero-filled, anonymous, read/write
	// memory, replacing any existing mapping of the range.
	//
	// Preconditions: ar.Length() > 0.
	MapAnonymousBacked(ar hostarch.AddrRange) error
}

// CopyDecoder describes one in-progress memory copy, intercepted by the
// host's fault trapping mechanism and already classified as a copy
// instruction touching a ballooned range.
type CopyDecoder interface {
	// Dest returns the copy's destination address at the fault point.
	Dest() hostarch.Addr

	// Src returns the copy's source address at the fault point.
	Src() hostarch.Addr

	// Fixup emulates the remainder of the faulting copy around the
	// relocated hole and resumes the interrupted instruction stream. tail
	// is the number of bytes between the copy's destination and the
	// buffer's new end that still require a real copy.
	Fixup(tail uint64)
}
