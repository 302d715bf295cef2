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

// Package balloon reclaims memory from a managed runtime without the
// runtime's cooperation, by allocating byte buffers in its heap and
// replacing their page mappings with unbacked virtual-memory holes
// ("balloons"). The runtime's garbage collector may relocate a ballooned
// buffer at any time; the resulting fault is serviced by sliding the hole
// to the buffer's new location instead of materializing pages, so a
// ballooned buffer is never actually copied.
package balloon

import (
	"jballoon.dev/jballoon/pkg/hostarch"
	"jballoon.dev/jballoon/pkg/jvm"
	"jballoon.dev/jballoon/pkg/usage"
)

// Balloons are carved in units of DefaultBalloonSize. That should increase
// the likelihood of having hugepages mapped in and out of the hole.
//
// Constant-sized balloons also simplify giving memory back to the runtime:
// there is no need to search the registry for a balloon of the desired
// size, any will do.
const DefaultBalloonSize uint64 = 128 << 20

// DefaultAlignment is the granule holes are aligned to.
const DefaultAlignment uint64 = hostarch.HugePageSize

// Balloon is one inflated hole inside one runtime-allocated buffer. It owns
// the hole's address range and the strong reference that keeps the backing
// buffer reachable until release.
//
// All fields are protected by the owning Registry's mutex. A balloon's
// identity is stable across relocations: moveBalloon mutates the bounds in
// place and never reconstructs the balloon, so pointers held by fault
// routing stay valid.
type Balloon struct {
	registry *Registry
	mapper   Mapper

	// bufferBase is the start of the runtime buffer currently carrying the
	// hole. It changes every time the runtime's GC relocates the buffer.
	bufferBase hostarch.Addr

	// bufferEnd is bufferBase + balloonSize.
	bufferEnd hostarch.Addr

	// [holeStart, holeEnd) is the aligned sub-range of the buffer that is
	// actually unbacked. Both bounds are multiples of alignment, and
	// bufferBase <= holeStart <= holeEnd <= bufferEnd.
	holeStart hostarch.Addr
	holeEnd   hostarch.Addr

	// ref keeps the backing buffer reachable in the runtime. Released
	// exactly once, by release.
	ref jvm.GlobalRef

	alignment   uint64
	balloonSize uint64
}

// newBalloonLocked constructs a balloon over the buffer at addr and inserts
// it into r. The hole is not reserved yet; the caller must call emptyArea.
//
// Preconditions: r.mu must be locked.
func newBalloonLocked(r *Registry, m Mapper, addr hostarch.Addr, ref jvm.GlobalRef, alignment, size uint64) *Balloon {
	b := &Balloon{
		registry:    r,
		mapper:      m,
		bufferBase:  addr,
		ref:         ref,
		alignment:   alignment,
		balloonSize: size,
	}
	r.insertLocked(b)
	return b
}

// holeRange returns [holeStart, holeEnd).
func (b *Balloon) holeRange() hostarch.AddrRange {
	return hostarch.AddrRange{Start: b.holeStart, End: b.holeEnd}
}

// holeSize returns the hole's length in bytes.
func (b *Balloon) holeSize() uint64 {
	return b.holeRange().Length()
}

// Size returns the balloon's fixed logical size, i.e. its accounting
// contribution toward a reclamation target.
func (b *Balloon) Size() uint64 {
	return b.balloonSize
}

// emptyArea computes the aligned hole inside the buffer and registers it
// with the mapper as reserved, unbacked memory. It returns the hole's
// length in bytes. Called once at inflation and once after every
// relocation.
//
// Preconditions: the registry's mutex must be locked.
func (b *Balloon) emptyArea() (uint64, error) {
	b.bufferEnd = b.bufferBase + hostarch.Addr(b.balloonSize)
	b.holeStart = b.bufferBase.MustAlignUp(b.alignment)
	b.holeEnd = b.bufferEnd.AlignDown(b.alignment)
	if b.holeEnd < b.holeStart {
		// The buffer does not contain a single aligned granule. Keep the
		// bounds well-formed; the balloon reclaims nothing.
		b.holeEnd = b.holeStart
		return 0, nil
	}
	if err := b.mapper.MapFixedUninitialized(b.holeRange(), b); err != nil {
		return 0, err
	}
	return b.holeSize(), nil
}

// moveBalloon slides the hole after the runtime's GC decided to relocate
// the backing buffer: the copy in progress reads from src and writes to
// dest. It returns the number of bytes from dest to the buffer's new end
// that the caller must still copy normally. The hole's bytes are never
// copied, only the mapping changes.
//
// Preconditions: the registry's mutex must be locked.
func (b *Balloon) moveBalloon(dest, src hostarch.Addr) (uint64, error) {
	// skipped is the length of the buffer prefix before the hole, which the
	// caller must still copy normally.
	skipped := uint64(b.holeStart - b.bufferBase)
	oldLen := b.holeSize()

	b.bufferBase = dest - hostarch.Addr(skipped)

	// Re-back the old hole first. No pages materialize there unless
	// touched, so this cannot create memory pressure, and if part of the
	// new hole falls within the old one the mapper's fixed remapping takes
	// care of it.
	if oldLen > 0 {
		if err := b.mapper.MapAnonymousBacked(b.holeRange()); err != nil {
			return 0, err
		}
	}
	newLen, err := b.emptyArea()
	if err != nil {
		return 0, err
	}
	usage.BalloonAccounting.MoveInflated(oldLen, newLen)
	return uint64(b.bufferEnd - dest), nil
}

// release backs the hole with real anonymous memory, drops the strong
// reference, and removes the balloon from the registry. The caller must
// discard the balloon afterwards.
//
// Giving memory back to the runtime only means deleting the reference:
// without pending references, the garbage collector disposes of the buffer
// whenever it needs to. The anonymous mapping restores the range's backing
// in the host, though pages materialize only once the runtime reuses the
// memory.
//
// Preconditions: the registry's mutex must be locked.
func (b *Balloon) release(env jvm.Env) error {
	if b.holeSize() > 0 {
		if err := b.mapper.MapAnonymousBacked(b.holeRange()); err != nil {
			return err
		}
	}
	env.DeleteGlobalRef(b.ref)
	b.registry.removeLocked(b)
	usage.BalloonAccounting.DecInflated(b.holeSize())
	return nil
}
