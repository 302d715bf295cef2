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

//go:build linux

package balloon

import (
	"golang.org/x/sys/unix"

	"jballoon.dev/jballoon/pkg/hostarch"
	"jballoon.dev/jballoon/pkg/memutil"
	"jballoon.dev/jballoon/pkg/sync"
)

// HostMapper implements Mapper with host mmap(2). Holes are PROT_NONE,
// MAP_NORESERVE fixed mappings, so any touch faults; re-backing replaces
// them with zero-filled anonymous read/write memory.
//
// The host kernel cannot tag a mapping with its owning balloon, so
// HostMapper keeps its own hole index; the fault trapping integration
// resolves a faulting address to its balloon with Owner. The index tracks
// the balloon pointer, not the range it was registered with, so it stays
// valid across relocations.
type HostMapper struct {
	mu sync.Mutex

	// +checklocks:mu
	holes map[*Balloon]hostarch.AddrRange
}

// NewHostMapper returns an empty HostMapper.
func NewHostMapper() *HostMapper {
	return &HostMapper{holes: make(map[*Balloon]hostarch.AddrRange)}
}

// MapFixedUninitialized implements Mapper.MapFixedUninitialized.
func (m *HostMapper) MapFixedUninitialized(ar hostarch.AddrRange, b *Balloon) error {
	if _, err := memutil.MapFile(uintptr(ar.Start), uintptr(ar.Length()), unix.PROT_NONE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED|unix.MAP_NORESERVE, memutil.NoFD, 0); err != nil {
		return err
	}
	m.mu.Lock()
	m.holes[b] = ar
	m.mu.Unlock()
	return nil
}

// MapAnonymousBacked implements Mapper.MapAnonymousBacked.
func (m *HostMapper) MapAnonymousBacked(ar hostarch.AddrRange) error {
	if _, err := memutil.MapFile(uintptr(ar.Start), uintptr(ar.Length()), unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_FIXED, memutil.NoFD, 0); err != nil {
		return err
	}
	m.mu.Lock()
	// Re-backing a hole retires its index entry; a relocation immediately
	// re-registers the balloon at its new range.
	for b, hole := range m.holes {
		if ar.IsSupersetOf(hole) {
			delete(m.holes, b)
		}
	}
	m.mu.Unlock()
	return nil
}

// Owner returns the balloon whose hole contains addr, or nil if addr is not
// ballooned.
func (m *HostMapper) Owner(addr hostarch.Addr) *Balloon {
	m.mu.Lock()
	defer m.mu.Unlock()
	for b, hole := range m.holes {
		if hole.Contains(addr) {
			return b
		}
	}
	return nil
}
