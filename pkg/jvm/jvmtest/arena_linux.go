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

package jvmtest

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"jballoon.dev/jballoon/pkg/hostarch"
	"jballoon.dev/jballoon/pkg/memutil"
)

// ArenaVM is a VM whose heap is a real anonymous host mapping, outside the
// Go heap. Buffer addresses it hands out may be mapped over with MAP_FIXED,
// so balloon holes can be punched through a real Mapper.
type ArenaVM struct {
	VM
	arena []byte
}

// NewArenaVM reserves an anonymous mapping of heapSize bytes (rounded up to
// a page) and returns a VM allocating from it. Allocations fail with a
// pending failure once the arena is exhausted.
func NewArenaVM(heapSize uint64) (*ArenaVM, error) {
	size := uintptr(hostarch.Addr(heapSize).MustRoundUp())
	arena, err := memutil.MapSlice(0, size, unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE, memutil.NoFD, 0)
	if err != nil {
		return nil, err
	}
	vm := &ArenaVM{arena: arena}
	vm.nextAddr = hostarch.Addr(uintptr(unsafe.Pointer(unsafe.SliceData(arena))))
	vm.remaining = uint64(size)
	vm.bounded = true
	vm.globalRefs = make(map[*array]int)
	return vm, nil
}

// Destroy unmaps the arena. No Env obtained from the VM may be used
// afterwards.
func (vm *ArenaVM) Destroy() error {
	return memutil.UnmapSlice(vm.arena)
}
