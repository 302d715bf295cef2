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

// Package jvmtest provides an in-process implementation of the jvm bridge
// interfaces, for tests and for the balloond simulation harness.
//
// The VM hands out buffers from a flat, monotonically growing address
// space. By default addresses are synthetic and must not be dereferenced or
// mapped; a VM created with NewArenaVM backs them with a real anonymous
// mapping instead, so holes can be punched through a real Mapper.
package jvmtest

import (
	"sync/atomic"

	"jballoon.dev/jballoon/pkg/hostarch"
	"jballoon.dev/jballoon/pkg/jvm"
	"jballoon.dev/jballoon/pkg/sync"
)

// AllocBehavior scripts the outcome of one NewByteArray call.
type AllocBehavior int

const (
	// AllocPinned allocates a buffer whose real address is returned by
	// GetPrimitiveArrayCritical.
	AllocPinned AllocBehavior = iota

	// AllocCopy allocates a buffer but reports its address as a scratch
	// copy (isCopy set).
	AllocCopy

	// AllocFail fails the allocation and raises a pending failure.
	AllocFail
)

// VM implements jvm.VM over a simulated heap.
type VM struct {
	// alwaysAttached makes GetEnv succeed without a prior attach,
	// simulating a call made from a runtime thread.
	alwaysAttached bool

	// attachBalance is incremented by AttachCurrentThread and decremented
	// by DetachCurrentThread.
	attachBalance atomic.Int64

	// attaches counts AttachCurrentThread calls.
	attaches atomic.Int64

	mu sync.Mutex
	// +checklocks:mu
	script []AllocBehavior
	// +checklocks:mu
	nextAddr hostarch.Addr
	// +checklocks:mu
	remaining uint64
	// +checklocks:mu
	bounded bool
	// +checklocks:mu
	globalRefs map[*array]int
	// +checklocks:mu
	pending bool
	// +checklocks:mu
	pins int
}

// array is the runtime object behind a LocalRef.
type array struct {
	addr   hostarch.Addr
	length uint64
	isCopy bool
}

// NewVM returns a VM whose heap addresses are synthetic, starting at base.
// The addresses must never be mapped or dereferenced.
func NewVM(base hostarch.Addr) *VM {
	return &VM{
		nextAddr:   base,
		globalRefs: make(map[*array]int),
	}
}

// NewBoundedVM is like NewVM but fails allocations with a pending failure
// once heapSize bytes have been handed out, like a heap hitting -Xmx.
func NewBoundedVM(base hostarch.Addr, heapSize uint64) *VM {
	vm := NewVM(base)
	vm.remaining = heapSize
	vm.bounded = true
	return vm
}

// SetAlwaysAttached makes every GetEnv succeed, simulating calls from
// threads that already belong to the runtime.
func (vm *VM) SetAlwaysAttached(v bool) {
	vm.alwaysAttached = v
}

// Script appends allocation behaviors consumed in order by NewByteArray;
// when the script runs out, allocations are AllocPinned.
func (vm *VM) Script(behaviors ...AllocBehavior) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.script = append(vm.script, behaviors...)
}

// AttachBalance returns the number of attaches minus detaches performed on
// the VM. A correct caller leaves it at zero.
func (vm *VM) AttachBalance() int64 {
	return vm.attachBalance.Load()
}

// Attaches returns the total number of AttachCurrentThread calls.
func (vm *VM) Attaches() int64 {
	return vm.attaches.Load()
}

// LiveGlobalRefs returns the number of global references not yet deleted.
func (vm *VM) LiveGlobalRefs() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	n := 0
	for _, c := range vm.globalRefs {
		n += c
	}
	return n
}

// Pins returns the number of critical pins currently outstanding.
func (vm *VM) Pins() int {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.pins
}

// GetEnv implements jvm.VM.GetEnv.
func (vm *VM) GetEnv() (jvm.Env, error) {
	if vm.alwaysAttached {
		return &env{vm}, nil
	}
	return nil, jvm.ErrDetached
}

// AttachCurrentThread implements jvm.VM.AttachCurrentThread.
func (vm *VM) AttachCurrentThread() (jvm.Env, error) {
	vm.attachBalance.Add(1)
	vm.attaches.Add(1)
	return &env{vm}, nil
}

// DetachCurrentThread implements jvm.VM.DetachCurrentThread.
func (vm *VM) DetachCurrentThread() error {
	vm.attachBalance.Add(-1)
	return nil
}

// env implements jvm.Env.
type env struct {
	vm *VM
}

// NewByteArray implements jvm.Env.NewByteArray.
func (e *env) NewByteArray(length uint64) jvm.LocalRef {
	vm := e.vm
	vm.mu.Lock()
	defer vm.mu.Unlock()

	behavior := AllocPinned
	if len(vm.script) > 0 {
		behavior = vm.script[0]
		vm.script = vm.script[1:]
	}
	if behavior == AllocFail || (vm.bounded && vm.remaining < length) {
		vm.pending = true
		return nil
	}
	if vm.bounded {
		vm.remaining -= length
	}
	a := &array{
		addr:   vm.nextAddr,
		length: length,
		isCopy: behavior == AllocCopy,
	}
	vm.nextAddr += hostarch.Addr(length)
	return a
}

// ExceptionOccurred implements jvm.Env.ExceptionOccurred.
func (e *env) ExceptionOccurred() bool {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	return e.vm.pending
}

// ExceptionClear implements jvm.Env.ExceptionClear.
func (e *env) ExceptionClear() {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.vm.pending = false
}

// GetPrimitiveArrayCritical implements jvm.Env.GetPrimitiveArrayCritical.
func (e *env) GetPrimitiveArrayCritical(arr jvm.LocalRef) (hostarch.Addr, bool) {
	a := arr.(*array)
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.vm.pins++
	return a.addr, a.isCopy
}

// ReleasePrimitiveArrayCritical implements
// jvm.Env.ReleasePrimitiveArrayCritical.
func (e *env) ReleasePrimitiveArrayCritical(arr jvm.LocalRef, _ hostarch.Addr) {
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.vm.pins--
}

// NewGlobalRef implements jvm.Env.NewGlobalRef.
func (e *env) NewGlobalRef(ref jvm.LocalRef) jvm.GlobalRef {
	a := ref.(*array)
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	e.vm.globalRefs[a]++
	return a
}

// DeleteGlobalRef implements jvm.Env.DeleteGlobalRef.
func (e *env) DeleteGlobalRef(ref jvm.GlobalRef) {
	a := ref.(*array)
	e.vm.mu.Lock()
	defer e.vm.mu.Unlock()
	if e.vm.globalRefs[a] == 0 {
		panic("jvmtest: deleting a global reference that does not exist")
	}
	e.vm.globalRefs[a]--
	if e.vm.globalRefs[a] == 0 {
		delete(e.vm.globalRefs, a)
	}
}
