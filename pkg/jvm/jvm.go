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

// Package jvm defines the boundary to the managed runtime's native bridge.
//
// The interfaces follow JNI vocabulary: a VM owns per-thread attachment
// state, and an Env is a thread's handle into the runtime. Implementations
// wrap an actual native bridge (e.g. a cgo JNI binding); package jvmtest
// provides an in-process implementation for tests and harnesses.
package jvm

import (
	"errors"

	"jballoon.dev/jballoon/pkg/hostarch"
)

// ErrDetached is returned by VM.GetEnv when the calling thread has no
// runtime handle. Any error other than ErrDetached from GetEnv indicates a
// broken bridge and is fatal to the caller.
var ErrDetached = errors.New("thread is not attached to the runtime")

// LocalRef is an opaque reference to a runtime object, valid only while the
// current native call into the runtime is in progress.
type LocalRef any

// GlobalRef is an opaque strong reference that keeps a runtime object
// reachable across native calls until explicitly deleted.
type GlobalRef any

// VM is a handle to the managed runtime shared by all threads.
//
// Implementations must be safe for concurrent use; attachment state is
// per-thread.
type VM interface {
	// GetEnv returns the calling thread's Env, or ErrDetached if the thread
	// is not attached.
	GetEnv() (Env, error)

	// AttachCurrentThread attaches the calling thread to the runtime and
	// returns its new Env.
	AttachCurrentThread() (Env, error)

	// DetachCurrentThread detaches the calling thread from the runtime.
	DetachCurrentThread() error
}

// Env is a single thread's handle into the managed runtime.
//
// An Env must only be used by the thread it was obtained on.
type Env interface {
	// NewByteArray allocates a byte array of the given length in the
	// runtime heap and returns a local reference to it. On allocation
	// failure the returned reference is nil and a pending failure is
	// raised in the runtime; observe it with ExceptionOccurred.
	NewByteArray(length uint64) LocalRef

	// ExceptionOccurred returns true if a failure is pending on this
	// thread.
	ExceptionOccurred() bool

	// ExceptionClear clears any pending failure on this thread.
	ExceptionClear()

	// GetPrimitiveArrayCritical pins arr and returns the address of its
	// backing storage. isCopy is true if the returned address is a
	// runtime-issued scratch copy rather than the array's actual storage;
	// such an address is useless for ballooning.
	GetPrimitiveArrayCritical(arr LocalRef) (addr hostarch.Addr, isCopy bool)

	// ReleasePrimitiveArrayCritical unpins the storage returned by
	// GetPrimitiveArrayCritical.
	ReleasePrimitiveArrayCritical(arr LocalRef, addr hostarch.Addr)

	// NewGlobalRef converts a local reference into a durable strong
	// reference.
	NewGlobalRef(ref LocalRef) GlobalRef

	// DeleteGlobalRef releases a strong reference, making the referenced
	// object collectable again.
	DeleteGlobalRef(ref GlobalRef)
}
