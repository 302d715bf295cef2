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
	"errors"
	"fmt"
	"math/bits"
	"time"

	"jballoon.dev/jballoon/pkg/jvm"
	"jballoon.dev/jballoon/pkg/log"
	"jballoon.dev/jballoon/pkg/usage"
)

// Shrinker is the host-facing entry point: it reclaims memory from the
// managed runtime by inflating balloons and gives it back by deflating
// them. Both operations are synchronous, best-effort, and safe to call
// concurrently with each other and with GC-driven faults.
type Shrinker struct {
	vm       jvm.VM
	mapper   Mapper
	registry *Registry

	balloonSize uint64
	alignment   uint64

	// faultLog throttles fault-path logging so a relocation storm cannot
	// flood the log from inside the registry lock.
	faultLog log.Logger
}

// Opts configures a Shrinker.
type Opts struct {
	// BalloonSize is the fixed logical size of every balloon. Defaults to
	// DefaultBalloonSize.
	BalloonSize uint64

	// Alignment is the granule hole bounds are aligned to. Must be a power
	// of 2. Defaults to DefaultAlignment.
	Alignment uint64
}

// New returns a Shrinker that inflates balloons in the runtime behind vm
// and maps holes through mapper.
func New(vm jvm.VM, mapper Mapper, opts Opts) *Shrinker {
	if opts.BalloonSize == 0 {
		opts.BalloonSize = DefaultBalloonSize
	}
	if opts.Alignment == 0 {
		opts.Alignment = DefaultAlignment
	}
	if bits.OnesCount64(opts.Alignment) != 1 {
		panic(fmt.Sprintf("balloon: alignment %#x is not a power of 2", opts.Alignment))
	}
	return &Shrinker{
		vm:          vm,
		mapper:      mapper,
		registry:    NewRegistry(),
		balloonSize: opts.BalloonSize,
		alignment:   opts.Alignment,
		faultLog:    log.BasicRateLimitedLogger(time.Second),
	}
}

// Registry returns the shrinker's balloon registry.
func (s *Shrinker) Registry() *Registry {
	return s.registry
}

// attach ensures the calling thread has a handle into the runtime. owned
// reports whether this call performed the attachment, in which case the
// caller must detach on every exit path.
//
// We can be called either from a runtime thread or from the host's memory
// pressure machinery. In the first case the thread already has an Env; only
// in the second do we attach, and only then must we detach later.
func (s *Shrinker) attach() (env jvm.Env, owned bool) {
	env, err := s.vm.GetEnv()
	switch {
	case err == nil:
		return env, false
	case errors.Is(err, jvm.ErrDetached):
		env, err = s.vm.AttachCurrentThread()
		if err != nil {
			panic(fmt.Sprintf("balloon: cannot attach thread to runtime: %v", err))
		}
		return env, true
	default:
		panic(fmt.Sprintf("balloon: unexpected runtime attach status: %v", err))
	}
}

// detach undoes attach if it performed the attachment.
func (s *Shrinker) detach(owned bool) {
	if owned {
		if err := s.vm.DetachCurrentThread(); err != nil {
			panic(fmt.Sprintf("balloon: cannot detach thread from runtime: %v", err))
		}
	}
}

// RequestMemory inflates balloons until at least target bytes of hole have
// been reclaimed. It is best-effort: the loop stops early if the runtime
// reports an allocation failure, or hands back a scratch copy of the
// buffer, and the returned byte count may be less than target.
func (s *Shrinker) RequestMemory(target uint64) uint64 {
	env, owned := s.attach()
	defer s.detach(owned)

	var reclaimed uint64
	for {
		arr := env.NewByteArray(s.balloonSize)
		if env.ExceptionOccurred() {
			env.ExceptionClear()
			break
		}

		addr, isCopy := env.GetPrimitiveArrayCritical(arr)
		if isCopy {
			// A copy means the runtime is not pinning arrays for us; its
			// address is useless for ballooning and further attempts are
			// equally unlikely to help. Fail immediately rather than loop.
			env.ReleasePrimitiveArrayCritical(arr, addr)
			break
		}

		// The local reference pins the array only while this native call
		// is in progress. Take a global reference so the buffer stays
		// reachable until the balloon is released.
		ref := env.NewGlobalRef(arr)
		s.registry.mu.Lock()
		b := newBalloonLocked(s.registry, s.mapper, addr, ref, s.alignment, s.balloonSize)
		n, err := b.emptyArea()
		if err != nil {
			s.registry.removeLocked(b)
			s.registry.mu.Unlock()
			env.DeleteGlobalRef(ref)
			env.ReleasePrimitiveArrayCritical(arr, addr)
			log.Warningf("balloon: cannot reserve hole in buffer at %#x: %v", addr, err)
			break
		}
		usage.BalloonAccounting.IncInflated(n)
		s.registry.mu.Unlock()
		env.ReleasePrimitiveArrayCritical(arr, addr)

		if n == 0 {
			// Degenerate balloon: the buffer is smaller than one aligned
			// granule, and every further attempt would reclaim zero too.
			log.Warningf("balloon: balloon size %d yields an empty hole at alignment %#x", s.balloonSize, s.alignment)
			break
		}
		reclaimed += n
		log.Debugf("balloon: inflated %d bytes at %#x, %d/%d reclaimed", n, addr, reclaimed, target)
		if reclaimed >= target {
			break
		}
	}
	return reclaimed
}

// ReleaseMemory deflates balloons until at least target bytes have been
// given back to the runtime, or the registry runs out of balloons. It
// returns the number of bytes actually given back.
func (s *Shrinker) ReleaseMemory(target uint64) uint64 {
	env, owned := s.attach()
	defer s.detach(owned)

	var givenBack uint64
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	for givenBack < target {
		b := s.registry.anyLocked()
		if b == nil {
			break
		}
		givenBack += b.Size()
		if err := b.release(env); err != nil {
			// The hole is no longer consistent with the mapper; there is
			// no way to continue without corrupting the invariant.
			panic(fmt.Sprintf("balloon: cannot re-back hole %v: %v", b.holeRange(), err))
		}
	}
	return givenBack
}
