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
	"math"
	"testing"

	"golang.org/x/sync/errgroup"

	"jballoon.dev/jballoon/pkg/hostarch"
	"jballoon.dev/jballoon/pkg/jvm/jvmtest"
	"jballoon.dev/jballoon/pkg/usage"
)

const (
	// testBase is page-aligned, so every test balloon's hole covers its
	// whole buffer and reclaimed sizes are exact.
	testBase = hostarch.Addr(0x10000000)

	testBalloonSize = uint64(8 << 20)
)

func newTestShrinker(vm *jvmtest.VM) (*Shrinker, *fakeMapper) {
	m := newFakeMapper()
	s := New(vm, m, Opts{BalloonSize: testBalloonSize, Alignment: 0x1000})
	return s, m
}

func TestRequestMemory(t *testing.T) {
	for _, test := range []struct {
		name   string
		script []jvmtest.AllocBehavior
		target uint64
		want   uint64
	}{
		{
			// Reclamation is granular: three balloons cover a target
			// between two and three balloon sizes.
			name:   "reaches target",
			target: 20 << 20,
			want:   24 << 20,
		},
		{
			// Even a tiny target inflates one full balloon.
			name:   "minimum one balloon",
			target: 1,
			want:   testBalloonSize,
		},
		{
			name:   "allocation failure",
			script: []jvmtest.AllocBehavior{jvmtest.AllocFail},
			target: 100 << 20,
			want:   0,
		},
		{
			name:   "allocation failure after partial progress",
			script: []jvmtest.AllocBehavior{jvmtest.AllocPinned, jvmtest.AllocFail},
			target: 100 << 20,
			want:   testBalloonSize,
		},
		{
			// A scratch copy means the runtime will not pin arrays in
			// place; the attempt stops immediately.
			name:   "copied array aborts",
			script: []jvmtest.AllocBehavior{jvmtest.AllocCopy},
			target: 100 << 20,
			want:   0,
		},
		{
			name:   "copied array aborts after partial progress",
			script: []jvmtest.AllocBehavior{jvmtest.AllocPinned, jvmtest.AllocCopy},
			target: 100 << 20,
			want:   testBalloonSize,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			vm := jvmtest.NewVM(testBase)
			vm.Script(test.script...)
			s, _ := newTestShrinker(vm)

			before := usage.BalloonAccounting.Copy()
			if got := s.RequestMemory(test.target); got != test.want {
				t.Errorf("RequestMemory(%#x) = %#x, want %#x", test.target, got, test.want)
			}

			wantBalloons := int(test.want / testBalloonSize)
			if got := s.Registry().Len(); got != wantBalloons {
				t.Errorf("registry holds %d balloons, want %d", got, wantBalloons)
			}
			if got := vm.LiveGlobalRefs(); got != wantBalloons {
				t.Errorf("%d live global references, want %d", got, wantBalloons)
			}
			if got := vm.Pins(); got != 0 {
				t.Errorf("%d critical pins outstanding, want 0", got)
			}
			if got := vm.AttachBalance(); got != 0 {
				t.Errorf("attach balance is %d, want 0", got)
			}
			after := usage.BalloonAccounting.Copy()
			if got, want := after.Inflated-before.Inflated, test.want; got != want {
				t.Errorf("inflated bytes grew by %#x, want %#x", got, want)
			}
		})
	}
}

func TestRequestMemoryBoundedHeap(t *testing.T) {
	// A 20MiB heap fits two 8MiB buffers; the third allocation fails like a
	// heap hitting its -Xmx limit.
	vm := jvmtest.NewBoundedVM(testBase, 20<<20)
	s, _ := newTestShrinker(vm)
	if got, want := s.RequestMemory(math.MaxUint64), uint64(16<<20); got != want {
		t.Errorf("RequestMemory = %#x, want %#x", got, want)
	}
	if got := s.Registry().Len(); got != 2 {
		t.Errorf("registry holds %d balloons, want 2", got)
	}
}

func TestRequestMemoryAttachedThread(t *testing.T) {
	vm := jvmtest.NewVM(testBase)
	vm.SetAlwaysAttached(true)
	s, _ := newTestShrinker(vm)
	s.RequestMemory(1)
	// The calling thread already had an environment, so no attach happened
	// and none must be undone.
	if got := vm.Attaches(); got != 0 {
		t.Errorf("RequestMemory attached %d times from an attached thread, want 0", got)
	}
	if got := vm.AttachBalance(); got != 0 {
		t.Errorf("attach balance is %d, want 0", got)
	}
}

func TestRequestMemoryDetachedThread(t *testing.T) {
	vm := jvmtest.NewVM(testBase)
	s, _ := newTestShrinker(vm)
	s.RequestMemory(1)
	if got := vm.Attaches(); got != 1 {
		t.Errorf("RequestMemory attached %d times from a detached thread, want 1", got)
	}
	if got := vm.AttachBalance(); got != 0 {
		t.Errorf("attach balance is %d, want 0", got)
	}
}

func TestReleaseMemory(t *testing.T) {
	for _, test := range []struct {
		name     string
		inflated uint64
		target   uint64
		want     uint64
		wantLeft int
	}{
		{
			// One balloon covers a one-balloon target; the other survives.
			name:     "one of two",
			inflated: 16 << 20,
			target:   testBalloonSize,
			want:     testBalloonSize,
			wantLeft: 1,
		},
		{
			// The registry runs out before an unbounded target is met.
			name:     "exhausts registry",
			inflated: 16 << 20,
			target:   math.MaxUint64,
			want:     16 << 20,
			wantLeft: 0,
		},
		{
			name:     "empty registry",
			inflated: 0,
			target:   testBalloonSize,
			want:     0,
			wantLeft: 0,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			vm := jvmtest.NewVM(testBase)
			s, m := newTestShrinker(vm)
			if got := s.RequestMemory(test.inflated); got != test.inflated {
				t.Fatalf("RequestMemory(%#x) = %#x", test.inflated, got)
			}

			before := usage.BalloonAccounting.Copy()
			if got := s.ReleaseMemory(test.target); got != test.want {
				t.Errorf("ReleaseMemory(%#x) = %#x, want %#x", test.target, got, test.want)
			}
			if got := s.Registry().Len(); got != test.wantLeft {
				t.Errorf("registry holds %d balloons, want %d", got, test.wantLeft)
			}
			if got := vm.LiveGlobalRefs(); got != test.wantLeft {
				t.Errorf("%d live global references, want %d", got, test.wantLeft)
			}
			if got := len(m.holes); got != test.wantLeft {
				t.Errorf("mapper tracks %d holes, want %d", got, test.wantLeft)
			}
			if got := vm.AttachBalance(); got != 0 {
				t.Errorf("attach balance is %d, want 0", got)
			}
			after := usage.BalloonAccounting.Copy()
			if got, want := before.Inflated-after.Inflated, test.want; got != want {
				t.Errorf("inflated bytes shrank by %#x, want %#x", got, want)
			}
		})
	}
}

func TestAccountingMatchesHoles(t *testing.T) {
	vm := jvmtest.NewVM(testBase)
	s, m := newTestShrinker(vm)

	before := usage.BalloonAccounting.Copy()
	s.RequestMemory(24 << 20)
	s.ReleaseMemory(testBalloonSize)
	s.RequestMemory(testBalloonSize)

	var holeBytes uint64
	for _, hole := range m.holes {
		holeBytes += hole.Length()
	}
	after := usage.BalloonAccounting.Copy()
	if got := after.Inflated - before.Inflated; got != holeBytes {
		t.Errorf("accounting grew by %#x bytes, mapper holds %#x bytes of holes", got, holeBytes)
	}
	if got, want := after.Balloons-before.Balloons, uint64(s.Registry().Len()); got != want {
		t.Errorf("accounting grew by %d balloons, registry holds %d", got, want)
	}
}

func TestConcurrentRequestRelease(t *testing.T) {
	vm := jvmtest.NewVM(testBase)
	s, _ := newTestShrinker(vm)

	before := usage.BalloonAccounting.Copy()
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			for j := 0; j < 8; j++ {
				s.RequestMemory(testBalloonSize)
			}
			return nil
		})
		g.Go(func() error {
			for j := 0; j < 8; j++ {
				s.ReleaseMemory(testBalloonSize)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent balloon traffic failed: %v", err)
	}
	s.ReleaseMemory(math.MaxUint64)

	if got := s.Registry().Len(); got != 0 {
		t.Errorf("registry holds %d balloons after draining, want 0", got)
	}
	if got := vm.LiveGlobalRefs(); got != 0 {
		t.Errorf("%d global references survive draining, want 0", got)
	}
	if got := vm.AttachBalance(); got != 0 {
		t.Errorf("attach balance is %d, want 0", got)
	}
	after := usage.BalloonAccounting.Copy()
	if after.Inflated != before.Inflated {
		t.Errorf("inflated bytes drifted from %#x to %#x", before.Inflated, after.Inflated)
	}
}
