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
	"jballoon.dev/jballoon/pkg/sync"
)

// Registry tracks all live balloons. A balloon is a member exactly between
// construction and release.
//
// The single mutex guards registry membership and every balloon's mutable
// bounds. Balloon operations are rare and cheap relative to normal heap
// traffic, so one coarse lock keeps the hole/buffer invariant trivially
// consistent across runtime threads and host pressure callbacks. Critical
// sections must stay short and must never touch ballooned memory.
type Registry struct {
	mu sync.Mutex

	// +checklocks:mu
	balloons []*Balloon
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of live balloons.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.balloons)
}

// insertLocked adds b to the registry.
//
// Preconditions: r.mu must be locked. b must not already be a member.
// +checklocks:r.mu
func (r *Registry) insertLocked(b *Balloon) {
	r.balloons = append(r.balloons, b)
}

// removeLocked removes b from the registry.
//
// Preconditions: r.mu must be locked.
// +checklocks:r.mu
func (r *Registry) removeLocked(b *Balloon) {
	for i, o := range r.balloons {
		if o == b {
			last := len(r.balloons) - 1
			r.balloons[i] = r.balloons[last]
			r.balloons[last] = nil
			r.balloons = r.balloons[:last]
			return
		}
	}
	panic("balloon: removing a balloon that is not registered")
}

// anyLocked returns an arbitrary live balloon, or nil if the registry is
// empty. Selection is unordered: all balloons are the same fixed size, so
// any victim is as good as another.
//
// Preconditions: r.mu must be locked.
// +checklocks:r.mu
func (r *Registry) anyLocked() *Balloon {
	if len(r.balloons) == 0 {
		return nil
	}
	return r.balloons[len(r.balloons)-1]
}

// emptyLocked returns true if there are no live balloons.
//
// Preconditions: r.mu must be locked.
// +checklocks:r.mu
func (r *Registry) emptyLocked() bool {
	return len(r.balloons) == 0
}
