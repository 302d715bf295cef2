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

// Package usage provides accounting for ballooned memory.
package usage

import (
	"sync/atomic"

	"jballoon.dev/jballoon/pkg/sync"
)

// BalloonStats tracks ballooned memory in bytes. This object is thread-safe
// if accessed through the provided methods. The public fields may be safely
// accessed directly on a copy of the object obtained from
// BalloonAccounting.Copy().
type BalloonStats struct {
	// Inflated is the number of bytes currently held in balloon holes,
	// i.e. reclaimed from the managed runtime.
	// +checkatomic
	Inflated uint64

	// Balloons is the number of live balloons.
	// +checkatomic
	Balloons uint64

	// Relocations counts balloon moves driven by runtime GC faults.
	// +checkatomic
	Relocations uint64
}

// BalloonStatsLocked is BalloonStats with access methods.
type BalloonStatsLocked struct {
	// mu protects concurrent snapshots against concurrent updates. Updates
	// use atomics under mu.RLock so that Copy() under mu.Lock observes a
	// consistent set of counters.
	mu sync.RWMutex

	// BalloonStats records the balloon stats.
	BalloonStats
}

// BalloonAccounting is the global balloon accounting.
var BalloonAccounting = &BalloonStatsLocked{}

// IncInflated adds val inflated bytes and one balloon.
//
// This method is thread-safe.
func (s *BalloonStatsLocked) IncInflated(val uint64) {
	s.mu.RLock()
	atomic.AddUint64(&s.Inflated, val)
	atomic.AddUint64(&s.Balloons, 1)
	s.mu.RUnlock()
}

// DecInflated removes val inflated bytes and one balloon.
//
// This method is thread-safe.
func (s *BalloonStatsLocked) DecInflated(val uint64) {
	s.mu.RLock()
	atomic.AddUint64(&s.Inflated, ^(val - 1))
	atomic.AddUint64(&s.Balloons, ^uint64(0))
	s.mu.RUnlock()
}

// MoveInflated adjusts the inflated byte count for a balloon whose hole
// moved from oldLen to newLen bytes, and counts the relocation.
//
// This method is thread-safe.
func (s *BalloonStatsLocked) MoveInflated(oldLen, newLen uint64) {
	s.mu.RLock()
	if newLen >= oldLen {
		atomic.AddUint64(&s.Inflated, newLen-oldLen)
	} else {
		atomic.AddUint64(&s.Inflated, ^(oldLen - newLen - 1))
	}
	atomic.AddUint64(&s.Relocations, 1)
	s.mu.RUnlock()
}

// Total returns the total inflated bytes.
//
// This method is thread-safe.
func (s *BalloonStatsLocked) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return atomic.LoadUint64(&s.Inflated)
}

// Copy returns a copy of the structure.
//
// This method is thread-safe.
func (s *BalloonStatsLocked) Copy() BalloonStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BalloonStats{
		Inflated:    atomic.LoadUint64(&s.Inflated),
		Balloons:    atomic.LoadUint64(&s.Balloons),
		Relocations: atomic.LoadUint64(&s.Relocations),
	}
}
