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
	"fmt"
)

// HandleFault services a fault taken by a copy instruction that touched
// b's hole, in the context of the faulting thread.
//
// The runtime is never expected to touch a ballooned array itself, but its
// GC will move the array when it compacts the heap. The GC does not move
// the heap object by object; it copies large chunks at once, with a balloon
// somewhere in the middle and no guarantee about the chunk's bounds. So the
// whole copy is emulated: the decoder copies the part before the hole, the
// hole itself moves by remapping only, and Fixup finishes the part after.
func (s *Shrinker) HandleFault(b *Balloon, dec CopyDecoder) {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()

	// A fault against a balloon implies at least one balloon exists.
	if s.registry.emptyLocked() {
		panic("balloon: fault delivered with an empty registry")
	}

	dest, src := dec.Dest(), dec.Src()
	s.faultLog.Debugf("balloon fault: src=%#x dest=%#x", src, dest)

	tail, err := b.moveBalloon(dest, src)
	if err != nil {
		// The hole is half-moved; no recovery preserves the invariant.
		panic(fmt.Sprintf("balloon: cannot slide hole to %#x: %v", dest, err))
	}
	dec.Fixup(tail)
}
