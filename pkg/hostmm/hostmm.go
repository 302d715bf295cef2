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

// Package hostmm provides tools for interacting with the host Linux
// kernel's memory management subsystem. It supplies the host-side trigger
// that drives balloon inflation under memory pressure.
package hostmm

import (
	"encoding/binary"
	"fmt"
	"os"
	"path"

	"golang.org/x/sys/unix"

	"jballoon.dev/jballoon/pkg/log"
)

// NotifyCurrentMemcgPressureCallback requests that f is called whenever the
// calling process' memory cgroup indicates memory pressure of the given
// level, as specified by Linux's Documentation/cgroup-v1/memory.txt.
//
// If NotifyCurrentMemcgPressureCallback succeeds, it returns a function
// that terminates the requested notifications. That function may be called
// at most once.
func NotifyCurrentMemcgPressureCallback(f func(), level string) (func(), error) {
	cgdir, err := currentCgroupDirectory("memory")
	if err != nil {
		return nil, err
	}

	pressurePath := path.Join(cgdir, "memory.pressure_level")
	pressureFile, err := os.Open(pressurePath)
	if err != nil {
		return nil, err
	}
	defer pressureFile.Close()

	eventControlPath := path.Join(cgdir, "cgroup.event_control")
	eventControlFile, err := os.OpenFile(eventControlPath, os.O_WRONLY, 0)
	if err != nil {
		return nil, err
	}
	defer eventControlFile.Close()

	eventFD, err := unix.Eventfd(0, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot create eventfd: %v", err)
	}
	eventFile := os.NewFile(uintptr(eventFD), "memory pressure eventfd")

	// The whole string must reach the kernel in a single write.
	eventControlStr := fmt.Sprintf("%d %d %s", eventFD, pressureFile.Fd(), level)
	if n, err := eventControlFile.Write([]byte(eventControlStr)); n != len(eventControlStr) || err != nil {
		eventFile.Close()
		return nil, fmt.Errorf("cannot write %q to %s: got (%d, %v), wanted (%d, nil)", eventControlStr, eventControlPath, n, err, len(eventControlStr))
	}

	log.Debugf("Receiving memory pressure level notifications from %s at level %q", pressurePath, level)
	const sizeofUint64 = 8
	// The most significant bit of the eventfd value is set by the stop
	// function, which is unambiguous in practice: 2**63 pressure events
	// cannot plausibly occur between two eventfd reads.
	const stopVal = uint64(1) << 63
	stopCh := make(chan struct{})
	go func() {
		var buf [sizeofUint64]byte
		for {
			n, err := eventFile.Read(buf[:])
			if err != nil {
				panic(fmt.Sprintf("cannot read from memory pressure level eventfd: %v", err))
			}
			if n != sizeofUint64 {
				panic(fmt.Sprintf("short read from memory pressure level eventfd: got %d bytes, wanted %d", n, sizeofUint64))
			}
			val := binary.NativeEndian.Uint64(buf[:])
			if val >= stopVal {
				// The notifier's stop function was called.
				eventFile.Close()
				close(stopCh)
				return
			}
			f()
		}
	}()
	return func() {
		var buf [sizeofUint64]byte
		binary.NativeEndian.PutUint64(buf[:], stopVal)
		if n, err := unix.Write(eventFD, buf[:]); n != sizeofUint64 || err != nil {
			panic(fmt.Sprintf("cannot write to memory pressure level eventfd: got (%d, %v)", n, err))
		}
		<-stopCh
	}, nil
}
