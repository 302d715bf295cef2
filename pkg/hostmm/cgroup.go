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

package hostmm

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"
)

// currentCgroupDirectory returns the directory for the cgroup for the given
// controller in which the calling process resides.
func currentCgroupDirectory(ctrl string) (string, error) {
	root, err := cgroupRootDirectory(ctrl)
	if err != nil {
		return "", err
	}
	cg, err := currentCgroup(ctrl)
	if err != nil {
		return "", err
	}
	return path.Join(root, cg), nil
}

// cgroupRootDirectory returns the mount point of the cgroup hierarchy for
// the given controller in the calling process' mount namespace.
func cgroupRootDirectory(ctrl string) (string, error) {
	const mountsPath = "/proc/self/mounts"
	file, err := os.Open(mountsPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Per proc(5) -> fstab(5): each line describes a mount as 6
	// space-separated fields; the third is the filesystem type and the
	// fourth a comma-separated list of mount options.
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		const nrfields = 6
		if len(fields) != nrfields {
			return "", fmt.Errorf("cannot parse %s: line %q: got %d fields, wanted %d", mountsPath, scanner.Text(), len(fields), nrfields)
		}
		if fields[2] != "cgroup" {
			continue
		}
		for _, opt := range strings.Split(fields[3], ",") {
			if opt == ctrl {
				return fields[1], nil
			}
		}
	}
	return "", fmt.Errorf("no cgroup hierarchy mounted for controller %s", ctrl)
}

// currentCgroup returns the cgroup for the given controller in which the
// calling process resides, relative to cgroupRootDirectory(ctrl).
func currentCgroup(ctrl string) (string, error) {
	const cgroupPath = "/proc/self/cgroup"
	file, err := os.Open(cgroupPath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	// Per proc(5) -> cgroups(7): each line describes a hierarchy as 3
	// colon-separated fields; the second is a comma-separated list of
	// controllers.
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ":", 3)
		const nrfields = 3
		if len(fields) != nrfields {
			return "", fmt.Errorf("cannot parse %s: line %q: got %d fields, wanted %d", cgroupPath, scanner.Text(), len(fields), nrfields)
		}
		for _, controller := range strings.Split(fields[1], ",") {
			if controller == ctrl {
				return fields[2], nil
			}
		}
	}
	return "", fmt.Errorf("not a member of a cgroup hierarchy for controller %s", ctrl)
}
