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

// Package cmd holds implementations of the balloond commands.
package cmd

import (
	"fmt"
	"os"

	"jballoon.dev/jballoon/pkg/log"
)

// Fatalf logs to stderr and to the system log, then exits. Used for
// unrecoverable errors before or outside a running daemon.
func Fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	log.Warningf(format, args...)
	os.Exit(128)
}
