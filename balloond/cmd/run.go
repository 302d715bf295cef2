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

package cmd

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"

	"jballoon.dev/jballoon/balloond/config"
	"jballoon.dev/jballoon/pkg/balloon"
	"jballoon.dev/jballoon/pkg/hostmm"
	"jballoon.dev/jballoon/pkg/jvm/jvmtest"
	"jballoon.dev/jballoon/pkg/log"
	"jballoon.dev/jballoon/pkg/usage"
)

// Run implements subcommands.Command for the "run" command.
//
// Run drives a shrinker over a simulated runtime heap backed by a real
// anonymous mapping: it inflates one balloon's worth of memory on every
// memcg pressure notification and deflates everything on SIGTERM. It
// exercises the full balloon lifecycle against real host mappings; real
// deployments embed pkg/balloon next to an actual JNI bridge instead.
type Run struct {
	inflate uint64
}

// Name implements subcommands.Command.Name.
func (*Run) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Run) Synopsis() string {
	return "run the balloon daemon against a simulated runtime heap"
}

// Usage implements subcommands.Command.Usage.
func (*Run) Usage() string {
	return `run [flags] - run the balloon daemon.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (r *Run) SetFlags(f *flag.FlagSet) {
	f.Uint64Var(&r.inflate, "inflate", 0, "bytes to reclaim immediately at startup.")
}

// Execute implements subcommands.Command.Execute.
func (r *Run) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)

	vm, err := jvmtest.NewArenaVM(conf.HeapSize)
	if err != nil {
		Fatalf("cannot reserve simulated heap of %d bytes: %v", conf.HeapSize, err)
	}
	defer vm.Destroy()

	shrinker := balloon.New(vm, balloon.NewHostMapper(), balloon.Opts{
		BalloonSize: conf.BalloonSize,
		Alignment:   conf.Alignment,
	})

	if r.inflate > 0 {
		got := shrinker.RequestMemory(r.inflate)
		log.Infof("Startup inflation reclaimed %d/%d bytes", got, r.inflate)
	}

	stop, err := hostmm.NotifyCurrentMemcgPressureCallback(func() {
		got := shrinker.RequestMemory(conf.BalloonSize)
		stats := usage.BalloonAccounting.Copy()
		log.Infof("Memory pressure: reclaimed %d bytes (%d balloons, %d bytes inflated)", got, stats.Balloons, stats.Inflated)
	}, conf.PressureLevel)
	if err != nil {
		Fatalf("cannot subscribe to memcg pressure notifications: %v", err)
	}
	defer stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGTERM, unix.SIGINT)
	s := <-sig

	returned := shrinker.ReleaseMemory(math.MaxUint64)
	log.Infof("Got signal %v, returned %d bytes, exiting", s, returned)
	return subcommands.ExitSuccess
}
