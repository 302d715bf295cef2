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

// Package cli is the main entrypoint for balloond.
package cli

import (
	"context"
	"flag"
	"io"
	"os"

	"github.com/google/subcommands"

	"jballoon.dev/jballoon/balloond/cmd"
	"jballoon.dev/jballoon/balloond/config"
	"jballoon.dev/jballoon/pkg/log"
)

var (
	configFile = flag.String("config", "", "path to a TOML configuration file.")
	debug      = flag.Bool("debug", false, "enable debug logging, overriding the configuration file.")
	logFile    = flag.String("log", "", "file to log to, overriding the configuration file. Default is stderr.")
)

// Main is the main entrypoint.
func Main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(new(cmd.Run), "")
	subcommands.Register(new(cmd.Version), "")

	// All subcommands must be registered before flag parsing.
	flag.Parse()

	conf, err := config.Load(*configFile)
	if err != nil {
		cmd.Fatalf("cannot load configuration: %v", err)
	}
	if *debug {
		conf.Debug = true
	}
	if *logFile != "" {
		conf.LogFilename = *logFile
	}

	var out io.Writer = os.Stderr
	if conf.LogFilename != "" {
		// O_APPEND, not O_TRUNC: the same log file may be shared across
		// invocations.
		f, err := os.OpenFile(conf.LogFilename, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			cmd.Fatalf("cannot open log file %q: %v", conf.LogFilename, err)
		}
		out = f
	}
	switch conf.LogFormat {
	case "json":
		log.SetTarget(log.JSONEmitter{Writer: &log.Writer{Next: out}})
	default:
		log.SetTarget(log.TextEmitter{Writer: &log.Writer{Next: out}})
	}
	if conf.Debug {
		log.SetLevel(log.Debug)
	}

	log.Infof("***************************")
	log.Infof("balloond starting: %v", os.Args)
	log.Infof("Balloon size: %d, alignment: %#x", conf.BalloonSize, conf.Alignment)
	log.Infof("***************************")

	os.Exit(int(subcommands.Execute(context.Background(), conf)))
}
