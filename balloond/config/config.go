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

// Package config handles balloond configuration: built-in defaults,
// optionally overridden by a TOML file.
package config

import (
	"fmt"
	"math/bits"
	"os"

	"github.com/BurntSushi/toml"

	"jballoon.dev/jballoon/pkg/hostarch"
)

// Config holds balloond's configuration.
type Config struct {
	// BalloonSize is the fixed size of every balloon, in bytes.
	BalloonSize uint64 `toml:"balloon_size"`

	// Alignment is the hole alignment granule, in bytes. Must be a power
	// of 2.
	Alignment uint64 `toml:"alignment"`

	// PressureLevel is the memcg pressure level that triggers inflation:
	// "low", "medium" or "critical".
	PressureLevel string `toml:"pressure_level"`

	// HeapSize is the size of the simulated runtime heap, in bytes.
	HeapSize uint64 `toml:"heap_size"`

	// LogFilename is the file to log to. Empty means stderr.
	LogFilename string `toml:"log_file"`

	// LogFormat is "text" or "json".
	LogFormat string `toml:"log_format"`

	// Debug enables debug logging.
	Debug bool `toml:"debug"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		BalloonSize:   128 << 20,
		Alignment:     hostarch.HugePageSize,
		PressureLevel: "medium",
		HeapSize:      1 << 30,
		LogFormat:     "text",
	}
}

// Load returns the default configuration overridden by the TOML file at
// path, if path is non-empty.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, c.validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}
	return c, c.validate()
}

func (c *Config) validate() error {
	if c.BalloonSize == 0 {
		return fmt.Errorf("balloon_size must be positive")
	}
	if bits.OnesCount64(c.Alignment) != 1 {
		return fmt.Errorf("alignment %#x is not a power of 2", c.Alignment)
	}
	switch c.PressureLevel {
	case "low", "medium", "critical":
	default:
		return fmt.Errorf("invalid pressure_level %q", c.PressureLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	return nil
}
