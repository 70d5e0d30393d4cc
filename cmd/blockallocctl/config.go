// Copyright 2023 The acquirecloud Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/cshenton/block-allocator/golibs/config"
	"github.com/cshenton/block-allocator/golibs/logging"
)

type (
	// Config defines the blockallocctl process configuration.
	Config struct {
		// DefaultArenaSize is the size, in bytes, of the "default" arena
		// the interactive shell operates on.
		DefaultArenaSize uint32
		// Backend selects the storage an arena's bytes live in: "mem" for
		// a plain in-process buffer, "mmap" for a memory-mapped file.
		Backend string
		// MMapDir is the directory mmap-backed arena files are created in
		// when Backend is "mmap".
		MMapDir string
	}
)

func getDefaultConfig() *Config {
	return &Config{
		DefaultArenaSize: 64 << 20, // 64 MiB
		Backend:          "mem",
		MMapDir:          ".blockallocctl",
	}
}

// BuildConfig loads a Config, optionally overlaying a config file's values
// and the BLOCKALLOCCTL_-prefixed environment over the built-in defaults.
func BuildConfig(cfgFile string) (*Config, error) {
	log := logging.NewLogger("blockallocctl.ConfigBuilder")
	log.Infof("building config, cfgFile=%q", cfgFile)

	e := config.NewEnricher(*getDefaultConfig())
	if cfgFile != "" {
		fe := config.NewEnricher(Config{})
		if err := fe.LoadFromFile(cfgFile); err != nil {
			return nil, fmt.Errorf("could not read config file %s: %w", cfgFile, err)
		}
		if err := e.ApplyOther(fe); err != nil {
			return nil, fmt.Errorf("could not apply config file %s: %w", cfgFile, err)
		}
	}
	if err := e.ApplyEnvVariables("BLOCKALLOCCTL", "_"); err != nil {
		return nil, fmt.Errorf("could not apply environment overrides: %w", err)
	}
	cfg := e.Value()
	return &cfg, nil
}

// String implements fmt.Stringer in a pretty console form.
func (c *Config) String() string {
	b, _ := json.MarshalIndent(*c, "", "  ")
	return string(b)
}
