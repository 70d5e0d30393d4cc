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

// Command blockallocctl is an interactive shell over a pkg/arena.Registry,
// useful for poking at the allocator's bin/coalescing behaviour by hand.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrange/linker"
	"github.com/spf13/cobra"

	"github.com/cshenton/block-allocator/golibs/logging"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:   "blockallocctl",
		Short: "Interactive shell for a block-allocator arena registry",
		RunE:  runServe,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML or JSON config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.NewLogger("blockallocctl")

	cfg, err := BuildConfig(cfgFile)
	if err != nil {
		return err
	}
	log.Infof("starting blockallocctl")
	log.Infof("%s", spew.Sdump(cfg))

	reg, err := newRegistryFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	inj := linker.New()
	inj.Register(linker.Component{Name: "registry", Value: reg})
	if err := inj.Init(ctx); err != nil {
		return fmt.Errorf("could not initialize: %w", err)
	}
	defer inj.Shutdown()

	token, err := reg.Create("default", cfg.DefaultArenaSize)
	if err != nil {
		return fmt.Errorf("could not create default arena: %w", err)
	}
	log.Infof("default arena ready: %d bytes", cfg.DefaultArenaSize)

	sh := newShell(reg, token, os.Stdin, os.Stdout)
	return sh.run()
}
