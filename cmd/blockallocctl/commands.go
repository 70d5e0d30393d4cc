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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cshenton/block-allocator/golibs/container/bytes"
	"github.com/cshenton/block-allocator/golibs/errors"
	"github.com/cshenton/block-allocator/golibs/files"
	"github.com/cshenton/block-allocator/pkg/arena"
)

// newRegistryFromConfig builds an arena.Registry whose arenas are backed by
// an in-memory buffer or an mmap-ed file, per cfg.Backend.
func newRegistryFromConfig(cfg *Config) (*arena.Registry, error) {
	switch cfg.Backend {
	case "", "mem":
		return arena.NewRegistry(func(size uint32) (bytes.Buffer, error) {
			return bytes.NewInMemBytes(int(size)), nil
		}), nil
	case "mmap":
		if err := os.MkdirAll(cfg.MMapDir, 0755); err != nil {
			return nil, fmt.Errorf("could not create mmap dir %s: %w", cfg.MMapDir, err)
		}
		n := 0
		return arena.NewRegistry(func(size uint32) (bytes.Buffer, error) {
			n++
			fn := filepath.Join(cfg.MMapDir, fmt.Sprintf("arena-%d.bin", n))
			f, err := os.Create(fn)
			if err != nil {
				return nil, fmt.Errorf("could not create backing file %s: %w", fn, err)
			}
			f.Close()
			return files.NewMMFile(fn, int64(size))
		}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q: %w", cfg.Backend, errors.ErrInvalid)
	}
}

// shell is a tiny line-oriented REPL over a single arena, used to exercise
// alloc/free/stats/visualize interactively without any persistence layer.
type shell struct {
	reg   *arena.Registry
	token uuid.UUID
	in    *bufio.Scanner
	out   io.Writer

	live map[int]arena.Reservation
	next int
}

func newShell(reg *arena.Registry, token uuid.UUID, in io.Reader, out io.Writer) *shell {
	return &shell{
		reg:   reg,
		token: token,
		in:    bufio.NewScanner(in),
		out:   out,
		live:  map[int]arena.Reservation{},
	}
}

func (s *shell) run() error {
	fmt.Fprintln(s.out, "blockallocctl ready. commands: alloc <size> | free <id> | list | stats | visualize | quit")
	for {
		fmt.Fprint(s.out, "> ")
		if !s.in.Scan() {
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		if err := s.dispatch(line); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *shell) dispatch(line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	a, err := s.reg.Get(s.token)
	if err != nil {
		return err
	}

	switch cmd {
	case "quit", "exit":
		os.Exit(0)
		return nil
	case "alloc":
		if len(args) != 1 {
			return fmt.Errorf("usage: alloc <size>")
		}
		size, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("bad size %q: %w", args[0], err)
		}
		r, err := a.Reserve(uint32(size))
		if err != nil {
			return err
		}
		id := s.next
		s.next++
		s.live[id] = r
		fmt.Fprintf(s.out, "id=%d offset=%d size=%d\n", id, r.Offset, r.Size)
		return nil
	case "free":
		if len(args) != 1 {
			return fmt.Errorf("usage: free <id>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("bad id %q: %w", args[0], err)
		}
		r, ok := s.live[id]
		if !ok {
			return fmt.Errorf("no live reservation with id %d", id)
		}
		a.Release(r)
		delete(s.live, id)
		return nil
	case "list":
		for id, r := range s.live {
			fmt.Fprintf(s.out, "id=%d offset=%d size=%d\n", id, r.Offset, r.Size)
		}
		return nil
	case "stats":
		st := a.Stat()
		fmt.Fprintf(s.out, "total=%d used=%d free=%d usedBlocks=%d freeBlocks=%d largestFree=%d\n",
			st.TotalSize, st.UsedBytes, st.FreeBytes, st.UsedBlocks, st.FreeBlocks, st.LargestFree)
		return nil
	case "visualize":
		return s.visualize(a)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// visualize prints the physical block list as a sequence of used/free
// spans, in offset order.
func (s *shell) visualize(a *arena.Arena) error {
	it := a.Iterate()
	defer it.Close()
	for it.HasNext() {
		b, ok := it.Next()
		if !ok {
			break
		}
		mark := "free"
		if b.IsUsed() {
			mark = "used"
		}
		fmt.Fprintf(s.out, "[%10d, %10d) %s\n", b.Offset, b.Offset+b.Size, mark)
	}
	return nil
}
