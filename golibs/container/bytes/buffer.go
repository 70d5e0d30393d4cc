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

// Package bytes provides a small abstraction over a resizable byte-addressed
// backing resource (an in-memory slice, a memory-mapped file, ...) that code
// which only knows (offset, size) pairs can be pointed at.
package bytes

import "fmt"

type (
	// Buffer is a byte-addressed storage resource. It has no notion of what
	// is allocated where - that bookkeeping lives entirely in the caller.
	Buffer interface {
		fmt.Stringer

		// Size returns the current size of the storage, in bytes.
		Size() int64

		// Grow extends the storage to newSize bytes. newSize must not be
		// smaller than the current Size().
		Grow(newSize int64) error

		// Buffer returns a slice of the storage of at most size bytes
		// starting at offs. The returned slice aliases the backing storage:
		// writes through it are visible to subsequent callers.
		Buffer(offs int64, size int) ([]byte, error)

		// Close releases the storage. The Buffer must not be used afterward.
		Close() error
	}
)
