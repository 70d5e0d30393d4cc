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

// Package arena glues the tlsf offset allocator to an actual byte-addressed
// resource, so callers can Reserve and Release real slices instead of bare
// (offset, size) pairs.
package arena

import (
	"fmt"

	"github.com/cshenton/block-allocator/golibs/container/iterable"
	bts "github.com/cshenton/block-allocator/golibs/container/bytes"
	"github.com/cshenton/block-allocator/golibs/errors"
	"github.com/cshenton/block-allocator/golibs/logging"
	"github.com/cshenton/block-allocator/internal/tlsf"
)

type (
	// Arena sub-allocates a bts.Buffer using a tlsf.Allocator: Reserve
	// returns a live slice into the backing buffer, Release gives the
	// range back to the allocator for reuse.
	Arena struct {
		name  string
		alloc *tlsf.Allocator
		buf   bts.Buffer
		log   logging.Logger

		events *eventLog
	}

	// Stats is a point-in-time snapshot of an Arena's utilisation.
	Stats struct {
		TotalSize   int64
		UsedBytes   int64
		FreeBytes   int64
		UsedBlocks  int
		FreeBlocks  int
		LargestFree uint32
	}

	// Reservation is a live allocation handed out by Reserve. Bytes aliases
	// the arena's backing storage; it must not be read from or written to
	// after Release.
	Reservation struct {
		Bytes  []byte
		Offset uint32
		Size   uint32

		handle tlsf.Handle
	}
)

// New creates an Arena of totalSize bytes backed by buf. buf must already
// be grown to at least totalSize.
func New(name string, totalSize uint32, buf bts.Buffer) (*Arena, error) {
	if buf.Size() < int64(totalSize) {
		return nil, fmt.Errorf("backing buffer size %d is smaller than arena size %d: %w", buf.Size(), totalSize, errors.ErrInvalid)
	}
	a, err := tlsf.New(totalSize)
	if err != nil {
		return nil, fmt.Errorf("could not create arena %q: %w", name, err)
	}
	return &Arena{
		name:   name,
		alloc:  a,
		buf:    buf,
		log:    logging.NewLogger("arena." + name),
		events: newEventLog(1024),
	}, nil
}

// Reserve sub-allocates size bytes and returns a slice aliasing the
// backing buffer at the chosen offset.
func (a *Arena) Reserve(size uint32) (Reservation, error) {
	h, err := a.alloc.Alloc(size)
	if err != nil {
		a.log.Debugf("%s: reserve of %d bytes failed: %v", a.name, size, err)
		return Reservation{}, err
	}
	b, err := a.buf.Buffer(int64(h.Offset), int(h.Size))
	if err != nil {
		a.alloc.Free(h)
		return Reservation{}, fmt.Errorf("%s: backing buffer rejected offset %d: %w", a.name, h.Offset, err)
	}
	a.events.record(eventReserve, h.Offset, h.Size)
	a.log.Tracef("%s: reserved offset=%d size=%d", a.name, h.Offset, h.Size)
	return Reservation{Bytes: b, Offset: h.Offset, Size: h.Size, handle: h}, nil
}

// Release returns r's range to the arena for reuse. r must not be used
// afterward.
func (a *Arena) Release(r Reservation) {
	a.events.record(eventRelease, r.Offset, r.Size)
	a.alloc.Free(r.handle)
	a.log.Tracef("%s: released offset=%d size=%d", a.name, r.Offset, r.Size)
}

// Iterate walks every physical block - used and free - in offset order.
func (a *Arena) Iterate() iterable.Iterator[tlsf.Block] {
	return a.alloc.Iterate()
}

// RecentEvents returns up to n of the most recently recorded reserve/
// release events, oldest first.
func (a *Arena) RecentEvents(n int) []Event {
	return a.events.recent(n)
}

// Stat computes a fresh utilisation snapshot by walking the physical list.
func (a *Arena) Stat() Stats {
	var s Stats
	it := a.Iterate()
	defer it.Close()
	for it.HasNext() {
		b, ok := it.Next()
		if !ok {
			break
		}
		s.TotalSize += int64(b.Size)
		if b.IsUsed() {
			s.UsedBytes += int64(b.Size)
			s.UsedBlocks++
		} else {
			s.FreeBytes += int64(b.Size)
			s.FreeBlocks++
			if b.Size > s.LargestFree {
				s.LargestFree = b.Size
			}
		}
	}
	return s
}

// Close releases the arena's backing buffer. The Arena must not be used
// afterward.
func (a *Arena) Close() error {
	a.alloc.Destroy()
	return a.buf.Close()
}
