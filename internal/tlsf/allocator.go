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
package tlsf

import (
	"fmt"

	"github.com/cshenton/block-allocator/golibs/container/iterable"
	"github.com/cshenton/block-allocator/golibs/errors"
)

// Allocator is a two-level segregated-fit offset allocator over a fixed
// span of size bytes. It tracks only offsets and sizes - it never touches
// the bytes it describes - so it is equally at home fronting an in-memory
// arena or a memory-mapped file.
//
// An Allocator is not safe for concurrent use; callers that share one
// across goroutines must serialise access themselves.
type Allocator struct {
	topBins    uint32
	bottomBins [numTopBins]uint8
	binLists   [numBins]uint32

	pool      blockPool
	headBlock uint32
}

// New creates an Allocator managing a single free span of size bytes
// starting at offset 0.
func New(size uint32) (*Allocator, error) {
	if size == 0 {
		return nil, fmt.Errorf("size must be greater than 0: %w", errors.ErrInvalid)
	}

	a := &Allocator{pool: newBlockPool(MaxAllocs)}
	for i := range a.binLists {
		a.binLists[i] = unused
	}

	// The pool was just created with MaxAllocs free slots, so this can
	// never fail for lack of capacity.
	if _, err := a.insert(0, size, unused, unused); err != nil {
		return nil, err
	}
	return a, nil
}

// Destroy releases the allocator's backing block pool. The Allocator must
// not be used afterward.
func (a *Allocator) Destroy() {
	a.pool.blocks = nil
	a.pool.freeSlots = nil
}

// Alloc reserves a sub-range of size bytes and returns a Handle describing
// it. It fails with errors.ErrExhausted if no free block is large enough,
// or if reserving the remainder of a split would exceed MaxAllocs tracked
// blocks.
func (a *Allocator) Alloc(size uint32) (Handle, error) {
	if size == 0 {
		return Handle{}, fmt.Errorf("size must be greater than 0: %w", errors.ErrInvalid)
	}

	top, bottom, ok := a.findFreeBin(size)
	if !ok {
		return Handle{}, fmt.Errorf("no free block of at least %d bytes: %w", size, errors.ErrExhausted)
	}
	bin := (top << 3) | bottom
	blockIndex := a.binLists[bin]
	block := a.pool.blocks[blockIndex]
	remaining := block.Size - size

	// Reserving the remainder below will need its own block record. Check
	// capacity before touching any state, so a too-small pool fails the
	// whole Alloc cleanly instead of removing the block from its bin and
	// then losing the remainder to a failed insert.
	if remaining > 0 && a.pool.available() == 0 {
		return Handle{}, fmt.Errorf("no free block record to hold split remainder: %w", errors.ErrExhausted)
	}

	a.binLists[bin] = block.binNext
	if block.binNext != unused {
		a.pool.blocks[block.binNext].binPrev = headTag | bin
	} else {
		a.bottomBins[top] &^= 1 << bottom
		if a.bottomBins[top] == 0 {
			a.topBins &^= 1 << top
		}
	}

	if remaining > 0 {
		remainderIndex, err := a.insert(block.Offset+size, remaining, blockIndex, block.memNext)
		if err != nil {
			return Handle{}, err
		}
		block.memNext = remainderIndex
	}

	block.binPrev = unused
	block.binNext = unused
	block.Size = size
	a.pool.blocks[blockIndex] = block

	return Handle{Offset: block.Offset, Size: size, blockIndex: blockIndex}, nil
}

// Free releases a Handle previously returned by Alloc, merging it with any
// free physical neighbours.
func (a *Allocator) Free(h Handle) {
	if h.Size == 0 {
		return
	}

	block := a.pool.blocks[h.blockIndex]
	a.pool.release(h.blockIndex)

	if block.memPrev != unused && !a.pool.blocks[block.memPrev].IsUsed() {
		prev := a.pool.blocks[block.memPrev]
		block.Offset = prev.Offset
		block.Size += prev.Size
		a.remove(block.memPrev)
		block.memPrev = prev.memPrev
	}
	if block.memNext != unused && !a.pool.blocks[block.memNext].IsUsed() {
		next := a.pool.blocks[block.memNext]
		block.Size += next.Size
		a.remove(block.memNext)
		block.memNext = next.memNext
	}

	// At least one slot (the one just released above) is guaranteed free,
	// so this insert can never fail for lack of capacity.
	_, _ = a.insert(block.Offset, block.Size, block.memPrev, block.memNext)
}

// Head returns the block at the start of the managed address range.
func (a *Allocator) Head() Block {
	return a.pool.blocks[a.headBlock]
}

// Next returns the block physically following b, if any. It returns
// ok=false once b is the last block in the heap.
func (a *Allocator) Next(b Block) (next Block, ok bool) {
	if b.memNext == unused {
		return Block{}, false
	}
	return a.pool.blocks[b.memNext], true
}

// Iterate walks every block - used and free - in physical offset order,
// from Head to the end of the heap.
func (a *Allocator) Iterate() iterable.Iterator[Block] {
	return &blockIterator{a: a}
}

// insert places a new free block of the given size and offset into its
// size-class bin and splices it into the physical mem_prev/mem_next chain.
// It reports errors.ErrExhausted if the block pool has no free slot left.
func (a *Allocator) insert(offset, size, memPrev, memNext uint32) (uint32, error) {
	blockIndex, ok := a.pool.acquireOK()
	if !ok {
		return 0, fmt.Errorf("block pool exhausted: %w", errors.ErrExhausted)
	}

	top, bottom, bin := sizeToBinIndex(size)
	a.topBins |= 1 << top
	a.bottomBins[top] |= 1 << bottom

	headIndex := a.binLists[bin]
	a.pool.blocks[blockIndex] = Block{
		Offset:  offset,
		Size:    size,
		binPrev: headTag | bin,
		binNext: headIndex,
		memPrev: memPrev,
		memNext: memNext,
	}
	if headIndex != unused {
		a.pool.blocks[headIndex].binPrev = blockIndex
	}
	if memPrev != unused {
		a.pool.blocks[memPrev].memNext = blockIndex
	}
	if memNext != unused {
		a.pool.blocks[memNext].memPrev = blockIndex
	}
	a.binLists[bin] = blockIndex
	if offset == 0 {
		a.headBlock = blockIndex
	}
	return blockIndex, nil
}

// remove takes a free block out of its size-class bin and returns its slot
// to the pool. It does not touch the block's physical neighbours; the
// caller is responsible for re-splicing mem_prev/mem_next if needed.
func (a *Allocator) remove(blockIndex uint32) {
	block := a.pool.blocks[blockIndex]
	a.pool.release(blockIndex)

	if block.binPrev&headTag == 0 {
		a.pool.blocks[block.binPrev].binNext = block.binNext
		if block.binNext != unused {
			a.pool.blocks[block.binNext].binPrev = block.binPrev
		}
		return
	}

	bin := block.binPrev & headMask
	top := bin >> 3
	bottom := bin & 0x7
	a.binLists[bin] = block.binNext
	if block.binNext != unused {
		a.pool.blocks[block.binNext].binPrev = block.binPrev
		return
	}
	a.bottomBins[top] &^= 1 << bottom
	if a.bottomBins[top] == 0 {
		a.topBins &^= 1 << top
	}
}

type blockIterator struct {
	a       *Allocator
	cur     Block
	started bool
	done    bool
}

var _ iterable.Iterator[Block] = (*blockIterator)(nil)

func (it *blockIterator) HasNext() bool {
	if it.done {
		return false
	}
	if !it.started {
		return true
	}
	_, ok := it.a.Next(it.cur)
	return ok
}

func (it *blockIterator) Next() (Block, bool) {
	if it.done {
		return Block{}, false
	}
	if !it.started {
		it.started = true
		it.cur = it.a.Head()
		return it.cur, true
	}
	b, ok := it.a.Next(it.cur)
	if !ok {
		it.done = true
		return Block{}, false
	}
	it.cur = b
	return it.cur, true
}

func (it *blockIterator) Close() error {
	return nil
}
