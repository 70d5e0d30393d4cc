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
	"math/rand"
	"testing"

	"github.com/cshenton/block-allocator/golibs/errors"
	"github.com/stretchr/testify/assert"
)

func physicalBlocks(a *Allocator) []Block {
	var blocks []Block
	b := a.Head()
	blocks = append(blocks, b)
	for {
		n, ok := a.Next(b)
		if !ok {
			break
		}
		blocks = append(blocks, n)
		b = n
	}
	return blocks
}

func TestNewRejectsZeroSize(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, errors.ErrInvalid)
}

func TestInitSingleFreeBlock(t *testing.T) {
	a, err := New(1024)
	assert.NoError(t, err)

	head := a.Head()
	assert.Equal(t, uint32(0), head.Offset)
	assert.Equal(t, uint32(1024), head.Size)
	assert.False(t, head.IsUsed())

	_, ok := a.Next(head)
	assert.False(t, ok)
}

func TestAllocSplitsBlock(t *testing.T) {
	a, err := New(1024)
	assert.NoError(t, err)

	h, err := a.Alloc(300)
	assert.NoError(t, err)
	assert.Equal(t, uint32(0), h.Offset)
	assert.Equal(t, uint32(300), h.Size)

	blocks := physicalBlocks(a)
	assert.Equal(t, []Block{
		{Offset: 0, Size: 300},
		{Offset: 300, Size: 724},
	}, stripLinks(blocks))
	assert.True(t, blocks[0].IsUsed())
	assert.False(t, blocks[1].IsUsed())
}

func TestAllocTwiceThenFreeCoalescesToOriginal(t *testing.T) {
	a, err := New(1024)
	assert.NoError(t, err)

	ha, err := a.Alloc(300)
	assert.NoError(t, err)
	hb, err := a.Alloc(200)
	assert.NoError(t, err)
	assert.Equal(t, uint32(300), hb.Offset)
	assert.Equal(t, uint32(200), hb.Size)

	blocks := stripLinks(physicalBlocks(a))
	assert.Equal(t, []Block{
		{Offset: 0, Size: 300},
		{Offset: 300, Size: 200},
		{Offset: 500, Size: 524},
	}, blocks)

	a.Free(ha)
	a.Free(hb)

	blocks = stripLinks(physicalBlocks(a))
	assert.Equal(t, []Block{{Offset: 0, Size: 1024}}, blocks)
	assert.Equal(t, 1, popcountTopBins(a))
}

func TestFreeDoesNotCoalesceUsedNeighbours(t *testing.T) {
	a, err := New(1024)
	assert.NoError(t, err)

	ha, _ := a.Alloc(100)
	hb, _ := a.Alloc(100)
	hc, _ := a.Alloc(100)

	a.Free(hb)
	blocks := physicalBlocks(a)
	assert.Equal(t, []Block{
		{Offset: 0, Size: 100},
		{Offset: 100, Size: 100},
		{Offset: 200, Size: 100},
		{Offset: 300, Size: 724},
	}, stripLinks(blocks))
	assert.True(t, blocks[0].IsUsed())
	assert.False(t, blocks[1].IsUsed())
	assert.True(t, blocks[2].IsUsed())

	a.Free(ha)
	blocks = physicalBlocks(a)
	assert.Equal(t, []Block{
		{Offset: 0, Size: 200},
		{Offset: 200, Size: 100},
		{Offset: 300, Size: 724},
	}, stripLinks(blocks))
	assert.False(t, blocks[0].IsUsed())

	a.Free(hc)
	blocks = stripLinks(physicalBlocks(a))
	assert.Equal(t, []Block{{Offset: 0, Size: 1024}}, blocks)
}

func TestAllocFailsWhenNoBinFits(t *testing.T) {
	a, err := New(64)
	assert.NoError(t, err)

	_, err = a.Alloc(65)
	assert.ErrorIs(t, err, errors.ErrExhausted)
}

func TestAllocRejectsZeroSize(t *testing.T) {
	a, _ := New(1024)
	_, err := a.Alloc(0)
	assert.ErrorIs(t, err, errors.ErrInvalid)
}

func TestFreeOfZeroSizeHandleIsNoop(t *testing.T) {
	a, err := New(1024)
	assert.NoError(t, err)
	a.Free(Handle{})
	blocks := stripLinks(physicalBlocks(a))
	assert.Equal(t, []Block{{Offset: 0, Size: 1024}}, blocks)
}

func TestRoundTripAllocFreeRestoresState(t *testing.T) {
	a, err := New(4096)
	assert.NoError(t, err)

	before := stripLinks(physicalBlocks(a))
	h, err := a.Alloc(777)
	assert.NoError(t, err)
	a.Free(h)
	after := stripLinks(physicalBlocks(a))
	assert.Equal(t, before, after)
}

func TestExhaustedPoolLeavesAllocatorConsistent(t *testing.T) {
	a, err := New(MaxAllocs * 4)
	assert.NoError(t, err)

	var handles []Handle
	for i := 0; i < MaxAllocs-1; i++ {
		h, err := a.Alloc(2)
		assert.NoError(t, err)
		handles = append(handles, h)
	}

	_, err = a.Alloc(2)
	assert.ErrorIs(t, err, errors.ErrExhausted)

	assertInvariants(t, a)

	for _, h := range handles {
		a.Free(h)
	}
}

func TestStressRandomAllocFreeRounds(t *testing.T) {
	const totalSize = ^uint32(0) // 4 GiB - 1, the largest size a uint32 holds
	a, err := New(totalSize)
	assert.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	var live []Handle

	for round := 0; round < 1000; round++ {
		// free roughly half of what's currently live
		keep := live[:0]
		for _, h := range live {
			if rng.Intn(2) == 0 {
				a.Free(h)
				continue
			}
			keep = append(keep, h)
		}
		live = keep

		for i := 0; i < 50; i++ {
			size := uint32(rng.Intn(1<<20) + 1)
			h, err := a.Alloc(size)
			if err != nil {
				assert.ErrorIs(t, err, errors.ErrExhausted)
				continue
			}
			live = append(live, h)
		}

		assertInvariants(t, a)
	}
}

// assertInvariants checks testable properties 1-5 from the block record
// layout: physical contiguity from offset 0, no adjacent free blocks, bin
// heads agreeing with the bottom-bin bitmaps, bin membership, and slot
// accounting (live blocks equal acquired pool slots).
func assertInvariants(t *testing.T, a *Allocator) {
	t.Helper()

	blocks := physicalBlocks(a)
	assert.Equal(t, uint32(0), blocks[0].Offset)
	var total uint64
	for i, b := range blocks {
		if i > 0 {
			assert.Equal(t, total, uint64(b.Offset), "block %d does not start where block %d ends", i, i-1)
			assert.False(t, !blocks[i-1].IsUsed() && !b.IsUsed(), "two adjacent free blocks at index %d", i)
		}
		total += uint64(b.Size)
	}
	assert.Equal(t, uint64(len(a.pool.blocks))-uint64(a.pool.available()), uint64(len(blocks)))

	for bin := 0; bin < numBins; bin++ {
		top := uint32(bin) >> 3
		bottom := uint32(bin) & 0x7
		headIdx := a.binLists[bin]
		bitSet := a.bottomBins[top]&(1<<bottom) != 0
		assert.Equal(t, headIdx != unused, bitSet)

		for idx := headIdx; idx != unused; {
			b := a.pool.blocks[idx]
			_, _, blockBin := sizeToBinIndex(b.Size)
			assert.Equal(t, uint32(bin), blockBin)
			assert.False(t, b.IsUsed())
			idx = b.binNext
		}
	}
}

func popcountTopBins(a *Allocator) int {
	n := 0
	for t := uint32(0); t < numTopBins; t++ {
		if a.topBins&(1<<t) != 0 {
			n++
		}
	}
	return n
}

func stripLinks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = Block{Offset: b.Offset, Size: b.Size}
	}
	return out
}
