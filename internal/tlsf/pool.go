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

// blockPool is the fixed-capacity arena of block records backing an
// Allocator. Blocks are addressed by index rather than pointer so the
// whole pool can live in one contiguous slice; freeSlots is a LIFO stack
// of indices not currently in use by any block, physical or binned.
type blockPool struct {
	blocks    []Block
	freeSlots []uint32
}

func newBlockPool(capacity uint32) blockPool {
	p := blockPool{
		blocks:    make([]Block, capacity),
		freeSlots: make([]uint32, capacity),
	}
	for i := range p.freeSlots {
		p.freeSlots[i] = uint32(i)
	}
	return p
}

// available reports how many block records can still be acquired.
func (p *blockPool) available() int {
	return len(p.freeSlots)
}

// acquireOK pops a free slot off the stack. The caller must check available()
// (or acquireOK's ok return) before relying on the returned index.
func (p *blockPool) acquireOK() (uint32, bool) {
	if len(p.freeSlots) == 0 {
		return 0, false
	}
	n := len(p.freeSlots) - 1
	idx := p.freeSlots[n]
	p.freeSlots = p.freeSlots[:n]
	return idx, true
}

// release returns a block's slot to the free stack, making it available
// for reuse by a future acquireOK call.
func (p *blockPool) release(idx uint32) {
	p.freeSlots = append(p.freeSlots, idx)
}
