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

// Package tlsf implements a two-level segregated-fit offset allocator.
//
// The allocator hands out (offset, size) ranges over a fixed-size span of
// bytes it never touches itself - callers own the backing storage and use
// the returned offsets to address into it. Free blocks are tracked in 256
// size-class bins (32 power-of-two "top" classes, each split into 8 linear
// "bottom" sub-classes), indexed by a 32-bit bitmap of occupied top classes
// and one 8-bit bitmap of occupied bottom classes per top class. A second,
// physically-ordered doubly-linked list threads every block - free or used
// - in offset order, so that freeing a block can find and merge its
// physical neighbours in O(1).
//
// All bookkeeping lives in a pre-allocated, fixed-capacity slice of block
// records addressed by index, not by pointer, so the allocator never
// allocates once New has returned.
package tlsf
