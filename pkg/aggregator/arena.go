// Copyright 2016 The Cockroach Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package aggregator

import "github.com/pkg/errors"

// defaultSegmentSize is the size of each freshly grown arena segment. State
// blocks larger than this get their own dedicated segment.
const defaultSegmentSize = 64 << 10

// StateAddr identifies one aggregate-function state block inside an Arena.
// It is a (segment, offset) pair rather than a raw pointer: the Design
// Notes in spec.md call out that any Go rendering should prefer indices
// over raw pointers into a relocatable structure, since the arena must
// never invalidate a previously returned address on growth. Segments are
// append-only and never reallocated, so a StateAddr remains valid for the
// lifetime of the Arena that produced it.
type StateAddr struct {
	segment int
	offset  int
}

// Next returns the address of a state living at a fixed byte offset past
// this one, inside the same segment allocation. This is how the bucket
// aggregator locates one aggregate function's slice of a shared state
// block given the block's base address and that function's published
// state offset.
func (a StateAddr) Next(delta int) StateAddr {
	return StateAddr{segment: a.segment, offset: a.offset + delta}
}

// Arena is a growable, segmented bump allocator for aggregate-function
// state blocks. It never relocates previously allocated memory: Alloc
// only ever appends bytes to the current segment or starts a new one,
// so every StateAddr it has ever returned stays valid until the whole
// Arena is discarded.
type Arena struct {
	segments [][]byte
}

// NewArena returns an empty arena with no segments allocated yet; the
// first Alloc call lazily creates the first segment.
func NewArena() *Arena {
	return &Arena{}
}

// Alloc reserves size bytes aligned to align (a power of two) and returns
// their base address. align <= 0 is treated as 1 (no alignment beyond
// byte granularity). size == 0 is rejected: callers should special-case
// the "nothing to allocate" path themselves (e.g. zero aggregate
// functions), matching the source's Option<StateAddr> handling.
func (a *Arena) Alloc(size, align int) (StateAddr, error) {
	if size <= 0 {
		return StateAddr{}, errors.Wrap(ErrAllocationFailure, "arena alloc size must be positive")
	}
	if align <= 0 {
		align = 1
	}

	if len(a.segments) == 0 {
		a.segments = append(a.segments, make([]byte, 0, segmentCapacityFor(size)))
	}

	seg := len(a.segments) - 1
	buf := a.segments[seg]
	aligned := alignUp(len(buf), align)

	if aligned+size > cap(buf) {
		// Current segment can't host this allocation without relocating
		// already-issued addresses; chain a fresh one instead of growing
		// in place.
		a.segments = append(a.segments, make([]byte, 0, segmentCapacityFor(size)))
		seg = len(a.segments) - 1
		buf = a.segments[seg]
		aligned = alignUp(len(buf), align)
	}

	a.segments[seg] = buf[:aligned+size]
	return StateAddr{segment: seg, offset: aligned}, nil
}

// Bytes returns the backing slice at addr sized to n bytes. It is used by
// aggregate functions to view/mutate their state in place; the aggregator
// itself never interprets these bytes.
func (a *Arena) Bytes(addr StateAddr, n int) []byte {
	return a.segments[addr.segment][addr.offset : addr.offset+n]
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

func segmentCapacityFor(size int) int {
	if size > defaultSegmentSize {
		return size
	}
	return defaultSegmentSize
}
