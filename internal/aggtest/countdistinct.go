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

package aggtest

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/wuchunfu/databend/pkg/aggregator"
)

// CountDistinct is a count-distinct-like aggregate function whose state
// owns a Go map (a stand-in for the source's nested hash-set state),
// which is why it needs a manual drop: the arena only reclaims the raw
// bytes it handed out, not the heap object referenced from inside them.
//
// State layout: 8 bytes holding a pointer-sized handle (an index into the
// function's own side table of live sets). DropCount lets tests verify the arena-safety invariant (spec.md §8 property 5 /
// Scenario E): exactly one DropState call per live state, plus one for
// the scratch state.
type CountDistinct struct {
	DropCount *atomic.Int64
	live      *sideTable
}

// sideTable holds the actual distinct-value sets, keyed by a handle
// written into arena-backed state bytes. It exists because
// AggregateFunction state is just bytes: a function owning a real Go
// object (here, a set) must park the object somewhere the arena isn't
// responsible for and record only a handle in its state bytes.
type sideTable struct {
	mu     sync.Mutex
	sets   []map[string]struct{}
	closed []bool
}

// NewCountDistinct returns a fresh CountDistinct sharing dropCount across
// every state it allocates, so a test can assert the total number of
// DropState calls across an entire bucket aggregator's lifetime.
func NewCountDistinct(dropCount *atomic.Int64) *CountDistinct {
	return &CountDistinct{DropCount: dropCount, live: &sideTable{}}
}

func (c *CountDistinct) Name() string { return "count_distinct" }

func (c *CountDistinct) StateSize() int { return 8 }

func (c *CountDistinct) StateAlign() int { return 8 }

func (c *CountDistinct) InitState(state []byte) {
	c.live.mu.Lock()
	handle := int64(len(c.live.sets))
	c.live.sets = append(c.live.sets, make(map[string]struct{}))
	c.live.closed = append(c.live.closed, false)
	c.live.mu.Unlock()
	binary.LittleEndian.PutUint64(state, uint64(handle))
}

func (c *CountDistinct) set(state []byte) map[string]struct{} {
	handle := binary.LittleEndian.Uint64(state)
	c.live.mu.Lock()
	defer c.live.mu.Unlock()
	return c.live.sets[handle]
}

func (c *CountDistinct) Deserialize(state []byte, data []byte) error {
	// The "partial state" on the wire is a single value to add; re-init
	// the scratch slot fresh, then add data as the one member, matching
	// the contract that deserialize re-initializes the scratch target on
	// every call.
	c.InitState(state)
	c.set(state)[string(data)] = struct{}{}
	return nil
}

func (c *CountDistinct) Merge(dst []byte, src []byte) error {
	dstSet := c.set(dst)
	for v := range c.set(src) {
		dstSet[v] = struct{}{}
	}
	return nil
}

func (c *CountDistinct) MergeResult(state []byte, builder aggregator.ColumnBuilder) error {
	n := int64(len(c.set(state)))
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(n))
	builder.Append(buf, true)
	return nil
}

func (c *CountDistinct) ReturnType() aggregator.LogicalType { return aggregator.TypeOther }

func (c *CountDistinct) NeedManualDropState() bool { return true }

func (c *CountDistinct) DropState(state []byte) {
	handle := binary.LittleEndian.Uint64(state)
	c.live.mu.Lock()
	c.live.closed[handle] = true
	c.live.sets[handle] = nil
	c.live.mu.Unlock()
	if c.DropCount != nil {
		c.DropCount.Add(1)
	}
}

// EncodeDistinctMember renders one raw member value as the partial-state
// byte string CountDistinct expects to deserialize.
func EncodeDistinctMember(v string) []byte {
	return []byte(v)
}

// DecodeCountResult is the inverse of MergeResult's encoding, for
// assertions.
func DecodeCountResult(raw []byte) int64 {
	return int64(binary.LittleEndian.Uint64(raw))
}
