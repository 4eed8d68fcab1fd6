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

import (
	"errors"
	"sync/atomic"
	"testing"
)

// Scenario A (key-only dedup): two chunks, keys [1,2,2,3] and [2,3,4];
// expected output key set {1,2,3,4}.
func TestBucketAggregatorKeyOnlyDedup(t *testing.T) {
	params, err := NewAggregatorParams(nil, OutputSchema{Fields: []OutputField{{Name: "k", Type: TypeGroupKey}}})
	if err != nil {
		t.Fatalf("NewAggregatorParams: %v", err)
	}

	ba, err := newBucketAggregator(SingleInt64Keys{}, params, nil)
	if err != nil {
		t.Fatalf("newBucketAggregator: %v", err)
	}
	defer ba.close()

	chunks := []Chunk{
		newKeyOnlyChunk(0, []int64{1, 2, 2, 3}),
		newKeyOnlyChunk(1, []int64{2, 3, 4}),
	}

	out, err := ba.mergeChunks(chunks)
	if err != nil {
		t.Fatalf("mergeChunks: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 output chunk, got %d", len(out))
	}

	got := decodeKeySet(t, out[0])
	want := map[int64]bool{1: true, 2: true, 3: true, 4: true}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k := range want {
		if !got[k] {
			t.Fatalf("missing key %d in %v", k, got)
		}
	}
}

func decodeKeySet(t *testing.T, c Chunk) map[int64]bool {
	t.Helper()
	col := c.Column(0).AsColumn(c.NumRows)
	out := make(map[int64]bool, col.Len())
	for i := 0; i < col.Len(); i++ {
		out[DecodeInt64Key(col.BinaryAt(i))] = true
	}
	return out
}

func TestBucketAggregatorEmptyInput(t *testing.T) {
	params, err := NewAggregatorParams(nil, OutputSchema{Fields: []OutputField{{Name: "k", Type: TypeGroupKey}}})
	if err != nil {
		t.Fatalf("NewAggregatorParams: %v", err)
	}
	ba, err := newBucketAggregator(SingleInt64Keys{}, params, nil)
	if err != nil {
		t.Fatalf("newBucketAggregator: %v", err)
	}
	defer ba.close()

	out, err := ba.mergeChunks(nil)
	if err != nil {
		t.Fatalf("mergeChunks: %v", err)
	}
	if len(out) != 1 || out[0].NumRows != 0 {
		t.Fatalf("expected one empty chunk, got %+v", out)
	}
}

// TestBucketAggregatorIllegalDataType covers Scenario F: a type-mismatch
// failure must leave no leaked state. lookupState allocates a state per
// row (and newBucketAggregator allocates one scratch state) before
// mergeWithAggregates ever reaches the column-type check, so close()
// must still drop every one of those states even though mergeChunks
// returned an error.
func TestBucketAggregatorIllegalDataType(t *testing.T) {
	var drops int64
	fn := leakCheckFunc{drops: &drops}

	params, err := NewAggregatorParams(
		[]AggregateFunction{fn},
		OutputSchema{Fields: []OutputField{{Name: "s", Type: TypeOther}, {Name: "k", Type: TypeGroupKey}}},
	)
	if err != nil {
		t.Fatalf("NewAggregatorParams: %v", err)
	}
	ba, err := newBucketAggregator(SingleInt64Keys{}, params, nil)
	if err != nil {
		t.Fatalf("newBucketAggregator: %v", err)
	}

	badChunk := Chunk{
		NumRows: 2,
		Columns: []ColumnWithType{
			{Value: ColumnValue{Column: NewBinaryColumn([][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}})}, Type: TypeOther},
			{Value: ColumnValue{Column: NewBinaryColumn([][]byte{EncodeInt64Key(1), EncodeInt64Key(2)})}, Type: TypeGroupKey},
		},
	}

	_, err = ba.mergeChunks([]Chunk{badChunk})
	if err == nil {
		t.Fatal("expected IllegalDataType error")
	}
	if !errors.Is(err, ErrIllegalDataType) {
		t.Fatalf("expected ErrIllegalDataType, got %v", err)
	}

	ba.close()

	// 2 row states (keys 1 and 2, allocated by lookupState before the
	// type check fires) + 1 scratch state (allocated by
	// newBucketAggregator) = 3 allocations, so close() must drop exactly
	// 3 states.
	if got, want := atomic.LoadInt64(&drops), int64(3); got != want {
		t.Fatalf("expected %d DropState calls (allocation count), got %d", want, got)
	}
}

// leakCheckFunc is a minimal manual-drop AggregateFunction used to prove
// the allocate-then-fail-then-close sequence leaks no state.
type leakCheckFunc struct {
	drops *int64
}

func (leakCheckFunc) Name() string                          { return "leak_check" }
func (leakCheckFunc) StateSize() int                        { return 8 }
func (leakCheckFunc) StateAlign() int                       { return 8 }
func (leakCheckFunc) InitState([]byte)                      {}
func (leakCheckFunc) Deserialize([]byte, []byte) error      { return nil }
func (leakCheckFunc) Merge([]byte, []byte) error            { return nil }
func (leakCheckFunc) MergeResult([]byte, ColumnBuilder) error { return nil }
func (leakCheckFunc) ReturnType() LogicalType               { return TypeOther }
func (leakCheckFunc) NeedManualDropState() bool             { return true }
func (f leakCheckFunc) DropState([]byte)                    { atomic.AddInt64(f.drops, 1) }
