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

// ColumnBuilder is the mutable destination an aggregate function writes its
// final value into. merge_result appends exactly one value per call.
type ColumnBuilder interface {
	// Append adds one finalized aggregate value.
	Append(value []byte, valid bool)
	// Build finishes the builder and returns the resulting column. Called
	// once, after every group has been appended.
	Build() Column
}

// AggregateFunction is the capability contract every aggregate-function
// implementation (sum, avg, count, ...) must satisfy. It is treated as a
// black box by this package: state layout, (de)serialization and merge
// semantics are entirely up to the implementation.
type AggregateFunction interface {
	// Name identifies the function for diagnostics.
	Name() string
	// StateSize is the number of bytes this function's state occupies in
	// an arena allocation.
	StateSize() int
	// StateAlign is the byte alignment required for this function's
	// state, a power of two.
	StateAlign() int
	// InitState initializes a freshly allocated, zero-or-garbage state
	// block in place. Called exactly once per state, at allocation.
	InitState(state []byte)
	// Deserialize reads one serialized partial state from data into
	// state, overwriting any previous contents. Called once per input
	// row in HAS_AGG mode, always against the shared scratch block.
	Deserialize(state []byte, data []byte) error
	// Merge folds src into dst. Both are this function's own state
	// layout; dst is always a final (hash-table-owned) state and src is
	// always the scratch state.
	Merge(dst []byte, src []byte) error
	// MergeResult emits this function's final value for one group into
	// builder. Called once per group at emission time.
	MergeResult(state []byte, builder ColumnBuilder) error
	// ReturnType reports the logical type of the value this function
	// emits via MergeResult.
	ReturnType() LogicalType
	// NeedManualDropState reports whether this function owns resources
	// that require an explicit DropState call (e.g. a nested map for a
	// count-distinct-style function). Most numeric aggregates answer
	// false.
	NeedManualDropState() bool
	// DropState releases any resources owned by state. Must never fail.
	// Called only when NeedManualDropState reports true, and then exactly
	// once per live state (and once for the scratch state, if any) during
	// the bucket aggregator's drop sequence.
	DropState(state []byte)
}
