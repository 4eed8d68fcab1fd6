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

// Package aggtest provides minimal AggregateFunction implementations used
// to exercise pkg/aggregator's bucket aggregator and collector. Real
// aggregate-function implementations (sum, avg, count, ...) are out of
// scope for the aggregator itself (spec.md §1): it treats them as a
// black box obeying the capability contract in pkg/aggregator.
package aggtest

import (
	"encoding/binary"

	"github.com/wuchunfu/databend/pkg/aggregator"
)

// SumInt64 sums int64 partial states. Partial states and the finalized
// value share the same 8-byte little-endian encoding, so Deserialize and
// MergeResult both just read/write that encoding directly.
type SumInt64 struct{}

func (SumInt64) Name() string { return "sum_int64" }

func (SumInt64) StateSize() int { return 8 }

func (SumInt64) StateAlign() int { return 8 }

func (SumInt64) InitState(state []byte) {
	binary.LittleEndian.PutUint64(state, 0)
}

func (SumInt64) Deserialize(state []byte, data []byte) error {
	var v uint64
	if len(data) == 8 {
		v = binary.LittleEndian.Uint64(data)
	}
	binary.LittleEndian.PutUint64(state, v)
	return nil
}

func (SumInt64) Merge(dst []byte, src []byte) error {
	d := int64(binary.LittleEndian.Uint64(dst))
	s := int64(binary.LittleEndian.Uint64(src))
	binary.LittleEndian.PutUint64(dst, uint64(d+s))
	return nil
}

func (SumInt64) MergeResult(state []byte, builder aggregator.ColumnBuilder) error {
	builder.Append(append([]byte(nil), state...), true)
	return nil
}

func (SumInt64) ReturnType() aggregator.LogicalType { return aggregator.TypeOther }

func (SumInt64) NeedManualDropState() bool { return false }

func (SumInt64) DropState([]byte) {}

// EncodeSumState renders v as the partial-state byte string SumInt64
// expects to deserialize, for building test input chunks.
func EncodeSumState(v int64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(v))
	return buf
}

// DecodeSumResult is the inverse of MergeResult's encoding, for assertions.
func DecodeSumResult(raw []byte) int64 {
	return int64(binary.LittleEndian.Uint64(raw))
}
