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

// newKeyOnlyChunk builds a chunk with a single group-key column (the
// HAS_AGG=false layout: column index aggregate_function_len, which is 0).
func newKeyOnlyChunk(bucket int32, keys []int64) Chunk {
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = EncodeInt64Key(k)
	}
	col := ColumnWithType{
		Value: ColumnValue{Column: NewBinaryColumn(values)},
		Type:  TypeGroupKey,
	}
	var meta ChunkMetadata
	if bucket != BucketUnbucketed {
		meta = AggregateInfo{Bucket: bucket}
	} else {
		meta = AggregateInfo{Bucket: BucketUnbucketed}
	}
	return Chunk{Columns: []ColumnWithType{col}, NumRows: len(keys), Meta: meta}
}
