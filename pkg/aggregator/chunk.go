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

// LogicalType is a stand-in for the engine's physical/logical column type.
// The aggregator only ever inspects it to decide whether a column carries
// opaque byte-string aggregate state (ColumnWithType.Type == TypeBinary).
type LogicalType int

const (
	// TypeBinary marks a column holding opaque serialized aggregate-function
	// partial state. Required for every column in [0, aggLen) of a HAS_AGG
	// input chunk.
	TypeBinary LogicalType = iota
	// TypeGroupKey marks the encoded group-key column, column index aggLen.
	TypeGroupKey
	// TypeOther is any other logical column type; the aggregator never
	// requires it. Input chunks may carry it in columns the aggregator
	// does not look at, and output columns carry it when the OutputSchema
	// field for that column names it.
	TypeOther
)

// ScalarValue is a single value broadcast across every row of a chunk.
type ScalarValue struct {
	Bytes []byte
	Valid bool // false means SQL NULL
}

// Column is a fully materialized columnar value: one entry per row.
type Column interface {
	// Len reports the number of rows materialized in this column.
	Len() int
	// BinaryAt returns the raw bytes stored at row i. It panics if the
	// column is not binary-typed; callers must check the column's
	// LogicalType first.
	BinaryAt(i int) []byte
}

// NewBinaryColumn builds a materialized binary column from raw per-row
// byte strings, for producers assembling input chunks.
func NewBinaryColumn(values [][]byte) Column {
	return &binaryColumn{values: values}
}

// binaryColumn is the only Column implementation the aggregator itself
// constructs (via convert_to_full broadcasting a scalar, or as produced by
// upstream partial aggregators feeding a HAS_AGG chunk).
type binaryColumn struct {
	values [][]byte
}

func (c *binaryColumn) Len() int { return len(c.values) }

func (c *binaryColumn) BinaryAt(i int) []byte { return c.values[i] }

// ColumnValue is either a materialized Column or a ScalarValue broadcast to
// every row; exactly one of the two is meaningful, selected by IsScalar.
type ColumnValue struct {
	Column   Column
	Scalar   ScalarValue
	IsScalar bool
}

// ColumnWithType pairs a column value with its logical type, mirroring the
// engine's (value, DataType) chunk column pair.
type ColumnWithType struct {
	Value ColumnValue
	Type  LogicalType
}

// AsColumn returns the materialized column, broadcasting a scalar to n rows
// (a fresh column on every call). Chunks are expected to have already been passed through
// ConvertToFull before this is called on the aggregation hot path.
func (c ColumnWithType) AsColumn(n int) Column {
	return c.Value.AsColumn(n)
}

// ChunkMetadata is attached to an input chunk out-of-band from its columns.
// AggregateInfo is the only implementation the aggregator recognizes; any
// other metadata is ignored (treated as absent, i.e. bucket -1).
type ChunkMetadata interface {
	isChunkMetadata()
}

// AggregateInfo carries the upstream partial aggregator's bucket
// assignment for one chunk. BucketUnbucketed (-1) disclaims any
// partition-disjointness promise and forces a serial merge.
type AggregateInfo struct {
	Bucket int32
}

func (AggregateInfo) isChunkMetadata() {}

// BucketUnbucketed is the sentinel bucket id meaning "no clean partition";
// any chunk carrying it (or carrying no AggregateInfo at all) forces the
// collector down the serial path.
const BucketUnbucketed int32 = -1

// Chunk is the shared in-memory columnar representation on the boundary
// between upstream partial aggregators and this package. Chunks are
// immutable once produced.
type Chunk struct {
	Columns []ColumnWithType
	NumRows int
	Meta    ChunkMetadata
}

// NewChunk builds a chunk from its columns and explicit row count.
func NewChunk(columns []ColumnWithType, numRows int) Chunk {
	return Chunk{Columns: columns, NumRows: numRows}
}

// Column returns the column at idx.
func (c Chunk) Column(idx int) ColumnWithType {
	return c.Columns[idx]
}

// BucketID reads this chunk's AggregateInfo, defaulting to
// BucketUnbucketed when no such metadata is attached.
func (c Chunk) BucketID() int32 {
	if info, ok := c.Meta.(AggregateInfo); ok {
		return info.Bucket
	}
	return BucketUnbucketed
}

// ConvertToFull materializes any scalar columns into full columns sized to
// NumRows, leaving already-materialized columns untouched. It is the Go
// rendering of the engine's convert_to_full: it must be called before a
// chunk's columns are indexed row-by-row.
func (c Chunk) ConvertToFull() Chunk {
	out := make([]ColumnWithType, len(c.Columns))
	for i, col := range c.Columns {
		if col.Value.IsScalar {
			out[i] = ColumnWithType{
				Value: ColumnValue{Column: col.Value.AsColumn(c.NumRows)},
				Type:  col.Type,
			}
		} else {
			out[i] = col
		}
	}
	return Chunk{Columns: out, NumRows: c.NumRows, Meta: c.Meta}
}

func (v ColumnValue) AsColumn(n int) Column {
	if !v.IsScalar {
		return v.Column
	}
	values := make([][]byte, n)
	for i := range values {
		values[i] = v.Scalar.Bytes
	}
	return &binaryColumn{values: values}
}
