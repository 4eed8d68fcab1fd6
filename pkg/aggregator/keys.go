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

import "encoding/binary"

// KeyIterator yields a borrowed key view, one per row, for a materialized
// group-key column. The view is the string used both as the Hashtable's
// map key and as the value GroupColumnsBuilder decodes back into output
// columns; its internal structure is meaningful only to the KeyEncoding
// that produced it.
type KeyIterator interface {
	Len() int
	At(row int) string
}

// KeyEncoding is the polymorphic key-encoding capability named "HashMethod"
// in the source. The aggregator is instantiated once against a concrete
// KeyEncoding at construction time (not dispatched per row), per the
// Design Notes: a tagged interface picked once per pipeline, not a
// per-row branch.
type KeyEncoding interface {
	// Name identifies the encoding for diagnostics.
	Name() string
	// KeysIteratorFromColumn builds a row-order key iterator over a
	// materialized group-key column.
	KeysIteratorFromColumn(col Column, numRows int) (KeyIterator, error)
	// NewGroupColumnsBuilder returns a builder paired with this encoding,
	// sized with a capacity hint.
	NewGroupColumnsBuilder(capacity int) GroupColumnsBuilder
}

// SingleInt64Keys is a KeyEncoding for a single int64 group-by column,
// encoded as its 8-byte big-endian representation. It is the simplest
// concrete encoding, analogous to the source's HashMethodSingleString
// specialization for a fixed-width scalar key.
type SingleInt64Keys struct{}

// int64KeyIterator walks a materialized column of raw 8-byte big-endian
// keys, produced by encoding upstream int64 group values. Chunks on the
// wire carry the group-key column pre-encoded this way; the aggregator
// never interprets it beyond treating each row's bytes as a key view.
type int64KeyIterator struct {
	col Column
}

func (it *int64KeyIterator) Len() int { return it.col.Len() }

func (it *int64KeyIterator) At(row int) string {
	return string(it.col.BinaryAt(row))
}

func (SingleInt64Keys) Name() string { return "single_int64" }

func (SingleInt64Keys) KeysIteratorFromColumn(col Column, numRows int) (KeyIterator, error) {
	return &int64KeyIterator{col: col}, nil
}

func (SingleInt64Keys) NewGroupColumnsBuilder(capacity int) GroupColumnsBuilder {
	return newInt64GroupColumnsBuilder(capacity)
}

// EncodeInt64Key renders v the way SingleInt64Keys expects to find it in a
// group-key column; upstream partial aggregators (out of scope for this
// package) are responsible for producing columns in this encoding.
func EncodeInt64Key(v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return buf
}

// SerializedKeys is a KeyEncoding for composite/variable-width group keys
// that arrive already serialized into an opaque byte string per row (the
// general case, analogous to the source's HashMethodSerializer over an
// arbitrary tuple of grouping columns). Each row's bytes are used verbatim
// as the key view.
type SerializedKeys struct{}

type bytesKeyIterator struct {
	col Column
}

func (it *bytesKeyIterator) Len() int { return it.col.Len() }

func (it *bytesKeyIterator) At(row int) string {
	return string(it.col.BinaryAt(row))
}

func (SerializedKeys) Name() string { return "serialized" }

func (SerializedKeys) KeysIteratorFromColumn(col Column, numRows int) (KeyIterator, error) {
	return &bytesKeyIterator{col: col}, nil
}

func (SerializedKeys) NewGroupColumnsBuilder(capacity int) GroupColumnsBuilder {
	return newBytesGroupColumnsBuilder(capacity)
}
