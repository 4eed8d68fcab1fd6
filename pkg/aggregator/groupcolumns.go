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

// GroupColumnsBuilder reconstructs the original grouping columns from the
// key views stored in a bucket aggregator's Hashtable. It is opaque to the
// aggregator beyond AppendValue/Finish; its decoding must match the
// KeyEncoding that produced the key views in the first place.
type GroupColumnsBuilder interface {
	// AppendValue accumulates one row's worth of group columns, decoded
	// from key.
	AppendValue(key string)
	// Finish yields the accumulated group columns, one per logical group
	// field, in the same order the KeyEncoding originally encoded them.
	Finish() []Column
}

// int64GroupColumnsBuilder decodes SingleInt64Keys key views back into a
// single binary column (8-byte big-endian per row), mirroring the layout
// EncodeInt64Key produces.
type int64GroupColumnsBuilder struct {
	values [][]byte
}

func newInt64GroupColumnsBuilder(capacity int) *int64GroupColumnsBuilder {
	return &int64GroupColumnsBuilder{values: make([][]byte, 0, capacity)}
}

func (b *int64GroupColumnsBuilder) AppendValue(key string) {
	b.values = append(b.values, []byte(key))
}

func (b *int64GroupColumnsBuilder) Finish() []Column {
	return []Column{&binaryColumn{values: b.values}}
}

// DecodeInt64Key is the inverse of EncodeInt64Key, for tests and callers
// that need the original int64 back out of a finished group column.
func DecodeInt64Key(raw []byte) int64 {
	return int64(binary.BigEndian.Uint64(raw))
}

// bytesGroupColumnsBuilder decodes SerializedKeys key views back into a
// single opaque binary column, verbatim.
type bytesGroupColumnsBuilder struct {
	values [][]byte
}

func newBytesGroupColumnsBuilder(capacity int) *bytesGroupColumnsBuilder {
	return &bytesGroupColumnsBuilder{values: make([][]byte, 0, capacity)}
}

func (b *bytesGroupColumnsBuilder) AppendValue(key string) {
	b.values = append(b.values, []byte(key))
}

func (b *bytesGroupColumnsBuilder) Finish() []Column {
	return []Column{&binaryColumn{values: b.values}}
}
