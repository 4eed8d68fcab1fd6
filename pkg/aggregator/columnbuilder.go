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

// simpleColumnBuilder is the stock ColumnBuilder every aggregate function
// writes its finalized value into. It is deliberately minimal: the
// aggregate-function contract (spec.md §3) owns the encoding of its
// result value, this builder just accumulates whatever bytes it is given.
type simpleColumnBuilder struct {
	retType LogicalType
	values  [][]byte
	valid   []bool
}

func newSimpleColumnBuilder(retType LogicalType) *simpleColumnBuilder {
	return &simpleColumnBuilder{retType: retType}
}

func (b *simpleColumnBuilder) Append(value []byte, valid bool) {
	b.values = append(b.values, value)
	b.valid = append(b.valid, valid)
}

func (b *simpleColumnBuilder) Build() Column {
	return &binaryColumn{values: b.values}
}
