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

// OutputField names one column of a bucket aggregator's emitted chunk.
type OutputField struct {
	Name string
	Type LogicalType
}

// OutputSchema is the configured output column order: aggregate-value
// fields first, followed by group-key fields. AggregatorParams validates
// that this ordering has room for every aggregate function at
// construction time (see ErrOutputSchemaOrder).
type OutputSchema struct {
	Fields []OutputField
}

// AggregatorParams bundles everything a bucket aggregator needs that does
// not vary per chunk: the aggregate-function list, their state offsets,
// and the output column order. A single AggregatorParams is shared
// read-only across every worker of a parallel merge.
type AggregatorParams struct {
	AggregateFunctions     []AggregateFunction
	OffsetsAggregateStates []int
	OutputSchema           OutputSchema

	stateSize  int
	stateAlign int
}

// NewAggregatorParams validates and derives the combined state layout for
// funcs, packing each function's state at an alignment-respecting offset
// within one contiguous block. Offsets are computed here rather than
// trusted from the caller, since offsets inconsistent with a function's
// size/alignment would silently corrupt a sibling function's state.
func NewAggregatorParams(funcs []AggregateFunction, schema OutputSchema) (*AggregatorParams, error) {
	if len(schema.Fields) < len(funcs) {
		return nil, errors.WithStack(ErrOutputSchemaOrder)
	}

	offsets := make([]int, len(funcs))
	size := 0
	align := 1
	for i, fn := range funcs {
		a := fn.StateAlign()
		if a <= 0 {
			a = 1
		}
		size = alignUp(size, a)
		offsets[i] = size
		size += fn.StateSize()
		if a > align {
			align = a
		}
	}

	return &AggregatorParams{
		AggregateFunctions:     funcs,
		OffsetsAggregateStates: offsets,
		OutputSchema:           schema,
		stateSize:              size,
		stateAlign:             align,
	}, nil
}

// HasAggregates reports whether any aggregate function is configured; when
// false, the bucket aggregator runs in key-only mode.
func (p *AggregatorParams) HasAggregates() bool {
	return len(p.AggregateFunctions) > 0
}

// AllocLayout allocates one state block sized to host every configured
// aggregate function's state at its published offset, initializing each
// function's slice in place. It returns ok == false when there are no
// aggregate functions to allocate for, mirroring the source's
// Option<StateAddr> (None when params.aggregate_functions.is_empty()).
func (p *AggregatorParams) AllocLayout(arena *Arena) (addr StateAddr, ok bool, err error) {
	if len(p.AggregateFunctions) == 0 {
		return StateAddr{}, false, nil
	}

	addr, err = arena.Alloc(p.stateSize, p.stateAlign)
	if err != nil {
		return StateAddr{}, false, errors.Wrap(err, "aggregator: failed to allocate state block")
	}

	for i, fn := range p.AggregateFunctions {
		place := addr.Next(p.OffsetsAggregateStates[i])
		fn.InitState(arena.Bytes(place, fn.StateSize()))
	}

	return addr, true, nil
}
