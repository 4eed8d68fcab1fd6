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
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// bucketAggregator collapses a list of partial chunks belonging to one
// bucket (or to all buckets, in the serial path) into one fully-reduced
// chunk. It owns a private Arena and Hashtable; neither is shared with any
// other bucketAggregator, so no locking is required on the hot path.
//
// hasAgg selects between key-only mode (dedup on the group key alone) and
// with-aggregates mode (deserialize-and-merge partial states). The source
// models this as a const generic parameter specialized at compile time;
// here it is a constructor-time bool, since Go has no const generics --
// the effect (no per-row branching once inside merge loops that matter)
// is the same, because the branch is hoisted above the row loop.
type bucketAggregator struct {
	method KeyEncoding
	params *AggregatorParams
	arena  *Arena
	table  *Hashtable
	hasAgg bool
	log    logrus.FieldLogger

	// scratch is reused as the deserialize target for every row; it is
	// allocated iff hasAgg, and dropped exactly once.
	scratch    StateAddr
	hasScratch bool
}

// newBucketAggregator allocates the arena, hash table, and (if there is at
// least one aggregate function) the scratch state for a fresh bucket. log
// defaults to logrus.StandardLogger() if nil.
func newBucketAggregator(method KeyEncoding, params *AggregatorParams, log logrus.FieldLogger) (*bucketAggregator, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	arena := NewArena()

	ba := &bucketAggregator{
		method: method,
		params: params,
		arena:  arena,
		table:  NewHashtable(),
		hasAgg: params.HasAggregates(),
		log:    log,
	}

	if ba.hasAgg {
		addr, ok, err := params.AllocLayout(arena)
		if err != nil {
			return nil, err
		}
		ba.scratch = addr
		ba.hasScratch = ok
	}

	return ba, nil
}

// mergeChunks folds every chunk into this aggregator's table and arena,
// then emits the single resulting chunk. It consumes chunks; callers must
// not reuse the slice afterwards.
func (ba *bucketAggregator) mergeChunks(chunks []Chunk) ([]Chunk, error) {
	aggLen := len(ba.params.AggregateFunctions)
	ba.log.Debugf("bucket aggregator merging %d chunks (hasAgg=%v)", len(chunks), ba.hasAgg)

	for _, raw := range chunks {
		chunk := raw.ConvertToFull()

		if aggLen >= len(chunk.Columns) {
			return nil, errors.Errorf("aggregator: chunk has %d columns, need at least %d", len(chunk.Columns), aggLen+1)
		}
		keysCol := chunk.Column(aggLen).AsColumn(chunk.NumRows)
		keysIter, err := ba.method.KeysIteratorFromColumn(keysCol, chunk.NumRows)
		if err != nil {
			return nil, errors.Wrap(err, "aggregator: building key iterator")
		}

		if !ba.hasAgg {
			for row := 0; row < keysIter.Len(); row++ {
				ba.insertKeyOnly(keysIter.At(row))
			}
			continue
		}

		if err := ba.mergeWithAggregates(chunk, keysIter); err != nil {
			return nil, err
		}
	}

	return ba.emit()
}

// insertKeyOnly records key's presence without allocating any state,
// implementing key-only mode's unconditional insert_and_entry.
func (ba *bucketAggregator) insertKeyOnly(key string) {
	if _, inserted := ba.table.InsertAndEntry(key); inserted {
		ba.table.Set(key, StateAddr{})
	}
}

// mergeWithAggregates is the HAS_AGG=true branch of mergeChunks: allocate
// or look up a state per row, then deserialize-and-merge every aggregate
// function's partial state into it.
func (ba *bucketAggregator) mergeWithAggregates(chunk Chunk, keysIter KeyIterator) error {
	aggLen := len(ba.params.AggregateFunctions)

	places, err := ba.lookupState(keysIter)
	if err != nil {
		return err
	}

	stateColumns := make([]Column, aggLen)
	for i := 0; i < aggLen; i++ {
		colWithType := chunk.Column(i)
		if colWithType.Type != TypeBinary {
			return errors.Wrapf(ErrIllegalDataType, "column %d has type %v", i, colWithType.Type)
		}
		stateColumns[i] = colWithType.AsColumn(chunk.NumRows)
	}

	funcs := ba.params.AggregateFunctions
	offsets := ba.params.OffsetsAggregateStates

	if !ba.hasScratch {
		// No aggregate functions actually need a scratch slot; nothing to
		// merge (unreachable in practice since hasAgg implies hasScratch,
		// but kept explicit per the source's Option<StateAddr> handling).
		return nil
	}

	for row, finalPlace := range places {
		for idx, fn := range funcs {
			offset := offsets[idx]
			finalState := ba.arena.Bytes(finalPlace.Next(offset), fn.StateSize())
			scratchState := ba.arena.Bytes(ba.scratch.Next(offset), fn.StateSize())

			data := stateColumns[idx].BinaryAt(row)
			if err := fn.Deserialize(scratchState, data); err != nil {
				return errors.Wrapf(err, "aggregator: %s.Deserialize at row %d", fn.Name(), row)
			}
			if err := fn.Merge(finalState, scratchState); err != nil {
				return errors.Wrapf(err, "aggregator: %s.Merge at row %d", fn.Name(), row)
			}
		}
	}

	return nil
}

// lookupState returns one state base address per row in keysIter, in row
// order: a fresh allocation for a key seen for the first time by this
// aggregator, or the previously stored address for a known key. The
// mapping is stable across every subsequent call in this aggregator's
// lifetime.
func (ba *bucketAggregator) lookupState(keysIter KeyIterator) ([]StateAddr, error) {
	n := keysIter.Len()
	places := make([]StateAddr, 0, n)

	for row := 0; row < n; row++ {
		key := keysIter.At(row)
		addr, inserted := ba.table.InsertAndEntry(key)
		if inserted {
			place, ok, err := ba.params.AllocLayout(ba.arena)
			if err != nil {
				return nil, errors.Wrap(err, "aggregator: allocating group state")
			}
			if ok {
				places = append(places, place)
				ba.table.Set(key, place)
				continue
			}
			// Not exercised in HAS_AGG mode: zero aggregate functions
			// means AllocLayout never allocates.
			ba.table.Set(key, StateAddr{})
			continue
		}
		places = append(places, addr)
	}

	return places, nil
}

// emit walks the hash table, finalizes every aggregate function's result
// per group (if any), and builds the single output chunk for this bucket.
func (ba *bucketAggregator) emit() ([]Chunk, error) {
	builder := ba.method.NewGroupColumnsBuilder(ba.table.Len())

	if !ba.hasAgg {
		ba.table.Range(func(key string, _ StateAddr) bool {
			builder.AppendValue(key)
			return true
		})

		groupColumns := builder.Finish()
		return []Chunk{buildOutputChunk(nil, groupColumns, ba.params.OutputSchema, ba.table.Len())}, nil
	}

	funcs := ba.params.AggregateFunctions
	offsets := ba.params.OffsetsAggregateStates
	builders := make([]ColumnBuilder, len(funcs))
	for i, fn := range funcs {
		builders[i] = newSimpleColumnBuilder(fn.ReturnType())
	}

	var mergeErr error
	ba.table.Range(func(key string, place StateAddr) bool {
		for idx, fn := range funcs {
			state := ba.arena.Bytes(place.Next(offsets[idx]), fn.StateSize())
			if err := fn.MergeResult(state, builders[idx]); err != nil {
				mergeErr = errors.Wrapf(err, "aggregator: %s.MergeResult", fn.Name())
				return false
			}
		}
		builder.AppendValue(key)
		return true
	})
	if mergeErr != nil {
		return nil, mergeErr
	}

	aggregateColumns := make([]Column, len(builders))
	for i, b := range builders {
		aggregateColumns[i] = b.Build()
	}

	groupColumns := builder.Finish()
	return []Chunk{buildOutputChunk(aggregateColumns, groupColumns, ba.params.OutputSchema, ba.table.Len())}, nil
}

// buildOutputChunk assembles aggregate columns followed by group columns,
// matching the output schema's field order (aggregates before group
// keys). The source zips built columns against schema.fields() by
// skipping len(columns) fields without verifying the assumption. Here
// NewAggregatorParams checks once up front that the schema has at least
// one field per aggregate function; it does not check the fields' types,
// so a schema that lists a group key before an aggregate is not detected.
func buildOutputChunk(aggregateColumns, groupColumns []Column, schema OutputSchema, numRows int) Chunk {
	columns := make([]ColumnWithType, 0, len(aggregateColumns)+len(groupColumns))
	fieldIdx := 0
	for _, col := range aggregateColumns {
		columns = append(columns, ColumnWithType{
			Value: ColumnValue{Column: col},
			Type:  schema.Fields[fieldIdx].Type,
		})
		fieldIdx++
	}
	for _, col := range groupColumns {
		var t LogicalType
		if fieldIdx < len(schema.Fields) {
			t = schema.Fields[fieldIdx].Type
		} else {
			t = TypeGroupKey
		}
		columns = append(columns, ColumnWithType{
			Value: ColumnValue{Column: col},
			Type:  t,
		})
		fieldIdx++
	}
	return Chunk{Columns: columns, NumRows: numRows}
}

// close runs the bucket aggregator's drop sequence: hash-table-owned
// states first, the scratch state last, then the arena itself. This order
// is a contract (spec.md §4.6), not an implementation detail: functions
// needing manual drop must see the population's states destroyed before
// the shared scratch singleton.
func (ba *bucketAggregator) close() {
	if !ba.hasAgg {
		return
	}
	ba.log.Debugf("bucket aggregator closing, %d groups", ba.table.Len())

	funcs := ba.params.AggregateFunctions
	offsets := ba.params.OffsetsAggregateStates

	type dropper struct {
		fn     AggregateFunction
		offset int
	}
	var manual []dropper
	for i, fn := range funcs {
		if fn.NeedManualDropState() {
			manual = append(manual, dropper{fn: fn, offset: offsets[i]})
		}
	}
	if len(manual) == 0 {
		return
	}

	ba.table.Range(func(_ string, place StateAddr) bool {
		for _, d := range manual {
			d.fn.DropState(ba.arena.Bytes(place.Next(d.offset), d.fn.StateSize()))
		}
		return true
	})

	if ba.hasScratch {
		for _, d := range manual {
			d.fn.DropState(ba.arena.Bytes(ba.scratch.Next(d.offset), d.fn.StateSize()))
		}
	}
}
