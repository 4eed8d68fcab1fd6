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

package aggregator_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wuchunfu/databend/internal/aggtest"
	"github.com/wuchunfu/databend/pkg/aggregator"
)

func sumSchema() aggregator.OutputSchema {
	return aggregator.OutputSchema{Fields: []aggregator.OutputField{
		{Name: "sum", Type: aggregator.TypeOther},
		{Name: "key", Type: aggregator.TypeGroupKey},
	}}
}

func sumChunk(bucket int32, keys []int64, partials []int64) aggregator.Chunk {
	stateValues := make([][]byte, len(partials))
	for i, p := range partials {
		stateValues[i] = aggtest.EncodeSumState(p)
	}
	keyValues := make([][]byte, len(keys))
	for i, k := range keys {
		keyValues[i] = aggregator.EncodeInt64Key(k)
	}
	return aggregator.Chunk{
		NumRows: len(keys),
		Meta:    aggregator.AggregateInfo{Bucket: bucket},
		Columns: []aggregator.ColumnWithType{
			{Value: aggregator.ColumnValue{Column: aggregator.NewBinaryColumn(stateValues)}, Type: aggregator.TypeBinary},
			{Value: aggregator.ColumnValue{Column: aggregator.NewBinaryColumn(keyValues)}, Type: aggregator.TypeGroupKey},
		},
	}
}

func sumResults(t *testing.T, chunks []aggregator.Chunk) map[int64]int64 {
	t.Helper()
	out := make(map[int64]int64)
	for _, c := range chunks {
		sumCol := c.Column(0).AsColumn(c.NumRows)
		keyCol := c.Column(1).AsColumn(c.NumRows)
		for i := 0; i < c.NumRows; i++ {
			k := aggregator.DecodeInt64Key(keyCol.BinaryAt(i))
			v := aggtest.DecodeSumResult(sumCol.BinaryAt(i))
			out[k] = v
		}
	}
	return out
}

// Scenario B: SUM over two disjoint buckets.
func TestCollectorScenarioB(t *testing.T) {
	params, err := aggregator.NewAggregatorParams([]aggregator.AggregateFunction{aggtest.SumInt64{}}, sumSchema())
	require.NoError(t, err)

	c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, params, 4)
	require.NoError(t, c.Consume(sumChunk(0, []int64{1, 1, 2}, []int64{1, 2, 5}))) // a=1,a=1,b=2 (keys encoded as ints 1,1,2)
	require.NoError(t, c.Consume(sumChunk(1, []int64{3, 3}, []int64{7, 8})))

	out, err := c.Generate(context.Background())
	require.NoError(t, err)

	got := sumResults(t, out)
	require.Equal(t, map[int64]int64{1: 3, 2: 5, 3: 15}, got)
}

// Scenario C: mixed sentinel forces serial merge, but totals still
// combine everything correctly.
func TestCollectorScenarioC(t *testing.T) {
	params, err := aggregator.NewAggregatorParams([]aggregator.AggregateFunction{aggtest.SumInt64{}}, sumSchema())
	require.NoError(t, err)

	c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, params, 4)
	require.NoError(t, c.Consume(sumChunk(0, []int64{1, 1, 2}, []int64{1, 2, 5})))
	require.NoError(t, c.Consume(sumChunk(1, []int64{3, 3}, []int64{7, 8})))
	require.NoError(t, c.Consume(sumChunk(aggregator.BucketUnbucketed, []int64{1, 3}, []int64{10, 20})))

	out, err := c.Generate(context.Background())
	require.NoError(t, err)

	got := sumResults(t, out)
	require.Equal(t, map[int64]int64{1: 13, 2: 5, 3: 35}, got)
}

// Scenario D: single bucket, many threads -- still produces the serial
// result (there is only ever one worker's worth of data either way).
func TestCollectorScenarioDSingleBucketManyThreads(t *testing.T) {
	params, err := aggregator.NewAggregatorParams([]aggregator.AggregateFunction{aggtest.SumInt64{}}, sumSchema())
	require.NoError(t, err)

	c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, params, 8)
	require.NoError(t, c.Consume(sumChunk(0, []int64{1, 1, 2}, []int64{1, 2, 5})))

	out, err := c.Generate(context.Background())
	require.NoError(t, err)

	got := sumResults(t, out)
	require.Equal(t, map[int64]int64{1: 3, 2: 5}, got)
}

// Zero buckets consumed: generate() must return an empty chunk list, even
// when max_threads > 1 (neither the serial nor the parallel dispatch
// condition is true in that case -- see spec's Open Questions).
func TestCollectorEmptyInput(t *testing.T) {
	params, err := aggregator.NewAggregatorParams([]aggregator.AggregateFunction{aggtest.SumInt64{}}, sumSchema())
	require.NoError(t, err)

	for _, maxThreads := range []int{1, 4} {
		c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, params, maxThreads)
		out, err := c.Generate(context.Background())
		require.NoError(t, err)
		require.Empty(t, out)
	}
}

// Scenario A: key-only dedup across two buckets.
func TestCollectorScenarioAKeyOnly(t *testing.T) {
	params, err := aggregator.NewAggregatorParams(nil, aggregator.OutputSchema{
		Fields: []aggregator.OutputField{{Name: "key", Type: aggregator.TypeGroupKey}},
	})
	require.NoError(t, err)

	keyChunk := func(bucket int32, keys []int64) aggregator.Chunk {
		values := make([][]byte, len(keys))
		for i, k := range keys {
			values[i] = aggregator.EncodeInt64Key(k)
		}
		return aggregator.Chunk{
			NumRows: len(keys),
			Meta:    aggregator.AggregateInfo{Bucket: bucket},
			Columns: []aggregator.ColumnWithType{
				{Value: aggregator.ColumnValue{Column: aggregator.NewBinaryColumn(values)}, Type: aggregator.TypeGroupKey},
			},
		}
	}

	c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, params, 4)
	require.NoError(t, c.Consume(keyChunk(0, []int64{1, 2, 2, 3})))
	require.NoError(t, c.Consume(keyChunk(1, []int64{2, 3, 4})))

	// Two non-negative buckets with max_threads > 1 take the parallel
	// path: one output chunk per bucket worker.
	out, err := c.Generate(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	got := make(map[int64]bool)
	for _, ch := range out {
		col := ch.Column(0).AsColumn(ch.NumRows)
		for i := 0; i < col.Len(); i++ {
			got[aggregator.DecodeInt64Key(col.BinaryAt(i))] = true
		}
	}
	require.Equal(t, map[int64]bool{1: true, 2: true, 3: true, 4: true}, got)
}

// Scenario E: drop accounting for a count-distinct-like function with
// need_manual_drop_state() == true, across 4 buckets.
func TestCollectorScenarioEDropAccounting(t *testing.T) {
	const buckets = 4
	const perBucket = 2500 // 4 * 2500 = 10,000 unique keys total

	var dropCount atomic.Int64
	fn := aggtest.NewCountDistinct(&dropCount)

	schema := aggregator.OutputSchema{Fields: []aggregator.OutputField{
		{Name: "distinct", Type: aggregator.TypeOther},
		{Name: "key", Type: aggregator.TypeGroupKey},
	}}
	params, err := aggregator.NewAggregatorParams([]aggregator.AggregateFunction{fn}, schema)
	require.NoError(t, err)

	c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, params, 4)

	key := int64(0)
	for b := 0; b < buckets; b++ {
		keys := make([]int64, perBucket)
		partials := make([][]byte, perBucket)
		for i := 0; i < perBucket; i++ {
			keys[i] = key
			partials[i] = aggtest.EncodeDistinctMember(fmt.Sprintf("member-%d", key))
			key++
		}
		keyValues := make([][]byte, perBucket)
		for i, k := range keys {
			keyValues[i] = aggregator.EncodeInt64Key(k)
		}
		chunk := aggregator.Chunk{
			NumRows: perBucket,
			Meta:    aggregator.AggregateInfo{Bucket: int32(b)},
			Columns: []aggregator.ColumnWithType{
				{Value: aggregator.ColumnValue{Column: aggregator.NewBinaryColumn(partials)}, Type: aggregator.TypeBinary},
				{Value: aggregator.ColumnValue{Column: aggregator.NewBinaryColumn(keyValues)}, Type: aggregator.TypeGroupKey},
			},
		}
		require.NoError(t, c.Consume(chunk))
	}

	out, err := c.Generate(context.Background())
	require.NoError(t, err)

	totalRows := 0
	for _, ch := range out {
		totalRows += ch.NumRows
	}
	require.Equal(t, buckets*perBucket, totalRows)

	// buckets*perBucket live states + one scratch per bucket aggregator.
	require.Equal(t, int64(buckets*perBucket+buckets), dropCount.Load())
}

// Property 6 / 7: thread-count invariance and disjoint worker outputs.
func TestCollectorThreadCountInvariance(t *testing.T) {
	schema := sumSchema()

	build := func() *aggregator.AggregatorParams {
		params, err := aggregator.NewAggregatorParams([]aggregator.AggregateFunction{aggtest.SumInt64{}}, schema)
		require.NoError(t, err)
		return params
	}

	for _, maxThreads := range []int{1, 2, 4, 16} {
		c := aggregator.NewCollector(aggregator.SingleInt64Keys{}, build(), maxThreads)
		for b := int32(0); b < 8; b++ {
			require.NoError(t, c.Consume(sumChunk(b, []int64{int64(b), int64(b)}, []int64{1, 2})))
		}
		out, err := c.Generate(context.Background())
		require.NoError(t, err)

		got := sumResults(t, out)
		require.Len(t, got, 8)
		for b := int64(0); b < 8; b++ {
			require.Equal(t, int64(3), got[b])
		}
	}
}
