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
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"
)

// Collector is the parallel final-stage aggregator's entry point: it
// accumulates input chunks into buckets as they arrive, then on Generate
// decides between a serial merge and a one-worker-per-bucket parallel
// merge and produces the final output chunks.
//
// Collector is not safe for concurrent Consume calls; it is fed by a
// single upstream in the pipeline, matching the source's single-threaded
// consume() contract. Generate is called exactly once after every Consume
// call has completed.
type Collector struct {
	method KeyEncoding
	params *AggregatorParams

	maxThreads int
	log        logrus.FieldLogger

	bucketsChunks map[int32][]Chunk
}

// CollectorOption configures optional Collector behavior.
type CollectorOption func(*Collector)

// WithLogger overrides the collector's logger; defaults to
// logrus.StandardLogger() otherwise.
func WithLogger(log logrus.FieldLogger) CollectorOption {
	return func(c *Collector) { c.log = log }
}

// NewCollector builds a collector for a given key encoding, aggregator
// params, and the query's configured max_threads setting (mirroring
// flowCtx's settings plumbing in the teacher). maxThreads <= 0 is treated
// the same as 1: serial execution.
func NewCollector(method KeyEncoding, params *AggregatorParams, maxThreads int, opts ...CollectorOption) *Collector {
	c := &Collector{
		method:        method,
		params:        params,
		maxThreads:    maxThreads,
		log:           logrus.StandardLogger(),
		bucketsChunks: make(map[int32][]Chunk),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Consume appends chunk to the vector stored under its bucket id (-1 if it
// carries no AggregateInfo). Pure in-memory append: O(1) plus a map probe,
// never blocks on I/O.
func (c *Collector) Consume(chunk Chunk) error {
	bucket := chunk.BucketID()
	c.bucketsChunks[bucket] = append(c.bucketsChunks[bucket], chunk)
	return nil
}

// Generate produces the final merged output chunks. It must be called
// exactly once, after every Consume call has completed.
//
// Dispatch policy:
//   - max_threads <= 1, or exactly one bucket present, or bucket -1 is
//     present (mixed/unbucketed): serial -- flatten every bucket's chunks
//     and run one bucketAggregator over the lot. -1 forces serial because
//     the data isn't a clean partition: only a single shared table gives
//     correct results.
//   - otherwise (>= 2 buckets, all non-negative, max_threads > 1):
//     parallel -- one worker per bucket, since clean bucketing guarantees
//     disjoint key sets and no cross-worker synchronization is needed.
func (c *Collector) Generate(ctx context.Context) ([]Chunk, error) {
	// Zero buckets consumed: there is nothing to merge, whatever
	// max_threads is, so no bucketAggregator is built and the result is
	// an empty chunk list.
	if len(c.bucketsChunks) == 0 {
		c.log.Debug("generate called with no buckets consumed, nothing to merge")
		return nil, nil
	}

	_, hasUnbucketed := c.bucketsChunks[BucketUnbucketed]

	if c.maxThreads <= 1 || len(c.bucketsChunks) == 1 || hasUnbucketed {
		return c.generateSerial()
	}
	return c.generateParallel(ctx)
}

func (c *Collector) generateSerial() ([]Chunk, error) {
	bucketCount := len(c.bucketsChunks)
	c.log.Debugf("merging to final state using a serial algorithm, %d buckets", bucketCount)

	var chunks []Chunk
	for _, bucketChunks := range c.bucketsChunks {
		chunks = append(chunks, bucketChunks...)
	}
	c.bucketsChunks = make(map[int32][]Chunk)

	ba, err := newBucketAggregator(c.method, c.params, c.log)
	if err != nil {
		return nil, errors.Wrap(err, "aggregator: creating serial bucket aggregator")
	}
	defer ba.close()

	out, err := ba.mergeChunks(chunks)
	if err != nil {
		return nil, errors.Wrap(err, "aggregator: serial merge")
	}
	return out, nil
}

func (c *Collector) generateParallel(ctx context.Context) ([]Chunk, error) {
	c.log.Infof("merging to final state using a parallel algorithm, %d buckets, max_threads=%d", len(c.bucketsChunks), c.maxThreads)

	bucketIDs := make([]int32, 0, len(c.bucketsChunks))
	for bucket := range c.bucketsChunks {
		bucketIDs = append(bucketIDs, bucket)
	}
	slices.Sort(bucketIDs)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxThreads)

	results := make([][]Chunk, len(bucketIDs))
	aggregators := make([]*bucketAggregator, len(bucketIDs))

	for i, bucket := range bucketIDs {
		i, bucketChunks := i, c.bucketsChunks[bucket]

		ba, err := newBucketAggregator(c.method, c.params, c.log)
		if err != nil {
			return nil, errors.Wrap(err, "aggregator: creating parallel bucket aggregator")
		}
		aggregators[i] = ba

		g.Go(func() error {
			select {
			case <-groupCtx.Done():
				return groupCtx.Err()
			default:
			}

			out, err := ba.mergeChunks(bucketChunks)
			if err != nil {
				return errors.Wrapf(err, "aggregator: worker for bucket %d", bucketIDs[i])
			}
			results[i] = out
			return nil
		})
	}

	werr := g.Wait()

	for _, ba := range aggregators {
		if ba != nil {
			ba.close()
		}
	}

	c.bucketsChunks = make(map[int32][]Chunk)

	if werr != nil {
		// First failure wins; any already-completed workers' outputs are
		// discarded, per spec.md §4.1/§7 WorkerFailure.
		c.log.Errorf("parallel merge failed: %v", werr)
		return nil, werr
	}

	var generated []Chunk
	for _, out := range results {
		generated = append(generated, out...)
	}
	return generated, nil
}
