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

// Package aggregator implements the parallel final-stage aggregator of a
// columnar query engine: it merges partially-aggregated, bucketed column
// chunks produced by upstream partial aggregators into a single,
// fully-reduced result set.
//
// A Collector accumulates input chunks by bucket id (Consume), then on
// Generate either runs one bucketAggregator serially over everything, or
// fans out one bucketAggregator per bucket across a bounded worker pool,
// depending on the bucket layout and the configured thread budget. Each
// bucketAggregator owns a private Arena and Hashtable and folds its
// chunks into exactly one output chunk.
//
// Aggregate-function implementations (sum, count, avg, ...) are outside
// this package's scope; it only consumes them through the
// AggregateFunction capability contract.
package aggregator
