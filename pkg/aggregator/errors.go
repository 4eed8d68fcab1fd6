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

// ErrIllegalDataType is returned when a state column in a HAS_AGG input
// chunk does not carry byte-string (TypeBinary) elements.
var ErrIllegalDataType = errors.New("aggregator: aggregation state column must be binary-typed")

// ErrAllocationFailure is returned when the arena or hash table fails to
// allocate.
var ErrAllocationFailure = errors.New("aggregator: allocation failure")

// ErrOutputSchemaOrder is returned when an AggregatorParams' OutputSchema
// does not have at least as many fields as there are aggregate functions,
// which would make the aggregates-before-group-keys field-order assumption
// in the emission path impossible to satisfy. The source assumes but never
// checks this ordering (see spec.md's Open Questions); this package
// enforces it explicitly instead of silently zipping past the end.
var ErrOutputSchemaOrder = errors.New("aggregator: output schema must order aggregate fields before group-key fields")
