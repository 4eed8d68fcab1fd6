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

// Hashtable maps an encoded group-key view to a single machine-word value:
// a StateAddr pointing into the owning bucket aggregator's Arena. It is the
// Go rendering of the source's polymorphic group-key hash table: the key
// encoding varies by KeyEncoding implementation, but the value is always a
// StateAddr, so a single concrete Hashtable type (backed by a Go map over
// the encoded key's string form) serves every encoding.
//
// Hashtable is not safe for concurrent use; each bucket aggregator owns one
// exclusively, per the no-locks-on-the-hot-path design in spec.md §5.
type Hashtable struct {
	entries map[string]StateAddr
}

// NewHashtable returns an empty hash table.
func NewHashtable() *Hashtable {
	return &Hashtable{entries: make(map[string]StateAddr)}
}

// InsertAndEntry probes the table for key. If the key is new, inserted is
// true and the caller is responsible for calling Set with the freshly
// allocated address before relying on the table again. If the key is
// already present, inserted is false and addr is the existing value.
func (h *Hashtable) InsertAndEntry(key string) (addr StateAddr, inserted bool) {
	addr, ok := h.entries[key]
	return addr, !ok
}

// Set writes (or overwrites) the value for key. Used immediately after an
// InsertAndEntry that reported inserted == true.
func (h *Hashtable) Set(key string, addr StateAddr) {
	h.entries[key] = addr
}

// Len reports the number of distinct keys currently stored.
func (h *Hashtable) Len() int {
	return len(h.entries)
}

// Range calls f once per (key, value) pair. Iteration order is
// unspecified and follows Go map iteration, so it can differ from one
// Range call to the next on the same Hashtable. Range stops early if f
// returns false.
func (h *Hashtable) Range(f func(key string, addr StateAddr) bool) {
	for k, v := range h.entries {
		if !f(k, v) {
			return
		}
	}
}
