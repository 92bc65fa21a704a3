// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package state

import (
	"bytes"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/google/btree"
)

const btreeDegree = 16

type entry struct {
	key   []byte
	value []byte
}

func lessEntry(a, b entry) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Delta is the previous state of a key overwritten in a Store.
type Delta struct {
	Key     []byte
	Old     []byte
	Existed bool
}

// Store is the ordered key/value storage of a single contract instance. It
// remembers the previous values of all keys written since the last call to
// Harvest, but knows nothing about scopes.
type Store struct {
	tree   *btree.BTreeG[entry]
	deltas []Delta
}

var _ wasmvmtypes.KVStore = &Store{}

func NewStore() *Store {
	return &Store{tree: btree.NewG(btreeDegree, lessEntry)}
}

func (s *Store) Get(key []byte) []byte {
	if cur, found := s.tree.Get(entry{key: key}); found {
		return bytes.Clone(cur.value)
	}
	return nil
}

func (s *Store) Set(key, value []byte) {
	if value == nil {
		value = []byte{}
	}
	old, existed := s.tree.ReplaceOrInsert(entry{key: bytes.Clone(key), value: bytes.Clone(value)})
	s.deltas = append(s.deltas, Delta{Key: bytes.Clone(key), Old: old.value, Existed: existed})
}

func (s *Store) Delete(key []byte) {
	old, existed := s.tree.Delete(entry{key: key})
	if !existed {
		return
	}
	s.deltas = append(s.deltas, Delta{Key: bytes.Clone(key), Old: old.value, Existed: true})
}

// Iterator iterates over the keys in [start, end) in ascending order. Nil
// bounds are open. The iterator works on a snapshot of the store.
func (s *Store) Iterator(start, end []byte) wasmvmtypes.Iterator {
	return newIterator(s.collect(start, end), start, end)
}

// ReverseIterator iterates over the keys in [start, end) in descending order.
func (s *Store) ReverseIterator(start, end []byte) wasmvmtypes.Iterator {
	entries := s.collect(start, end)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return newIterator(entries, start, end)
}

func (s *Store) collect(start, end []byte) []entry {
	var res []entry
	visit := func(e entry) bool {
		if end != nil && bytes.Compare(e.key, end) >= 0 {
			return false
		}
		res = append(res, e)
		return true
	}
	if start == nil {
		s.tree.Ascend(visit)
	} else {
		s.tree.AscendGreaterOrEqual(entry{key: start}, visit)
	}
	return res
}

// Len returns the number of keys in the store.
func (s *Store) Len() int {
	return s.tree.Len()
}

// Dump copies the content of the store.
func (s *Store) Dump() map[string][]byte {
	res := make(map[string][]byte, s.tree.Len())
	s.tree.Ascend(func(e entry) bool {
		res[string(e.key)] = bytes.Clone(e.value)
		return true
	})
	return res
}

// Pending returns the number of deltas recorded since the last Harvest.
func (s *Store) Pending() int {
	return len(s.deltas)
}

// Harvest returns the deltas recorded since the last call and forgets them.
func (s *Store) Harvest() []Delta {
	res := s.deltas
	s.deltas = nil
	return res
}

// restore writes the previous state of a key back without recording it.
func (s *Store) restore(delta Delta) {
	if delta.Existed {
		s.tree.ReplaceOrInsert(entry{key: delta.Key, value: delta.Old})
	} else {
		s.tree.Delete(entry{key: delta.Key})
	}
}

type iterator struct {
	entries    []entry
	pos        int
	start, end []byte
}

func newIterator(entries []entry, start, end []byte) *iterator {
	return &iterator{entries: entries, start: start, end: end}
}

func (it *iterator) Domain() ([]byte, []byte) {
	return it.start, it.end
}

func (it *iterator) Valid() bool {
	return it.pos < len(it.entries)
}

func (it *iterator) Next() {
	if !it.Valid() {
		panic("iterator is exhausted")
	}
	it.pos++
}

func (it *iterator) Key() []byte {
	if !it.Valid() {
		panic("iterator is exhausted")
	}
	return bytes.Clone(it.entries[it.pos].key)
}

func (it *iterator) Value() []byte {
	if !it.Valid() {
		panic("iterator is exhausted")
	}
	return bytes.Clone(it.entries[it.pos].value)
}

func (it *iterator) Error() error {
	return nil
}

func (it *iterator) Close() error {
	it.entries = nil
	return nil
}
