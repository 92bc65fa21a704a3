// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package contract

import (
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// ReadOnly wraps a store such that any write panics with
// ErrReadOnlyStorage. It is used to run queries.
func ReadOnly(store wasmvmtypes.KVStore) wasmvmtypes.KVStore {
	return readOnlyStore{store}
}

type readOnlyStore struct {
	wasmvmtypes.KVStore
}

func (readOnlyStore) Set(key, value []byte) {
	panic(ErrReadOnlyStorage)
}

func (readOnlyStore) Delete(key []byte) {
	panic(ErrReadOnlyStorage)
}
