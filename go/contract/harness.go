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

//go:generate mockgen -source harness.go -destination harness_mock.go -package contract

// Harness is the interface every contract under test has to implement. Message
// payloads are opaque to the ensemble; only the structure of the returned
// responses (sub-messages, reply policies, events and data) is interpreted.
type Harness interface {
	Instantiate(deps Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error)
	Execute(deps Deps, env wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error)
	Query(deps Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error)
}

// Replier is implemented by harnesses that emit sub-messages requesting a
// reply. Asking for a reply from a harness not implementing it is a fatal
// error of the whole call.
type Replier interface {
	Reply(deps Deps, env wasmvmtypes.Env, reply wasmvmtypes.Reply) (wasmvmtypes.Response, error)
}

// Api provides chain specific helpers to contracts.
type Api interface {
	AddrValidate(address string) error
}

// Deps bundles everything a contract may access while running.
type Deps struct {
	Storage wasmvmtypes.KVStore
	Api     Api
	Querier wasmvmtypes.Querier
}
