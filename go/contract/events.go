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

// Event types and attribute keys of the events emitted around contract
// invocations.
const (
	EventTypeInstantiate = "instantiate"
	EventTypeExecute     = "execute"
	EventTypeReply       = "reply"
	EventTypeWasm        = "wasm"
	EventTypeTransfer    = "transfer"
	EventTypeBurn        = "burn"
	EventTypeDelegate    = "delegate"
	EventTypeUnbond      = "unbond"
	EventTypeRedelegate  = "redelegate"
	EventTypeWithdraw    = "withdraw_rewards"

	// CustomEventPrefix is prepended to the type of events emitted by
	// contracts.
	CustomEventPrefix = "wasm-"

	AttributeKeyContractAddr = "_contract_address"
	AttributeKeyCodeID       = "code_id"
	AttributeKeyMode         = "mode"
	AttributeKeySender       = "sender"
	AttributeKeyRecipient    = "recipient"
	AttributeKeyValidator    = "validator"
	AttributeKeyAmount       = "amount"
)

// Attribute returns the value of the first attribute with the given key.
func Attribute(event wasmvmtypes.Event, key string) (string, bool) {
	for _, attr := range event.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// InstantiatedAddress returns the address of the first contract instantiated
// according to the events.
func InstantiatedAddress(events []wasmvmtypes.Event) (string, bool) {
	for _, event := range events {
		if event.Type == EventTypeInstantiate {
			return Attribute(event, AttributeKeyContractAddr)
		}
	}
	return "", false
}
