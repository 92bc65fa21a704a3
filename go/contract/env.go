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
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// DefaultMaxAddressLength is the longest address accepted by default.
const DefaultMaxAddressLength = 54

// ValidateAddress checks that the given address could be used by a contract
// instance or an external actor.
func ValidateAddress(address string, maxLength int) error {
	if address == "" {
		return ErrEmptyAddress
	}
	if len(address) > maxLength {
		return fmt.Errorf("%w: %q has %d bytes, limit is %d", ErrAddressTooLong, address, len(address), maxLength)
	}
	return nil
}

// AddressValidator is the Api handed to contracts.
type AddressValidator struct {
	MaxLength int
}

func (v AddressValidator) AddrValidate(address string) error {
	return ValidateAddress(address, v.MaxLength)
}

// MockEnv describes who calls which contract and what funds are attached.
type MockEnv struct {
	Sender   string
	Contract string
	Funds    []Coin
}

func NewMockEnv(sender, contract string) MockEnv {
	return MockEnv{Sender: sender, Contract: contract}
}

// WithFunds returns a copy of the environment sending the given coins along
// with the message.
func (e MockEnv) WithFunds(coins ...Coin) MockEnv {
	e.Funds = append([]Coin(nil), coins...)
	return e
}

func (e MockEnv) Validate(maxLength int) error {
	if err := ValidateAddress(e.Sender, maxLength); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := ValidateAddress(e.Contract, maxLength); err != nil {
		return fmt.Errorf("invalid contract address: %w", err)
	}
	return nil
}

func (e MockEnv) MessageInfo() wasmvmtypes.MessageInfo {
	return wasmvmtypes.MessageInfo{
		Sender: e.Sender,
		Funds:  ToWasmCoins(e.Funds),
	}
}

// NewEnv builds the environment a contract at the given address observes.
func NewEnv(block wasmvmtypes.BlockInfo, contract string) wasmvmtypes.Env {
	return wasmvmtypes.Env{
		Block:       block,
		Transaction: &wasmvmtypes.TransactionInfo{Index: 0},
		Contract:    wasmvmtypes.ContractInfo{Address: contract},
	}
}
