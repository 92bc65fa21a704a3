// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package ensemble

import (
	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/staking"
	"github.com/Fantom-foundation/Ensemble/go/state"
	"github.com/holiman/uint256"
)

// The helpers below set up and inspect the simulated chain between calls.
// Changes made through them are permanent.

// AddFunds mints coins into the account.
func (e *ContractEnsemble) AddFunds(address string, coins ...contract.Coin) error {
	e.invalidateQueries()
	return e.state.AddFunds(address, coins)
}

// RemoveFunds burns coins from the account.
func (e *ContractEnsemble) RemoveFunds(address string, coins ...contract.Coin) error {
	e.invalidateQueries()
	return e.state.RemoveFunds(address, coins)
}

func (e *ContractEnsemble) TransferFunds(from, to string, coins ...contract.Coin) error {
	e.invalidateQueries()
	return e.state.TransferFunds(from, to, coins)
}

func (e *ContractEnsemble) Balance(address, denom string) uint256.Int {
	return e.state.Bank.Balance(address, denom)
}

// Balances lists all balances of the account ordered by denomination.
func (e *ContractEnsemble) Balances(address string) []contract.Coin {
	return e.state.Bank.Balances(address)
}

func (e *ContractEnsemble) AddValidator(validator wasmvmtypes.Validator) error {
	e.invalidateQueries()
	if err := e.state.Staking.AddValidator(validator); err != nil {
		return contract.NewStakingError(err)
	}
	return nil
}

// AddRewards credits the amount as rewards to every delegation.
func (e *ContractEnsemble) AddRewards(amount contract.Coin) error {
	e.invalidateQueries()
	return e.state.DistributeRewards(amount)
}

// FastForwardDelegationWaits completes all unbondings, returning the funds
// to the delegators, and lifts all redelegation locks.
func (e *ContractEnsemble) FastForwardDelegationWaits() error {
	e.invalidateQueries()
	_, err := e.state.FastForwardDelegationWaits()
	return err
}

func (e *ContractEnsemble) Delegation(delegator, validator string) (staking.Delegation, bool) {
	return e.state.Staking.Delegation(delegator, validator)
}

// Delegations lists the delegations of a delegator keyed by validator.
func (e *ContractEnsemble) Delegations(delegator string) map[string]staking.Delegation {
	return e.state.Staking.Delegations(delegator)
}

// ContractStorage gives f read access to the storage of an instance.
func (e *ContractEnsemble) ContractStorage(address string, f func(store wasmvmtypes.KVStore) error) error {
	return e.state.BorrowStorage(address, func(store *state.Store) error {
		return f(contract.ReadOnly(store))
	})
}

// ContractStorageMut gives f write access to the storage of an instance.
func (e *ContractEnsemble) ContractStorageMut(address string, f func(store wasmvmtypes.KVStore) error) error {
	e.invalidateQueries()
	return e.state.BorrowStorageMut(address, func(store *state.Store) error {
		return f(store)
	})
}
