// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package staking

import (
	"fmt"
	"sort"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

const (
	ErrInvalidDenom           = contract.ConstError("invalid denomination")
	ErrUnknownValidator       = contract.ConstError("unknown validator")
	ErrDuplicateValidator     = contract.ConstError("validator already exists")
	ErrDelegationNotFound     = contract.ConstError("delegation not found")
	ErrSelfRedelegation       = contract.ConstError("cannot redelegate to the same validator")
	ErrInsufficientDelegation = contract.ConstError("insufficient delegation")
	ErrOverflow               = contract.ConstError("delegation overflow")
)

// InsufficientDelegationError reports a request for more than is delegated
// or redelegatable.
type InsufficientDelegationError struct {
	Delegator string
	Validator string
	Available uint256.Int
	Required  uint256.Int
	// Redelegation is set if the limiting quantity was the redelegatable
	// amount rather than the bonded amount.
	Redelegation bool
}

func (e *InsufficientDelegationError) Error() string {
	what := "delegated"
	if e.Redelegation {
		what = "redelegatable"
	}
	return fmt.Sprintf(
		"%v: %s has %s %s to %s, required %s",
		ErrInsufficientDelegation, e.Delegator, e.Available.Dec(), what, e.Validator, e.Required.Dec(),
	)
}

func (e *InsufficientDelegationError) Unwrap() error {
	return ErrInsufficientDelegation
}

// Key identifies a delegation.
type Key struct {
	Delegator string
	Validator string
}

// Delegation is the bookkeeping of one (delegator, validator) pair. All
// amounts are in the bonded denomination.
type Delegation struct {
	Amount        uint256.Int
	Unbonding     uint256.Int
	CanRedelegate uint256.Int
	Rewards       uint256.Int
}

// Unbonded is an amount whose unbonding period has passed.
type Unbonded struct {
	Delegator string
	Coin      contract.Coin
}

// Registry holds validators and delegations.
type Registry struct {
	bondedDenom string
	validators  map[string]wasmvmtypes.Validator
	delegations map[Key]Delegation
}

func New(bondedDenom string) *Registry {
	return &Registry{
		bondedDenom: bondedDenom,
		validators:  map[string]wasmvmtypes.Validator{},
		delegations: map[Key]Delegation{},
	}
}

func (r *Registry) BondedDenom() string {
	return r.bondedDenom
}

func (r *Registry) AddValidator(validator wasmvmtypes.Validator) error {
	if _, found := r.validators[validator.Address]; found {
		return fmt.Errorf("%w: %s", ErrDuplicateValidator, validator.Address)
	}
	r.validators[validator.Address] = validator
	return nil
}

func (r *Registry) Validator(address string) (wasmvmtypes.Validator, bool) {
	validator, found := r.validators[address]
	return validator, found
}

// Validators lists all validators ordered by address.
func (r *Registry) Validators() []wasmvmtypes.Validator {
	addresses := maps.Keys(r.validators)
	sort.Strings(addresses)
	res := make([]wasmvmtypes.Validator, 0, len(addresses))
	for _, address := range addresses {
		res = append(res, r.validators[address])
	}
	return res
}

func (r *Registry) checkCoin(coin contract.Coin) error {
	if coin.Denom != r.bondedDenom {
		return fmt.Errorf("%w: got %s, bonded denomination is %s", ErrInvalidDenom, coin.Denom, r.bondedDenom)
	}
	return nil
}

func (r *Registry) checkValidator(address string) error {
	if _, found := r.validators[address]; !found {
		return fmt.Errorf("%w: %s", ErrUnknownValidator, address)
	}
	return nil
}

// Delegate bonds the coin. The coin needs to be taken from the delegator's
// balance by the caller.
func (r *Registry) Delegate(delegator, validator string, coin contract.Coin) error {
	if err := r.checkCoin(coin); err != nil {
		return err
	}
	if err := r.checkValidator(validator); err != nil {
		return err
	}
	key := Key{delegator, validator}
	delegation := r.delegations[key]
	var amount, canRedelegate uint256.Int
	if _, overflow := amount.AddOverflow(&delegation.Amount, &coin.Amount); overflow {
		return fmt.Errorf("%w: delegating %v to %s", ErrOverflow, coin, validator)
	}
	canRedelegate.Add(&delegation.CanRedelegate, &coin.Amount)
	delegation.Amount = amount
	delegation.CanRedelegate = canRedelegate
	r.delegations[key] = delegation
	return nil
}

// Undelegate starts unbonding the coin. The funds become available through
// FastForwardWaits.
func (r *Registry) Undelegate(delegator, validator string, coin contract.Coin) error {
	if err := r.checkCoin(coin); err != nil {
		return err
	}
	key := Key{delegator, validator}
	delegation, found := r.delegations[key]
	if !found {
		return fmt.Errorf("%w: %s to %s", ErrDelegationNotFound, delegator, validator)
	}
	if delegation.Amount.Lt(&coin.Amount) {
		return &InsufficientDelegationError{
			Delegator: delegator,
			Validator: validator,
			Available: delegation.Amount,
			Required:  coin.Amount,
		}
	}
	delegation.Amount.Sub(&delegation.Amount, &coin.Amount)
	delegation.Unbonding.Add(&delegation.Unbonding, &coin.Amount)
	if delegation.Amount.Lt(&delegation.CanRedelegate) {
		delegation.CanRedelegate = delegation.Amount
	}
	r.delegations[key] = delegation
	return nil
}

// Redelegate moves bonded funds between validators. The moved amount can not
// be redelegated again from the destination until the waits are fast
// forwarded.
func (r *Registry) Redelegate(delegator, src, dst string, coin contract.Coin) error {
	if err := r.checkCoin(coin); err != nil {
		return err
	}
	if src == dst {
		return fmt.Errorf("%w: %s", ErrSelfRedelegation, src)
	}
	if err := r.checkValidator(dst); err != nil {
		return err
	}
	srcKey := Key{delegator, src}
	source, found := r.delegations[srcKey]
	if !found {
		return fmt.Errorf("%w: %s to %s", ErrDelegationNotFound, delegator, src)
	}
	if source.Amount.Lt(&coin.Amount) {
		return &InsufficientDelegationError{
			Delegator: delegator,
			Validator: src,
			Available: source.Amount,
			Required:  coin.Amount,
		}
	}
	if source.CanRedelegate.Lt(&coin.Amount) {
		return &InsufficientDelegationError{
			Delegator:    delegator,
			Validator:    src,
			Available:    source.CanRedelegate,
			Required:     coin.Amount,
			Redelegation: true,
		}
	}

	dstKey := Key{delegator, dst}
	destination := r.delegations[dstKey]
	var amount uint256.Int
	if _, overflow := amount.AddOverflow(&destination.Amount, &coin.Amount); overflow {
		return fmt.Errorf("%w: redelegating %v to %s", ErrOverflow, coin, dst)
	}

	source.Amount.Sub(&source.Amount, &coin.Amount)
	source.CanRedelegate.Sub(&source.CanRedelegate, &coin.Amount)
	destination.Amount = amount
	r.delegations[srcKey] = source
	r.delegations[dstKey] = destination
	return nil
}

// Withdraw claims the accumulated rewards of a delegation. The caller is
// responsible for crediting the returned coin to the delegator.
func (r *Registry) Withdraw(delegator, validator string) (contract.Coin, error) {
	if err := r.checkValidator(validator); err != nil {
		return contract.Coin{}, err
	}
	key := Key{delegator, validator}
	delegation, found := r.delegations[key]
	if !found {
		return contract.Coin{}, fmt.Errorf("%w: %s to %s", ErrDelegationNotFound, delegator, validator)
	}
	rewards := contract.Coin{Denom: r.bondedDenom, Amount: delegation.Rewards}
	delegation.Rewards.Clear()
	r.delegations[key] = delegation
	return rewards, nil
}

// DistributeRewards credits the given amount to the rewards of every
// delegation.
func (r *Registry) DistributeRewards(amount uint256.Int) {
	for key, delegation := range r.delegations {
		delegation.Rewards.Add(&delegation.Rewards, &amount)
		r.delegations[key] = delegation
	}
}

// FastForwardWaits completes all pending unbondings and redelegations. The
// unbonded amounts are returned in delegator order so the caller can credit
// them.
func (r *Registry) FastForwardWaits() []Unbonded {
	var res []Unbonded
	for _, key := range r.sortedKeys() {
		delegation := r.delegations[key]
		if !delegation.Unbonding.IsZero() {
			res = append(res, Unbonded{
				Delegator: key.Delegator,
				Coin:      contract.Coin{Denom: r.bondedDenom, Amount: delegation.Unbonding},
			})
		}
		delegation.Unbonding.Clear()
		delegation.CanRedelegate = delegation.Amount
		r.delegations[key] = delegation
	}
	return res
}

// Delegation returns the delegation of the given pair, if present.
func (r *Registry) Delegation(delegator, validator string) (Delegation, bool) {
	delegation, found := r.delegations[Key{delegator, validator}]
	return delegation, found
}

// Restore sets the delegation of the pair to a previously observed state.
func (r *Registry) Restore(key Key, delegation Delegation, found bool) {
	if !found {
		delete(r.delegations, key)
		return
	}
	r.delegations[key] = delegation
}

// Delegations returns the delegations of the delegator keyed by validator.
func (r *Registry) Delegations(delegator string) map[string]Delegation {
	res := map[string]Delegation{}
	for key, delegation := range r.delegations {
		if key.Delegator == delegator {
			res[key.Validator] = delegation
		}
	}
	return res
}

// Keys lists all delegations in order.
func (r *Registry) Keys() []Key {
	return r.sortedKeys()
}

func (r *Registry) sortedKeys() []Key {
	keys := maps.Keys(r.delegations)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Delegator != keys[j].Delegator {
			return keys[i].Delegator < keys[j].Delegator
		}
		return keys[i].Validator < keys[j].Validator
	})
	return keys
}

// ToWasm converts the delegation into a query result.
func (d Delegation) ToWasm(key Key, bondedDenom string) wasmvmtypes.Delegation {
	return wasmvmtypes.Delegation{
		Delegator: key.Delegator,
		Validator: key.Validator,
		Amount:    contract.Coin{Denom: bondedDenom, Amount: d.Amount}.ToWasm(),
	}
}

// ToWasmFull converts the delegation into a detailed query result.
func (d Delegation) ToWasmFull(key Key, bondedDenom string) wasmvmtypes.FullDelegation {
	return wasmvmtypes.FullDelegation{
		Delegator:          key.Delegator,
		Validator:          key.Validator,
		Amount:             contract.Coin{Denom: bondedDenom, Amount: d.Amount}.ToWasm(),
		AccumulatedRewards: []wasmvmtypes.Coin{contract.Coin{Denom: bondedDenom, Amount: d.Rewards}.ToWasm()},
		CanRedelegate:      contract.Coin{Denom: bondedDenom, Amount: d.CanRedelegate}.ToWasm(),
	}
}
