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
	"fmt"
	"maps"
	"sort"

	"github.com/Fantom-foundation/Ensemble/go/ensemble"
	"github.com/Fantom-foundation/Ensemble/go/staking"
	"github.com/holiman/uint256"
)

// ----------------------------------------------------------------------------
// WorldState
// ----------------------------------------------------------------------------

// WorldState models the state of a simulated chain for testing: balances,
// contract storages and delegations, keyed by address.
type WorldState map[string]Account

// Snapshot captures the current state of the given ensemble.
func Snapshot(e *ensemble.ContractEnsemble) WorldState {
	res := WorldState{}
	get := func(address string) Account {
		account, found := res[address]
		if !found {
			account = Account{
				Balances:    Balances{},
				Storage:     Storage{},
				Delegations: map[string]staking.Delegation{},
			}
		}
		return account
	}
	chain := e.State()
	for _, address := range chain.Bank.Accounts() {
		account := get(address)
		for _, coin := range chain.Bank.Balances(address) {
			account.Balances[coin.Denom] = coin.Amount
		}
		res[address] = account
	}
	for _, instance := range chain.Instances() {
		account := get(instance.Address)
		account.CodeID = instance.CodeID
		for key, value := range instance.Store.Dump() {
			account.Storage[key] = string(value)
		}
		res[instance.Address] = account
	}
	for _, key := range chain.Staking.Keys() {
		delegation, _ := chain.Staking.Delegation(key.Delegator, key.Validator)
		account := get(key.Delegator)
		account.Delegations[key.Validator] = delegation
		res[key.Delegator] = account
	}
	return res
}

func (s WorldState) Equal(other WorldState) bool {
	return equalMapsIgnoringZero(s, other, func(a, b Account) bool {
		return a.Equal(&b)
	})
}

func (s WorldState) Clone() WorldState {
	if s == nil {
		return nil
	}
	res := make(WorldState, len(s))
	for k, v := range s {
		res[k] = v.Clone()
	}
	return res
}

// Diff lists the differences between the two states in a stable order.
func (s WorldState) Diff(other WorldState) []string {
	res := diffMaps("", s, other, func(address string, a, b Account) []string {
		if a.Equal(&b) {
			return nil
		}
		return a.Diff(fmt.Sprintf("%v/", address), &b)
	})
	sort.Strings(res)
	return res
}

// ----------------------------------------------------------------------------
// Account
// ----------------------------------------------------------------------------

// Account represents an address in the world state. The default account is
// an empty account, that is ignored by the world state.
type Account struct {
	Balances    Balances
	CodeID      uint64
	Storage     Storage
	Delegations map[string]staking.Delegation
}

func (a *Account) Equal(other *Account) bool {
	return a.CodeID == other.CodeID &&
		a.Balances.Equal(other.Balances) &&
		a.Storage.Equal(other.Storage) &&
		equalMapsIgnoringZero(a.Delegations, other.Delegations, func(x, y staking.Delegation) bool {
			return x == y
		})
}

func (a *Account) Clone() Account {
	return Account{
		Balances:    maps.Clone(a.Balances),
		CodeID:      a.CodeID,
		Storage:     maps.Clone(a.Storage),
		Delegations: maps.Clone(a.Delegations),
	}
}

func (a *Account) Diff(prefix string, other *Account) []string {
	var res []string
	if a.CodeID != other.CodeID {
		res = append(res, fmt.Sprintf("different code id: %d != %d", a.CodeID, other.CodeID))
	}
	res = append(res, a.Balances.Diff("Balances/", other.Balances)...)
	res = append(res, a.Storage.Diff("Storage/", other.Storage)...)
	res = append(res, diffMaps("Delegations/", a.Delegations, other.Delegations, func(v string, x, y staking.Delegation) []string {
		if x == y {
			return nil
		}
		return []string{fmt.Sprintf("different delegation to %s: %+v != %+v", v, x, y)}
	})...)
	for i, diff := range res {
		res[i] = prefix + diff
	}
	return res
}

// ----------------------------------------------------------------------------
// Balances
// ----------------------------------------------------------------------------

// Balances maps denominations to amounts. Zero balances are ignored.
type Balances map[string]uint256.Int

func (b Balances) Equal(other Balances) bool {
	return equalMapsIgnoringZero(b, other, func(x, y uint256.Int) bool {
		return x == y
	})
}

func (b Balances) Diff(prefix string, other Balances) []string {
	return diffMaps(prefix, b, other, func(denom string, x, y uint256.Int) []string {
		if x == y {
			return nil
		}
		return []string{fmt.Sprintf("different balance of %s: %s != %s", denom, x.Dec(), y.Dec())}
	})
}

// ----------------------------------------------------------------------------
// Storage
// ----------------------------------------------------------------------------

// Storage represents the storage of a contract instance.
type Storage map[string]string

func (s Storage) Equal(other Storage) bool {
	return equalMapsIgnoringZero(s, other, func(a, b string) bool {
		return a == b
	})
}

func (s Storage) Diff(prefix string, other Storage) []string {
	return diffMaps(prefix, s, other, func(k string, a, b string) []string {
		if a == b {
			return nil
		}
		return []string{
			fmt.Sprintf("different value for key %q: %q != %q", k, a, b),
		}
	})
}

// ----------------------------------------------------------------------------
// Helpers
// ----------------------------------------------------------------------------

// equalMapsIgnoringZero compares two maps, ignoring zero-valued entries.
func equalMapsIgnoringZero[K comparable, V any](a, b map[K]V, equal func(V, V) bool) bool {
	for k, v := range a {
		if !equal(v, b[k]) {
			return false
		}
	}
	for k, v := range b {
		if !equal(v, a[k]) {
			return false
		}
	}
	return true
}

// diffMaps compares two maps and returns a list of differences.
func diffMaps[K comparable, V any](prefix string, a, b map[K]V, diff func(K, V, V) []string) []string {
	var diffs []string
	for k, v := range a {
		diffs = append(diffs, diff(k, v, b[k])...)
	}
	for k, v := range b {
		if _, overlap := a[k]; !overlap {
			diffs = append(diffs, diff(k, a[k], v)...)
		}
	}
	for i, diff := range diffs {
		diffs[i] = prefix + diff
	}
	return diffs
}
