// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package bank

import (
	"fmt"
	"sort"

	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

const (
	ErrUnknownAccount = contract.ConstError("unknown account")
	ErrOverflow       = contract.ConstError("balance overflow")
)

// InsufficientBalanceError is reported when an account holds less of a
// denomination than is requested.
type InsufficientBalanceError struct {
	Account  string
	Denom    string
	Balance  uint256.Int
	Required uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf(
		"insufficient balance for %s: account holds %s%s, required %s%s",
		e.Account, e.Balance.Dec(), e.Denom, e.Required.Dec(), e.Denom,
	)
}

// Ledger keeps the balances of all accounts.
type Ledger struct {
	balances map[string]map[string]uint256.Int
}

func New() *Ledger {
	return &Ledger{balances: map[string]map[string]uint256.Int{}}
}

// AddFunds credits the coin to the account. Overflows are reported and leave
// the ledger unchanged. The result indicates whether a new balance entry had
// to be created.
func (l *Ledger) AddFunds(address string, coin contract.Coin) (created bool, err error) {
	account, found := l.balances[address]
	if !found {
		account = map[string]uint256.Int{}
		l.balances[address] = account
	}
	current, found := account[coin.Denom]
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(&current, &coin.Amount); overflow {
		if len(account) == 0 {
			delete(l.balances, address)
		}
		return false, fmt.Errorf("%w: adding %v to %s", ErrOverflow, coin, address)
	}
	account[coin.Denom] = sum
	return !found, nil
}

// RemoveFunds debits the coin from the account. Balances reaching zero are
// kept.
func (l *Ledger) RemoveFunds(address string, coin contract.Coin) error {
	account, found := l.balances[address]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	current := account[coin.Denom]
	if current.Lt(&coin.Amount) {
		return &InsufficientBalanceError{
			Account:  address,
			Denom:    coin.Denom,
			Balance:  current,
			Required: coin.Amount,
		}
	}
	var rest uint256.Int
	rest.Sub(&current, &coin.Amount)
	account[coin.Denom] = rest
	return nil
}

// TransferCoin moves a single coin between accounts. The result indicates
// whether the receiver needed a new balance entry.
func (l *Ledger) TransferCoin(from, to string, coin contract.Coin) (created bool, err error) {
	if err := l.RemoveFunds(from, coin); err != nil {
		return false, err
	}
	created, err = l.AddFunds(to, coin)
	if err != nil {
		if _, restoreErr := l.AddFunds(from, coin); restoreErr != nil {
			panic(fmt.Sprintf("failed to restore balance of %s: %v", from, restoreErr))
		}
		return false, err
	}
	return created, nil
}

// Transfer moves all coins or none of them. The result reports, per coin,
// whether the receiver needed a new balance entry.
func (l *Ledger) Transfer(from, to string, coins []contract.Coin) ([]bool, error) {
	required := map[string]uint256.Int{}
	for _, coin := range coins {
		sum := required[coin.Denom]
		if _, overflow := sum.AddOverflow(&sum, &coin.Amount); overflow {
			return nil, fmt.Errorf("%w: transfer of %s from %s", ErrOverflow, coin.Denom, from)
		}
		required[coin.Denom] = sum
	}
	for _, denom := range sortedKeys(required) {
		amount := required[denom]
		if err := l.canRemove(from, contract.Coin{Denom: denom, Amount: amount}); err != nil {
			return nil, err
		}
	}

	created := make([]bool, 0, len(coins))
	for i, coin := range coins {
		isNew, err := l.TransferCoin(from, to, coin)
		if err != nil {
			for j := i - 1; j >= 0; j-- {
				if _, err := l.TransferCoin(to, from, coins[j]); err != nil {
					panic(fmt.Sprintf("failed to roll back transfer: %v", err))
				}
				if created[j] {
					l.Forget(to, coins[j].Denom)
				}
			}
			return nil, err
		}
		created = append(created, isNew)
	}
	return created, nil
}

func (l *Ledger) canRemove(address string, coin contract.Coin) error {
	account, found := l.balances[address]
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownAccount, address)
	}
	current := account[coin.Denom]
	if current.Lt(&coin.Amount) {
		return &InsufficientBalanceError{Account: address, Denom: coin.Denom, Balance: current, Required: coin.Amount}
	}
	return nil
}

// Forget drops the balance entry of the given denomination and the account
// itself once it holds no entries. It is used to undo the creation of
// entries.
func (l *Ledger) Forget(address, denom string) {
	account, found := l.balances[address]
	if !found {
		return
	}
	delete(account, denom)
	if len(account) == 0 {
		delete(l.balances, address)
	}
}

// Balance returns the amount of the denomination held by the account.
func (l *Ledger) Balance(address, denom string) uint256.Int {
	return l.balances[address][denom]
}

// HasAccount reports whether any balance was ever recorded for the address.
func (l *Ledger) HasAccount(address string) bool {
	_, found := l.balances[address]
	return found
}

// Balances returns all balances of the account ordered by denomination.
func (l *Ledger) Balances(address string) []contract.Coin {
	account := l.balances[address]
	res := make([]contract.Coin, 0, len(account))
	for _, denom := range sortedKeys(account) {
		res = append(res, contract.Coin{Denom: denom, Amount: account[denom]})
	}
	return res
}

// Accounts lists all known accounts in order.
func (l *Ledger) Accounts() []string {
	return sortedKeys(l.balances)
}

// Supply sums the balances of the denomination over all accounts.
func (l *Ledger) Supply(denom string) uint256.Int {
	var sum uint256.Int
	for _, account := range l.balances {
		amount := account[denom]
		sum.Add(&sum, &amount)
	}
	return sum
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}
