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
	"fmt"

	"github.com/Fantom-foundation/Ensemble/go/bank"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/staking"
)

// Op is a single logged mutation. Undoing it restores the state observed
// right before the mutation was applied.
type Op interface {
	undo(*State)
}

type CreateInstanceOp struct {
	Address string
}

type StorageWriteOp struct {
	Instance int
	Delta    Delta
}

type BankAddFundsOp struct {
	Address string
	Coin    contract.Coin
	Created bool
}

type BankRemoveFundsOp struct {
	Address string
	Coin    contract.Coin
}

type BankTransferFundsOp struct {
	From, To string
	Coin     contract.Coin
	Created  bool
}

type StakingWriteOp struct {
	Key      staking.Key
	Previous staking.Delegation
	Existed  bool
}

func (op CreateInstanceOp) undo(s *State) {
	last := len(s.instances) - 1
	if last < 0 || s.instances[last].Address != op.Address {
		panic(fmt.Sprintf("undo of instance creation out of order: %s", op.Address))
	}
	s.instances = s.instances[:last]
	delete(s.index, op.Address)
}

func (op StorageWriteOp) undo(s *State) {
	s.instances[op.Instance].Store.restore(op.Delta)
}

func (op BankAddFundsOp) undo(s *State) {
	if err := s.Bank.RemoveFunds(op.Address, op.Coin); err != nil {
		panic(fmt.Sprintf("failed to undo adding funds: %v", err))
	}
	if op.Created {
		s.Bank.Forget(op.Address, op.Coin.Denom)
	}
}

func (op BankRemoveFundsOp) undo(s *State) {
	if _, err := s.Bank.AddFunds(op.Address, op.Coin); err != nil {
		panic(fmt.Sprintf("failed to undo removing funds: %v", err))
	}
}

func (op BankTransferFundsOp) undo(s *State) {
	if _, err := s.Bank.TransferCoin(op.To, op.From, op.Coin); err != nil {
		panic(fmt.Sprintf("failed to undo transfer: %v", err))
	}
	if op.Created {
		s.Bank.Forget(op.To, op.Coin.Denom)
	}
}

func (op StakingWriteOp) undo(s *State) {
	s.Staking.Restore(op.Key, op.Previous, op.Existed)
}

// Instance is a contract instance. Instances are kept in an arena and
// referenced by index from the undo log.
type Instance struct {
	Address string
	CodeID  uint64
	Creator string
	Store   *Store
}

type scope []Op

// State owns all contract storages, the ledger and the staking registry.
// Every mutation performed through it is logged in the innermost open
// scope. Mutations performed while no scope is open are permanent.
type State struct {
	Bank    *bank.Ledger
	Staking *staking.Registry

	instances []*Instance
	index     map[string]int
	scopes    []scope
}

func New(ledger *bank.Ledger, registry *staking.Registry) *State {
	return &State{
		Bank:    ledger,
		Staking: registry,
		index:   map[string]int{},
	}
}

// PushScope opens a new innermost scope.
func (s *State) PushScope() {
	s.scopes = append(s.scopes, nil)
}

// ScopeDepth returns the number of open scopes.
func (s *State) ScopeDepth() int {
	return len(s.scopes)
}

// CommitScope closes the innermost scope keeping its changes. They become
// part of the enclosing scope, or permanent if there is none.
func (s *State) CommitScope() {
	top := s.popScope()
	if len(s.scopes) > 0 {
		s.scopes[len(s.scopes)-1] = append(s.scopes[len(s.scopes)-1], top...)
	}
}

// RevertScope closes the innermost scope undoing all of its changes.
func (s *State) RevertScope() {
	top := s.popScope()
	for i := len(top) - 1; i >= 0; i-- {
		top[i].undo(s)
	}
}

// Commit makes all changes permanent and closes all scopes.
func (s *State) Commit() {
	s.scopes = nil
}

// Revert undoes the changes of all open scopes.
func (s *State) Revert() {
	for len(s.scopes) > 0 {
		s.RevertScope()
	}
}

func (s *State) popScope() scope {
	if len(s.scopes) == 0 {
		panic("no open scope")
	}
	last := len(s.scopes) - 1
	top := s.scopes[last]
	s.scopes = s.scopes[:last]
	return top
}

func (s *State) record(op Op) {
	if len(s.scopes) == 0 {
		return
	}
	s.scopes[len(s.scopes)-1] = append(s.scopes[len(s.scopes)-1], op)
}

// CreateContractInstance creates an instance with empty storage.
func (s *State) CreateContractInstance(address string, codeID uint64, creator string) error {
	if _, found := s.index[address]; found {
		return contract.NewRegistryError(fmt.Errorf("%w: %s", contract.ErrDuplicateAddress, address))
	}
	s.index[address] = len(s.instances)
	s.instances = append(s.instances, &Instance{
		Address: address,
		CodeID:  codeID,
		Creator: creator,
		Store:   NewStore(),
	})
	s.record(CreateInstanceOp{Address: address})
	return nil
}

// Instance looks up the instance at the given address.
func (s *State) Instance(address string) (*Instance, error) {
	i, found := s.index[address]
	if !found {
		return nil, contract.NewRegistryError(fmt.Errorf("%w: %s", contract.ErrUnknownAddress, address))
	}
	return s.instances[i], nil
}

// Instances lists all instances in creation order.
func (s *State) Instances() []*Instance {
	return append([]*Instance(nil), s.instances...)
}

// BorrowStorage gives f read-only access to the storage of a contract.
func (s *State) BorrowStorage(address string, f func(store *Store) error) error {
	i, found := s.index[address]
	if !found {
		return contract.NewRegistryError(fmt.Errorf("%w: %s", contract.ErrUnknownAddress, address))
	}
	store := s.instances[i].Store
	// The store may be borrowed mutably further up the stack, e.g. when a
	// contract queries itself. Its pending deltas belong to that borrow.
	pending := store.Pending()
	defer func() {
		if modified := store.Pending() - pending; modified != 0 {
			panic(fmt.Sprintf("read-only access to %s modified %d keys", address, modified))
		}
	}()
	return f(store)
}

// BorrowStorageMut gives f write access to the storage of a contract. All
// writes are logged, including those performed before f failed.
func (s *State) BorrowStorageMut(address string, f func(store *Store) error) error {
	i, found := s.index[address]
	if !found {
		return contract.NewRegistryError(fmt.Errorf("%w: %s", contract.ErrUnknownAddress, address))
	}
	store := s.instances[i].Store
	defer func() {
		for _, delta := range store.Harvest() {
			s.record(StorageWriteOp{Instance: i, Delta: delta})
		}
	}()
	return f(store)
}

// AddFunds credits all coins or none of them.
func (s *State) AddFunds(address string, coins []contract.Coin) error {
	return s.inScope(func() error {
		for _, coin := range coins {
			created, err := s.Bank.AddFunds(address, coin)
			if err != nil {
				return contract.NewBankError(err)
			}
			s.record(BankAddFundsOp{Address: address, Coin: coin, Created: created})
		}
		return nil
	})
}

// RemoveFunds debits all coins or none of them.
func (s *State) RemoveFunds(address string, coins []contract.Coin) error {
	return s.inScope(func() error {
		for _, coin := range coins {
			if err := s.Bank.RemoveFunds(address, coin); err != nil {
				return contract.NewBankError(err)
			}
			s.record(BankRemoveFundsOp{Address: address, Coin: coin})
		}
		return nil
	})
}

// TransferFunds moves all coins or none of them.
func (s *State) TransferFunds(from, to string, coins []contract.Coin) error {
	return s.inScope(func() error {
		created, err := s.Bank.Transfer(from, to, coins)
		if err != nil {
			return contract.NewBankError(err)
		}
		for i, coin := range coins {
			s.record(BankTransferFundsOp{From: from, To: to, Coin: coin, Created: created[i]})
		}
		return nil
	})
}

// Delegate bonds the coin taking it from the delegator's balance.
func (s *State) Delegate(delegator, validator string, coin contract.Coin) error {
	return s.inScope(func() error {
		if err := s.RemoveFunds(delegator, []contract.Coin{coin}); err != nil {
			return err
		}
		return s.writeDelegations(func() error {
			return s.Staking.Delegate(delegator, validator, coin)
		}, staking.Key{Delegator: delegator, Validator: validator})
	})
}

// Undelegate starts unbonding the coin.
func (s *State) Undelegate(delegator, validator string, coin contract.Coin) error {
	return s.writeDelegations(func() error {
		return s.Staking.Undelegate(delegator, validator, coin)
	}, staking.Key{Delegator: delegator, Validator: validator})
}

// Redelegate moves bonded funds between validators.
func (s *State) Redelegate(delegator, src, dst string, coin contract.Coin) error {
	return s.writeDelegations(func() error {
		return s.Staking.Redelegate(delegator, src, dst, coin)
	}, staking.Key{Delegator: delegator, Validator: src}, staking.Key{Delegator: delegator, Validator: dst})
}

// WithdrawRewards claims the rewards of a delegation and credits them to the
// delegator.
func (s *State) WithdrawRewards(delegator, validator string) (contract.Coin, error) {
	var rewards contract.Coin
	err := s.inScope(func() error {
		err := s.writeDelegations(func() error {
			var err error
			rewards, err = s.Staking.Withdraw(delegator, validator)
			return err
		}, staking.Key{Delegator: delegator, Validator: validator})
		if err != nil {
			return err
		}
		return s.AddFunds(delegator, []contract.Coin{rewards})
	})
	return rewards, err
}

// FastForwardDelegationWaits completes all unbondings and credits the
// released funds.
func (s *State) FastForwardDelegationWaits() ([]staking.Unbonded, error) {
	var unbonded []staking.Unbonded
	err := s.inScope(func() error {
		err := s.writeDelegations(func() error {
			unbonded = s.Staking.FastForwardWaits()
			return nil
		}, s.Staking.Keys()...)
		if err != nil {
			return err
		}
		for _, u := range unbonded {
			if err := s.AddFunds(u.Delegator, []contract.Coin{u.Coin}); err != nil {
				return err
			}
		}
		return nil
	})
	return unbonded, err
}

// DistributeRewards adds the rewards amount to every delegation.
func (s *State) DistributeRewards(amount contract.Coin) error {
	if amount.Denom != s.Staking.BondedDenom() {
		return contract.NewStakingError(fmt.Errorf("%w: rewards in %s", staking.ErrInvalidDenom, amount.Denom))
	}
	return s.writeDelegations(func() error {
		s.Staking.DistributeRewards(amount.Amount)
		return nil
	}, s.Staking.Keys()...)
}

// writeDelegations logs the current state of the given delegations and runs
// f. Nothing is logged if f fails, since staking operations fail atomically.
func (s *State) writeDelegations(f func() error, keys ...staking.Key) error {
	ops := make([]Op, 0, len(keys))
	for _, key := range keys {
		previous, existed := s.Staking.Delegation(key.Delegator, key.Validator)
		ops = append(ops, StakingWriteOp{Key: key, Previous: previous, Existed: existed})
	}
	if err := f(); err != nil {
		return contract.NewStakingError(err)
	}
	for _, op := range ops {
		s.record(op)
	}
	return nil
}

// inScope runs f in its own scope, which is merged into the enclosing scope
// on success and reverted on failure.
func (s *State) inScope(f func() error) error {
	s.PushScope()
	if err := f(); err != nil {
		s.RevertScope()
		return err
	}
	s.CommitScope()
	return nil
}
