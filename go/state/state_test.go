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
	"errors"
	"fmt"
	"reflect"
	"testing"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/bank"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/staking"
	"github.com/holiman/uint256"
	"pgregory.net/rand"
)

type snapshot struct {
	Instances   []string
	Storages    map[string]map[string][]byte
	Balances    map[string][]contract.Coin
	Delegations map[staking.Key]staking.Delegation
}

func takeSnapshot(s *State) snapshot {
	res := snapshot{
		Storages:    map[string]map[string][]byte{},
		Balances:    map[string][]contract.Coin{},
		Delegations: map[staking.Key]staking.Delegation{},
	}
	for _, instance := range s.Instances() {
		res.Instances = append(res.Instances, instance.Address)
		res.Storages[instance.Address] = instance.Store.Dump()
	}
	for _, account := range s.Bank.Accounts() {
		res.Balances[account] = s.Bank.Balances(account)
	}
	for _, key := range s.Staking.Keys() {
		res.Delegations[key], _ = s.Staking.Delegation(key.Delegator, key.Validator)
	}
	return res
}

func newState(t *testing.T) *State {
	t.Helper()
	registry := staking.New("uscrt")
	for _, validator := range []string{"val1", "val2"} {
		if err := registry.AddValidator(wasmvmtypes.Validator{Address: validator}); err != nil {
			t.Fatalf("failed to add validator: %v", err)
		}
	}
	return New(bank.New(), registry)
}

func scrt(amount uint64) []contract.Coin {
	return []contract.Coin{contract.NewCoin(amount, "uscrt")}
}

func write(key, value string) func(*Store) error {
	return func(store *Store) error {
		store.Set([]byte(key), []byte(value))
		return nil
	}
}

func TestState_CreateContractInstanceRejectsDuplicates(t *testing.T) {
	s := newState(t)
	if err := s.CreateContractInstance("counter", 0, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.CreateContractInstance("counter", 1, "alice")
	if !errors.Is(err, contract.ErrDuplicateAddress) {
		t.Errorf("unexpected error, want %v, got %v", contract.ErrDuplicateAddress, err)
	}
	if want, got := contract.KindRegistry, contract.KindOf(err); want != got {
		t.Errorf("unexpected error kind, want %v, got %v", want, got)
	}
	instance, err := s.Instance("counter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(0), instance.CodeID; want != got {
		t.Errorf("unexpected code id, want %v, got %v", want, got)
	}
}

func TestState_UnknownAddressIsRegistryError(t *testing.T) {
	s := newState(t)
	err := s.BorrowStorageMut("nobody", write("a", "b"))
	if !errors.Is(err, contract.ErrUnknownAddress) || contract.KindOf(err) != contract.KindRegistry {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := s.Instance("nobody"); !errors.Is(err, contract.ErrUnknownAddress) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestState_RevertScopeRestoresPreviousState(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")
	s.BorrowStorageMut("counter", write("count", "1"))
	s.AddFunds("alice", scrt(100))
	before := takeSnapshot(s)

	s.PushScope()
	s.CreateContractInstance("multiplier", 1, "counter")
	s.BorrowStorageMut("multiplier", write("factor", "2"))
	s.BorrowStorageMut("counter", write("count", "2"))
	s.BorrowStorageMut("counter", write("other", "x"))
	s.TransferFunds("alice", "bob", scrt(40))
	s.AddFunds("alice", []contract.Coin{contract.NewCoin(5, "uatom")})
	s.Delegate("alice", "val1", contract.NewCoin(10, "uscrt"))
	s.RevertScope()

	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("state not restored, want %+v, got %+v", before, after)
	}
	if want, got := 0, s.ScopeDepth(); want != got {
		t.Errorf("unexpected scope depth, want %v, got %v", want, got)
	}
}

func TestState_RevertScopeOnlyUndoesInnermostScope(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")

	s.PushScope()
	s.BorrowStorageMut("counter", write("count", "1"))
	outer := takeSnapshot(s)
	s.PushScope()
	s.BorrowStorageMut("counter", write("count", "2"))
	s.RevertScope()

	if after := takeSnapshot(s); !reflect.DeepEqual(outer, after) {
		t.Errorf("unexpected state, want %+v, got %+v", outer, after)
	}
	s.RevertScope()
	instance, _ := s.Instance("counter")
	if got := instance.Store.Get([]byte("count")); got != nil {
		t.Errorf("outer scope not reverted: %v", got)
	}
}

func TestState_CommitScopeMergesIntoParent(t *testing.T) {
	s := newState(t)
	before := takeSnapshot(s)

	s.PushScope()
	s.PushScope()
	s.AddFunds("alice", scrt(10))
	s.CommitScope()
	if want, got := 1, s.ScopeDepth(); want != got {
		t.Fatalf("unexpected scope depth, want %v, got %v", want, got)
	}
	s.RevertScope()
	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("merged changes should be reverted with the parent, want %+v, got %+v", before, after)
	}
}

func TestState_CommitMakesChangesPermanent(t *testing.T) {
	s := newState(t)
	s.PushScope()
	s.PushScope()
	s.AddFunds("alice", scrt(10))
	s.Commit()
	if want, got := 0, s.ScopeDepth(); want != got {
		t.Fatalf("unexpected scope depth, want %v, got %v", want, got)
	}
	s.Revert()
	if want, got := uint64(10), s.Bank.Balance("alice", "uscrt"); want != got.Uint64() {
		t.Errorf("unexpected balance, want %v, got %v", want, got.Uint64())
	}
}

func TestState_ChangesWithoutScopeArePermanent(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")
	s.BorrowStorageMut("counter", write("count", "1"))
	s.PushScope()
	s.RevertScope()
	instance, _ := s.Instance("counter")
	if want, got := "1", string(instance.Store.Get([]byte("count"))); want != got {
		t.Errorf("unexpected value, want %v, got %v", want, got)
	}
}

func TestState_RevertScopeWithoutScopePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	newState(t).RevertScope()
}

func TestState_FailedTransferLeavesLedgerUnchanged(t *testing.T) {
	s := newState(t)
	s.AddFunds("alice", []contract.Coin{contract.NewCoin(100, "uscrt"), contract.NewCoin(1, "uatom")})
	s.PushScope()
	before := takeSnapshot(s)

	err := s.TransferFunds("alice", "bob", []contract.Coin{contract.NewCoin(60, "uscrt"), contract.NewCoin(2, "uatom")})
	var insufficient *bank.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := contract.KindBank, contract.KindOf(err); want != got {
		t.Errorf("unexpected error kind, want %v, got %v", want, got)
	}
	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("ledger modified by failed transfer, want %+v, got %+v", before, after)
	}
	if want, got := 1, s.ScopeDepth(); want != got {
		t.Errorf("unexpected scope depth, want %v, got %v", want, got)
	}
}

func TestState_RemoveFundsReportsInsufficientBalance(t *testing.T) {
	s := newState(t)
	s.AddFunds("alice", scrt(300))

	err := s.RemoveFunds("alice", scrt(500))
	var insufficient *bank.InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("unexpected error: %v", err)
	}
	if insufficient.Account != "alice" || insufficient.Denom != "uscrt" ||
		insufficient.Balance.Uint64() != 300 || insufficient.Required.Uint64() != 500 {
		t.Errorf("unexpected error details: %+v", insufficient)
	}
	if want, got := uint64(300), s.Bank.Balance("alice", "uscrt"); want != got.Uint64() {
		t.Errorf("unexpected balance, want %v, got %v", want, got.Uint64())
	}
}

func TestState_StakingOperationsAreRevertable(t *testing.T) {
	s := newState(t)
	s.AddFunds("alice", scrt(1000))
	s.Delegate("alice", "val1", contract.NewCoin(500, "uscrt"))
	s.DistributeRewards(contract.NewCoin(7, "uscrt"))
	before := takeSnapshot(s)

	s.PushScope()
	if err := s.Redelegate("alice", "val1", "val2", contract.NewCoin(100, "uscrt")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Undelegate("alice", "val1", contract.NewCoin(50, "uscrt")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rewards, err := s.WithdrawRewards("alice", "val1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := "7uscrt", rewards.String(); want != got {
		t.Errorf("unexpected rewards, want %v, got %v", want, got)
	}
	if _, err := s.FastForwardDelegationWaits(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.RevertScope()

	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("state not restored, want %+v, got %+v", before, after)
	}
}

func TestState_FailedDelegationRestoresBalance(t *testing.T) {
	s := newState(t)
	s.AddFunds("alice", scrt(100))
	before := takeSnapshot(s)

	err := s.Delegate("alice", "unknown", contract.NewCoin(10, "uscrt"))
	if !errors.Is(err, staking.ErrUnknownValidator) {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := contract.KindStaking, contract.KindOf(err); want != got {
		t.Errorf("unexpected error kind, want %v, got %v", want, got)
	}
	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("state modified by failed delegation, want %+v, got %+v", before, after)
	}
}

func TestState_FastForwardCreditsUnbondedFunds(t *testing.T) {
	s := newState(t)
	s.AddFunds("alice", scrt(100))
	s.Delegate("alice", "val1", contract.NewCoin(100, "uscrt"))
	s.Undelegate("alice", "val1", contract.NewCoin(30, "uscrt"))

	unbonded, err := s.FastForwardDelegationWaits()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 1, len(unbonded); want != got {
		t.Fatalf("unexpected number of unbondings, want %v, got %v", want, got)
	}
	if want, got := uint64(30), s.Bank.Balance("alice", "uscrt"); want != got.Uint64() {
		t.Errorf("unexpected balance, want %v, got %v", want, got.Uint64())
	}
}

func TestState_WritesOfFailingBorrowAreLogged(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")
	before := takeSnapshot(s)

	s.PushScope()
	err := s.BorrowStorageMut("counter", func(store *Store) error {
		store.Set([]byte("partial"), []byte("write"))
		return fmt.Errorf("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	s.RevertScope()
	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("partial write not reverted, want %+v, got %+v", before, after)
	}
}

func TestState_ReadOnlyBorrowPanicsOnWrites(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	s.BorrowStorage("counter", write("a", "b"))
}

func TestState_ReadOnlyBorrowInsideMutableBorrowKeepsPendingWrites(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")
	before := takeSnapshot(s)

	s.PushScope()
	err := s.BorrowStorageMut("counter", func(store *Store) error {
		store.Set([]byte("count"), []byte("1"))
		return s.BorrowStorage("counter", func(view *Store) error {
			if want, got := "1", string(view.Get([]byte("count"))); want != got {
				t.Errorf("unexpected value, want %v, got %v", want, got)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	instance, _ := s.Instance("counter")
	if want, got := 0, instance.Store.Pending(); want != got {
		t.Errorf("unexpected pending deltas, want %v, got %v", want, got)
	}
	s.RevertScope()
	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("write not reverted, want %+v, got %+v", before, after)
	}
}

func TestState_ReadOnlyBorrowInsideMutableBorrowPanicsOnWrites(t *testing.T) {
	s := newState(t)
	s.CreateContractInstance("counter", 0, "alice")
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	s.BorrowStorageMut("counter", func(store *Store) error {
		store.Set([]byte("count"), []byte("1"))
		return s.BorrowStorage("counter", write("a", "b"))
	})
}

func TestState_MultiCoinTransferIsRevertedAsAWhole(t *testing.T) {
	s := newState(t)
	s.AddFunds("alice", []contract.Coin{contract.NewCoin(100, "uscrt"), contract.NewCoin(10, "uatom")})
	s.AddFunds("bob", scrt(1))
	before := takeSnapshot(s)

	s.PushScope()
	coins := []contract.Coin{contract.NewCoin(40, "uscrt"), contract.NewCoin(10, "uatom"), contract.NewCoin(20, "uscrt")}
	if err := s.TransferFunds("alice", "bob", coins); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := uint64(61), s.Bank.Balance("bob", "uscrt"); want != got.Uint64() {
		t.Errorf("unexpected balance, want %v, got %v", want, got.Uint64())
	}
	if want, got := uint64(10), s.Bank.Balance("bob", "uatom"); want != got.Uint64() {
		t.Errorf("unexpected balance, want %v, got %v", want, got.Uint64())
	}
	s.RevertScope()
	if after := takeSnapshot(s); !reflect.DeepEqual(before, after) {
		t.Errorf("transfer not reverted, want %+v, got %+v", before, after)
	}
}

// TestState_RandomOperationsAreReverted applies random sequences of
// operations in nested scopes and checks that reverting them restores the
// exact previous state.
func TestState_RandomOperationsAreReverted(t *testing.T) {
	accounts := []string{"alice", "bob", "carol"}
	denoms := []string{"uscrt", "uatom"}
	keys := []string{"a", "b", "c", "d"}

	for seed := uint64(0); seed < 50; seed++ {
		t.Run(fmt.Sprintf("seed-%d", seed), func(t *testing.T) {
			random := rand.New(seed)
			s := newState(t)
			s.CreateContractInstance("c0", 0, "alice")
			s.AddFunds("alice", scrt(1000))

			pick := func(list []string) string {
				return list[random.Intn(len(list))]
			}
			randomOp := func() {
				amount := random.Uint64n(200)
				coin := contract.NewCoin(amount, pick(denoms))
				switch random.Intn(8) {
				case 0:
					s.CreateContractInstance(fmt.Sprintf("c%d", random.Intn(4)), 0, "alice")
				case 1:
					s.BorrowStorageMut(fmt.Sprintf("c%d", random.Intn(4)), write(pick(keys), fmt.Sprint(amount)))
				case 2:
					s.BorrowStorageMut("c0", func(store *Store) error {
						store.Delete([]byte(pick(keys)))
						return nil
					})
				case 3:
					s.AddFunds(pick(accounts), []contract.Coin{coin})
				case 4:
					s.RemoveFunds(pick(accounts), []contract.Coin{coin})
				case 5:
					s.TransferFunds(pick(accounts), pick(accounts), []contract.Coin{coin, contract.NewCoin(amount/2, pick(denoms))})
				case 6:
					s.Delegate(pick(accounts), pick([]string{"val1", "val2", "val3"}), contract.NewCoin(amount, "uscrt"))
				case 7:
					s.Redelegate(pick(accounts), "val1", "val2", contract.NewCoin(amount, "uscrt"))
				}
			}

			var snapshots []snapshot
			for depth := 0; depth < 4; depth++ {
				snapshots = append(snapshots, takeSnapshot(s))
				s.PushScope()
				for i := 0; i < 20; i++ {
					randomOp()
				}
			}
			for depth := len(snapshots) - 1; depth >= 0; depth-- {
				s.RevertScope()
				if got := takeSnapshot(s); !reflect.DeepEqual(snapshots[depth], got) {
					t.Fatalf("state not restored at depth %d, want %+v, got %+v", depth, snapshots[depth], got)
				}
			}
		})
	}
}

func TestState_DistributeRewardsRejectsForeignDenom(t *testing.T) {
	s := newState(t)
	err := s.DistributeRewards(contract.Coin{Denom: "uatom", Amount: *uint256.NewInt(1)})
	if !errors.Is(err, staking.ErrInvalidDenom) {
		t.Errorf("unexpected error, want %v, got %v", staking.ErrInvalidDenom, err)
	}
}
