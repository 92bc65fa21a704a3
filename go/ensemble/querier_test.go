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
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"go.uber.org/mock/gomock"
)

type countResponse struct {
	Count int `json:"count"`
}

func TestQuery_ResultsAreCachedUntilStateChanges(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "counter")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), []byte(`{"get_count":{}}`)).
		Return([]byte(`{"count":3}`), nil).Times(2)

	for i := 0; i < 2; i++ {
		res, err := QueryJSON[countResponse](e, "counter", map[string]any{"get_count": struct{}{}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want, got := 3, res.Count; want != got {
			t.Errorf("unexpected count, want %d, got %d", want, got)
		}
	}
	if err := e.AddFunds("alice", uscrt(1)); err != nil {
		t.Fatalf("failed to add funds: %v", err)
	}
	if _, err := e.Query("counter", []byte(`{"get_count":{}}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQuery_WithoutCacheAlwaysAsksContract(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	config := DefaultConfig()
	config.QueryCacheSize = 0
	e := newTestEnsemble(t, WithConfig(config))
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "counter")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte("1"), nil).Times(3)
	for i := 0; i < 3; i++ {
		if _, err := e.Query("counter", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}

func TestQuery_StorageIsReadOnly(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "counter")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(deps contract.Deps, _ wasmvmtypes.Env, _ []byte) ([]byte, error) {
			deps.Storage.Set([]byte("key"), []byte("value"))
			return nil, nil
		})

	_, err := e.Query("counter", nil)
	if !errors.Is(err, contract.ErrReadOnlyStorage) {
		t.Errorf("unexpected error, want %v, got %v", contract.ErrReadOnlyStorage, err)
	}
	if value := getValue(t, e, "counter", "key"); value != nil {
		t.Errorf("query modified storage, got %q", value)
	}
}

func TestQuery_UnknownAddressIsRegistryError(t *testing.T) {
	e := newTestEnsemble(t)
	_, err := e.Query("nobody", nil)
	if !errors.Is(err, contract.ErrUnknownAddress) {
		t.Errorf("unexpected error, want %v, got %v", contract.ErrUnknownAddress, err)
	}
	if want, got := contract.KindRegistry, contract.KindOf(err); want != got {
		t.Errorf("unexpected error kind, want %v, got %v", want, got)
	}
}

func TestQuery_ContractErrorsAreClassified(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "counter")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("unknown query"))
	_, err := e.Query("counter", nil)
	if !contract.IsContractError(err) {
		t.Errorf("expected contract error, got %v", err)
	}
}

func TestQuerier_AnswersChainQueries(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "counter")
	if err := e.AddFunds("alice", uscrt(300), contract.NewCoin(7, "uatom")); err != nil {
		t.Fatalf("failed to add funds: %v", err)
	}
	if err := e.AddValidator(wasmvmtypes.Validator{Address: "val", Commission: "0.05"}); err != nil {
		t.Fatalf("failed to add validator: %v", err)
	}
	if err := e.ContractStorageMut("counter", func(store wasmvmtypes.KVStore) error {
		store.Set([]byte("raw"), []byte("value"))
		return nil
	}); err != nil {
		t.Fatalf("failed to write storage: %v", err)
	}
	harness.EXPECT().Query(gomock.Any(), gomock.Any(), []byte("smart")).Return([]byte(`"pong"`), nil)

	q := &querier{ensemble: e}
	query := func(request wasmvmtypes.QueryRequest, result any) {
		t.Helper()
		data, err := q.Query(request, 0)
		if err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if result == nil {
			return
		}
		if err := json.Unmarshal(data, result); err != nil {
			t.Fatalf("failed to decode %s: %v", data, err)
		}
	}

	var balance wasmvmtypes.BalanceResponse
	query(wasmvmtypes.QueryRequest{Bank: &wasmvmtypes.BankQuery{
		Balance: &wasmvmtypes.BalanceQuery{Address: "alice", Denom: "uscrt"},
	}}, &balance)
	if want, got := "300", balance.Amount.Amount; want != got {
		t.Errorf("unexpected balance, want %s, got %s", want, got)
	}

	var all wasmvmtypes.AllBalancesResponse
	query(wasmvmtypes.QueryRequest{Bank: &wasmvmtypes.BankQuery{
		AllBalances: &wasmvmtypes.AllBalancesQuery{Address: "alice"},
	}}, &all)
	if want, got := 2, len(all.Amount); want != got {
		t.Errorf("unexpected number of balances, want %d, got %d", want, got)
	}

	var denom wasmvmtypes.BondedDenomResponse
	query(wasmvmtypes.QueryRequest{Staking: &wasmvmtypes.StakingQuery{BondedDenom: &struct{}{}}}, &denom)
	if want, got := "uscrt", denom.Denom; want != got {
		t.Errorf("unexpected bonded denom, want %s, got %s", want, got)
	}

	var validator wasmvmtypes.ValidatorResponse
	query(wasmvmtypes.QueryRequest{Staking: &wasmvmtypes.StakingQuery{
		Validator: &wasmvmtypes.ValidatorQuery{Address: "val"},
	}}, &validator)
	if validator.Validator == nil || validator.Validator.Commission != "0.05" {
		t.Errorf("unexpected validator, got %+v", validator.Validator)
	}

	var delegation wasmvmtypes.DelegationResponse
	query(wasmvmtypes.QueryRequest{Staking: &wasmvmtypes.StakingQuery{
		Delegation: &wasmvmtypes.DelegationQuery{Delegator: "alice", Validator: "val"},
	}}, &delegation)
	if delegation.Delegation != nil {
		t.Errorf("unexpected delegation, got %+v", delegation.Delegation)
	}

	var info wasmvmtypes.ContractInfoResponse
	query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
		ContractInfo: &wasmvmtypes.ContractInfoQuery{ContractAddr: "counter"},
	}}, &info)
	if want, got := codeID, info.CodeID; want != got {
		t.Errorf("unexpected code id, want %d, got %d", want, got)
	}
	if want, got := "admin", info.Creator; want != got {
		t.Errorf("unexpected creator, want %s, got %s", want, got)
	}

	raw, err := q.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
		Raw: &wasmvmtypes.RawQuery{ContractAddr: "counter", Key: []byte("raw")},
	}}, 0)
	if err != nil || string(raw) != "value" {
		t.Errorf("unexpected raw value, want value, got %q (%v)", raw, err)
	}

	smart, err := q.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
		Smart: &wasmvmtypes.SmartQuery{ContractAddr: "counter", Msg: []byte("smart")},
	}}, 0)
	if err != nil || string(smart) != `"pong"` {
		t.Errorf("unexpected smart result, want \"pong\", got %q (%v)", smart, err)
	}
}

func TestQuerier_ErrorsLoseClassification(t *testing.T) {
	e := newTestEnsemble(t)
	q := &querier{ensemble: e}
	_, err := q.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
		Smart: &wasmvmtypes.SmartQuery{ContractAddr: "nobody"},
	}}, 0)
	if err == nil {
		t.Fatalf("expected query to fail")
	}
	if !contract.IsContractError(err) {
		t.Errorf("query errors must be catchable when returned by a contract, got kind %v", contract.KindOf(err))
	}

	_, err = q.Query(wasmvmtypes.QueryRequest{Custom: json.RawMessage(`{}`)}, 0)
	if err == nil {
		t.Errorf("expected custom query to be unsupported")
	}
}

func TestQuerier_ContractsSeeUncommittedState(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "alpha")
	if err := e.AddFunds("alice", uscrt(100)); err != nil {
		t.Fatalf("failed to add funds: %v", err)
	}

	harness.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(deps contract.Deps, env wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, _ []byte) (wasmvmtypes.Response, error) {
			data, err := deps.Querier.Query(wasmvmtypes.QueryRequest{Bank: &wasmvmtypes.BankQuery{
				Balance: &wasmvmtypes.BalanceQuery{Address: env.Contract.Address, Denom: "uscrt"},
			}}, 0)
			return wasmvmtypes.Response{Data: data}, err
		})

	response, err := e.Execute(nil, contract.NewMockEnv("alice", "alpha").WithFunds(uscrt(40)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var balance wasmvmtypes.BalanceResponse
	if err := json.Unmarshal(response.Data, &balance); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
	if want, got := "40", balance.Amount.Amount; want != got {
		t.Errorf("unexpected balance seen by contract, want %s, got %s", want, got)
	}
}

func TestQuery_CacheKeepsAddressAndMessageApart(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "a")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), []byte("\x00b")).Return([]byte("cached"), nil)
	if _, err := e.Query("a", []byte("\x00b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := e.Query("a\x00", []byte("b"))
	if !errors.Is(err, contract.ErrUnknownAddress) {
		t.Errorf("unexpected error, want %v, got %v", contract.ErrUnknownAddress, err)
	}
}

func TestQuery_CachedResultsDependOnBlock(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "clock")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ contract.Deps, env wasmvmtypes.Env, _ []byte) ([]byte, error) {
			return []byte(strconv.FormatUint(env.Block.Height, 10)), nil
		}).Times(3)

	query := func() string {
		t.Helper()
		res, err := e.Query("clock", []byte("height"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return string(res)
	}

	block := e.Block()
	first := query()
	if want, got := first, query(); want != got {
		t.Errorf("unexpected cached result, want %v, got %v", want, got)
	}

	block.Height += 5
	if want, got := strconv.FormatUint(block.Height, 10), query(); want != got {
		t.Errorf("stale result after block change, want %v, got %v", want, got)
	}

	e.State()
	query()
}

func TestQuerier_ContractsCanQueryThemselvesDuringExecution(t *testing.T) {
	ctrl := gomock.NewController(t)
	harness := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	codeID := e.Register(harness)
	instantiate(t, e, harness, codeID, "alpha")

	harness.EXPECT().Query(gomock.Any(), gomock.Any(), []byte("count")).
		DoAndReturn(func(deps contract.Deps, _ wasmvmtypes.Env, _ []byte) ([]byte, error) {
			return deps.Storage.Get([]byte("count")), nil
		})
	harness.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(deps contract.Deps, env wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, _ []byte) (wasmvmtypes.Response, error) {
			deps.Storage.Set([]byte("count"), []byte("1"))
			raw, err := deps.Querier.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
				Raw: &wasmvmtypes.RawQuery{ContractAddr: env.Contract.Address, Key: []byte("count")},
			}}, 0)
			if err != nil {
				return wasmvmtypes.Response{}, err
			}
			smart, err := deps.Querier.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
				Smart: &wasmvmtypes.SmartQuery{ContractAddr: env.Contract.Address, Msg: []byte("count")},
			}}, 0)
			if err != nil {
				return wasmvmtypes.Response{}, err
			}
			deps.Storage.Set([]byte("count"), []byte("2"))
			return wasmvmtypes.Response{Data: []byte(string(raw) + "/" + string(smart))}, nil
		})

	response, err := e.Execute(nil, contract.NewMockEnv("alice", "alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := "1/1", string(response.Data); want != got {
		t.Errorf("unexpected values seen by queries, want %v, got %v", want, got)
	}
	if want, got := "2", string(getValue(t, e, "alpha", "count")); want != got {
		t.Errorf("unexpected stored value, want %v, got %v", want, got)
	}
}

func TestQuerier_ReentrantQueriesSeePendingWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	alpha := contract.NewMockHarness(ctrl)
	beta := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	alphaID := e.Register(alpha)
	betaID := e.Register(beta)
	instantiate(t, e, alpha, alphaID, "alpha")
	instantiate(t, e, beta, betaID, "beta")

	beta.EXPECT().Query(gomock.Any(), gomock.Any(), []byte("peek")).
		DoAndReturn(func(deps contract.Deps, _ wasmvmtypes.Env, _ []byte) ([]byte, error) {
			return deps.Querier.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
				Raw: &wasmvmtypes.RawQuery{ContractAddr: "alpha", Key: []byte("x")},
			}}, 0)
		})
	alpha.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, _ []byte) (wasmvmtypes.Response, error) {
			deps.Storage.Set([]byte("x"), []byte("pending"))
			data, err := deps.Querier.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
				Smart: &wasmvmtypes.SmartQuery{ContractAddr: "beta", Msg: []byte("peek")},
			}}, 0)
			return wasmvmtypes.Response{Data: data}, err
		})

	response, err := e.Execute(nil, contract.NewMockEnv("alice", "alpha"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := "pending", string(response.Data); want != got {
		t.Errorf("unexpected value seen by beta, want %v, got %v", want, got)
	}
	if want, got := "pending", string(getValue(t, e, "alpha", "x")); want != got {
		t.Errorf("unexpected stored value, want %v, got %v", want, got)
	}
}

func TestQuerier_WritesBeforeSelfQueryAreRevertedOnCaughtFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	parent := contract.NewMockHarness(ctrl)
	replier := contract.NewMockReplier(ctrl)
	child := contract.NewMockHarness(ctrl)
	e := newTestEnsemble(t)
	parentID := e.Register(replyingHarness{parent, replier})
	childID := e.Register(child)
	instantiate(t, e, parent, parentID, "alpha")
	instantiate(t, e, child, childID, "beta")

	parent.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), []byte("go")).
		Return(wasmvmtypes.Response{Messages: []wasmvmtypes.SubMsg{executeMsg("beta", "fail", 1, "error")}}, nil)
	child.EXPECT().Execute(gomock.Any(), gomock.Any(), gomock.Any(), []byte("fail")).
		DoAndReturn(func(deps contract.Deps, env wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, _ []byte) (wasmvmtypes.Response, error) {
			deps.Storage.Set([]byte("b"), []byte("1"))
			value, err := deps.Querier.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
				Raw: &wasmvmtypes.RawQuery{ContractAddr: env.Contract.Address, Key: []byte("b")},
			}}, 0)
			if err != nil {
				return wasmvmtypes.Response{}, err
			}
			if want, got := "1", string(value); want != got {
				t.Errorf("unexpected value seen by child, want %v, got %v", want, got)
			}
			deps.Storage.Set([]byte("c"), []byte("1"))
			return wasmvmtypes.Response{}, errors.New("boom")
		})
	replier.EXPECT().Reply(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.Reply) (wasmvmtypes.Response, error) {
			value, err := deps.Querier.Query(wasmvmtypes.QueryRequest{Wasm: &wasmvmtypes.WasmQuery{
				Raw: &wasmvmtypes.RawQuery{ContractAddr: "beta", Key: []byte("b")},
			}}, 0)
			if err != nil {
				return wasmvmtypes.Response{}, err
			}
			if value != nil {
				t.Errorf("reply observed reverted write, got %q", value)
			}
			return wasmvmtypes.Response{}, nil
		})

	if _, err := e.Execute([]byte("go"), contract.NewMockEnv("alice", "alpha")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"b", "c"} {
		if value := getValue(t, e, "beta", key); value != nil {
			t.Errorf("write of %s was not reverted, got %q", key, value)
		}
	}
}
