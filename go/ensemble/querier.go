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
	"fmt"
	"sort"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/staking"
	"github.com/Fantom-foundation/Ensemble/go/state"
	"golang.org/x/exp/maps"
)

// queryKey identifies a cached query result. Queries see the block through
// their env, so results are only reused within the same block.
type queryKey struct {
	address string
	msg     string
	height  uint64
	time    uint64
}

// Query runs a smart query against the instance at address. Results are
// cached until the next state change.
func (e *ContractEnsemble) Query(address string, msg []byte) ([]byte, error) {
	key := queryKey{address: address, msg: string(msg), height: e.block.Height, time: e.block.Time}
	if e.cache != nil {
		if res, found := e.cache.Get(key); found {
			return append([]byte(nil), res...), nil
		}
	}
	res, err := e.smartQuery(address, msg)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(key, append([]byte(nil), res...))
	}
	return res, nil
}

// QueryJSON encodes msg as JSON, queries the instance at address and decodes
// the result into T.
func QueryJSON[T any](e *ContractEnsemble, address string, msg any) (T, error) {
	var res T
	encoded, err := json.Marshal(msg)
	if err != nil {
		return res, contract.NewSerializationError(err)
	}
	data, err := e.Query(address, encoded)
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return res, contract.NewSerializationError(fmt.Errorf("decoding query result: %w", err))
	}
	return res, nil
}

func (e *ContractEnsemble) invalidateQueries() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

func (e *ContractEnsemble) smartQuery(address string, msg []byte) ([]byte, error) {
	instance, err := e.state.Instance(address)
	if err != nil {
		return nil, err
	}
	c, err := e.code(instance.CodeID)
	if err != nil {
		return nil, err
	}
	var res []byte
	err = e.state.BorrowStorage(address, func(store *state.Store) (err error) {
		defer func() {
			if r := recover(); r != nil {
				if r != contract.ErrReadOnlyStorage {
					panic(r)
				}
				err = contract.NewContractError(fmt.Errorf("%w: %s", contract.ErrReadOnlyStorage, address))
			}
		}()
		res, err = c.harness.Query(e.deps(contract.ReadOnly(store)), e.env(address), msg)
		return contract.NewContractError(err)
	})
	return res, err
}

// querier answers the queries contracts issue through their Deps. It always
// reflects the current state, including uncommitted changes of the running
// call.
type querier struct {
	ensemble *ContractEnsemble
}

var _ wasmvmtypes.Querier = &querier{}

// Query answers a request with its JSON encoded response. Errors lose their
// classification, so a contract failing because of a query may still be
// caught by an error reply.
func (q *querier) Query(request wasmvmtypes.QueryRequest, _ uint64) ([]byte, error) {
	res, err := q.query(request)
	if err != nil {
		return nil, fmt.Errorf("query failed: %v", err)
	}
	return res, nil
}

func (q *querier) GasConsumed() uint64 {
	return 0
}

func (q *querier) query(request wasmvmtypes.QueryRequest) ([]byte, error) {
	switch {
	case request.Wasm != nil:
		return q.wasm(request.Wasm)
	case request.Bank != nil:
		return q.bank(request.Bank)
	case request.Staking != nil:
		return q.staking(request.Staking)
	}
	return nil, fmt.Errorf("%w: %s", contract.ErrUnsupportedQuery, requestKind(request))
}

func (q *querier) wasm(request *wasmvmtypes.WasmQuery) ([]byte, error) {
	e := q.ensemble
	switch {
	case request.Smart != nil:
		return e.smartQuery(request.Smart.ContractAddr, request.Smart.Msg)
	case request.Raw != nil:
		var value []byte
		err := e.state.BorrowStorage(request.Raw.ContractAddr, func(store *state.Store) error {
			value = store.Get(request.Raw.Key)
			return nil
		})
		return value, err
	case request.ContractInfo != nil:
		instance, err := e.state.Instance(request.ContractInfo.ContractAddr)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wasmvmtypes.ContractInfoResponse{
			CodeID:  instance.CodeID,
			Creator: instance.Creator,
		})
	case request.CodeInfo != nil:
		c, err := e.code(request.CodeInfo.CodeID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(wasmvmtypes.CodeInfoResponse{
			CodeID:   c.id,
			Checksum: c.hash,
		})
	}
	return nil, fmt.Errorf("%w: wasm", contract.ErrUnsupportedQuery)
}

func (q *querier) bank(request *wasmvmtypes.BankQuery) ([]byte, error) {
	ledger := q.ensemble.state.Bank
	switch {
	case request.Balance != nil:
		balance := ledger.Balance(request.Balance.Address, request.Balance.Denom)
		return json.Marshal(wasmvmtypes.BalanceResponse{
			Amount: contract.Coin{Denom: request.Balance.Denom, Amount: balance}.ToWasm(),
		})
	case request.AllBalances != nil:
		return json.Marshal(wasmvmtypes.AllBalancesResponse{
			Amount: contract.ToWasmCoins(ledger.Balances(request.AllBalances.Address)),
		})
	case request.Supply != nil:
		supply := ledger.Supply(request.Supply.Denom)
		return json.Marshal(wasmvmtypes.SupplyResponse{
			Amount: contract.Coin{Denom: request.Supply.Denom, Amount: supply}.ToWasm(),
		})
	}
	return nil, fmt.Errorf("%w: bank", contract.ErrUnsupportedQuery)
}

func (q *querier) staking(request *wasmvmtypes.StakingQuery) ([]byte, error) {
	registry := q.ensemble.state.Staking
	denom := registry.BondedDenom()
	switch {
	case request.BondedDenom != nil:
		return json.Marshal(wasmvmtypes.BondedDenomResponse{Denom: denom})
	case request.AllValidators != nil:
		return json.Marshal(wasmvmtypes.AllValidatorsResponse{Validators: registry.Validators()})
	case request.Validator != nil:
		var res wasmvmtypes.ValidatorResponse
		if validator, found := registry.Validator(request.Validator.Address); found {
			res.Validator = &validator
		}
		return json.Marshal(res)
	case request.AllDelegations != nil:
		delegator := request.AllDelegations.Delegator
		delegations := registry.Delegations(delegator)
		validators := maps.Keys(delegations)
		sort.Strings(validators)
		res := wasmvmtypes.AllDelegationsResponse{Delegations: []wasmvmtypes.Delegation{}}
		for _, validator := range validators {
			key := staking.Key{Delegator: delegator, Validator: validator}
			res.Delegations = append(res.Delegations, delegations[validator].ToWasm(key, denom))
		}
		return json.Marshal(res)
	case request.Delegation != nil:
		var res wasmvmtypes.DelegationResponse
		key := staking.Key{Delegator: request.Delegation.Delegator, Validator: request.Delegation.Validator}
		if delegation, found := registry.Delegation(key.Delegator, key.Validator); found {
			full := delegation.ToWasmFull(key, denom)
			res.Delegation = &full
		}
		return json.Marshal(res)
	}
	return nil, fmt.Errorf("%w: staking", contract.ErrUnsupportedQuery)
}

func requestKind(request wasmvmtypes.QueryRequest) string {
	switch {
	case request.Custom != nil:
		return "custom"
	case request.IBC != nil:
		return "ibc"
	case request.Stargate != nil:
		return "stargate"
	}
	return "unknown"
}
