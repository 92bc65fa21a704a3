// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"errors"
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/ensemble"
)

func init() {
	contract.MustRegisterHarnessFactory("counter", func() contract.Harness { return Counter{} })
}

const (
	replyInstantiateMultiplier = 1
	replyMultiply              = 2
	replyTryFail               = 3
)

type CounterInstantiateMsg struct {
	Count int `json:"count"`
	// MultiplierCodeID makes the counter instantiate a multiplier next to
	// itself, which it learns about through a reply.
	MultiplierCodeID uint64 `json:"multiplier_code_id,omitempty"`
	Factor           int    `json:"factor,omitempty"`
}

type CounterExecuteMsg struct {
	Add *int `json:"add,omitempty"`
	// Multiply adds the product computed by the multiplier.
	Multiply *int `json:"multiply,omitempty"`
	// TryFail sends the given number of failing messages to the multiplier
	// and counts the failures reported back.
	TryFail *int `json:"try_fail,omitempty"`
}

type CounterQueryMsg struct {
	Count      *struct{} `json:"count,omitempty"`
	Multiplier *struct{} `json:"multiplier,omitempty"`
	Failures   *struct{} `json:"failures,omitempty"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

// Counter keeps a number that can be changed directly or with the help of a
// multiplier contract.
type Counter struct{}

func (Counter) Instantiate(deps contract.Deps, env wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	setup, err := decode[CounterInstantiateMsg](msg)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	storeInt(deps.Storage, "count", setup.Count)
	res := wasmvmtypes.Response{
		Attributes: []wasmvmtypes.EventAttribute{{Key: "action", Value: "instantiate"}},
	}
	if setup.MultiplierCodeID != 0 {
		res.Messages = append(res.Messages, wasmvmtypes.SubMsg{
			ID:      replyInstantiateMultiplier,
			ReplyOn: wasmvmtypes.ReplySuccess,
			Msg: wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{Instantiate: &wasmvmtypes.InstantiateMsg{
				CodeID: setup.MultiplierCodeID,
				Msg:    mustEncode(MultiplierInstantiateMsg{Factor: setup.Factor}),
				Label:  env.Contract.Address + "-multiplier",
			}}},
		})
	}
	return res, nil
}

func (Counter) Execute(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	execute, err := decode[CounterExecuteMsg](msg)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	switch {
	case execute.Add != nil:
		count, err := add(deps.Storage, *execute.Add)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		return wasmvmtypes.Response{
			Data:       mustEncode(CountResponse{Count: count}),
			Attributes: []wasmvmtypes.EventAttribute{{Key: "action", Value: "add"}},
		}, nil
	case execute.Multiply != nil:
		multiplier, err := multiplierAddress(deps.Storage)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		return wasmvmtypes.Response{Messages: []wasmvmtypes.SubMsg{{
			ID:      replyMultiply,
			ReplyOn: wasmvmtypes.ReplySuccess,
			Msg:     wasmExecute(multiplier, MultiplierExecuteMsg{Multiply: execute.Multiply}),
		}}}, nil
	case execute.TryFail != nil:
		multiplier, err := multiplierAddress(deps.Storage)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		var res wasmvmtypes.Response
		for i := 0; i < *execute.TryFail; i++ {
			res.Messages = append(res.Messages, wasmvmtypes.SubMsg{
				ID:      replyTryFail,
				ReplyOn: wasmvmtypes.ReplyError,
				Msg:     wasmExecute(multiplier, MultiplierExecuteMsg{Fail: &struct{}{}}),
			})
		}
		return res, nil
	}
	return wasmvmtypes.Response{}, errors.New("unknown counter message")
}

func (Counter) Reply(deps contract.Deps, _ wasmvmtypes.Env, reply wasmvmtypes.Reply) (wasmvmtypes.Response, error) {
	switch reply.ID {
	case replyInstantiateMultiplier, replyMultiply:
		if reply.Result.Ok == nil {
			return wasmvmtypes.Response{}, fmt.Errorf("unexpected failure of reply %d: %s", reply.ID, reply.Result.Err)
		}
		if reply.ID == replyInstantiateMultiplier {
			address, found := contract.InstantiatedAddress(reply.Result.Ok.Events)
			if !found {
				return wasmvmtypes.Response{}, errors.New("multiplier address not reported")
			}
			deps.Storage.Set([]byte("multiplier"), []byte(address))
			return wasmvmtypes.Response{}, nil
		}
		product, err := decode[ProductResponse](reply.Result.Ok.Data)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		count, err := add(deps.Storage, product.Result)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		return wasmvmtypes.Response{Data: mustEncode(CountResponse{Count: count})}, nil
	case replyTryFail:
		if reply.Result.Err == "" {
			return wasmvmtypes.Response{}, errors.New("multiplier unexpectedly succeeded")
		}
		failures, err := loadInt(deps.Storage, "failures")
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		storeInt(deps.Storage, "failures", failures+1)
		return wasmvmtypes.Response{}, nil
	}
	return wasmvmtypes.Response{}, fmt.Errorf("unknown reply id %d", reply.ID)
}

func (Counter) Query(deps contract.Deps, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	query, err := decode[CounterQueryMsg](msg)
	if err != nil {
		return nil, err
	}
	switch {
	case query.Count != nil:
		count, err := loadInt(deps.Storage, "count")
		return mustEncode(CountResponse{Count: count}), err
	case query.Failures != nil:
		failures, err := loadInt(deps.Storage, "failures")
		return mustEncode(CountResponse{Count: failures}), err
	case query.Multiplier != nil:
		return mustEncode(AddressResponse{Address: string(deps.Storage.Get([]byte("multiplier")))}), nil
	}
	return nil, errors.New("unknown counter query")
}

func add(store wasmvmtypes.KVStore, delta int) (int, error) {
	count, err := loadInt(store, "count")
	if err != nil {
		return 0, err
	}
	count += delta
	storeInt(store, "count", count)
	return count, nil
}

func multiplierAddress(store wasmvmtypes.KVStore) (string, error) {
	address := store.Get([]byte("multiplier"))
	if address == nil {
		return "", errors.New("counter has no multiplier")
	}
	return string(address), nil
}

const exampleFactor = 3

// GetCounterExample adds the argument to a fresh counter.
func GetCounterExample() Example {
	return exampleSpec{
		Name:      "counter",
		harnesses: []string{"counter"},
		run: func(e *ensemble.ContractEnsemble, codes []uint64, n int) (int, error) {
			env := contract.NewMockEnv("creator", "counter")
			if _, err := e.Instantiate(codes[0], mustEncode(CounterInstantiateMsg{}), env); err != nil {
				return 0, err
			}
			if _, err := e.Execute(mustEncode(CounterExecuteMsg{Add: &n}), env); err != nil {
				return 0, err
			}
			res, err := ensemble.QueryJSON[CountResponse](e, "counter", CounterQueryMsg{Count: &struct{}{}})
			return res.Count, err
		},
		reference: func(n int) int { return n },
	}.build()
}

// GetMultiplierExample instantiates a counter that instantiates a multiplier
// in turn, and adds the product the multiplier computes for the argument.
func GetMultiplierExample() Example {
	return exampleSpec{
		Name:      "multiplier",
		harnesses: []string{"counter", "multiplier"},
		run: func(e *ensemble.ContractEnsemble, codes []uint64, n int) (int, error) {
			env := contract.NewMockEnv("creator", "counter")
			setup := CounterInstantiateMsg{MultiplierCodeID: codes[1], Factor: exampleFactor}
			if _, err := e.Instantiate(codes[0], mustEncode(setup), env); err != nil {
				return 0, err
			}
			multiplier, err := ensemble.QueryJSON[AddressResponse](e, "counter", CounterQueryMsg{Multiplier: &struct{}{}})
			if err != nil {
				return 0, err
			}
			if multiplier.Address != "counter-multiplier" {
				return 0, fmt.Errorf("unexpected multiplier address %q", multiplier.Address)
			}
			if _, err := e.Execute(mustEncode(CounterExecuteMsg{Multiply: &n}), env); err != nil {
				return 0, err
			}
			res, err := ensemble.QueryJSON[CountResponse](e, "counter", CounterQueryMsg{Count: &struct{}{}})
			return res.Count, err
		},
		reference: func(n int) int { return n * exampleFactor },
	}.build()
}

// GetCaughtFailureExample sends as many failing messages as the argument
// says; each failure is caught by the counter and leaves no trace in the
// multiplier.
func GetCaughtFailureExample() Example {
	return exampleSpec{
		Name:      "caught_failure",
		harnesses: []string{"counter", "multiplier"},
		run: func(e *ensemble.ContractEnsemble, codes []uint64, n int) (int, error) {
			env := contract.NewMockEnv("creator", "counter")
			setup := CounterInstantiateMsg{MultiplierCodeID: codes[1], Factor: exampleFactor}
			if _, err := e.Instantiate(codes[0], mustEncode(setup), env); err != nil {
				return 0, err
			}
			if _, err := e.Execute(mustEncode(CounterExecuteMsg{TryFail: &n}), env); err != nil {
				return 0, err
			}
			calls, err := ensemble.QueryJSON[CountResponse](e, "counter-multiplier", MultiplierQueryMsg{Calls: &struct{}{}})
			if err != nil {
				return 0, err
			}
			if calls.Count != 0 {
				return 0, fmt.Errorf("failed calls were recorded by the multiplier: %d", calls.Count)
			}
			res, err := ensemble.QueryJSON[CountResponse](e, "counter", CounterQueryMsg{Failures: &struct{}{}})
			return res.Count, err
		},
		reference: func(n int) int { return n },
	}.build()
}
