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
	"encoding/json"
	"fmt"
	"strconv"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/ensemble"
)

// Example is an executable scenario running contracts on a fresh ensemble
// with an (int)->int signature.
type Example struct {
	exampleSpec
}

// exampleSpec specifies a scenario and a reference function computing its
// expected result.
type exampleSpec struct {
	Name string
	// harnesses lists the names of the harnesses the scenario registers, in
	// code id order.
	harnesses []string
	run       func(e *ensemble.ContractEnsemble, codes []uint64, argument int) (int, error)
	reference func(int) int
}

func (s exampleSpec) build() Example {
	return Example{exampleSpec: s}
}

type Result struct {
	Result int
	// Height is the block height after the scenario.
	Height uint64
}

// GetAllExamples lists all scenarios in a stable order.
func GetAllExamples() []Example {
	return []Example{
		GetCounterExample(),
		GetMultiplierExample(),
		GetCaughtFailureExample(),
		GetTokenExample(),
		GetStakingExample(),
	}
}

// RunOn runs this example on a fresh ensemble created with the given options.
func (e *Example) RunOn(argument int, opts ...ensemble.Option) (Result, error) {
	ens, err := ensemble.New(opts...)
	if err != nil {
		return Result{}, err
	}
	codes := make([]uint64, 0, len(e.harnesses))
	for _, name := range e.harnesses {
		id, err := ens.RegisterNamed(name)
		if err != nil {
			return Result{}, err
		}
		codes = append(codes, id)
	}
	res, err := e.run(ens, codes, argument)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", e.Name, err)
	}
	return Result{Result: res, Height: ens.Block().Height}, nil
}

// RunReference runs the reference function of this example to produce the
// expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

func mustEncode(msg any) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(fmt.Sprintf("failed to encode %T: %v", msg, err))
	}
	return data
}

func decode[T any](data []byte) (T, error) {
	var res T
	if err := json.Unmarshal(data, &res); err != nil {
		return res, fmt.Errorf("invalid message: %w", err)
	}
	return res, nil
}

func loadInt(store wasmvmtypes.KVStore, key string) (int, error) {
	value := store.Get([]byte(key))
	if value == nil {
		return 0, nil
	}
	return strconv.Atoi(string(value))
}

func storeInt(store wasmvmtypes.KVStore, key string, value int) {
	store.Set([]byte(key), []byte(strconv.Itoa(value)))
}

func wasmExecute(address string, msg any, funds ...contract.Coin) wasmvmtypes.CosmosMsg {
	return wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{Execute: &wasmvmtypes.ExecuteMsg{
		ContractAddr: address,
		Msg:          mustEncode(msg),
		Funds:        contract.ToWasmCoins(funds),
	}}}
}
