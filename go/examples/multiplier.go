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

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
)

func init() {
	contract.MustRegisterHarnessFactory("multiplier", func() contract.Harness { return Multiplier{} })
}

// ErrRefused is returned by the multiplier when asked to fail.
var ErrRefused = errors.New("multiplier refused")

type MultiplierInstantiateMsg struct {
	Factor int `json:"factor"`
}

type MultiplierExecuteMsg struct {
	Multiply *int      `json:"multiply,omitempty"`
	Fail     *struct{} `json:"fail,omitempty"`
}

type MultiplierQueryMsg struct {
	Factor *struct{} `json:"factor,omitempty"`
	Calls  *struct{} `json:"calls,omitempty"`
}

type ProductResponse struct {
	Result int `json:"result"`
}

// Multiplier multiplies numbers by a fixed factor, counting its calls.
type Multiplier struct{}

func (Multiplier) Instantiate(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	setup, err := decode[MultiplierInstantiateMsg](msg)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	if setup.Factor == 0 {
		return wasmvmtypes.Response{}, errors.New("factor must not be zero")
	}
	storeInt(deps.Storage, "factor", setup.Factor)
	return wasmvmtypes.Response{}, nil
}

func (Multiplier) Execute(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	execute, err := decode[MultiplierExecuteMsg](msg)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	calls, err := loadInt(deps.Storage, "calls")
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	storeInt(deps.Storage, "calls", calls+1)
	switch {
	case execute.Multiply != nil:
		factor, err := loadInt(deps.Storage, "factor")
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		return wasmvmtypes.Response{
			Data: mustEncode(ProductResponse{Result: *execute.Multiply * factor}),
			Events: []wasmvmtypes.Event{{
				Type:       "multiply",
				Attributes: []wasmvmtypes.EventAttribute{{Key: "factor", Value: string(deps.Storage.Get([]byte("factor")))}},
			}},
		}, nil
	case execute.Fail != nil:
		return wasmvmtypes.Response{}, ErrRefused
	}
	return wasmvmtypes.Response{}, errors.New("unknown multiplier message")
}

func (Multiplier) Query(deps contract.Deps, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	query, err := decode[MultiplierQueryMsg](msg)
	if err != nil {
		return nil, err
	}
	switch {
	case query.Factor != nil:
		factor, err := loadInt(deps.Storage, "factor")
		return mustEncode(ProductResponse{Result: factor}), err
	case query.Calls != nil:
		calls, err := loadInt(deps.Storage, "calls")
		return mustEncode(CountResponse{Count: calls}), err
	}
	return nil, errors.New("unknown multiplier query")
}
