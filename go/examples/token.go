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
	"errors"
	"fmt"
	"strconv"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/ensemble"
)

func init() {
	contract.MustRegisterHarnessFactory("token", func() contract.Harness { return Token{} })
}

type TokenExecuteMsg struct {
	Pay  *PayMsg           `json:"pay,omitempty"`
	Burn *wasmvmtypes.Coin `json:"burn,omitempty"`
}

type PayMsg struct {
	Recipient string           `json:"recipient"`
	Amount    wasmvmtypes.Coin `json:"amount"`
}

type TokenQueryMsg struct {
	Balance *BalanceQuery `json:"balance,omitempty"`
	Paid    *struct{}     `json:"paid,omitempty"`
}

type BalanceQuery struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

// Token pays out the funds it holds through bank messages.
type Token struct{}

func (Token) Instantiate(deps contract.Deps, _ wasmvmtypes.Env, info wasmvmtypes.MessageInfo, _ []byte) (wasmvmtypes.Response, error) {
	storeInt(deps.Storage, "paid", 0)
	return wasmvmtypes.Response{
		Attributes: []wasmvmtypes.EventAttribute{{Key: "funded_by", Value: info.Sender}},
	}, nil
}

func (Token) Execute(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	execute, err := decode[TokenExecuteMsg](msg)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	switch {
	case execute.Pay != nil:
		if err := deps.Api.AddrValidate(execute.Pay.Recipient); err != nil {
			return wasmvmtypes.Response{}, err
		}
		amount, err := strconv.Atoi(execute.Pay.Amount.Amount)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		paid, err := loadInt(deps.Storage, "paid")
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		storeInt(deps.Storage, "paid", paid+amount)
		return wasmvmtypes.Response{Messages: []wasmvmtypes.SubMsg{{
			ReplyOn: wasmvmtypes.ReplyNever,
			Msg: wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Send: &wasmvmtypes.SendMsg{
				ToAddress: execute.Pay.Recipient,
				Amount:    []wasmvmtypes.Coin{execute.Pay.Amount},
			}}},
		}}}, nil
	case execute.Burn != nil:
		return wasmvmtypes.Response{Messages: []wasmvmtypes.SubMsg{{
			ReplyOn: wasmvmtypes.ReplyNever,
			Msg: wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Burn: &wasmvmtypes.BurnMsg{
				Amount: []wasmvmtypes.Coin{*execute.Burn},
			}}},
		}}}, nil
	}
	return wasmvmtypes.Response{}, errors.New("unknown token message")
}

func (Token) Query(deps contract.Deps, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	query, err := decode[TokenQueryMsg](msg)
	if err != nil {
		return nil, err
	}
	switch {
	case query.Balance != nil:
		return deps.Querier.Query(wasmvmtypes.QueryRequest{Bank: &wasmvmtypes.BankQuery{
			Balance: &wasmvmtypes.BalanceQuery{Address: query.Balance.Address, Denom: query.Balance.Denom},
		}}, 0)
	case query.Paid != nil:
		paid, err := loadInt(deps.Storage, "paid")
		return mustEncode(CountResponse{Count: paid}), err
	}
	return nil, errors.New("unknown token query")
}

const tokenFunds = 1000

// GetTokenExample funds a token contract and makes it pay the argument to a
// recipient. The total supply does not change.
func GetTokenExample() Example {
	return exampleSpec{
		Name:      "token",
		harnesses: []string{"token"},
		run: func(e *ensemble.ContractEnsemble, codes []uint64, n int) (int, error) {
			denom := e.Config().BondedDenom
			if err := e.AddFunds("alice", contract.NewCoin(tokenFunds, denom)); err != nil {
				return 0, err
			}
			supply := e.State().Bank.Supply(denom)

			env := contract.NewMockEnv("alice", "token").WithFunds(contract.NewCoin(tokenFunds, denom))
			if _, err := e.Instantiate(codes[0], []byte("{}"), env); err != nil {
				return 0, err
			}
			pay := TokenExecuteMsg{Pay: &PayMsg{
				Recipient: "bob",
				Amount:    contract.NewCoin(uint64(n), denom).ToWasm(),
			}}
			if _, err := e.Execute(mustEncode(pay), contract.NewMockEnv("alice", "token")); err != nil {
				return 0, err
			}
			if after := e.State().Bank.Supply(denom); !after.Eq(&supply) {
				return 0, fmt.Errorf("supply changed from %v to %v", supply.Dec(), after.Dec())
			}

			data, err := e.Query("token", mustEncode(TokenQueryMsg{Balance: &BalanceQuery{Address: "bob", Denom: denom}}))
			if err != nil {
				return 0, err
			}
			var balance wasmvmtypes.BalanceResponse
			if err := json.Unmarshal(data, &balance); err != nil {
				return 0, err
			}
			return strconv.Atoi(balance.Amount.Amount)
		},
		reference: func(n int) int { return n },
	}.build()
}
