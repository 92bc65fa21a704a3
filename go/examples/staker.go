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
	"strconv"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/ensemble"
)

func init() {
	contract.MustRegisterHarnessFactory("staker", func() contract.Harness { return Staker{} })
}

type StakerExecuteMsg struct {
	// Delegate bonds all funds attached to the message.
	Delegate   *ValidatorMsg  `json:"delegate,omitempty"`
	Undelegate *AmountMsg     `json:"undelegate,omitempty"`
	Redelegate *RedelegateMsg `json:"redelegate,omitempty"`
	Claim      *ValidatorMsg  `json:"claim,omitempty"`
}

type ValidatorMsg struct {
	Validator string `json:"validator"`
}

type AmountMsg struct {
	Validator string `json:"validator"`
	Amount    uint64 `json:"amount"`
}

type RedelegateMsg struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Amount      uint64 `json:"amount"`
}

type StakerQueryMsg struct {
	Delegation *ValidatorMsg `json:"delegation,omitempty"`
}

// Staker manages delegations on behalf of its users.
type Staker struct{}

func (Staker) Instantiate(contract.Deps, wasmvmtypes.Env, wasmvmtypes.MessageInfo, []byte) (wasmvmtypes.Response, error) {
	return wasmvmtypes.Response{}, nil
}

func (Staker) Execute(deps contract.Deps, _ wasmvmtypes.Env, info wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	execute, err := decode[StakerExecuteMsg](msg)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	denom, err := bondedDenom(deps.Querier)
	if err != nil {
		return wasmvmtypes.Response{}, err
	}
	coin := func(amount uint64) wasmvmtypes.Coin {
		return contract.NewCoin(amount, denom).ToWasm()
	}

	var staking wasmvmtypes.StakingMsg
	var distribution *wasmvmtypes.DistributionMsg
	switch {
	case execute.Delegate != nil:
		if len(info.Funds) != 1 || info.Funds[0].Denom != denom {
			return wasmvmtypes.Response{}, fmt.Errorf("expected funds in %s", denom)
		}
		staking.Delegate = &wasmvmtypes.DelegateMsg{Validator: execute.Delegate.Validator, Amount: info.Funds[0]}
	case execute.Undelegate != nil:
		staking.Undelegate = &wasmvmtypes.UndelegateMsg{
			Validator: execute.Undelegate.Validator,
			Amount:    coin(execute.Undelegate.Amount),
		}
	case execute.Redelegate != nil:
		staking.Redelegate = &wasmvmtypes.RedelegateMsg{
			SrcValidator: execute.Redelegate.Source,
			DstValidator: execute.Redelegate.Destination,
			Amount:       coin(execute.Redelegate.Amount),
		}
	case execute.Claim != nil:
		distribution = &wasmvmtypes.DistributionMsg{
			WithdrawDelegatorReward: &wasmvmtypes.WithdrawDelegatorRewardMsg{Validator: execute.Claim.Validator},
		}
	default:
		return wasmvmtypes.Response{}, errors.New("unknown staker message")
	}

	sub := wasmvmtypes.SubMsg{ReplyOn: wasmvmtypes.ReplyNever, Msg: wasmvmtypes.CosmosMsg{Distribution: distribution}}
	if distribution == nil {
		sub.Msg = wasmvmtypes.CosmosMsg{Staking: &staking}
	}
	return wasmvmtypes.Response{Messages: []wasmvmtypes.SubMsg{sub}}, nil
}

func (Staker) Query(deps contract.Deps, env wasmvmtypes.Env, msg []byte) ([]byte, error) {
	query, err := decode[StakerQueryMsg](msg)
	if err != nil {
		return nil, err
	}
	if query.Delegation == nil {
		return nil, errors.New("unknown staker query")
	}
	return deps.Querier.Query(wasmvmtypes.QueryRequest{Staking: &wasmvmtypes.StakingQuery{
		Delegation: &wasmvmtypes.DelegationQuery{
			Delegator: env.Contract.Address,
			Validator: query.Delegation.Validator,
		},
	}}, 0)
}

func bondedDenom(querier wasmvmtypes.Querier) (string, error) {
	data, err := querier.Query(wasmvmtypes.QueryRequest{Staking: &wasmvmtypes.StakingQuery{BondedDenom: &struct{}{}}}, 0)
	if err != nil {
		return "", err
	}
	res, err := decode[wasmvmtypes.BondedDenomResponse](data)
	return res.Denom, err
}

const stakingRewards = 10

// GetStakingExample delegates one more than the argument through a staker
// contract, claims rewards and unbonds everything again. The result is the
// amount returned to the staker minus the extra coin.
func GetStakingExample() Example {
	return exampleSpec{
		Name:      "staking",
		harnesses: []string{"staker"},
		run: func(e *ensemble.ContractEnsemble, codes []uint64, n int) (int, error) {
			denom := e.Config().BondedDenom
			amount := uint64(n) + 1
			for _, validator := range []string{"validator-1", "validator-2"} {
				if err := e.AddValidator(wasmvmtypes.Validator{Address: validator, Commission: "0.05"}); err != nil {
					return 0, err
				}
			}
			if err := e.AddFunds("alice", contract.NewCoin(amount, denom)); err != nil {
				return 0, err
			}
			if _, err := e.Instantiate(codes[0], nil, contract.NewMockEnv("alice", "staker")); err != nil {
				return 0, err
			}

			call := func(msg StakerExecuteMsg, funds ...contract.Coin) error {
				_, err := e.Execute(mustEncode(msg), contract.NewMockEnv("alice", "staker").WithFunds(funds...))
				return err
			}
			if err := call(StakerExecuteMsg{Delegate: &ValidatorMsg{"validator-1"}}, contract.NewCoin(amount, denom)); err != nil {
				return 0, err
			}
			delegation, err := ensemble.QueryJSON[wasmvmtypes.DelegationResponse](e, "staker", StakerQueryMsg{Delegation: &ValidatorMsg{"validator-1"}})
			if err != nil {
				return 0, err
			}
			if delegation.Delegation == nil || delegation.Delegation.Amount.Amount != strconv.FormatUint(amount, 10) {
				return 0, fmt.Errorf("unexpected delegation %+v", delegation.Delegation)
			}
			// Fresh delegations may be redelegated right away, but not the
			// redelegated funds themselves.
			if err := call(StakerExecuteMsg{Redelegate: &RedelegateMsg{"validator-1", "validator-2", amount}}); err != nil {
				return 0, err
			}
			if err := call(StakerExecuteMsg{Redelegate: &RedelegateMsg{"validator-2", "validator-1", amount}}); err == nil {
				return 0, errors.New("redelegation of locked funds succeeded")
			}
			if err := e.AddRewards(contract.NewCoin(stakingRewards, denom)); err != nil {
				return 0, err
			}
			if err := call(StakerExecuteMsg{Claim: &ValidatorMsg{"validator-2"}}); err != nil {
				return 0, err
			}
			if err := call(StakerExecuteMsg{Undelegate: &AmountMsg{"validator-2", amount}}); err != nil {
				return 0, err
			}
			if err := e.FastForwardDelegationWaits(); err != nil {
				return 0, err
			}
			balance := e.Balance("staker", denom)
			return int(balance.Uint64()) - 1, nil
		},
		reference: func(n int) int { return n + stakingRewards },
	}.build()
}
