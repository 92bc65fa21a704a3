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
	"fmt"
	"strconv"
	"strings"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/executor"
	"github.com/Fantom-foundation/Ensemble/go/logging"
	"github.com/Fantom-foundation/Ensemble/go/state"
)

func (e *ContractEnsemble) dispatch(next *executor.NextMessage, depth int) (*contract.Response, error) {
	if next.Kind == executor.ReplyKind {
		outcome := "success"
		if next.Reply.Result.Err != "" {
			outcome = "error"
		}
		e.logger.Debug("delivering reply",
			logging.Address(next.Target), logging.MsgID(next.Reply.ID), logging.Depth(depth), "outcome", outcome)
		e.metrics.MessageDispatched(contract.ReplyResponse.String())
		e.metrics.ReplyDelivered(outcome)
		return e.reply(next.Target, next.Reply)
	}
	e.logger.Debug("dispatching message",
		logging.Sender(next.Sender), logging.MsgID(next.Msg.ID), logging.Depth(depth))
	return e.route(next.Sender, next.Msg.Msg)
}

// route hands a message to the contract or module it is addressed to.
func (e *ContractEnsemble) route(sender string, msg wasmvmtypes.CosmosMsg) (*contract.Response, error) {
	e.metrics.MessageDispatched(messageKind(msg))
	switch {
	case msg.Wasm != nil && msg.Wasm.Instantiate != nil:
		return e.instantiate(sender, msg.Wasm.Instantiate)
	case msg.Wasm != nil && msg.Wasm.Execute != nil:
		return e.execute(sender, msg.Wasm.Execute)
	case msg.Bank != nil:
		return e.bank(sender, msg.Bank)
	case msg.Staking != nil:
		return e.staking(sender, msg.Staking)
	case msg.Distribution != nil:
		return e.distribution(sender, msg.Distribution)
	}
	return nil, unsupported(msg)
}

func (e *ContractEnsemble) instantiate(sender string, msg *wasmvmtypes.InstantiateMsg) (*contract.Response, error) {
	c, err := e.code(msg.CodeID)
	if err != nil {
		return nil, err
	}
	address := msg.Label
	if err := e.api.AddrValidate(address); err != nil {
		return nil, contract.NewRegistryError(fmt.Errorf("invalid contract address: %w", err))
	}
	funds, err := contract.ParseCoins(msg.Funds)
	if err != nil {
		return nil, contract.NewSerializationError(err)
	}
	if err := e.state.CreateContractInstance(address, c.id, sender); err != nil {
		return nil, err
	}
	if err := e.sendFunds(sender, address, funds); err != nil {
		return nil, err
	}

	info := wasmvmtypes.MessageInfo{Sender: sender, Funds: msg.Funds}
	res, err := e.invoke(address, func(deps contract.Deps) (wasmvmtypes.Response, error) {
		return c.harness.Instantiate(deps, e.env(address), info, msg.Msg)
	})
	if err != nil {
		return nil, err
	}
	header := wasmvmtypes.Event{
		Type: contract.EventTypeInstantiate,
		Attributes: []wasmvmtypes.EventAttribute{
			{Key: contract.AttributeKeyContractAddr, Value: address},
			{Key: contract.AttributeKeyCodeID, Value: strconv.FormatUint(c.id, 10)},
		},
	}
	return &contract.Response{
		Kind:     contract.InstantiateResponse,
		Sender:   sender,
		Address:  address,
		CodeID:   c.id,
		Msg:      msg.Msg,
		Funds:    msg.Funds,
		Response: res,
		Events:   contractEvents(header, address, res),
	}, nil
}

func (e *ContractEnsemble) execute(sender string, msg *wasmvmtypes.ExecuteMsg) (*contract.Response, error) {
	address := msg.ContractAddr
	instance, err := e.state.Instance(address)
	if err != nil {
		return nil, err
	}
	c, err := e.code(instance.CodeID)
	if err != nil {
		return nil, err
	}
	funds, err := contract.ParseCoins(msg.Funds)
	if err != nil {
		return nil, contract.NewSerializationError(err)
	}
	if err := e.sendFunds(sender, address, funds); err != nil {
		return nil, err
	}

	info := wasmvmtypes.MessageInfo{Sender: sender, Funds: msg.Funds}
	res, err := e.invoke(address, func(deps contract.Deps) (wasmvmtypes.Response, error) {
		return c.harness.Execute(deps, e.env(address), info, msg.Msg)
	})
	if err != nil {
		return nil, err
	}
	header := wasmvmtypes.Event{
		Type:       contract.EventTypeExecute,
		Attributes: []wasmvmtypes.EventAttribute{{Key: contract.AttributeKeyContractAddr, Value: address}},
	}
	return &contract.Response{
		Kind:     contract.ExecuteResponse,
		Sender:   sender,
		Address:  address,
		CodeID:   c.id,
		Msg:      msg.Msg,
		Funds:    msg.Funds,
		Response: res,
		Events:   contractEvents(header, address, res),
	}, nil
}

func (e *ContractEnsemble) reply(target string, reply wasmvmtypes.Reply) (*contract.Response, error) {
	instance, err := e.state.Instance(target)
	if err != nil {
		return nil, err
	}
	c, err := e.code(instance.CodeID)
	if err != nil {
		return nil, err
	}
	replier, ok := c.harness.(contract.Replier)
	if !ok {
		return nil, contract.NewRegistryError(fmt.Errorf("%w: %s", contract.ErrReplyNotSupported, target))
	}
	res, err := e.invoke(target, func(deps contract.Deps) (wasmvmtypes.Response, error) {
		return replier.Reply(deps, e.env(target), reply)
	})
	if err != nil {
		return nil, err
	}
	mode := "handle_success"
	if reply.Result.Err != "" {
		mode = "handle_failure"
	}
	header := wasmvmtypes.Event{
		Type: contract.EventTypeReply,
		Attributes: []wasmvmtypes.EventAttribute{
			{Key: contract.AttributeKeyContractAddr, Value: target},
			{Key: contract.AttributeKeyMode, Value: mode},
		},
	}
	return &contract.Response{
		Kind:     contract.ReplyResponse,
		Address:  target,
		CodeID:   c.id,
		Reply:    &reply,
		Response: res,
		Events:   contractEvents(header, target, res),
	}, nil
}

// invoke runs a contract entry point with write access to its storage.
// Errors returned by the contract are classified as contract errors unless
// they already carry a classification.
func (e *ContractEnsemble) invoke(address string, run func(contract.Deps) (wasmvmtypes.Response, error)) (wasmvmtypes.Response, error) {
	var res wasmvmtypes.Response
	err := e.state.BorrowStorageMut(address, func(store *state.Store) error {
		var err error
		res, err = run(e.deps(store))
		return contract.NewContractError(err)
	})
	return res, err
}

func (e *ContractEnsemble) sendFunds(from, to string, funds []contract.Coin) error {
	if len(funds) == 0 {
		return nil
	}
	return e.state.TransferFunds(from, to, funds)
}

func (e *ContractEnsemble) bank(sender string, msg *wasmvmtypes.BankMsg) (*contract.Response, error) {
	switch {
	case msg.Send != nil:
		coins, err := contract.ParseCoins(msg.Send.Amount)
		if err != nil {
			return nil, contract.NewSerializationError(err)
		}
		if err := e.state.TransferFunds(sender, msg.Send.ToAddress, coins); err != nil {
			return nil, err
		}
		return &contract.Response{
			Kind:    contract.BankResponse,
			Sender:  sender,
			Address: msg.Send.ToAddress,
			Funds:   msg.Send.Amount,
			Bank:    msg,
			Events: []wasmvmtypes.Event{{
				Type: contract.EventTypeTransfer,
				Attributes: []wasmvmtypes.EventAttribute{
					{Key: contract.AttributeKeyRecipient, Value: msg.Send.ToAddress},
					{Key: contract.AttributeKeySender, Value: sender},
					{Key: contract.AttributeKeyAmount, Value: formatCoins(coins)},
				},
			}},
		}, nil
	case msg.Burn != nil:
		coins, err := contract.ParseCoins(msg.Burn.Amount)
		if err != nil {
			return nil, contract.NewSerializationError(err)
		}
		if err := e.state.RemoveFunds(sender, coins); err != nil {
			return nil, err
		}
		return &contract.Response{
			Kind:   contract.BankResponse,
			Sender: sender,
			Funds:  msg.Burn.Amount,
			Bank:   msg,
			Events: []wasmvmtypes.Event{{
				Type: contract.EventTypeBurn,
				Attributes: []wasmvmtypes.EventAttribute{
					{Key: contract.AttributeKeySender, Value: sender},
					{Key: contract.AttributeKeyAmount, Value: formatCoins(coins)},
				},
			}},
		}, nil
	}
	return nil, unsupported(wasmvmtypes.CosmosMsg{Bank: msg})
}

func (e *ContractEnsemble) staking(sender string, msg *wasmvmtypes.StakingMsg) (*contract.Response, error) {
	var (
		event wasmvmtypes.Event
		err   error
	)
	switch {
	case msg.Delegate != nil:
		event, err = e.stakingOp(contract.EventTypeDelegate, msg.Delegate.Validator, msg.Delegate.Amount, func(coin contract.Coin) error {
			return e.state.Delegate(sender, msg.Delegate.Validator, coin)
		})
	case msg.Undelegate != nil:
		event, err = e.stakingOp(contract.EventTypeUnbond, msg.Undelegate.Validator, msg.Undelegate.Amount, func(coin contract.Coin) error {
			return e.state.Undelegate(sender, msg.Undelegate.Validator, coin)
		})
	case msg.Redelegate != nil:
		event, err = e.stakingOp(contract.EventTypeRedelegate, msg.Redelegate.DstValidator, msg.Redelegate.Amount, func(coin contract.Coin) error {
			return e.state.Redelegate(sender, msg.Redelegate.SrcValidator, msg.Redelegate.DstValidator, coin)
		})
	default:
		return nil, unsupported(wasmvmtypes.CosmosMsg{Staking: msg})
	}
	if err != nil {
		return nil, err
	}
	event.Attributes = append(event.Attributes, wasmvmtypes.EventAttribute{Key: contract.AttributeKeySender, Value: sender})
	return &contract.Response{
		Kind:    contract.StakingResponse,
		Sender:  sender,
		Staking: msg,
		Events:  []wasmvmtypes.Event{event},
	}, nil
}

func (e *ContractEnsemble) stakingOp(eventType, validator string, amount wasmvmtypes.Coin, op func(contract.Coin) error) (wasmvmtypes.Event, error) {
	coin, err := contract.ParseCoin(amount)
	if err != nil {
		return wasmvmtypes.Event{}, contract.NewSerializationError(err)
	}
	if err := op(coin); err != nil {
		return wasmvmtypes.Event{}, err
	}
	return wasmvmtypes.Event{
		Type: eventType,
		Attributes: []wasmvmtypes.EventAttribute{
			{Key: contract.AttributeKeyValidator, Value: validator},
			{Key: contract.AttributeKeyAmount, Value: coin.String()},
		},
	}, nil
}

func (e *ContractEnsemble) distribution(sender string, msg *wasmvmtypes.DistributionMsg) (*contract.Response, error) {
	if msg.WithdrawDelegatorReward == nil {
		return nil, unsupported(wasmvmtypes.CosmosMsg{Distribution: msg})
	}
	validator := msg.WithdrawDelegatorReward.Validator
	rewards, err := e.state.WithdrawRewards(sender, validator)
	if err != nil {
		return nil, err
	}
	return &contract.Response{
		Kind:         contract.DistributionResponse,
		Sender:       sender,
		Funds:        []wasmvmtypes.Coin{rewards.ToWasm()},
		Distribution: msg,
		Events: []wasmvmtypes.Event{{
			Type: contract.EventTypeWithdraw,
			Attributes: []wasmvmtypes.EventAttribute{
				{Key: contract.AttributeKeyValidator, Value: validator},
				{Key: contract.AttributeKeySender, Value: sender},
				{Key: contract.AttributeKeyAmount, Value: rewards.String()},
			},
		}},
	}, nil
}

// contractEvents builds the events of a contract invocation: the header
// event, a wasm event carrying the contract's attributes and its custom
// events, all tagged with the contract's address.
func contractEvents(header wasmvmtypes.Event, address string, res wasmvmtypes.Response) []wasmvmtypes.Event {
	events := []wasmvmtypes.Event{header}
	tag := wasmvmtypes.EventAttribute{Key: contract.AttributeKeyContractAddr, Value: address}
	if len(res.Attributes) > 0 {
		attrs := append([]wasmvmtypes.EventAttribute{tag}, res.Attributes...)
		events = append(events, wasmvmtypes.Event{Type: contract.EventTypeWasm, Attributes: attrs})
	}
	for _, event := range res.Events {
		attrs := append([]wasmvmtypes.EventAttribute{tag}, event.Attributes...)
		events = append(events, wasmvmtypes.Event{Type: contract.CustomEventPrefix + event.Type, Attributes: attrs})
	}
	return events
}

func formatCoins(coins []contract.Coin) string {
	parts := make([]string, 0, len(coins))
	for _, coin := range coins {
		parts = append(parts, coin.String())
	}
	return strings.Join(parts, ",")
}

func unsupported(msg wasmvmtypes.CosmosMsg) error {
	return contract.NewSerializationError(fmt.Errorf("%w: %s", contract.ErrUnsupportedMessage, messageKind(msg)))
}

func messageKind(msg wasmvmtypes.CosmosMsg) string {
	switch {
	case msg.Wasm != nil && msg.Wasm.Instantiate != nil:
		return contract.InstantiateResponse.String()
	case msg.Wasm != nil && msg.Wasm.Execute != nil:
		return contract.ExecuteResponse.String()
	case msg.Wasm != nil:
		return "wasm"
	case msg.Bank != nil:
		return contract.BankResponse.String()
	case msg.Staking != nil:
		return contract.StakingResponse.String()
	case msg.Distribution != nil:
		return contract.DistributionResponse.String()
	case msg.IBC != nil:
		return "ibc"
	case msg.Gov != nil:
		return "gov"
	case msg.Custom != nil:
		return "custom"
	}
	return "unknown"
}
