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
	"fmt"
	"strconv"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
)

// Sink receives all payments made by scripts.
const Sink = "sink"

// ErrScriptedFailure is returned by scripts asking to fail.
var ErrScriptedFailure = errors.New("scripted failure")

// Script describes what a scripted contract does when invoked.
type Script struct {
	// Writes lists storage counters to increment.
	Writes []string `json:"writes,omitempty"`
	// Fail makes the invocation fail after performing its writes.
	Fail bool `json:"fail,omitempty"`
	// Pay sends the amount to the sink before any other message.
	Pay  uint64 `json:"pay,omitempty"`
	Send []Call `json:"send,omitempty"`
	Data string `json:"data,omitempty"`
}

// Call is a sub-message sent by a script. ReplyOn names the policy the
// way CosmWasm serializes it ("always", "success", "error" or "never"); an
// empty policy is sent unset. Reply is the script run by the sender when the
// reply is delivered.
type Call struct {
	ID      uint64  `json:"id"`
	Target  string  `json:"target"`
	ReplyOn string  `json:"reply_on,omitempty"`
	Script  Script  `json:"script"`
	Reply   *Script `json:"reply,omitempty"`
}

// ReplyKey is the storage counter incremented by the receiver of the reply
// for the call with the given id.
func ReplyKey(id uint64) string {
	return fmt.Sprintf("reply-%d", id)
}

// Scripted is a harness executing the script it receives as message. Replies
// run the script attached to the payload of the replied sub-message.
type Scripted struct {
	Denom string
}

func (s Scripted) Instantiate(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	return s.run(deps.Storage, msg)
}

func (s Scripted) Execute(deps contract.Deps, _ wasmvmtypes.Env, _ wasmvmtypes.MessageInfo, msg []byte) (wasmvmtypes.Response, error) {
	return s.run(deps.Storage, msg)
}

func (s Scripted) Reply(deps contract.Deps, _ wasmvmtypes.Env, reply wasmvmtypes.Reply) (wasmvmtypes.Response, error) {
	if err := increment(deps.Storage, ReplyKey(reply.ID)); err != nil {
		return wasmvmtypes.Response{}, err
	}
	return s.run(deps.Storage, reply.Payload)
}

func (Scripted) Query(deps contract.Deps, _ wasmvmtypes.Env, msg []byte) ([]byte, error) {
	return deps.Storage.Get(msg), nil
}

func (s Scripted) run(store wasmvmtypes.KVStore, msg []byte) (wasmvmtypes.Response, error) {
	var script Script
	if len(msg) > 0 {
		if err := json.Unmarshal(msg, &script); err != nil {
			return wasmvmtypes.Response{}, err
		}
	}
	for _, key := range script.Writes {
		if err := increment(store, key); err != nil {
			return wasmvmtypes.Response{}, err
		}
	}
	if script.Fail {
		return wasmvmtypes.Response{}, ErrScriptedFailure
	}
	res := wasmvmtypes.Response{}
	if script.Data != "" {
		res.Data = []byte(script.Data)
	}
	if script.Pay > 0 {
		res.Messages = append(res.Messages, wasmvmtypes.SubMsg{
			ReplyOn: wasmvmtypes.ReplyNever,
			Msg: wasmvmtypes.CosmosMsg{Bank: &wasmvmtypes.BankMsg{Send: &wasmvmtypes.SendMsg{
				ToAddress: Sink,
				Amount:    []wasmvmtypes.Coin{contract.NewCoin(script.Pay, s.Denom).ToWasm()},
			}}},
		})
	}
	for _, call := range script.Send {
		payload, err := json.Marshal(call.Reply)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		msg, err := json.Marshal(call.Script)
		if err != nil {
			return wasmvmtypes.Response{}, err
		}
		sub := wasmvmtypes.SubMsg{
			ID:      call.ID,
			Payload: payload,
			Msg: wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{Execute: &wasmvmtypes.ExecuteMsg{
				ContractAddr: call.Target,
				Msg:          msg,
			}}},
		}
		if call.ReplyOn != "" {
			if err := json.Unmarshal(strconv.AppendQuote(nil, call.ReplyOn), &sub.ReplyOn); err != nil {
				return wasmvmtypes.Response{}, err
			}
		}
		res.Messages = append(res.Messages, sub)
	}
	return res, nil
}

func increment(store wasmvmtypes.KVStore, key string) error {
	count := 0
	if value := store.Get([]byte(key)); value != nil {
		var err error
		if count, err = strconv.Atoi(string(value)); err != nil {
			return err
		}
	}
	store.Set([]byte(key), []byte(strconv.Itoa(count+1)))
	return nil
}
