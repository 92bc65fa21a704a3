// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package contract

import (
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

// ResponseKind names the kind of message a Response node resulted from.
type ResponseKind int

const (
	InstantiateResponse ResponseKind = iota
	ExecuteResponse
	ReplyResponse
	BankResponse
	StakingResponse
	DistributionResponse
)

func (k ResponseKind) String() string {
	switch k {
	case InstantiateResponse:
		return "instantiate"
	case ExecuteResponse:
		return "execute"
	case ReplyResponse:
		return "reply"
	case BankResponse:
		return "bank"
	case StakingResponse:
		return "staking"
	case DistributionResponse:
		return "distribution"
	default:
		return fmt.Sprintf("ResponseKind(%d)", int(k))
	}
}

// Response describes one node of an executed call tree. Sent lists the
// responses of all messages emitted by this node in execution order; the
// response of a reply to this node's emitter is attached to the node it
// replies for.
type Response struct {
	Kind    ResponseKind
	Sender  string
	Address string // contract handling the message, or receiver of a bank send
	CodeID  uint64
	Msg     []byte
	Funds   []wasmvmtypes.Coin

	Reply        *wasmvmtypes.Reply
	Bank         *wasmvmtypes.BankMsg
	Staking      *wasmvmtypes.StakingMsg
	Distribution *wasmvmtypes.DistributionMsg

	// Response is what the contract returned, untouched.
	Response wasmvmtypes.Response
	// Data is the final data of the node after all replies were processed.
	Data   []byte
	Events []wasmvmtypes.Event
	Sent   []*Response
}

func (r *Response) String() string {
	return fmt.Sprintf("%v(%s -> %s)", r.Kind, r.Sender, r.Address)
}

// Messages returns the sub-messages emitted by the contract.
func (r *Response) Messages() []wasmvmtypes.SubMsg {
	return r.Response.Messages
}

// Walk visits the tree in pre-order. Returning false skips the children of
// the visited node.
func (r *Response) Walk(visit func(*Response) bool) {
	if !visit(r) {
		return
	}
	for _, sent := range r.Sent {
		sent.Walk(visit)
	}
}

// Flatten lists all nodes of the tree in pre-order.
func (r *Response) Flatten() []*Response {
	var res []*Response
	r.Walk(func(node *Response) bool {
		res = append(res, node)
		return true
	})
	return res
}

// AllEvents collects the events of all nodes in pre-order.
func (r *Response) AllEvents() []wasmvmtypes.Event {
	var res []wasmvmtypes.Event
	r.Walk(func(node *Response) bool {
		res = append(res, node.Events...)
		return true
	})
	return res
}
