// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package executor

import (
	"errors"
	"fmt"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/contract"
)

// NodeState is the lifecycle state of a sub-message within its frame.
type NodeState int

const (
	// NotExecuted nodes wait for their message to be dispatched.
	NotExecuted NodeState = iota
	// ShouldReply nodes were executed successfully; they are finished once
	// their subtree is resolved and the reply, if requested, was delivered.
	ShouldReply
	// Replying nodes have a reply in flight or a subtree of a reply pending.
	Replying
	Done
)

func (s NodeState) String() string {
	switch s {
	case NotExecuted:
		return "NotExecuted"
	case ShouldReply:
		return "ShouldReply"
	case Replying:
		return "Replying"
	case Done:
		return "Done"
	default:
		return fmt.Sprintf("NodeState(%d)", int(s))
	}
}

// SubMsgNode wraps a sub-message emitted by a contract.
type SubMsgNode struct {
	Msg   wasmvmtypes.SubMsg
	State NodeState
	// Events emitted by the node's execution, its subtree, and the reply
	// delivered for it.
	Events []wasmvmtypes.Event

	data     []byte
	response *contract.Response
	reply    *contract.Response
	scope    int
}

// Frame holds the sub-messages emitted by a single contract invocation.
type Frame struct {
	// Sender is the contract that emitted the messages of this frame. It
	// receives the replies for them.
	Sender    string
	Nodes     []*SubMsgNode
	Responses []*contract.Response
	// Data is the result data of the invocation owning the frame. Replies
	// to Sender may overwrite it.
	Data []byte
}

// active returns the node currently being processed, which is the first one
// not yet done. Nodes finish in order, so it follows the responses.
func (f *Frame) active() *SubMsgNode {
	if len(f.Responses) == len(f.Nodes) {
		return nil
	}
	return f.Nodes[len(f.Responses)]
}

// MessageKind distinguishes the kinds of messages dispatched by a Stack.
type MessageKind int

const (
	SubMsgKind MessageKind = iota
	ReplyKind
)

// NextMessage is the message to be dispatched next: either a sub-message
// sent by Sender, or a reply to be delivered to Target.
type NextMessage struct {
	Kind   MessageKind
	Sender string
	Msg    wasmvmtypes.SubMsg
	Target string
	Reply  wasmvmtypes.Reply
}

// Stack walks the call tree of one externally initiated call. It hands out
// one message at a time through TakeNext and expects the outcome of each
// through ProcessResult. The caller has to open one revertable scope per
// taken message and revert as many scopes as ProcessResult reports.
type Stack struct {
	frames   []*Frame
	next     *NextMessage
	inFlight *NextMessage
	scopes   int
}

// NewStack creates a stack for a message sent by an external actor. The
// root message never requests a reply.
func NewStack(sender string, msg wasmvmtypes.CosmosMsg) *Stack {
	root := &SubMsgNode{Msg: wasmvmtypes.SubMsg{Msg: msg, ReplyOn: wasmvmtypes.ReplyNever}}
	s := &Stack{frames: []*Frame{{Sender: sender, Nodes: []*SubMsgNode{root}}}}
	s.next = &NextMessage{Kind: SubMsgKind, Sender: sender, Msg: root.Msg}
	return s
}

// Depth returns the number of frames on the stack.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Scopes returns the number of scopes the caller should have open for the
// messages taken so far.
func (s *Stack) Scopes() int {
	return s.scopes
}

// TakeNext returns the next message to dispatch, or nil if the call tree is
// fully resolved.
func (s *Stack) TakeNext() *NextMessage {
	if s.inFlight != nil {
		panic("previous message still in flight")
	}
	next := s.next
	if next == nil {
		return nil
	}
	s.next = nil
	s.inFlight = next
	if next.Kind == SubMsgKind {
		s.top().active().scope = s.scopes
	}
	s.scopes++
	return next
}

// ProcessResult feeds the outcome of the in-flight message into the stack.
// On success it returns zero. A contract error caught by a reply policy
// returns the number of scopes to revert, and the stack continues with an
// error reply. Any other error is returned as is; the whole call failed and
// all scopes need to be reverted. A response emitting a sub-message without a
// reply policy is such a failure.
func (s *Stack) ProcessResult(response *contract.Response, err error) (int, error) {
	msg := s.inFlight
	if msg == nil {
		panic("no message in flight")
	}
	s.inFlight = nil
	if err != nil {
		return s.processError(err)
	}
	if response == nil {
		panic("missing response for successful message")
	}
	for _, m := range response.Messages() {
		if m.ReplyOn == wasmvmtypes.UnsetReplyOn {
			return s.processError(contract.NewSerializationError(
				fmt.Errorf("%w: id %d from %s", contract.ErrMissingReplyPolicy, m.ID, response.Address)))
		}
	}
	s.processSuccess(msg, response)
	return 0, nil
}

func (s *Stack) processSuccess(msg *NextMessage, response *contract.Response) {
	frame := s.top()
	node := frame.active()
	node.Events = append(node.Events, response.Events...)
	response.Data = response.Response.Data

	switch msg.Kind {
	case SubMsgKind:
		if node.State != NotExecuted {
			panic(fmt.Sprintf("executed node in state %v", node.State))
		}
		node.State = ShouldReply
		node.response = response
		node.data = response.Response.Data
	case ReplyKind:
		if node.State != Replying {
			panic(fmt.Sprintf("reply for node in state %v", node.State))
		}
		// The reply may only overwrite the data of the frame holding the
		// node replied for, which is owned by the reply's target.
		if frame.Sender != msg.Target {
			panic(fmt.Sprintf("reply to %s would overwrite data of frame sent by %s", msg.Target, frame.Sender))
		}
		node.reply = response
		if len(response.Response.Data) > 0 {
			frame.Data = response.Response.Data
		}
	}

	if messages := response.Messages(); len(messages) > 0 {
		nodes := make([]*SubMsgNode, 0, len(messages))
		for _, m := range messages {
			nodes = append(nodes, &SubMsgNode{Msg: m})
		}
		s.frames = append(s.frames, &Frame{
			Sender: response.Address,
			Nodes:  nodes,
			Data:   response.Response.Data,
		})
	}
	s.advance()
}

// advance resolves finished frames and nodes until a message needs to be
// dispatched or the whole tree is resolved.
func (s *Stack) advance() {
	for {
		frame := s.top()
		node := frame.active()
		if node == nil {
			if len(s.frames) == 1 {
				return
			}
			s.popFrame()
			continue
		}
		switch node.State {
		case NotExecuted:
			s.next = &NextMessage{Kind: SubMsgKind, Sender: frame.Sender, Msg: node.Msg}
			return
		case ShouldReply:
			if repliesOnSuccess(node.Msg) {
				node.State = Replying
				s.next = &NextMessage{
					Kind:   ReplyKind,
					Target: frame.Sender,
					Reply: wasmvmtypes.Reply{
						ID:      node.Msg.ID,
						Payload: node.Msg.Payload,
						Result: wasmvmtypes.SubMsgResult{
							Ok: &wasmvmtypes.SubMsgResponse{
								Events: append([]wasmvmtypes.Event(nil), node.Events...),
								Data:   node.data,
							},
						},
					},
				}
				return
			}
			s.complete(node)
		case Replying:
			s.complete(node)
		default:
			panic(fmt.Sprintf("active node in state %v", node.State))
		}
	}
}

// popFrame removes the resolved top frame and attaches its results to the
// node owning it.
func (s *Stack) popFrame() {
	frame := s.top()
	s.frames = s.frames[:len(s.frames)-1]
	parent := s.top()
	owner := parent.active()
	switch owner.State {
	case ShouldReply:
		owner.response.Sent = append(owner.response.Sent, frame.Responses...)
		owner.response.Data = frame.Data
		owner.data = frame.Data
	case Replying:
		owner.reply.Sent = append(owner.reply.Sent, frame.Responses...)
		owner.reply.Data = frame.Data
		if len(frame.Data) > 0 {
			parent.Data = frame.Data
		}
	default:
		panic(fmt.Sprintf("frame owned by node in state %v", owner.State))
	}
}

// complete marks the active node of the top frame as done.
func (s *Stack) complete(node *SubMsgNode) {
	frame := s.top()
	node.State = Done
	response := node.response
	if node.reply != nil {
		if response == nil {
			response = node.reply
		} else {
			response.Sent = append(response.Sent, node.reply)
		}
	}
	frame.Responses = append(frame.Responses, response)
	if len(s.frames) > 1 {
		owner := s.frames[len(s.frames)-2].active()
		owner.Events = append(owner.Events, node.Events...)
	}
}

func (s *Stack) processError(err error) (int, error) {
	if !contract.IsContractError(err) {
		return 0, err
	}
	for i := len(s.frames) - 1; i >= 0; i-- {
		frame := s.frames[i]
		node := frame.active()
		if node == nil || node.State == Replying || !repliesOnError(node.Msg) {
			continue
		}
		s.frames = s.frames[:i+1]
		reverted := s.scopes - node.scope
		s.scopes = node.scope
		node.State = Replying
		node.response = nil
		node.Events = nil
		node.data = nil
		s.next = &NextMessage{
			Kind:   ReplyKind,
			Target: frame.Sender,
			Reply: wasmvmtypes.Reply{
				ID:      node.Msg.ID,
				Payload: node.Msg.Payload,
				Result:  wasmvmtypes.SubMsgResult{Err: errorMessage(err)},
			},
		}
		return reverted, nil
	}
	return 0, err
}

// Finalize returns the response of the resolved call tree. Calling it before
// the tree is resolved is a programming error.
func (s *Stack) Finalize() *contract.Response {
	if s.next != nil || s.inFlight != nil {
		panic("cannot finalize stack with outstanding message")
	}
	if len(s.frames) != 1 {
		panic(fmt.Sprintf("cannot finalize stack with %d frames", len(s.frames)))
	}
	if len(s.frames[0].Responses) != 1 {
		panic(fmt.Sprintf("cannot finalize stack with %d responses", len(s.frames[0].Responses)))
	}
	return s.frames[0].Responses[0]
}

func (s *Stack) top() *Frame {
	return s.frames[len(s.frames)-1]
}

func repliesOnSuccess(msg wasmvmtypes.SubMsg) bool {
	return msg.ReplyOn == wasmvmtypes.ReplyAlways || msg.ReplyOn == wasmvmtypes.ReplySuccess
}

func repliesOnError(msg wasmvmtypes.SubMsg) bool {
	return msg.ReplyOn == wasmvmtypes.ReplyAlways || msg.ReplyOn == wasmvmtypes.ReplyError
}

// errorMessage strips the classification of contract errors.
func errorMessage(err error) string {
	var classified *contract.Error
	if errors.As(err, &classified) && classified.Kind == contract.KindContract {
		return classified.Err.Error()
	}
	return err.Error()
}
