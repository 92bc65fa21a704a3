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
	"testing"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
)

func TestResponse_FlattenIsPreOrder(t *testing.T) {
	leaf := func(address string) *Response {
		return &Response{Kind: ExecuteResponse, Address: address}
	}
	root := &Response{
		Kind:    InstantiateResponse,
		Address: "root",
		Sent: []*Response{
			{Kind: ExecuteResponse, Address: "a", Sent: []*Response{leaf("a1"), leaf("a2")}},
			leaf("b"),
		},
	}

	var got []string
	for _, node := range root.Flatten() {
		got = append(got, node.Address)
	}
	want := []string{"root", "a", "a1", "a2", "b"}
	if len(want) != len(got) {
		t.Fatalf("unexpected number of nodes, want %v, got %v", want, got)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("unexpected node at %d, want %v, got %v", i, want[i], got[i])
		}
	}
}

func TestResponse_WalkCanSkipChildren(t *testing.T) {
	root := &Response{
		Address: "root",
		Sent:    []*Response{{Address: "a", Sent: []*Response{{Address: "hidden"}}}},
	}
	count := 0
	root.Walk(func(r *Response) bool {
		count++
		return r.Address != "a"
	})
	if want, got := 2, count; want != got {
		t.Errorf("unexpected number of visits, want %v, got %v", want, got)
	}
}

func TestResponse_AllEventsCollectsNestedEvents(t *testing.T) {
	root := &Response{
		Events: []wasmvmtypes.Event{{Type: "first"}},
		Sent: []*Response{
			{Events: []wasmvmtypes.Event{{Type: "second"}}},
			{Events: []wasmvmtypes.Event{{Type: "third"}}},
		},
	}
	events := root.AllEvents()
	if want, got := 3, len(events); want != got {
		t.Fatalf("unexpected number of events, want %v, got %v", want, got)
	}
	for i, want := range []string{"first", "second", "third"} {
		if got := events[i].Type; want != got {
			t.Errorf("unexpected event at %d, want %v, got %v", i, want, got)
		}
	}
}

func TestResponseKind_String(t *testing.T) {
	if want, got := "reply", ReplyResponse.String(); want != got {
		t.Errorf("unexpected name, want %v, got %v", want, got)
	}
}
