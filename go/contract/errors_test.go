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
	"errors"
	"fmt"
	"testing"
)

func TestConstError_Error(t *testing.T) {
	const myError = ConstError("this is a constant error")

	if myError.Error() != "this is a constant error" {
		t.Errorf("expected 'this is a constant error', got '%s'", myError.Error())
	}
	if !errors.Is(myError, ConstError("this is a constant error")) {
		t.Errorf("expected true, got false")
	}
}

func TestError_KindIsPreservedThroughWrapping(t *testing.T) {
	tests := map[string]struct {
		err  error
		kind ErrorKind
	}{
		"unclassified": {
			err:  fmt.Errorf("boom"),
			kind: KindContract,
		},
		"registry": {
			err:  NewRegistryError(ErrUnknownAddress),
			kind: KindRegistry,
		},
		"bank": {
			err:  NewBankError(ErrInvalidAmount),
			kind: KindBank,
		},
		"staking wrapped": {
			err:  fmt.Errorf("delegate: %w", NewStakingError(ErrInvalidAmount)),
			kind: KindStaking,
		},
		"serialization": {
			err:  NewSerializationError(ErrUnsupportedMessage),
			kind: KindSerialization,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if want, got := test.kind, KindOf(test.err); want != got {
				t.Errorf("unexpected kind, want %v, got %v", want, got)
			}
			if want, got := test.kind == KindContract, IsContractError(test.err); want != got {
				t.Errorf("unexpected catchability, want %v, got %v", want, got)
			}
		})
	}
}

func TestError_ReclassificationKeepsOriginalKind(t *testing.T) {
	err := NewContractError(NewBankError(ErrInvalidAmount))
	if want, got := KindBank, KindOf(err); want != got {
		t.Errorf("unexpected kind, want %v, got %v", want, got)
	}
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("classified error should unwrap to its cause")
	}
}

func TestError_NilStaysNil(t *testing.T) {
	if err := NewRegistryError(nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if IsContractError(nil) {
		t.Errorf("nil must not be a contract error")
	}
}

func TestErrorKind_String(t *testing.T) {
	if want, got := "staking", KindStaking.String(); want != got {
		t.Errorf("unexpected name, want %v, got %v", want, got)
	}
	if want, got := "ErrorKind(42)", ErrorKind(42).String(); want != got {
		t.Errorf("unexpected name, want %v, got %v", want, got)
	}
}
