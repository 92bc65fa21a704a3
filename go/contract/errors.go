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
)

// ConstError is an error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	ErrUnknownAddress     = ConstError("no contract instance at address")
	ErrDuplicateAddress   = ConstError("contract instance already exists at address")
	ErrUnknownCode        = ConstError("no contract registered for code id")
	ErrReplyNotSupported  = ConstError("contract does not support replies")
	ErrUnsupportedMessage = ConstError("unsupported message")
	ErrUnsupportedQuery   = ConstError("unsupported query")
	ErrReadOnlyStorage    = ConstError("storage is read-only during queries")
	ErrEmptyAddress       = ConstError("address must not be empty")
	ErrAddressTooLong     = ConstError("address exceeds maximum length")
	ErrInvalidAmount      = ConstError("invalid coin amount")
	ErrMissingReplyPolicy = ConstError("sub-message has no reply policy")
)

// ErrorKind classifies failures by the way they propagate through a call
// tree. Only KindContract errors may be caught by a reply.
type ErrorKind int

const (
	KindContract ErrorKind = iota
	KindRegistry
	KindBank
	KindStaking
	KindSerialization
)

func (k ErrorKind) String() string {
	switch k {
	case KindContract:
		return "contract"
	case KindRegistry:
		return "registry"
	case KindBank:
		return "bank"
	case KindStaking:
		return "staking"
	case KindSerialization:
		return "serialization"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error attaches an ErrorKind to an underlying error.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewContractError(err error) error {
	return newError(KindContract, err)
}

func NewRegistryError(err error) error {
	return newError(KindRegistry, err)
}

func NewBankError(err error) error {
	return newError(KindBank, err)
}

func NewStakingError(err error) error {
	return newError(KindStaking, err)
}

func NewSerializationError(err error) error {
	return newError(KindSerialization, err)
}

// newError wraps err unless it already carries a kind.
func newError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf reports the kind of the given error. Errors that were never
// classified are treated as contract errors, since these can only originate
// from contract code.
func KindOf(err error) ErrorKind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return KindContract
}

// IsContractError reports whether err may be caught by an error reply.
func IsContractError(err error) bool {
	return err != nil && KindOf(err) == KindContract
}
