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
	"github.com/holiman/uint256"
)

// Coin is an amount of a single denomination as tracked by the ledger and
// the staking registry.
type Coin struct {
	Denom  string
	Amount uint256.Int
}

// NewCoin creates a coin from a small amount.
func NewCoin(amount uint64, denom string) Coin {
	return Coin{Denom: denom, Amount: *uint256.NewInt(amount)}
}

func (c Coin) IsZero() bool {
	return c.Amount.IsZero()
}

func (c Coin) String() string {
	return c.Amount.Dec() + c.Denom
}

// ToWasm converts the coin into its wire representation.
func (c Coin) ToWasm() wasmvmtypes.Coin {
	return wasmvmtypes.Coin{Denom: c.Denom, Amount: c.Amount.Dec()}
}

// ParseCoin converts a wire coin. Amounts must be decimal and fit into 256
// bits.
func ParseCoin(coin wasmvmtypes.Coin) (Coin, error) {
	if coin.Denom == "" {
		return Coin{}, fmt.Errorf("%w: empty denomination", ErrInvalidAmount)
	}
	amount, err := uint256.FromDecimal(coin.Amount)
	if err != nil {
		return Coin{}, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, coin.Amount, err)
	}
	return Coin{Denom: coin.Denom, Amount: *amount}, nil
}

func ParseCoins(coins []wasmvmtypes.Coin) ([]Coin, error) {
	res := make([]Coin, 0, len(coins))
	for _, coin := range coins {
		parsed, err := ParseCoin(coin)
		if err != nil {
			return nil, err
		}
		res = append(res, parsed)
	}
	return res, nil
}

func ToWasmCoins(coins []Coin) []wasmvmtypes.Coin {
	res := make([]wasmvmtypes.Coin, 0, len(coins))
	for _, coin := range coins {
		res = append(res, coin.ToWasm())
	}
	return res
}
