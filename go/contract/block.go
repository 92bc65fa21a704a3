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
	"pgregory.net/rand"
)

const (
	DefaultBlockHeight = 1
	DefaultBlockTime   = 1_600_000_000

	defaultHeightIncrement = 1
	defaultTimeIncrement   = 5
)

// Range is an inclusive range of block increments.
type Range struct {
	Min, Max uint64
}

func (r Range) validate() error {
	if r.Min == 0 || r.Min > r.Max {
		return fmt.Errorf("invalid increment range [%d, %d]", r.Min, r.Max)
	}
	return nil
}

// Block simulates the progress of the chain. It is advanced once for every
// externally initiated call unless frozen.
type Block struct {
	Height uint64
	Time   uint64 // seconds since the epoch

	heightIncrement Range
	timeIncrement   Range
	random          *rand.Rand
	frozen          bool
}

func NewBlock() *Block {
	return &Block{
		Height:          DefaultBlockHeight,
		Time:            DefaultBlockTime,
		heightIncrement: Range{defaultHeightIncrement, defaultHeightIncrement},
		timeIncrement:   Range{defaultTimeIncrement, defaultTimeIncrement},
	}
}

// ExactIncrements makes every block advance by exactly the given amounts.
func (b *Block) ExactIncrements(height, seconds uint64) error {
	return b.setIncrements(Range{height, height}, Range{seconds, seconds}, nil)
}

// RandomIncrements makes every block advance by an amount drawn uniformly
// from the given ranges. The seed makes the sequence reproducible.
func (b *Block) RandomIncrements(height, seconds Range, seed uint64) error {
	return b.setIncrements(height, seconds, rand.New(seed))
}

func (b *Block) setIncrements(height, seconds Range, random *rand.Rand) error {
	if err := height.validate(); err != nil {
		return fmt.Errorf("height: %w", err)
	}
	if err := seconds.validate(); err != nil {
		return fmt.Errorf("time: %w", err)
	}
	b.heightIncrement = height
	b.timeIncrement = seconds
	b.random = random
	return nil
}

func (b *Block) Freeze() {
	b.frozen = true
}

func (b *Block) Unfreeze() {
	b.frozen = false
}

func (b *Block) Frozen() bool {
	return b.frozen
}

// Next advances the block unless it is frozen.
func (b *Block) Next() {
	if b.frozen {
		return
	}
	b.Height += b.draw(b.heightIncrement)
	b.Time += b.draw(b.timeIncrement)
}

func (b *Block) draw(r Range) uint64 {
	if b.random == nil || r.Min == r.Max {
		return r.Min
	}
	return r.Min + b.random.Uint64n(r.Max-r.Min+1)
}

// Info converts the block into the form observed by contracts.
func (b *Block) Info(chainID string) wasmvmtypes.BlockInfo {
	return wasmvmtypes.BlockInfo{
		Height:  b.Height,
		Time:    wasmvmtypes.Uint64(b.Time * 1_000_000_000),
		ChainID: chainID,
	}
}
