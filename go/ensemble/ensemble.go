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
	"os"

	wasmvmtypes "github.com/CosmWasm/wasmvm/v2/types"
	"github.com/Fantom-foundation/Ensemble/go/bank"
	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/executor"
	"github.com/Fantom-foundation/Ensemble/go/logging"
	"github.com/Fantom-foundation/Ensemble/go/staking"
	"github.com/Fantom-foundation/Ensemble/go/state"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/sha3"
)

// code is a registered harness.
type code struct {
	id      uint64
	name    string
	harness contract.Harness
	hash    []byte
}

// ContractEnsemble runs contracts against a simulated chain. Every
// externally initiated call is executed atomically: it either succeeds as a
// whole or leaves no trace in storages, ledger and delegations.
type ContractEnsemble struct {
	config  *Config
	logger  *logging.Logger
	metrics Metrics

	state *state.State
	block *contract.Block
	api   contract.AddressValidator
	codes []*code
	cache *lru.Cache[queryKey, []byte]
}

type Option func(*ContractEnsemble)

// WithConfig replaces the default configuration.
func WithConfig(config *Config) Option {
	return func(e *ContractEnsemble) {
		e.config = config
	}
}

func WithLogger(logger *logging.Logger) Option {
	return func(e *ContractEnsemble) {
		e.logger = logger
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(e *ContractEnsemble) {
		e.metrics = metrics
	}
}

// New creates an empty ensemble. Without options it uses the default
// configuration, discards all logs and collects no metrics.
func New(opts ...Option) (*ContractEnsemble, error) {
	e := &ContractEnsemble{
		config:  DefaultConfig(),
		logger:  logging.NewNopLogger(),
		metrics: NopMetrics{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	block, err := e.config.Block.NewBlock()
	if err != nil {
		return nil, err
	}
	if e.config.QueryCacheSize > 0 {
		cache, err := lru.New[queryKey, []byte](e.config.QueryCacheSize)
		if err != nil {
			return nil, err
		}
		e.cache = cache
	}
	e.logger = e.logger.WithComponent("ensemble")
	e.block = block
	e.api = contract.AddressValidator{MaxLength: e.config.MaxAddressLength}
	e.state = state.New(bank.New(), staking.New(e.config.BondedDenom))
	return e, nil
}

// NewFromConfigFile creates an ensemble configured by the given file and the
// environment, logging to stderr as configured.
func NewFromConfigFile(path string, opts ...Option) (*ContractEnsemble, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(os.Stderr, config.Logging.Level, config.Logging.Format)
	if err != nil {
		return nil, err
	}
	return New(append([]Option{WithConfig(config), WithLogger(logger)}, opts...)...)
}

// Config returns the configuration of the ensemble.
func (e *ContractEnsemble) Config() Config {
	return *e.config
}

// Register adds a harness and returns its code id. Code ids start at 1.
func (e *ContractEnsemble) Register(harness contract.Harness) uint64 {
	return e.register(fmt.Sprintf("%T", harness), harness)
}

// RegisterNamed adds a harness created by the factory registered under the
// given name.
func (e *ContractEnsemble) RegisterNamed(name string) (uint64, error) {
	harness, err := contract.NewHarness(name)
	if err != nil {
		return 0, contract.NewRegistryError(err)
	}
	return e.register(name, harness), nil
}

func (e *ContractEnsemble) register(name string, harness contract.Harness) uint64 {
	if harness == nil {
		panic("cannot register nil harness")
	}
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(name))
	c := &code{
		id:      uint64(len(e.codes) + 1),
		name:    name,
		harness: harness,
		hash:    hasher.Sum(nil),
	}
	e.codes = append(e.codes, c)
	e.logger.Debug("registered harness", "name", name, "code_id", c.id)
	return c.id
}

func (e *ContractEnsemble) code(id uint64) (*code, error) {
	if id == 0 || id > uint64(len(e.codes)) {
		return nil, contract.NewRegistryError(fmt.Errorf("%w: %d", contract.ErrUnknownCode, id))
	}
	return e.codes[id-1], nil
}

// CodeHash returns the checksum of the registered code.
func (e *ContractEnsemble) CodeHash(id uint64) ([]byte, error) {
	c, err := e.code(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), c.hash...), nil
}

// Instantiate creates a new instance of the given code at the address of
// env.Contract, sending it the funds attached to env.
func (e *ContractEnsemble) Instantiate(codeID uint64, msg []byte, env contract.MockEnv) (*contract.Response, error) {
	if err := env.Validate(e.config.MaxAddressLength); err != nil {
		return nil, err
	}
	return e.call(env.Sender, wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{
		Instantiate: &wasmvmtypes.InstantiateMsg{
			CodeID: codeID,
			Msg:    msg,
			Funds:  contract.ToWasmCoins(env.Funds),
			Label:  env.Contract,
		},
	}})
}

// Execute sends msg to the instance at env.Contract.
func (e *ContractEnsemble) Execute(msg []byte, env contract.MockEnv) (*contract.Response, error) {
	if err := env.Validate(e.config.MaxAddressLength); err != nil {
		return nil, err
	}
	return e.call(env.Sender, wasmvmtypes.CosmosMsg{Wasm: &wasmvmtypes.WasmMsg{
		Execute: &wasmvmtypes.ExecuteMsg{
			ContractAddr: env.Contract,
			Msg:          msg,
			Funds:        contract.ToWasmCoins(env.Funds),
		},
	}})
}

// call executes the call tree rooted in msg. Each dispatched message gets
// its own scope; scopes of messages whose failure was caught by a reply are
// reverted, all others are committed together at the end.
func (e *ContractEnsemble) call(sender string, msg wasmvmtypes.CosmosMsg) (*contract.Response, error) {
	e.invalidateQueries()
	defer e.block.Next()

	stack := executor.NewStack(sender, msg)
	for next := stack.TakeNext(); next != nil; next = stack.TakeNext() {
		e.state.PushScope()
		response, err := e.dispatch(next, stack.Depth())
		reverted, err := stack.ProcessResult(response, err)
		if err != nil {
			e.metrics.ScopesReverted(e.state.ScopeDepth())
			e.state.Revert()
			e.metrics.CallFinished("failure")
			e.logger.Debug("call failed", logging.Sender(sender), logging.Error(err))
			return nil, err
		}
		if reverted > 0 {
			e.logger.Debug("reverting caught failure", logging.Count(reverted), logging.Depth(stack.Depth()))
			e.metrics.ScopesReverted(reverted)
		}
		for i := 0; i < reverted; i++ {
			e.state.RevertScope()
		}
		if depth := e.state.ScopeDepth(); depth != stack.Scopes() {
			panic(fmt.Sprintf("scope depth %d does not match executor scopes %d", depth, stack.Scopes()))
		}
	}
	response := stack.Finalize()
	e.state.Commit()
	e.metrics.CallFinished("success")
	return response, nil
}

// Block returns the simulated block. It may be modified between calls.
// Cached query results are dropped since they depend on the block.
func (e *ContractEnsemble) Block() *contract.Block {
	e.invalidateQueries()
	return e.block
}

// State exposes the simulated chain state. Callers may modify it, so cached
// query results are dropped.
func (e *ContractEnsemble) State() *state.State {
	e.invalidateQueries()
	return e.state
}

// Instances lists all contract instances in creation order.
func (e *ContractEnsemble) Instances() []*state.Instance {
	return e.state.Instances()
}

func (e *ContractEnsemble) deps(store wasmvmtypes.KVStore) contract.Deps {
	return contract.Deps{
		Storage: store,
		Api:     e.api,
		Querier: &querier{ensemble: e},
	}
}

func (e *ContractEnsemble) env(address string) wasmvmtypes.Env {
	return contract.NewEnv(e.block.Info(e.config.ChainID), address)
}
