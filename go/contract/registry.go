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
	"strings"
	"sync"

	"golang.org/x/exp/maps"
)

// This file provides a registry of named Harness factories.
//
// Packages providing example contracts register their harnesses in their
// init code. Tools like the ensemble driver can then look up contracts by
// name without depending on the implementing packages directly.

// HarnessFactory creates a fresh harness instance.
type HarnessFactory func() Harness

// NewHarness performs a lookup for the given name (case-insensitive) in the
// registry and creates a new Harness. An error is returned if no factory was
// registered under the given name.
func NewHarness(name string) (Harness, error) {
	factory := GetHarnessFactory(name)
	if factory == nil {
		return nil, fmt.Errorf("harness not found: %s", name)
	}
	return factory(), nil
}

// GetHarnessFactory performs a lookup for the given name (case-insensitive)
// in the registry. The result is nil if no factory was registered under the
// given name.
func GetHarnessFactory(name string) HarnessFactory {
	harnessRegistryLock.Lock()
	defer harnessRegistryLock.Unlock()
	return harnessRegistry[strings.ToLower(name)]
}

// GetAllRegisteredHarnesses obtains all registered factories.
func GetAllRegisteredHarnesses() map[string]HarnessFactory {
	harnessRegistryLock.Lock()
	defer harnessRegistryLock.Unlock()
	return maps.Clone(harnessRegistry)
}

// RegisterHarnessFactory registers a new Harness implementation. The name is
// not case-sensitive. An error is returned if a factory was bound to the same
// name before, or the factory is nil.
func RegisterHarnessFactory(name string, factory HarnessFactory) error {
	key := strings.ToLower(name)
	if factory == nil {
		return fmt.Errorf("invalid initialization: cannot register nil-factory using `%s`", key)
	}
	harnessRegistryLock.Lock()
	defer harnessRegistryLock.Unlock()
	if _, found := harnessRegistry[key]; found {
		return fmt.Errorf("invalid initialization: multiple factories registered for `%s`", key)
	}
	harnessRegistry[key] = factory
	return nil
}

// MustRegisterHarnessFactory is like RegisterHarnessFactory but panics on
// failure. It is intended to be used by package initialization code.
func MustRegisterHarnessFactory(name string, factory HarnessFactory) {
	if err := RegisterHarnessFactory(name, factory); err != nil {
		panic(err)
	}
}

var harnessRegistry = map[string]HarnessFactory{}

var harnessRegistryLock sync.Mutex
