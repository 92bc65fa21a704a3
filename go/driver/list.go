// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"sort"

	"github.com/Fantom-foundation/Ensemble/go/contract"
	"github.com/Fantom-foundation/Ensemble/go/examples"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
)

var ListCmd = cli.Command{
	Action: doList,
	Name:   "list",
	Usage:  "List available examples and registered contract harnesses",
}

func doList(context *cli.Context) error {
	fmt.Println("Examples:")
	for _, example := range examples.GetAllExamples() {
		fmt.Printf("\t%s\n", example.Name)
	}
	harnesses := maps.Keys(contract.GetAllRegisteredHarnesses())
	sort.Strings(harnesses)
	fmt.Println("Harnesses:")
	for _, name := range harnesses {
		fmt.Printf("\t%s\n", name)
	}
	return nil
}
