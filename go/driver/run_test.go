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
	"regexp"
	"testing"

	"github.com/Fantom-foundation/Ensemble/go/ensemble"
	"github.com/Fantom-foundation/Ensemble/go/examples"
	"github.com/Fantom-foundation/Ensemble/go/logging"
)

func TestMakeTasks_FiltersAndRepeats(t *testing.T) {
	all := examples.GetAllExamples()
	tasks := makeTasks(all, regexp.MustCompile("^counter$"), 3, 7)
	if len(tasks) != 3 {
		t.Fatalf("unexpected number of tasks, want 3, got %d", len(tasks))
	}
	for i, task := range tasks {
		if task.example.Name != "counter" {
			t.Errorf("unexpected example, want counter, got %s", task.example.Name)
		}
		if task.argument < 0 || task.argument >= maxArgument {
			t.Errorf("argument out of range: %d", task.argument)
		}
		if i == 0 && task.argument != 0 {
			t.Errorf("first run should use argument zero, got %d", task.argument)
		}
	}
}

func TestMakeTasks_IsDeterministic(t *testing.T) {
	all := examples.GetAllExamples()
	a := makeTasks(all, regexp.MustCompile(".*"), 4, 42)
	b := makeTasks(all, regexp.MustCompile(".*"), 4, 42)
	if len(a) != len(b) || len(a) != 4*len(all) {
		t.Fatalf("unexpected number of tasks, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i].example.Name != b[i].example.Name || a[i].argument != b[i].argument {
			t.Errorf("task %d differs: %v(%d) vs %v(%d)", i, a[i].example.Name, a[i].argument, b[i].example.Name, b[i].argument)
		}
	}
}

func TestRunTasks_AllExamplesMatchReference(t *testing.T) {
	tasks := makeTasks(examples.GetAllExamples(), regexp.MustCompile(".*"), 3, 1)
	metrics := ensemble.NewPrometheusMetrics("driver_test")
	issues := runTasks(tasks, 4, nil, ensemble.WithLogger(logging.NewNopLogger()), ensemble.WithMetrics(metrics))
	for _, issue := range issues {
		t.Errorf("%s(%d) failed: %v", issue.example, issue.argument, issue.err)
	}
}
