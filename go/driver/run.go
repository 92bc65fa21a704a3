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
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	cliUtils "github.com/Fantom-foundation/Ensemble/go/driver/cli"
	"github.com/Fantom-foundation/Ensemble/go/ensemble"
	"github.com/Fantom-foundation/Ensemble/go/examples"
	"github.com/Fantom-foundation/Ensemble/go/logging"
	"github.com/dsnet/golib/unitconv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"pgregory.net/rand"
)

var RunCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doRun,
	Name:   "run",
	Usage:  "Run example scenarios and compare them with their reference results",
	Flags: []cli.Flag{
		cliUtils.FilterFlag,
		cliUtils.JobsFlag,
		cliUtils.SeedFlag,
		cliUtils.RepeatFlag,
		cliUtils.ConfigFlag,
		cliUtils.LogLevelFlag,
		cliUtils.MetricsAddrFlag,
	},
})

// maxArgument bounds the randomly drawn example arguments.
const maxArgument = 1000

func doRun(context *cli.Context) error {
	filter, err := cliUtils.FilterFlag.Fetch(context)
	if err != nil {
		return err
	}
	repeat, err := cliUtils.RepeatFlag.Fetch(context)
	if err != nil {
		return err
	}
	jobCount := cliUtils.JobsFlag.Fetch(context)
	seed := cliUtils.SeedFlag.Fetch(context)

	config, err := ensemble.LoadConfig(cliUtils.ConfigFlag.Fetch(context))
	if err != nil {
		return err
	}
	if level := cliUtils.LogLevelFlag.Fetch(context); level != "" {
		config.Logging.Level = level
	}
	logger, err := logging.NewLogger(os.Stderr, config.Logging.Level, config.Logging.Format)
	if err != nil {
		return err
	}

	metrics := ensemble.NewPrometheusMetrics("ensemble")
	if addr := cliUtils.MetricsAddrFlag.Fetch(context); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", logging.Error(err))
			}
		}()
		defer server.Close()
	}

	tasks := makeTasks(examples.GetAllExamples(), filter, repeat, seed)
	if len(tasks) == 0 {
		return fmt.Errorf("no example matches %v", filter)
	}

	printProgress := func(relativeTime time.Duration, rate float64, current int64) {
		fmt.Printf(
			"[t=%4d:%02d] - Processing ~%s examples per second, total %d\n",
			int(relativeTime.Seconds())/60, int(relativeTime.Seconds())%60,
			unitconv.FormatPrefix(rate, unitconv.SI, 0), current,
		)
	}

	fmt.Printf("Running %d example runs with seed %d using %d jobs ...\n", len(tasks), seed, jobCount)
	start := time.Now()
	issues := runTasks(tasks, jobCount, printProgress,
		ensemble.WithConfig(config),
		ensemble.WithLogger(logger),
		ensemble.WithMetrics(metrics),
	)
	elapsed := time.Since(start)
	rate := float64(len(tasks)) / elapsed.Seconds()
	fmt.Printf("Finished %d runs in %v (~%s runs per second)\n",
		len(tasks), elapsed.Round(time.Millisecond), unitconv.FormatPrefix(rate, unitconv.SI, 0))

	if len(issues) == 0 {
		fmt.Printf("All examples matched their reference!\n")
		return nil
	}
	for _, issue := range issues {
		fmt.Printf("----------------------------\n")
		fmt.Printf("%s(%d): %v\n", issue.example, issue.argument, issue.err)
	}
	return fmt.Errorf("failed to pass %d example runs", len(issues))
}

type task struct {
	example  examples.Example
	argument int
}

type issue struct {
	example  string
	argument int
	err      error
}

// makeTasks lists the runs for all examples matching the filter. The first
// run of every example uses argument zero.
func makeTasks(all []examples.Example, filter *regexp.Regexp, repeat int, seed uint64) []task {
	rnd := rand.New(seed)
	var res []task
	for _, example := range all {
		if !filter.MatchString(example.Name) {
			continue
		}
		for i := 0; i < repeat; i++ {
			argument := 0
			if i > 0 {
				argument = rnd.Intn(maxArgument)
			}
			res = append(res, task{example: example, argument: argument})
		}
	}
	return res
}

// runTasks runs all tasks on jobCount workers, each on a fresh ensemble, and
// reports runs that failed or deviated from the reference ordered by example
// and argument.
func runTasks(tasks []task, jobCount int, progress func(time.Duration, float64, int64), opts ...ensemble.Option) []issue {
	var (
		mutex  sync.Mutex
		issues []issue
		done   atomic.Int64
		wg     sync.WaitGroup
	)

	work := make(chan task)
	for i := 0; i < jobCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range work {
				if err := runTask(t, opts...); err != nil {
					mutex.Lock()
					issues = append(issues, issue{example: t.example.Name, argument: t.argument, err: err})
					mutex.Unlock()
				}
				done.Add(1)
			}
		}()
	}

	stop := make(chan struct{})
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		start := time.Now()
		last := int64(0)
		lastTime := start
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				current := done.Load()
				rate := float64(current-last) / now.Sub(lastTime).Seconds()
				if progress != nil {
					progress(now.Sub(start), rate, current)
				}
				last, lastTime = current, now
			}
		}
	}()

	for _, t := range tasks {
		work <- t
	}
	close(work)
	wg.Wait()
	close(stop)
	<-reporterDone

	sort.Slice(issues, func(i, j int) bool {
		if issues[i].example != issues[j].example {
			return issues[i].example < issues[j].example
		}
		return issues[i].argument < issues[j].argument
	})
	return issues
}

func runTask(t task, opts ...ensemble.Option) error {
	got, err := t.example.RunOn(t.argument, opts...)
	if err != nil {
		return err
	}
	if want := t.example.RunReference(t.argument); want != got.Result {
		return fmt.Errorf("unexpected result, want %d, got %d", want, got.Result)
	}
	return nil
}
