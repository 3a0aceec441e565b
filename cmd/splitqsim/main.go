// Copyright 2024 The Presto Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// splitqsim drives a task executor with synthetic splits and reports how the
// multilevel split queue shared the workers between short interactive work
// and long-running work.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/parekhparth/presto/pkg/execution/executor"
	"github.com/parekhparth/presto/pkg/util/log"
	"github.com/parekhparth/presto/pkg/util/metric"
	"github.com/parekhparth/presto/pkg/util/stop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var flags struct {
	config        string
	workers       int
	quantum       time.Duration
	multiplier    float64
	absolute      bool
	tasks         int
	splitsPerTask int
	shortWork     time.Duration
	longWork      time.Duration
	offerRate     float64
	timeout       time.Duration
	listenAddr    string
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "splitqsim",
		Short:         "simulate a task executor workload against the multilevel split queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSim,
	}

	f := rootCmd.Flags()
	f.StringVar(&flags.config, "config", "", "executor config file (YAML)")
	f.IntVar(&flags.workers, "workers", 0, "number of pool workers (0 = executor default)")
	f.DurationVar(&flags.quantum, "quantum", time.Second, "quantum granted per pull")
	f.Float64Var(&flags.multiplier, "multiplier", 2.0, "target inter-level scheduled time ratio")
	f.BoolVar(&flags.absolute, "absolute", false, "use absolute level priority instead of time-balanced")
	f.IntVar(&flags.tasks, "tasks", 8, "number of synthetic tasks")
	f.IntVar(&flags.splitsPerTask, "splits-per-task", 16, "splits enqueued per task")
	f.DurationVar(&flags.shortWork, "short-work", 50*time.Millisecond, "body time of a short split")
	f.DurationVar(&flags.longWork, "long-work", 2*time.Second, "body time of a long split")
	f.Float64Var(&flags.offerRate, "offer-rate", 100, "max split offers per second")
	f.DurationVar(&flags.timeout, "timeout", 5*time.Minute, "give up after this long")
	f.StringVar(&flags.listenAddr, "listen-addr", "", "serve prometheus metrics on this address")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// simSplit is a split body that needs a fixed amount of wall time.
type simSplit struct {
	remaining time.Duration
}

func (s *simSplit) ProcessFor(ctx context.Context, quantum time.Duration) (bool, error) {
	d := quantum
	if s.remaining < d {
		d = s.remaining
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	s.remaining -= d
	return s.remaining <= 0, nil
}

func buildConfig(cmd *cobra.Command) (executor.Config, error) {
	cfg := executor.DefaultConfig()
	if flags.config != "" {
		var err error
		if cfg, err = executor.LoadConfig(flags.config); err != nil {
			return executor.Config{}, err
		}
	}
	if cmd.Flags().Changed("workers") && flags.workers != 0 {
		cfg.Workers = flags.workers
	}
	if cmd.Flags().Changed("quantum") {
		cfg.Quantum = flags.quantum
	}
	if cmd.Flags().Changed("multiplier") {
		cfg.LevelTimeMultiplier = flags.multiplier
	}
	if cmd.Flags().Changed("absolute") {
		cfg.LevelAbsolutePriority = flags.absolute
	}
	return cfg, nil
}

func runSim(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	e, err := executor.NewTaskExecutor(cfg)
	if err != nil {
		return err
	}

	registry := metric.NewRegistry()
	e.RegisterMetrics(registry)
	if flags.listenAddr != "" {
		promRegistry := prometheus.NewRegistry()
		promRegistry.MustRegister(metric.MakePrometheusExporter(registry))
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
			if err := http.ListenAndServe(flags.listenAddr, mux); err != nil {
				log.Errorf(ctx, "metrics server failed: %v", err)
			}
		}()
		log.Infof(ctx, "serving metrics on %s/metrics", flags.listenAddr)
	}

	stopper := stop.NewStopper()
	defer stopper.Stop(context.Background())
	if err := e.Start(ctx, stopper); err != nil {
		return err
	}

	// Even-numbered tasks are interactive (short splits); odd ones are
	// long-running scans. The limiter paces admission so early tasks age
	// into deeper levels before the last offers arrive.
	limiter := rate.NewLimiter(rate.Limit(flags.offerRate), 1)
	g, gCtx := errgroup.WithContext(ctx)
	totalSplits := flags.tasks * flags.splitsPerTask
	for i := 0; i < flags.tasks; i++ {
		work := flags.shortWork
		if i%2 == 1 {
			work = flags.longWork
		}
		g.Go(func() error {
			task := e.AddTask()
			for j := 0; j < flags.splitsPerTask; j++ {
				if err := limiter.Wait(gCtx); err != nil {
					return err
				}
				if _, err := e.EnqueueSplit(task, &simSplit{remaining: work}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	start := time.Now()
	for e.Metrics().CompletedSplits.Count()+e.Metrics().FailedSplits.Count() < int64(totalSplits) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	log.Infof(ctx, "drained %s splits in %s",
		humanize.Comma(int64(totalSplits)), time.Since(start).Round(time.Millisecond))

	printSummary(e)
	return nil
}

func printSummary(e *executor.TaskExecutor) {
	scheduled := e.Queue().LevelScheduledTime()
	counters := e.Queue().SelectedLevelCounters()

	w := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(w, "level\tdispatched\tscheduled")
	for i, c := range counters {
		fmt.Fprintf(w, "%d\t%s\t%s\n",
			i, humanize.Comma(c.Count()), time.Duration(scheduled[i]).Round(time.Millisecond))
	}
	_ = w.Flush()
	fmt.Printf("completed %s splits, %s failed, cumulative wait %s\n",
		humanize.Comma(e.Metrics().CompletedSplits.Count()),
		humanize.Comma(e.Metrics().FailedSplits.Count()),
		time.Duration(e.Metrics().SplitWaitNanos.Count()).Round(time.Millisecond))
}
