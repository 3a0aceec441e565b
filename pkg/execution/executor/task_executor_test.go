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

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/parekhparth/presto/pkg/util/leaktest"
	"github.com/parekhparth/presto/pkg/util/metric"
	"github.com/parekhparth/presto/pkg/util/stop"
	"github.com/parekhparth/presto/pkg/util/syncutil"
	"github.com/stretchr/testify/require"
)

// sleepSplit simulates a split whose body needs a fixed amount of time.
type sleepSplit struct {
	mu struct {
		syncutil.Mutex
		remaining time.Duration
	}
}

func newSleepSplit(total time.Duration) *sleepSplit {
	s := &sleepSplit{}
	s.mu.remaining = total
	return s
}

func (s *sleepSplit) ProcessFor(ctx context.Context, quantum time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := quantum
	if s.mu.remaining < d {
		d = s.mu.remaining
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	s.mu.remaining -= d
	return s.mu.remaining <= 0, nil
}

// failingSplit fails its first quantum.
type failingSplit struct{}

func (failingSplit) ProcessFor(ctx context.Context, quantum time.Duration) (bool, error) {
	return false, errors.New("boom")
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Workers = 4
	cfg.Quantum = 5 * time.Millisecond
	return cfg
}

func TestTaskExecutorCompletesSplits(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	stopper := stop.NewStopper()
	defer stopper.Stop(ctx)

	e, err := NewTaskExecutor(testConfig())
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx, stopper))

	const numTasks, splitsPerTask = 3, 4
	for i := 0; i < numTasks; i++ {
		task := e.AddTask()
		for j := 0; j < splitsPerTask; j++ {
			_, err := e.EnqueueSplit(task, newSleepSplit(12*time.Millisecond))
			require.NoError(t, err)
		}
	}

	require.Eventually(t, func() bool {
		return e.Metrics().CompletedSplits.Count() == numTasks*splitsPerTask &&
			e.Queue().Size() == 0
	}, 30*time.Second, 5*time.Millisecond)

	// Every dispatch was counted against some level.
	var dispatched int64
	for _, c := range e.Queue().SelectedLevelCounters() {
		dispatched += c.Count()
	}
	require.GreaterOrEqual(t, dispatched, int64(numTasks*splitsPerTask))
	require.EqualValues(t, 0, e.Metrics().RunningSplits.Value())
}

func TestTaskExecutorRetiresFailedSplits(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	stopper := stop.NewStopper()
	defer stopper.Stop(ctx)

	e, err := NewTaskExecutor(testConfig())
	require.NoError(t, err)
	require.NoError(t, e.Start(ctx, stopper))

	task := e.AddTask()
	_, err = e.EnqueueSplit(task, failingSplit{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return e.Metrics().FailedSplits.Count() == 1 && e.Queue().Size() == 0
	}, 30*time.Second, 5*time.Millisecond)
	require.EqualValues(t, 0, e.Metrics().CompletedSplits.Count())
}

func TestTaskExecutorRemoveTaskWithdrawsWaitingSplits(t *testing.T) {
	defer leaktest.AfterTest(t)()

	// No workers are started; splits stay queued.
	e, err := NewTaskExecutor(testConfig())
	require.NoError(t, err)

	task := e.AddTask()
	for i := 0; i < 3; i++ {
		_, err := e.EnqueueSplit(task, newSleepSplit(time.Millisecond))
		require.NoError(t, err)
	}
	require.Equal(t, 3, e.Queue().Size())

	e.RemoveTask(task)
	require.Equal(t, 0, e.Queue().Size())

	// Enqueueing on a removed task fails.
	_, err = e.EnqueueSplit(task, newSleepSplit(time.Millisecond))
	require.Error(t, err)
}

func TestTaskExecutorRegisterMetrics(t *testing.T) {
	defer leaktest.AfterTest(t)()

	e, err := NewTaskExecutor(testConfig())
	require.NoError(t, err)

	registry := metric.NewRegistry()
	e.RegisterMetrics(registry)

	names := make(map[string]bool)
	registry.Each(func(m metric.Iterable) {
		names[m.GetName()] = true
	})
	require.True(t, names["executor.splits.completed"])
	require.True(t, names["executor.splits.selected.l0"])
	require.Len(t, names, 4+NumLevels)
}

func TestConfigValidate(t *testing.T) {
	defer leaktest.AfterTest(t)()

	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Workers = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.LevelTimeMultiplier = 1.0
	require.Error(t, cfg.Validate())

	// The degenerate multiplier is fine in absolute mode, where it is
	// ignored.
	cfg.LevelAbsolutePriority = true
	require.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Quantum = 0
	require.Error(t, cfg.Validate())
}
