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
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/parekhparth/presto/pkg/util/log"
	"github.com/parekhparth/presto/pkg/util/stop"
	"github.com/parekhparth/presto/pkg/util/syncutil"
)

// TaskExecutor owns the worker pool draining a MultilevelSplitQueue. Each
// worker loops: take a split, run it for one quantum, charge the consumed
// time back to its task, then re-enqueue or retire it.
type TaskExecutor struct {
	cfg     Config
	queue   *MultilevelSplitQueue
	metrics Metrics

	mu struct {
		syncutil.Mutex
		// tasks tracks each task's splits so cancellation can withdraw the
		// waiting ones.
		tasks map[*TaskHandle][]*PrioritizedSplitRunner
	}
}

// NewTaskExecutor returns an executor for the given configuration. The
// worker pool is not started until Start.
func NewTaskExecutor(cfg Config) (*TaskExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &TaskExecutor{
		cfg:   cfg,
		queue: NewMultilevelSplitQueue(cfg.LevelAbsolutePriority, cfg.LevelTimeMultiplier),
	}
	e.metrics = makeMetrics(e.queue)
	e.mu.tasks = make(map[*TaskHandle][]*PrioritizedSplitRunner)
	return e, nil
}

// Queue returns the executor's split queue.
func (e *TaskExecutor) Queue() *MultilevelSplitQueue {
	return e.queue
}

// Start launches the worker pool. Workers run until the stopper quiesces.
func (e *TaskExecutor) Start(ctx context.Context, stopper *stop.Stopper) error {
	for i := 0; i < e.cfg.Workers; i++ {
		workerID := i
		taskCtx := logtags.AddTag(ctx, "worker", workerID)
		if err := stopper.RunAsyncTask(taskCtx,
			fmt.Sprintf("task-executor-worker-%d", workerID),
			func(ctx context.Context) {
				ctx, cancel := stopper.WithCancelOnQuiesce(ctx)
				defer cancel()
				e.runWorker(ctx)
			}); err != nil {
			return err
		}
	}
	log.VEventf(ctx, 2, "task executor started with %d workers", e.cfg.Workers)
	return nil
}

// AddTask registers a new task with the executor.
func (e *TaskExecutor) AddTask() *TaskHandle {
	task := NewTaskHandle(e.queue)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mu.tasks[task] = nil
	return task
}

// EnqueueSplit binds a split body to the task and offers it to the queue.
func (e *TaskExecutor) EnqueueSplit(task *TaskHandle, runner SplitRunner) (*PrioritizedSplitRunner, error) {
	split := NewPrioritizedSplitRunner(task, runner)
	e.mu.Lock()
	if _, ok := e.mu.tasks[task]; !ok {
		e.mu.Unlock()
		return nil, errors.Newf("task is not registered with this executor")
	}
	e.mu.tasks[task] = append(e.mu.tasks[task], split)
	e.mu.Unlock()
	if err := e.queue.Offer(split); err != nil {
		return nil, err
	}
	return split, nil
}

// RemoveTask cancels a task, withdrawing its waiting splits from the queue.
// Splits mid-quantum finish the quantum and are retired afterwards.
func (e *TaskExecutor) RemoveTask(task *TaskHandle) {
	e.mu.Lock()
	splits := e.mu.tasks[task]
	delete(e.mu.tasks, task)
	e.mu.Unlock()

	waiting := make([]PrioritizedSplit, len(splits))
	for i, s := range splits {
		waiting[i] = s
	}
	e.queue.RemoveAll(waiting)
}

// retireSplit drops the executor's tracking of a finished or failed split.
func (e *TaskExecutor) retireSplit(split *PrioritizedSplitRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	task := split.Task()
	splits := e.mu.tasks[task]
	for i, s := range splits {
		if s == split {
			e.mu.tasks[task] = append(splits[:i], splits[i+1:]...)
			break
		}
	}
}

// runWorker is the body of one pool worker.
func (e *TaskExecutor) runWorker(ctx context.Context) {
	for {
		split, err := e.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrTakeInterrupted) {
				log.VEventf(ctx, 2, "worker stopping: %v", err)
				return
			}
			log.Errorf(ctx, "split queue failed: %v", err)
			return
		}

		runner, ok := split.(*PrioritizedSplitRunner)
		if !ok {
			log.Fatalf(ctx, "unexpected split type %T", split)
		}

		e.metrics.SplitWaitNanos.Inc(runner.WaitNanos())
		e.metrics.RunningSplits.Inc(1)
		done, err := runner.Process(ctx, e.cfg.Quantum)
		e.metrics.RunningSplits.Dec(1)

		switch {
		case err != nil:
			// Failed splits are retired; the task's remaining splits keep
			// running. Error disposition belongs to the caller's task
			// lifecycle, not the executor.
			log.Warningf(ctx, "split failed: %v", err)
			e.metrics.FailedSplits.Inc(1)
			e.retireSplit(runner)
		case done:
			e.metrics.CompletedSplits.Inc(1)
			e.retireSplit(runner)
		default:
			// A split whose task was removed mid-quantum is retired rather
			// than re-enqueued. Checking and offering under e.mu keeps a
			// concurrent RemoveTask from missing the re-offered split.
			e.mu.Lock()
			_, live := e.mu.tasks[runner.Task()]
			var err error
			if live {
				err = e.queue.Offer(runner)
			}
			e.mu.Unlock()
			if err != nil {
				log.Errorf(ctx, "re-enqueue failed: %v", err)
			}
		}
	}
}
