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
	"sync/atomic"
	"time"

	"github.com/parekhparth/presto/pkg/util/timeutil"
)

// PrioritizedSplit is the queue's view of a unit of work. Implementations
// are owned by the caller; the queue borrows handles and never destroys
// them. A split may be waiting in at most one level queue at a time.
type PrioritizedSplit interface {
	// Priority returns the split's current priority.
	Priority() Priority

	// UpdateLevelPriority recomputes and installs the split's priority from
	// its own runtime accounting, returning true iff the level changed. A
	// waiting split's priority goes stale when other work charges time to
	// its task.
	UpdateLevelPriority() bool

	// SetReady marks the split admissible. The queue calls it once per
	// enqueue, before insertion.
	SetReady()
}

// SplitRunner is the externally owned body of a split.
type SplitRunner interface {
	// ProcessFor runs the split for at most the given quantum, returning
	// whether the split finished.
	ProcessFor(ctx context.Context, quantum time.Duration) (done bool, err error)
}

// TaskHandle carries the scheduling state shared by all splits of a task.
// Sibling splits advance the same cumulative scheduled time and priority,
// which is what lets a short query's remaining splits inherit the aging its
// first splits caused.
type TaskHandle struct {
	queue          *MultilevelSplitQueue
	scheduledNanos atomic.Int64
	priority       atomic.Pointer[Priority]
}

// NewTaskHandle returns a handle starting at level 0 with zero priority.
func NewTaskHandle(queue *MultilevelSplitQueue) *TaskHandle {
	h := &TaskHandle{queue: queue}
	p := NewPriority(0, 0)
	h.priority.Store(&p)
	return h
}

// Priority returns the task's current priority.
func (h *TaskHandle) Priority() Priority {
	return *h.priority.Load()
}

// ScheduledNanos returns the task's cumulative scheduled time.
func (h *TaskHandle) ScheduledNanos() int64 {
	return h.scheduledNanos.Load()
}

// AddScheduledNanos charges one quantum to the task, routing it through the
// queue's level accounting, and installs the task's new priority.
func (h *TaskHandle) AddScheduledNanos(quantaNanos int64) Priority {
	scheduled := h.scheduledNanos.Add(quantaNanos)
	newPriority := h.queue.UpdatePriority(h.Priority(), quantaNanos, scheduled)
	h.priority.Store(&newPriority)
	return newPriority
}

// PrioritizedSplitRunner binds a split body to its task's scheduling state.
// It caches the task priority current at enqueue time; the cache goes stale
// while the split waits if sibling splits run.
type PrioritizedSplitRunner struct {
	task   *TaskHandle
	runner SplitRunner

	priority atomic.Pointer[Priority]
	// readyNanos is the wall time at which the split last became eligible
	// to run, or 0 before the first Offer.
	readyNanos atomic.Int64
	finished   atomic.Bool
}

var _ PrioritizedSplit = (*PrioritizedSplitRunner)(nil)

// NewPrioritizedSplitRunner returns a split handle for the given task and
// body.
func NewPrioritizedSplitRunner(task *TaskHandle, runner SplitRunner) *PrioritizedSplitRunner {
	s := &PrioritizedSplitRunner{task: task, runner: runner}
	p := task.Priority()
	s.priority.Store(&p)
	return s
}

// Priority returns the split's cached priority.
func (s *PrioritizedSplitRunner) Priority() Priority {
	return *s.priority.Load()
}

// UpdateLevelPriority installs the task's current priority and reports
// whether the split's level changed while it waited.
func (s *PrioritizedSplitRunner) UpdateLevelPriority() bool {
	newPriority := s.task.Priority()
	oldPriority := s.priority.Swap(&newPriority)
	return newPriority.Level() != oldPriority.Level()
}

// SetReady records when the split became eligible to run. Only the first
// call per wait is recorded.
func (s *PrioritizedSplitRunner) SetReady() {
	s.readyNanos.CompareAndSwap(0, timeutil.Now().UnixNano())
}

// WaitNanos returns how long the split has been eligible without being
// dispatched, or 0 if it was never offered.
func (s *PrioritizedSplitRunner) WaitNanos() int64 {
	ready := s.readyNanos.Load()
	if ready == 0 {
		return 0
	}
	return timeutil.Now().UnixNano() - ready
}

// Process runs one quantum of the split's body, charges the consumed CPU
// time to the task, and reports whether the split finished.
func (s *PrioritizedSplitRunner) Process(ctx context.Context, quantum time.Duration) (bool, error) {
	s.readyNanos.Store(0)
	var sw timeutil.CPUStopWatch
	sw.Start()
	done, err := s.runner.ProcessFor(ctx, quantum)
	quanta := sw.Stop()
	s.task.AddScheduledNanos(quanta.Nanoseconds())
	if done {
		s.finished.Store(true)
	}
	return done, err
}

// Finished returns true once Process has reported completion.
func (s *PrioritizedSplitRunner) Finished() bool {
	return s.finished.Load()
}

// Task returns the handle of the task this split belongs to.
func (s *PrioritizedSplitRunner) Task() *TaskHandle {
	return s.task
}
