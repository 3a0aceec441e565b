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
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/parekhparth/presto/pkg/util/metric"
	"github.com/parekhparth/presto/pkg/util/syncutil"
)

// levelThresholdSeconds are the cumulative scheduled-time thresholds, in
// seconds, at which a split moves to the next level. A split whose task has
// been scheduled for s seconds waits in the largest level i with
// levelThresholdSeconds[i] <= s.
var levelThresholdSeconds = [...]int64{0, 1, 10, 60, 300}

// NumLevels is the number of levels maintained by the queue.
const NumLevels = len(levelThresholdSeconds)

// LevelContributionCap bounds the scheduled time a single quantum may charge
// to the level accounting. A split stuck off-CPU (e.g. blocked on a hung
// read) would otherwise poison its level's fairness accounting when it
// finally returns.
const LevelContributionCap = 30 * time.Second

// ErrTakeInterrupted marks the error returned by Take when the caller's
// context is canceled while waiting for a split. Retrying a Take that failed
// this way is safe; no queue state is mutated on interruption.
var ErrTakeInterrupted = errors.New("take interrupted")

// MultilevelSplitQueue is the task executor's dispatch structure. Waiting
// splits are bucketed into NumLevels levels by their task's cumulative
// scheduled time, each level ordered by level priority. Worker threads block
// in Take until the selection policy picks a split; after running a quantum
// they report the consumed time through UpdatePriority, which charges the
// levels the split passed through and computes its next priority.
//
// Two selection policies are supported. With levelAbsolutePriority, lower
// levels are drained strictly before higher ones. The default time-balanced
// policy gives each level a target share of scheduled time, level i
// targeting levelTimeMultiplier times the share of level i+1, and picks the
// level furthest behind its target.
//
// All methods are safe for concurrent use.
type MultilevelSplitQueue struct {
	levelAbsolutePriority bool
	levelTimeMultiplier   float64

	mu struct {
		syncutil.Mutex
		notEmpty           *sync.Cond
		levelWaitingSplits [NumLevels]*levelQueue
		levelScheduledTime [NumLevels]int64
		seq                uint64
	}

	// levelMinPriority floors the level priority of splits newly promoted
	// into each level at the priority of the most recently dispatched
	// resident, so promoted work does not jump ahead of work already in
	// flight. -1 means uninitialized; the first reader seeds it.
	levelMinPriority      [NumLevels]atomic.Int64
	selectedLevelCounters [NumLevels]*metric.Counter
}

// NewMultilevelSplitQueue returns an empty queue. levelTimeMultiplier is the
// target ratio of scheduled time between adjacent levels and is meaningful
// only above 1.0; it is ignored when levelAbsolutePriority is set.
func NewMultilevelSplitQueue(
	levelAbsolutePriority bool, levelTimeMultiplier float64,
) *MultilevelSplitQueue {
	q := &MultilevelSplitQueue{
		levelAbsolutePriority: levelAbsolutePriority,
		levelTimeMultiplier:   levelTimeMultiplier,
	}
	q.mu.notEmpty = sync.NewCond(&q.mu)
	for i := range q.mu.levelWaitingSplits {
		q.mu.levelWaitingSplits[i] = newLevelQueue()
		q.levelMinPriority[i].Store(-1)
		q.selectedLevelCounters[i] = metric.NewCounter(makeSelectedSplitsMetadata(i))
	}
	return q
}

// Offer marks the split ready and makes it eligible for dispatch at its
// current level, waking one blocked Take.
func (q *MultilevelSplitQueue) Offer(split PrioritizedSplit) error {
	if split == nil {
		return errors.AssertionFailedf("split is nil")
	}
	split.SetReady()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.offerLocked(split)
	return nil
}

func (q *MultilevelSplitQueue) offerLocked(split PrioritizedSplit) {
	q.mu.seq++
	q.mu.levelWaitingSplits[split.Priority().Level()].offer(split, q.mu.seq)
	q.mu.notEmpty.Signal()
}

// Take blocks until the selection policy picks a split, then dispatches it:
// the selected level's dispatch counter is incremented and its minimum
// priority floor advances to the returned split's level priority. Take
// returns an error marked with ErrTakeInterrupted when ctx is canceled
// while waiting.
//
// A split whose priority went stale while it waited (a sibling split of the
// same task ran and aged the task into a new level) is re-enqueued under its
// current level rather than dispatched, and selection restarts.
func (q *MultilevelSplitQueue) Take(ctx context.Context) (PrioritizedSplit, error) {
	// The condition variable cannot observe ctx; a cancellation watcher
	// wakes all waiters instead, and the wait loop re-checks ctx.
	stopWatcher := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		q.mu.notEmpty.Broadcast()
	})
	defer stopWatcher()

	for {
		q.mu.Lock()
		var result PrioritizedSplit
		for {
			if err := ctx.Err(); err != nil {
				q.mu.Unlock()
				return nil, errors.Mark(err, ErrTakeInterrupted)
			}
			var err error
			result, err = q.pollSplitLocked()
			if err != nil {
				q.mu.Unlock()
				return nil, err
			}
			if result != nil {
				break
			}
			q.mu.notEmpty.Wait()
		}

		if result.UpdateLevelPriority() {
			result.SetReady()
			q.offerLocked(result)
			q.mu.Unlock()
			continue
		}

		selected := result.Priority()
		q.levelMinPriority[selected.Level()].Store(selected.LevelPriority())
		q.selectedLevelCounters[selected.Level()].Inc(1)
		q.mu.Unlock()
		return result, nil
	}
}

// pollSplitLocked selects the occupied level with the highest ratio of
// target to actual scheduled time (a level with no scheduled time reads as
// 0) and extracts that level's minimum-priority split.
// It returns nil when every level is empty.
func (q *MultilevelSplitQueue) pollSplitLocked() (PrioritizedSplit, error) {
	if q.levelAbsolutePriority {
		return q.pollFirstSplitLocked(), nil
	}

	targetScheduledTime := q.updateLevelTimesLocked()
	worstRatio := 1.0
	selectedLevel := -1
	for level := 0; level < NumLevels; level++ {
		if q.mu.levelWaitingSplits[level].len() > 0 {
			// A level that has never run is not unconditionally preferred:
			// its ratio reads as 0 and the starvation adjustment in
			// updateLevelTimesLocked is what protects it instead.
			ratio := 0.0
			if scheduled := q.mu.levelScheduledTime[level]; scheduled != 0 {
				ratio = float64(targetScheduledTime) / float64(scheduled)
			}
			if selectedLevel == -1 || ratio > worstRatio {
				worstRatio = ratio
				selectedLevel = level
			}
		}

		targetScheduledTime = int64(float64(targetScheduledTime) / q.levelTimeMultiplier)
	}

	if selectedLevel == -1 {
		return nil, nil
	}

	split, ok := q.mu.levelWaitingSplits[selectedLevel].pollMin()
	if !ok {
		return nil, errors.AssertionFailedf(
			"selected level %d has no waiting splits", selectedLevel)
	}
	return split, nil
}

// pollFirstSplitLocked drains levels in index order, approximating strict
// priority.
func (q *MultilevelSplitQueue) pollFirstSplitLocked() PrioritizedSplit {
	for _, lq := range &q.mu.levelWaitingSplits {
		if split, ok := lq.pollMin(); ok {
			return split
		}
	}
	return nil
}

// updateLevelTimesLocked derives a consistent set of expected scheduled
// times from the currently occupied levels and sets each empty level's
// scheduled time to its expected value. A level that sat empty accumulates no scheduled time and
// falls behind; without this adjustment, work arriving at it would capture
// the CPU for an unbounded burst. It returns the target scheduled time for
// level 0, which also seeds the deeper levels' targets in pollSplitLocked.
func (q *MultilevelSplitQueue) updateLevelTimesLocked() int64 {
	level0ExpectedTime := q.mu.levelScheduledTime[0]
	for {
		currentMultiplier := q.levelTimeMultiplier
		updated := false
		for level := 0; level < NumLevels; level++ {
			currentMultiplier /= q.levelTimeMultiplier
			levelExpectedTime := int64(float64(level0ExpectedTime) * currentMultiplier)

			if q.mu.levelWaitingSplits[level].len() == 0 {
				q.mu.levelScheduledTime[level] = levelExpectedTime
				continue
			}

			// An occupied level ahead of its expected time forces the
			// level-0 anchor up; restart the scan against the new anchor.
			if q.mu.levelScheduledTime[level] > levelExpectedTime {
				level0ExpectedTime = int64(float64(q.mu.levelScheduledTime[level]) / currentMultiplier)
				updated = true
				break
			}
		}
		if !updated || level0ExpectedTime == 0 {
			return level0ExpectedTime
		}
	}
}

func (q *MultilevelSplitQueue) addLevelTime(level int, nanos int64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.mu.levelScheduledTime[level] += nanos
}

// UpdatePriority charges the quantum a split just consumed to the queue's
// level accounting and returns the split's next priority. quantaNanos is the
// CPU time consumed by the quantum; scheduledNanos is the task's cumulative
// scheduled time including it.
//
// The charge to the level accounting is capped at LevelContributionCap, but
// the within-level priority always advances by the full quantum so that
// intra-level ordering tracks true CPU use.
//
// When the quantum moved the split past one or more level boundaries, the
// capped charge is spread over the levels passed through, each receiving at
// most its own width, with the remainder landing in the new level. The new
// within-level priority is rebased onto the new level's minimum priority
// floor: the split's old scalar is inflated relative to the new level's
// residents and would otherwise be unfairly penalized on arrival.
func (q *MultilevelSplitQueue) UpdatePriority(
	oldPriority Priority, quantaNanos int64, scheduledNanos int64,
) Priority {
	oldLevel := oldPriority.Level()
	newLevel := ComputeLevel(scheduledNanos)

	levelContribution := min(quantaNanos, LevelContributionCap.Nanoseconds())

	if oldLevel == newLevel {
		q.addLevelTime(oldLevel, levelContribution)
		return NewPriority(oldLevel, oldPriority.LevelPriority()+quantaNanos)
	}

	remainingLevelContribution := levelContribution
	remainingTaskTime := quantaNanos

	// A split normally accrues scheduled time in a level slowly and then
	// moves to the next. If the quantum was long enough to skip levels,
	// accrue time to each intermediate level as if the split had run there
	// up to the level's width.
	for level := oldLevel; level < newLevel; level++ {
		timeAccruedToLevel := min(levelWidthNanos(level), remainingLevelContribution)
		q.addLevelTime(level, timeAccruedToLevel)
		remainingLevelContribution -= timeAccruedToLevel
		remainingTaskTime -= timeAccruedToLevel
	}

	q.addLevelTime(newLevel, remainingLevelContribution)
	newLevelMinPriority := q.LevelMinPriority(newLevel, scheduledNanos)
	return NewPriority(newLevel, newLevelMinPriority+remainingTaskTime)
}

// levelWidthNanos is the scheduled-time width of a level, i.e. the distance
// between its threshold and the next level's.
func levelWidthNanos(level int) int64 {
	return (levelThresholdSeconds[level+1] - levelThresholdSeconds[level]) * int64(time.Second)
}

// LevelMinPriority returns the level priority floor for the given level,
// seeding it from the caller's cumulative scheduled time on first use.
func (q *MultilevelSplitQueue) LevelMinPriority(level int, scheduledNanos int64) int64 {
	q.levelMinPriority[level].CompareAndSwap(-1, scheduledNanos)
	return q.levelMinPriority[level].Load()
}

// Remove withdraws the split if it is waiting in any level. Removing an
// absent split is a no-op. Callers may not know the split's current level,
// so every level is scanned.
func (q *MultilevelSplitQueue) Remove(split PrioritizedSplit) error {
	if split == nil {
		return errors.AssertionFailedf("split is nil")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, lq := range &q.mu.levelWaitingSplits {
		lq.remove(split)
	}
	return nil
}

// RemoveAll withdraws every given split that is waiting in any level.
func (q *MultilevelSplitQueue) RemoveAll(splits []PrioritizedSplit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, split := range splits {
		for _, lq := range &q.mu.levelWaitingSplits {
			lq.remove(split)
		}
	}
}

// Size returns the total number of waiting splits across all levels.
func (q *MultilevelSplitQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	total := 0
	for _, lq := range &q.mu.levelWaitingSplits {
		total += lq.len()
	}
	return total
}

// SelectedLevelCounters returns the per-level dispatch counters. The
// counters are monotone; the queue never resets them.
func (q *MultilevelSplitQueue) SelectedLevelCounters() []*metric.Counter {
	return q.selectedLevelCounters[:]
}

// LevelScheduledTime returns a copy of the per-level scheduled time, in
// nanoseconds. Exported for testing.
func (q *MultilevelSplitQueue) LevelScheduledTime() [NumLevels]int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mu.levelScheduledTime
}

// ComputeLevel returns the level for a task whose cumulative scheduled time
// is scheduledNanos.
func ComputeLevel(scheduledNanos int64) int {
	seconds := scheduledNanos / int64(time.Second)
	for level := 0; level < NumLevels-1; level++ {
		if seconds < levelThresholdSeconds[level+1] {
			return level
		}
	}
	return NumLevels - 1
}
