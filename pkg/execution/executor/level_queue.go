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

import "github.com/google/btree"

const levelQueueBtreeDegree = 8

// splitItem is a waiting split's position in a level queue. seq breaks
// level-priority ties deterministically in arrival order.
type splitItem struct {
	split         PrioritizedSplit
	levelPriority int64
	seq           uint64
}

func splitItemLess(a, b *splitItem) bool {
	if a.levelPriority != b.levelPriority {
		return a.levelPriority < b.levelPriority
	}
	return a.seq < b.seq
}

// levelQueue is the ordered collection of splits waiting at one level,
// keyed by level priority with min-extraction. An identity map makes
// removal by split O(log n). Not safe for concurrent use; the split
// queue's lock guards it.
type levelQueue struct {
	tree  *btree.BTreeG[*splitItem]
	items map[PrioritizedSplit]*splitItem
}

func newLevelQueue() *levelQueue {
	return &levelQueue{
		tree:  btree.NewG(levelQueueBtreeDegree, splitItemLess),
		items: make(map[PrioritizedSplit]*splitItem),
	}
}

// offer inserts the split keyed by its current level priority. Re-offering
// a split already present replaces its position.
func (q *levelQueue) offer(split PrioritizedSplit, seq uint64) {
	if old, ok := q.items[split]; ok {
		q.tree.Delete(old)
	}
	item := &splitItem{
		split:         split,
		levelPriority: split.Priority().LevelPriority(),
		seq:           seq,
	}
	q.items[split] = item
	q.tree.ReplaceOrInsert(item)
}

// pollMin extracts the split with the smallest level priority.
func (q *levelQueue) pollMin() (PrioritizedSplit, bool) {
	item, ok := q.tree.DeleteMin()
	if !ok {
		return nil, false
	}
	delete(q.items, item.split)
	return item.split, true
}

// remove extracts the given split if present.
func (q *levelQueue) remove(split PrioritizedSplit) bool {
	item, ok := q.items[split]
	if !ok {
		return false
	}
	q.tree.Delete(item)
	delete(q.items, split)
	return true
}

func (q *levelQueue) len() int {
	return q.tree.Len()
}
