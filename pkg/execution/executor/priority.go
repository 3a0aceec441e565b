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
	"fmt"
	"time"
)

// Priority is the immutable scheduling position of a split: the level it
// waits in and the scalar ordering it within that level. Smaller level
// priorities run sooner. The queue keeps splits in per-level sub-queues, so
// only the level priority orders them there; Compare is lexicographic over
// both fields for the benefit of tooling.
type Priority struct {
	level         int
	levelPriority int64
}

// NewPriority returns a priority for the given level and level priority.
func NewPriority(level int, levelPriority int64) Priority {
	return Priority{level: level, levelPriority: levelPriority}
}

// Level returns the level index.
func (p Priority) Level() int {
	return p.level
}

// LevelPriority returns the within-level ordering scalar, in nanoseconds.
func (p Priority) LevelPriority() int64 {
	return p.levelPriority
}

// Compare orders priorities lexicographically by (level, levelPriority).
func (p Priority) Compare(o Priority) int {
	if p.level != o.level {
		if p.level < o.level {
			return -1
		}
		return 1
	}
	if p.levelPriority != o.levelPriority {
		if p.levelPriority < o.levelPriority {
			return -1
		}
		return 1
	}
	return 0
}

func (p Priority) String() string {
	return fmt.Sprintf("(level=%d, priority=%s)", p.level, time.Duration(p.levelPriority))
}
