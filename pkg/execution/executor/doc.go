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

/*
Package executor implements the task executor's multilevel feedback split
queue and the worker pool that drains it.

Splits are units of work belonging to a task. The queue buckets waiting
splits into levels by the cumulative CPU time their task has been scheduled
for; level 0 holds the newest work, higher levels the most-scheduled work.
On every worker pull the queue picks the level furthest behind its target
share of CPU time (level i targets levelTimeMultiplier times the scheduled
time of level i+1), then dispatches that level's lowest-priority split.
After each quantum the consumed time is charged back to the levels the split
passed through, aging the task toward deeper levels.

The queue operates at split granularity: it provides no fairness across
tasks or queries beyond the shared per-task priority, no admission control,
and no execution of splits. Those belong to the TaskExecutor and its
callers.
*/
package executor
