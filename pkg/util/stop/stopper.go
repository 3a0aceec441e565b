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

// Package stop provides a Stopper to coordinate the graceful shutdown of a
// collection of long-running async tasks.
package stop

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/parekhparth/presto/pkg/util/log"
	"github.com/parekhparth/presto/pkg/util/syncutil"
)

// ErrUnavailable is returned when a task cannot be started because the
// Stopper is quiescing.
var ErrUnavailable = errors.New("stopper is quiescing")

// A Stopper runs async tasks and coordinates their shutdown. Tasks are
// started with RunAsyncTask; Stop quiesces the stopper, cancels any contexts
// derived with WithCancelOnQuiesce, and blocks until all tasks have returned.
type Stopper struct {
	quiescer chan struct{}
	tasks    sync.WaitGroup

	mu struct {
		syncutil.Mutex
		quiescing bool
		qCancels  []context.CancelFunc
	}
}

// NewStopper returns an initialized Stopper.
func NewStopper() *Stopper {
	return &Stopper{quiescer: make(chan struct{})}
}

// RunAsyncTask runs f in a goroutine tracked by the stopper. It returns
// ErrUnavailable if the stopper is already quiescing.
func (s *Stopper) RunAsyncTask(
	ctx context.Context, taskName string, f func(context.Context),
) error {
	s.mu.Lock()
	if s.mu.quiescing {
		s.mu.Unlock()
		return ErrUnavailable
	}
	s.tasks.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.tasks.Done()
		log.VEventf(ctx, 3, "task %s started", taskName)
		f(ctx)
		log.VEventf(ctx, 3, "task %s finished", taskName)
	}()
	return nil
}

// WithCancelOnQuiesce returns a child context which is canceled when the
// Stopper begins quiescing. The returned cancel function must be called to
// release resources if the stopper outlives the caller.
func (s *Stopper) WithCancelOnQuiesce(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mu.quiescing {
		cancel()
		return ctx, cancel
	}
	s.mu.qCancels = append(s.mu.qCancels, cancel)
	return ctx, cancel
}

// ShouldQuiesce returns a channel which is closed when Stop has been called.
func (s *Stopper) ShouldQuiesce() <-chan struct{} {
	return s.quiescer
}

// Stop quiesces the stopper and waits for all tasks to return.
func (s *Stopper) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.mu.quiescing {
		s.mu.quiescing = true
		close(s.quiescer)
		for _, cancel := range s.mu.qCancels {
			cancel()
		}
		s.mu.qCancels = nil
	}
	s.mu.Unlock()
	s.tasks.Wait()
	log.VEventf(ctx, 2, "stopper quiesced")
}
