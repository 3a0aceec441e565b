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

package stop

import (
	"context"
	"testing"

	"github.com/parekhparth/presto/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestStopperWaitsForTasks(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	s := NewStopper()

	ran := make(chan struct{})
	require.NoError(t, s.RunAsyncTask(ctx, "test-task", func(ctx context.Context) {
		close(ran)
		<-s.ShouldQuiesce()
	}))
	<-ran
	s.Stop(ctx)

	// Tasks cannot start after Stop.
	err := s.RunAsyncTask(ctx, "late-task", func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestWithCancelOnQuiesce(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()
	s := NewStopper()

	taskCtx, cancel := s.WithCancelOnQuiesce(ctx)
	defer cancel()
	require.NoError(t, taskCtx.Err())

	s.Stop(ctx)
	require.Error(t, taskCtx.Err())

	// Contexts derived after quiescing start out canceled.
	lateCtx, lateCancel := s.WithCancelOnQuiesce(ctx)
	defer lateCancel()
	require.Error(t, lateCtx.Err())
}
