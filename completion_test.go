/*
	Copyright NetFoundry Inc.

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	https://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package xengine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func Test_Completion(t *testing.T) {

	t.Run("a pending completion has no outcome", func(t *testing.T) {
		req := require.New(t)
		completion := NewCompletion()

		req.False(completion.Completed())
		req.NoError(completion.Err())

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		req.ErrorIs(completion.Wait(ctx), context.DeadlineExceeded)
	})

	t.Run("the first outcome wins", func(t *testing.T) {
		req := require.New(t)
		completion := NewCompletion()
		failure := errors.New("first")

		req.True(completion.Fail(failure))
		req.False(completion.Succeed())
		req.False(completion.Fail(errors.New("second")))

		req.True(completion.Completed())
		req.Same(failure, completion.Err())
		req.Same(failure, completion.Wait(context.Background()))
	})

	t.Run("callbacks run once whether registered before or after completion", func(t *testing.T) {
		req := require.New(t)
		completion := NewCompletion()
		var before, after []error

		completion.OnComplete(func(err error) { before = append(before, err) })
		req.True(completion.Succeed())
		completion.OnComplete(func(err error) { after = append(after, err) })
		req.False(completion.Succeed())

		req.Equal([]error{nil}, before)
		req.Equal([]error{nil}, after)
	})

	t.Run("a callback completing again gets false instead of blocking", func(t *testing.T) {
		req := require.New(t)
		completion := NewCompletion()
		var again []bool
		completion.OnComplete(func(error) {
			again = append(again, completion.Fail(errors.New("late")), completion.Succeed())
		})

		done := make(chan bool, 1)
		go func() { done <- completion.Succeed() }()

		select {
		case won := <-done:
			req.True(won)
		case <-time.After(5 * time.Second):
			req.FailNow("Succeed did not return")
		}
		req.Equal([]bool{false, false}, again)
		req.NoError(completion.Err())
	})

	t.Run("callbacks see the outcome already published", func(t *testing.T) {
		req := require.New(t)
		completion := NewCompletion()
		failure := errors.New("failed")
		var completed bool
		var seen error
		completion.OnComplete(func(error) {
			completed = completion.Completed()
			seen = completion.Err()
		})

		completion.Fail(failure)

		req.True(completed)
		req.Same(failure, seen)
	})

	t.Run("failing with nil panics", func(t *testing.T) {
		require.Panics(t, func() { NewCompletion().Fail(nil) })
	})

	t.Run("concurrent completions deliver exactly one outcome", func(t *testing.T) {
		req := require.New(t)
		completion := NewCompletion()
		var delivered atomic.Int32
		completion.OnComplete(func(error) { delivered.Add(1) })

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				var won bool
				if i%2 == 0 {
					won = completion.Succeed()
				} else {
					won = completion.Fail(errors.Errorf("failure %d", i))
				}
				if won {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()

		req.Equal(int32(1), wins.Load())
		req.Equal(int32(1), delivered.Load())
		req.True(completion.Completed())
	})
}
