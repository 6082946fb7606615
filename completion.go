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
)

// Completion carries the single terminal outcome of Controller.Start. It is completed exactly once: the first call
// to Succeed or Fail wins and every later call returns false without effect.
type Completion struct {
	once      sync.Once
	done      chan struct{}
	err       error
	callbacks []func(error)
	lock      sync.Mutex
}

func NewCompletion() *Completion {
	return &Completion{
		done: make(chan struct{}),
	}
}

// Succeed completes with no error.
func (c *Completion) Succeed() bool {
	return c.complete(nil)
}

// Fail completes with err, which must not be nil.
func (c *Completion) Fail(err error) bool {
	if err == nil {
		panic("xengine: Completion.Fail called with a nil error")
	}
	return c.complete(err)
}

func (c *Completion) complete(err error) bool {
	var callbacks []func(error)
	completed := false
	c.once.Do(func() {
		c.lock.Lock()
		c.err = err
		callbacks = c.callbacks
		c.callbacks = nil
		close(c.done)
		c.lock.Unlock()
		completed = true
	})

	// outside once.Do, a callback may complete again and gets false
	for _, callback := range callbacks {
		callback(err)
	}
	return completed
}

// OnComplete registers callback to receive the outcome. It runs immediately if the Completion is already done,
// otherwise on the goroutine that completes it, after the outcome is visible to Done, Err and Wait.
func (c *Completion) OnComplete(callback func(err error)) {
	c.lock.Lock()
	select {
	case <-c.done:
		err := c.err
		c.lock.Unlock()
		callback(err)
	default:
		c.callbacks = append(c.callbacks, callback)
		c.lock.Unlock()
	}
}

// Done is closed once the outcome is known.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Completed reports whether the outcome is known.
func (c *Completion) Completed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Err returns the failure, or nil on success or while still pending.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the outcome is known or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
