/*
 * Copyright 2026 The Filecached Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cache

// eventLoop is a single-threaded cooperative event loop: every CacheSet
// index operation and periodic worker tick is delivered as a closure
// on this channel and executed
// serially by the single goroutine started in run(). Because all index
// mutation happens inside that goroutine, TypeCache and CacheSet fields
// need no locking of their own.
type eventLoop struct {
	tasks chan func()
	done  chan struct{}
}

func newEventLoop() *eventLoop {
	return &eventLoop{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

func (l *eventLoop) run() {
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.done:
			return
		}
	}
}

func (l *eventLoop) stop() {
	close(l.done)
}

// submit enqueues fn and blocks until it has run, returning whatever fn
// computed. Used by synchronous CacheSet operations so the caller
// observes the full effect of fn before proceeding. Async follow-up
// tasks fn itself enqueues have not run yet when submit returns, but
// they run before any task the caller submits afterwards.
func submit[T any](l *eventLoop, fn func() T) T {
	result := make(chan T, 1)
	l.tasks <- func() {
		result <- fn()
	}
	return <-result
}

// submitAsync enqueues fn without waiting for it to run. Used by the
// periodic workers and by subscription release (UnSubscribeCacheObject,
// Subscription.Cancel), which do not have a caller blocked on a reply.
func (l *eventLoop) submitAsync(fn func()) {
	l.tasks <- fn
}
