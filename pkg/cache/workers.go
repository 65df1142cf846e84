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

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/webosose/filecache/pkg/observability/logging"
)

// startWorkers launches the periodic maintenance goroutines: a validator
// tick that re-checks subscribed objects against the filesystem, a
// one-shot dir-type cleaner that prunes empty dir-type shard
// directories once, DirCleanerDelay after Start, the orphan sweep's own
// ticker, and a filesystem
// watcher that triggers an opportunistic orphan sweep between ticks
// when something changes on disk out of band.
func (cs *CacheSet) startWorkers() {
	cs.workerStop = make(chan struct{})
	go cs.runValidator()
	go cs.runDirCleaner()
	go cs.runOrphanSweeper()
	go cs.runFsWatcher()
}

func (cs *CacheSet) stopWorkers() {
	if cs.workerStop != nil {
		close(cs.workerStop)
	}
}

func (cs *CacheSet) runValidator() {
	interval := cs.opts.ValidatorInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cs.loop.submitAsync(func() {
				for _, subs := range cs.subs.byObject {
					for _, sub := range subs {
						if sub.cancelled {
							continue
						}
						cs.CheckSubscribedObject(sub.typeName, sub.id)
					}
				}
			})
		case <-cs.workerStop:
			return
		}
	}
}

func (cs *CacheSet) runDirCleaner() {
	delay := cs.opts.DirCleanerDelay
	if delay <= 0 {
		delay = 120 * time.Second
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		cs.CleanupDirTypes()
	case <-cs.workerStop:
	}
}

func (cs *CacheSet) runOrphanSweeper() {
	interval := cs.opts.OrphanGraceInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cs.CleanupOrphans()
		case <-cs.workerStop:
			return
		}
	}
}

// runFsWatcher watches each type's top-level directory for external
// writes or removals and triggers an opportunistic orphan sweep, rather
// than waiting for the next tick. It is a best-effort supplement to
// runOrphanSweeper, not a replacement: fsnotify.Watcher does not recurse
// into the shard subdirectories where objects actually live, and a
// watcher that fails to start (platform without inotify, fd exhaustion)
// still leaves the timer-driven sweep running.
func (cs *CacheSet) runFsWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cs.log.Warn("fs watcher unavailable, relying on timer-driven orphan sweep only",
			logging.Pairs{"error": err.Error()})
		return
	}
	defer watcher.Close()

	for _, dir := range cs.typeDirs() {
		_ = watcher.Add(dir)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Remove|fsnotify.Write|fsnotify.Create) != 0 {
				cs.CleanupOrphans()
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return
			}
			cs.log.Warn("fs watcher error", logging.Pairs{"error": werr.Error()})
		case <-cs.workerStop:
			return
		}
	}
}
