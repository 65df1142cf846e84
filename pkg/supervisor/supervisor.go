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

// Package supervisor watches the cache set's idle time and signals a
// shutdown channel once it has gone unused for longer than a configured
// threshold, mirroring the power-conscious idle-shutdown behavior the
// original embedded service provided on webOS.
package supervisor

import "time"

// IdleSource reports how long it has been since the last mutating
// operation. *cache.CacheSet satisfies this.
type IdleSource interface {
	Idle() time.Duration
}

// Supervisor polls an IdleSource and closes Shutdown once it has been
// idle continuously for at least Threshold.
type Supervisor struct {
	Threshold time.Duration
	PollEvery time.Duration

	source   IdleSource
	shutdown chan struct{}
	stop     chan struct{}
}

// New returns a Supervisor for source. Threshold of zero disables idle
// shutdown entirely; Run returns immediately without ever closing Shutdown.
func New(source IdleSource, threshold time.Duration) *Supervisor {
	return &Supervisor{
		Threshold: threshold,
		PollEvery: 10 * time.Second,
		source:    source,
		shutdown:  make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

// Shutdown is closed once the idle threshold has been reached.
func (s *Supervisor) Shutdown() <-chan struct{} { return s.shutdown }

// Run polls the idle source until either the threshold is reached (and
// Shutdown is closed) or Stop is called. Intended to run in its own
// goroutine.
func (s *Supervisor) Run() {
	if s.Threshold <= 0 {
		return
	}
	ticker := time.NewTicker(s.PollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.source.Idle() >= s.Threshold {
				close(s.shutdown)
				return
			}
		case <-s.stop:
			return
		}
	}
}

// Stop halts Run without closing Shutdown.
func (s *Supervisor) Stop() {
	close(s.stop)
}
