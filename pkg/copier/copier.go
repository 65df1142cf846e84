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

// Package copier runs the asynchronous file copy used by the cache
// engine's public copy operation. It is a small worker pool: a fixed
// number of goroutines pull jobs off a shared channel and stream bytes
// with io.Copy, posting the outcome back on a per-job reply channel.
// CacheSet.CopyCacheObject waits on that channel on its calling
// goroutine; the outcome is not delivered through the event loop.
package copier

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Job describes one copy: src must exist, dest's parent directory is
// created if missing.
type Job struct {
	Src  string
	Dest string
	// Reply receives exactly one Result when the copy completes,
	// whether it succeeded or failed.
	Reply chan<- Result
}

// Result is posted to a Job's Reply channel on completion.
type Result struct {
	Dest  string
	Bytes int64
	Err   error
}

// Pool is a bounded set of worker goroutines draining a shared job
// queue. Submit never blocks the caller beyond the queue's capacity.
type Pool struct {
	jobs chan Job
}

// NewPool starts workers goroutines and returns a Pool accepting up to
// queueSize pending jobs before Submit blocks.
func NewPool(ctx context.Context, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	p := &Pool{jobs: make(chan Job, queueSize)}
	for i := 0; i < workers; i++ {
		go p.run(ctx)
	}
	return p
}

func (p *Pool) run(ctx context.Context) {
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			n, err := copyFile(job.Src, job.Dest)
			if job.Reply != nil {
				job.Reply <- Result{Dest: job.Dest, Bytes: n, Err: err}
			}
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues job, blocking only if the queue is full.
func (p *Pool) Submit(job Job) {
	p.jobs <- job
}

func copyFile(src, dest string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		return n, copyErr
	}
	return n, closeErr
}

// MaxUniqueAttempts bounds how many "-(N)" suffixes UniqueDestination
// will try before giving up, matching the original copy operation's
// s_maxUniqueFileIndex.
const MaxUniqueAttempts = 100

// UniqueDestination returns dest if it does not exist, or the first
// "<base>-(n)<ext>" variant (n starting at 1, up to MaxUniqueAttempts)
// that does not, matching the collision-suffixing behavior of the
// original copy-to-destination operation.
func UniqueDestination(dest string) (string, error) {
	if _, err := os.Stat(dest); os.IsNotExist(err) {
		return dest, nil
	}
	ext := filepath.Ext(dest)
	base := dest[:len(dest)-len(ext)]
	for n := 1; n <= MaxUniqueAttempts; n++ {
		candidate := base + "-(" + strconv.Itoa(n) + ")" + ext
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
	}
	return "", ErrNoUniqueName
}

// ErrNoUniqueName is returned by UniqueDestination when no collision-free
// name could be found within its search bound.
var ErrNoUniqueName = errNoUniqueName{}

type errNoUniqueName struct{}

func (errNoUniqueName) Error() string { return "no unique destination name found" }

// ResolveDestination verifies dir exists (creating it if not) and joins
// filename onto it, returning the sandbox-checkable destination path.
func ResolveDestination(dir, filename string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, filename), nil
}
