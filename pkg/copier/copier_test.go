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

package copier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolCopiesFileAndReportsSize(t *testing.T) {
	src := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("hello world"), 0o644))
	dest := filepath.Join(t.TempDir(), "nested", "dest.bin")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := NewPool(ctx, 2, 4)

	reply := make(chan Result, 1)
	pool.Submit(Job{Src: src, Dest: dest, Reply: reply})
	res := <-reply

	require.NoError(t, res.Err)
	require.Equal(t, int64(len("hello world")), res.Bytes)
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestPoolReportsErrorForMissingSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool := NewPool(ctx, 1, 1)

	reply := make(chan Result, 1)
	pool.Submit(Job{Src: filepath.Join(t.TempDir(), "missing"), Dest: filepath.Join(t.TempDir(), "dest"), Reply: reply})
	res := <-reply
	require.Error(t, res.Err)
}

func TestUniqueDestinationReturnsOriginalWhenFree(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.bin")
	got, err := UniqueDestination(dest)
	require.NoError(t, err)
	require.Equal(t, dest, got)
}

func TestUniqueDestinationSuffixesOnCollision(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(dest, []byte("x"), 0o644))

	got, err := UniqueDestination(dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a-(1).bin"), got)

	require.NoError(t, os.WriteFile(got, []byte("x"), 0o644))
	got2, err := UniqueDestination(dest)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "a-(2).bin"), got2)
}

func TestResolveDestinationCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	path, err := ResolveDestination(dir, "f.bin")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "f.bin"), path)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
