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
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/webosose/filecache/pkg/cache/fcerrors"
	"github.com/webosose/filecache/pkg/cache/options"
	"github.com/webosose/filecache/pkg/observability/logging"
	"github.com/webosose/filecache/pkg/sandbox"
)

func newTestSet(t *testing.T) *CacheSet {
	t.Helper()
	cs, err := NewCacheSet(t.TempDir(), logging.NoopLogger(), DefaultCacheSetOptions())
	require.NoError(t, err)
	cs.freeSpaceFn = func(string) (int64, error) { return 1 << 30, nil }
	cs.capacityFn = func(string) (int64, error) { return 1 << 30, nil }
	cs.Start()
	t.Cleanup(cs.Stop)
	return cs
}

func defineType(t *testing.T, cs *CacheSet, name string, lo, hi int64) {
	t.Helper()
	o := options.New()
	o.LoWatermark, o.HiWatermark = lo, hi
	require.NoError(t, cs.DefineType(name, o))
}

func TestDefineTypeDuplicateIsExistsOrConfiguration(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*10)

	o := options.New()
	o.LoWatermark, o.HiWatermark = 0, 4096*10
	err := cs.DefineType("t", o)
	require.Error(t, err)
	require.Equal(t, fcerrors.KindExists, fcerrors.KindOf(err))

	o2 := options.New()
	o2.LoWatermark, o2.HiWatermark = 0, 4096*20
	err = cs.DefineType("t", o2)
	require.Equal(t, fcerrors.KindConfiguration, fcerrors.KindOf(err))
}

func TestInsertRejectsZeroSizeForRegularType(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*10)

	size := int64(0)
	_, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &size})
	require.Equal(t, fcerrors.KindInvalidParams, fcerrors.KindOf(err))
}

func TestInsertRejectsOversizeObject(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*2)

	size := int64(4096 * 10)
	_, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &size})
	require.Equal(t, fcerrors.KindInvalidParams, fcerrors.KindOf(err))
}

func TestInsertEvictsWithinHiWatermark(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*2)

	sz := int64(4096)
	low := int64(0)
	_, err := cs.InsertCacheObject("t", "a.bin", InsertParams{Size: &sz, Cost: &low})
	require.NoError(t, err)
	_, err = cs.InsertCacheObject("t", "b.bin", InsertParams{Size: &sz, Cost: &low})
	require.NoError(t, err)

	// a third object of the same size requires evicting one of the first two.
	_, err = cs.InsertCacheObject("t", "c.bin", InsertParams{Size: &sz, Cost: &low})
	require.NoError(t, err)

	used, count, err := cs.GetCacheTypeStatus("t")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, int64(4096*2), used)
}

func TestEvictionPrefersLowestCostThenOldestAccess(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*2)

	sz := int64(4096)
	highCost := int64(90)
	lowCost := int64(10)

	highRes, err := cs.InsertCacheObject("t", "keep.bin", InsertParams{Size: &sz, Cost: &highCost})
	require.NoError(t, err)
	_, err = cs.InsertCacheObject("t", "evict.bin", InsertParams{Size: &sz, Cost: &lowCost})
	require.NoError(t, err)

	require.NoError(t, cs.TouchCacheObject(highRes.Path))

	// inserting a third forces reclamation; the low-cost object must go,
	// not the just-touched high-cost one.
	_, err = cs.InsertCacheObject("t", "new.bin", InsertParams{Size: &sz, Cost: &highCost})
	require.NoError(t, err)

	_, err = cs.GetCacheObjectSize(highRes.Path)
	require.NoError(t, err, "high cost object should survive eviction")
}

// TestGlobalReclamationEvictsOnlyDeficitInSlackDescendingOrder reproduces
// the filesystem-pressure scenario: two other types are full, a third
// needs room, and real free space is short. Only enough is pulled from
// the highest-slack donor to cover the deficit — the lower-slack donor
// is left untouched, and a donor is never drained past its own
// LoWatermark.
func TestGlobalReclamationEvictsOnlyDeficitInSlackDescendingOrder(t *testing.T) {
	cs := newTestSet(t)
	const block = 4096

	defineType(t, cs, "t", 2*block, 6*block) // more slack: 4 blocks
	defineType(t, cs, "s", 1*block, 3*block) // less slack: 2 blocks
	defineType(t, cs, "u", 1*block, 5*block) // the type under pressure

	sz := int64(block)
	low := int64(0)
	for i := 0; i < 6; i++ {
		_, err := cs.InsertCacheObject("t", fmt.Sprintf("t%d.bin", i), InsertParams{Size: &sz, Cost: &low})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := cs.InsertCacheObject("s", fmt.Sprintf("s%d.bin", i), InsertParams{Size: &sz, Cost: &low})
		require.NoError(t, err)
	}
	usedT, _, err := cs.GetCacheTypeStatus("t")
	require.NoError(t, err)
	require.Equal(t, int64(6*block), usedT)
	usedS, _, err := cs.GetCacheTypeStatus("s")
	require.NoError(t, err)
	require.Equal(t, int64(3*block), usedS)

	// real free space tracks capacity minus everything currently used,
	// as if the filesystem genuinely had only 1 block free: a 3-block
	// insert into "u" is short by exactly 2 blocks.
	const capacity = 6*block + 3*block + 0 + 1*block
	// freeSpaceFn runs on the event loop goroutine (ensureFreeSpace calls
	// it directly, already inside a submitted closure), so it reads
	// cs.types directly rather than through a method that would submit
	// another task to the same loop and deadlock.
	cs.freeSpaceFn = func(string) (int64, error) {
		var used int64
		for _, tc := range cs.types {
			used += tc.used
		}
		return capacity - used, nil
	}

	need := int64(3 * block)
	_, err = cs.InsertCacheObject("u", "u0.bin", InsertParams{Size: &need, Cost: &low})
	require.NoError(t, err)

	usedT, _, err = cs.GetCacheTypeStatus("t")
	require.NoError(t, err)
	require.Equal(t, int64(4*block), usedT, "t should give up exactly the 2-block deficit, not its full 4-block slack")

	usedS, _, err = cs.GetCacheTypeStatus("s")
	require.NoError(t, err)
	require.Equal(t, int64(3*block), usedS, "s has less slack than t and must be left untouched")

	usedU, countU, err := cs.GetCacheTypeStatus("u")
	require.NoError(t, err)
	require.Equal(t, int64(3*block), usedU)
	require.Equal(t, 1, countU)
}

// TestGlobalReclamationFailsWhenNoDonorHasSlack covers the counterfactual
// half of the same scenario: once a donor is already pinned at its own
// LoWatermark, global reclamation has nothing left to give and the
// insert that needed it fails.
func TestGlobalReclamationFailsWhenNoDonorHasSlack(t *testing.T) {
	cs := newTestSet(t)
	const block = 4096

	defineType(t, cs, "t", 2*block, 3*block)
	defineType(t, cs, "u", 1*block, 5*block)

	sz := int64(block)
	low := int64(0)
	for i := 0; i < 2; i++ {
		_, err := cs.InsertCacheObject("t", fmt.Sprintf("t%d.bin", i), InsertParams{Size: &sz, Cost: &low})
		require.NoError(t, err)
	}
	// t holds exactly its LoWatermark's worth: zero slack to give up.

	const capacity = 2*block + 1*block
	cs.freeSpaceFn = func(string) (int64, error) {
		var used int64
		for _, tc := range cs.types {
			used += tc.used
		}
		return capacity - used, nil
	}

	need := int64(3 * block)
	_, err := cs.InsertCacheObject("u", "u0.bin", InsertParams{Size: &need, Cost: &low})
	require.Error(t, err)
	require.Equal(t, fcerrors.KindExists, fcerrors.KindOf(err))
}

func TestSubscribedObjectIsPinnedAgainstEviction(t *testing.T) {
	cs := newTestSet(t)
	// only one block of headroom beyond a single object, so a second
	// insert must evict something to make room for a third.
	defineType(t, cs, "t", 0, 4096*2)

	sz := int64(4096)
	lowCost := int64(0)
	res, err := cs.InsertCacheObject("t", "pinned.bin", InsertParams{Size: &sz, Cost: &lowCost, Subscribe: true})
	require.NoError(t, err)
	require.True(t, res.Subscribed)

	otherRes, err := cs.InsertCacheObject("t", "other.bin", InsertParams{Size: &sz, Cost: &lowCost})
	require.NoError(t, err)

	// a third insert can only make room by evicting the unpinned
	// "other.bin"; the subscribed object must survive.
	_, err = cs.InsertCacheObject("t", "third.bin", InsertParams{Size: &sz, Cost: &lowCost})
	require.NoError(t, err)

	_, err = cs.GetCacheObjectSize(res.Path)
	require.NoError(t, err, "pinned object must survive")

	_, err = cs.GetCacheObjectSize(otherRes.Path)
	require.Error(t, err, "unpinned object should have been evicted to make room")
}

func TestExpireDeferredUntilUnpinned(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)

	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz, Subscribe: true})
	require.NoError(t, err)

	err = cs.ExpireCacheObject(res.Path, "tester")
	require.Equal(t, fcerrors.KindInUse, fcerrors.KindOf(err))

	// still resolvable while pinned
	_, err = cs.GetCacheObjectSize(res.Path)
	require.NoError(t, err)

	require.NoError(t, cs.UnSubscribeCacheObjectByPath(res.Path))

	// now gone, since the expire was pending
	_, err = cs.GetCacheObjectSize(res.Path)
	require.Error(t, err)
}

func TestUnSubscribeByPathRemovesHandleFromSubscriptionTable(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)

	sub, err := cs.SubscribeCacheObject(res.Path)
	require.NoError(t, err)
	count := submit(cs.loop, func() int { return cs.subs.count(sub.id) })
	require.Equal(t, 1, count)

	require.NoError(t, cs.UnSubscribeCacheObjectByPath(res.Path))

	// GetCacheObjectSize's submit enqueues strictly after the
	// unsubscribe's async follow-up task, so by the time it returns the
	// table has already been updated.
	_, err = cs.GetCacheObjectSize(res.Path)
	require.NoError(t, err)
	count = submit(cs.loop, func() int { return cs.subs.count(sub.id) })
	require.Equal(t, 0, count, "released subscription must not remain in the table")
}

func TestSubscriptionCancelRemovesHandleFromTableAndIsIdempotent(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)

	sub, err := cs.SubscribeCacheObject(res.Path)
	require.NoError(t, err)

	sub.Cancel()
	sub.Cancel() // idempotent: a second Cancel must not double-decrement

	_, err = cs.GetCacheObjectSize(res.Path)
	require.NoError(t, err)
	count := submit(cs.loop, func() int { return cs.subs.count(sub.id) })
	require.Equal(t, 0, count)

	obj := submit(cs.loop, func() *Object {
		o, _ := cs.types["t"].lookup(sub.id)
		return o
	})
	require.Equal(t, 0, obj.Subscribers)
}

func TestDeleteTypeRequiresEmpty(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	_, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)

	_, err = cs.DeleteType("t")
	require.Equal(t, fcerrors.KindDelete, fcerrors.KindOf(err))

	_, err = cs.DeleteType("missing")
	require.Equal(t, fcerrors.KindDelete, fcerrors.KindOf(err))
}

func TestInsertRejectsDirTypeObjectAtOrBelowOneBlock(t *testing.T) {
	cs := newTestSet(t)
	o := options.New()
	o.LoWatermark, o.HiWatermark = 0, 4096*10
	o.DirType = true
	require.NoError(t, cs.DefineType("d", o))

	oneBlock := int64(4096)
	_, err := cs.InsertCacheObject("d", "dir1", InsertParams{Size: &oneBlock})
	require.Equal(t, fcerrors.KindInvalidParams, fcerrors.KindOf(err))

	belowBlock := int64(100)
	_, err = cs.InsertCacheObject("d", "dir2", InsertParams{Size: &belowBlock})
	require.Equal(t, fcerrors.KindInvalidParams, fcerrors.KindOf(err))
}

func TestInsertCreatesDirectoryForDirType(t *testing.T) {
	cs := newTestSet(t)
	o := options.New()
	o.LoWatermark, o.HiWatermark = 0, 4096*10
	o.DirType = true
	require.NoError(t, cs.DefineType("d", o))

	twoBlocks := int64(4096*2 + 1)
	res, err := cs.InsertCacheObject("d", "dir1", InsertParams{Size: &twoBlocks})
	require.NoError(t, err)

	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	require.True(t, info.IsDir(), "dirType object's path must be a directory")

	used, count, err := cs.GetCacheTypeStatus("d")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.Equal(t, int64(4096*3), used, "size rounds up to the nearest block like any other object")
}

func TestResizeGrowAndShrink(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)

	newSize, err := cs.ResizeCacheObject(res.Path, 4096*2)
	require.NoError(t, err)
	require.Equal(t, int64(4096*2), newSize)

	newSize, err = cs.ResizeCacheObject(res.Path, 100)
	require.NoError(t, err)
	require.Equal(t, int64(4096), newSize)
}

func TestWalkDirTreeRebuildsIndex(t *testing.T) {
	base := t.TempDir()
	cs, err := NewCacheSet(base, logging.NoopLogger(), DefaultCacheSetOptions())
	require.NoError(t, err)
	cs.freeSpaceFn = func(string) (int64, error) { return 1 << 30, nil }
	cs.capacityFn = func(string) (int64, error) { return 1 << 30, nil }
	cs.Start()

	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)
	cs.Stop()

	cs2, err := NewCacheSet(base, logging.NoopLogger(), DefaultCacheSetOptions())
	require.NoError(t, err)
	cs2.freeSpaceFn = func(string) (int64, error) { return 1 << 30, nil }
	cs2.capacityFn = func(string) (int64, error) { return 1 << 30, nil }
	defineType(t, cs2, "t", 0, 4096*4)
	require.NoError(t, cs2.WalkDirTree())
	cs2.Start()
	t.Cleanup(cs2.Stop)

	size, err := cs2.GetCacheObjectSize(res.Path)
	require.NoError(t, err)
	require.Equal(t, int64(4096), size)
}

func TestCopyCacheObjectDeniedWithoutGrant(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)
	cs.SetSandbox(sandbox.New())

	_, err = cs.CopyCacheObject(res.Path, t.TempDir(), "", "alice")
	require.Equal(t, fcerrors.KindPermission, fcerrors.KindOf(err))
}

func TestCopyCacheObjectSucceedsWithGrantAndSuffixesCollisions(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	sz := int64(4096)
	res, err := cs.InsertCacheObject("t", "f.bin", InsertParams{Size: &sz})
	require.NoError(t, err)

	destDir := t.TempDir()
	cs.SetSandbox(allowAll{})

	first, err := cs.CopyCacheObject(res.Path, destDir, "out.bin", "alice")
	require.NoError(t, err)
	require.Equal(t, destDir+"/out.bin", first)

	second, err := cs.CopyCacheObject(res.Path, destDir, "out.bin", "alice")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

type allowAll struct{}

func (allowAll) CanWrite(string, string) bool { return true }

func TestIdleReportsElapsedSinceLastActivity(t *testing.T) {
	cs := newTestSet(t)
	defineType(t, cs, "t", 0, 4096*4)
	require.True(t, cs.Idle() < time.Second)
}
