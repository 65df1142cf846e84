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
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/webosose/filecache/pkg/cache/fcerrors"
	"github.com/webosose/filecache/pkg/cache/options"
	"github.com/webosose/filecache/pkg/cache/pathcodec"
)

// BlockSize is the filesystem accounting unit: object sizes are rounded
// up to a multiple of it before being charged against a type's watermarks.
const BlockSize int64 = 4096

// TypeCache holds all objects of one cache type plus that type's
// parameters and aggregated statistics. It is exclusively owned by the
// enclosing CacheSet; all mutation happens on the CacheSet's event loop
// goroutine, so TypeCache itself needs no internal locking.
type TypeCache struct {
	name    string
	params  *options.Options
	base    string
	objects map[uint64]*Object
	used    int64

	set *CacheSet
}

func newTypeCache(set *CacheSet, name string, params *options.Options, base string) *TypeCache {
	return &TypeCache{
		name:    name,
		params:  params.Clone(),
		base:    base,
		objects: make(map[uint64]*Object),
		set:     set,
	}
}

func roundUpToBlock(size int64) int64 {
	if size <= 0 {
		return 0
	}
	blocks := (size + BlockSize - 1) / BlockSize
	return blocks * BlockSize
}

// dir returns the on-disk directory for this type.
func (t *TypeCache) dir() string {
	return filepath.Join(t.base, t.name)
}

// insert creates the on-disk artifact and indexes a new Object with the
// given parameters, reclaiming space within HiWatermark first. Returns
// the new Object and its path, or an error. When subscribe is true the
// object is created in the Writing state, pinned by an implicit
// subscription representing the in-progress writer (writing always
// implies at least one subscriber); the caller is responsible for
// releasing that subscription once the write completes.
// When subscribe is false, the caller is asserting the content is
// already complete, so the object starts directly in the Live state.
func (t *TypeCache) insert(id uint64, filename string, size, cost, lifetime int64, now time.Time, subscribe bool) (*Object, string, error) {
	if cost < 0 || cost > options.MaxCost {
		return nil, "", fcerrors.New(fcerrors.KindInvalidParams, "InsertCacheObject", "cost must be in [0,100]")
	}
	rounded := roundUpToBlock(size)
	if t.params.DirType {
		if size <= BlockSize {
			return nil, "", fcerrors.New(fcerrors.KindInvalidParams, "InsertCacheObject",
				"size must be greater than 1 block when dirType = true")
		}
	} else if size == 0 {
		return nil, "", fcerrors.New(fcerrors.KindInvalidParams, "InsertCacheObject", "size must be greater than 0")
	}

	if rounded > t.params.HiWatermark {
		return nil, "", fcerrors.New(fcerrors.KindInvalidParams, "InsertCacheObject",
			"object size exceeds type hiWatermark")
	}

	if err := t.makeRoom(rounded); err != nil {
		return nil, "", err
	}

	path := pathcodec.Encode(t.base, t.name, id, filename)
	if err := t.createArtifact(path, rounded); err != nil {
		return nil, "", err
	}

	obj := &Object{
		ID:         id,
		TypeName:   t.name,
		FileName:   filename,
		Size:       rounded,
		Cost:       cost,
		Lifetime:   lifetime,
		InsertedAt: now,
		AccessedAt: now,
		Writing:    subscribe,
	}
	if subscribe {
		obj.Subscribers = 1
	}
	t.objects[id] = obj
	t.used += obj.Size
	return obj, path, nil
}

func (t *TypeCache) createArtifact(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fcerrors.New(fcerrors.KindDirectory, "InsertCacheObject", err.Error())
	}
	if t.params.DirType {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fcerrors.New(fcerrors.KindDirectory, "InsertCacheObject", err.Error())
		}
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fcerrors.New(fcerrors.KindDirectory, "InsertCacheObject", err.Error())
	}
	defer f.Close()
	if size > 0 {
		if err := f.Truncate(size); err != nil {
			return fcerrors.New(fcerrors.KindDirectory, "InsertCacheObject", err.Error())
		}
	}
	return nil
}

// makeRoom reclaims within this type until `used+need <= HiWatermark`,
// or returns an error if reclamation alone cannot make enough room.
// Neither makeRoom nor its callers reclaim from other types on that
// failure; the error is returned to the caller of the operation.
func (t *TypeCache) makeRoom(need int64) error {
	if t.used+need <= t.params.HiWatermark {
		return nil
	}
	overage := t.used + need - t.params.HiWatermark
	freed := t.reclaim(overage)
	if t.used+need > t.params.HiWatermark {
		_ = freed
		return fcerrors.New(fcerrors.KindExists, "InsertCacheObject", "unable to reclaim enough space")
	}
	return nil
}

// candidates returns this type's unpinned, non-expire-pending objects
// ordered per the eviction policy: expired-first, then ascending cost,
// then ascending accessed_at (LRU), then ascending id.
func (t *TypeCache) candidates(now time.Time) []*Object {
	list := make([]*Object, 0, len(t.objects))
	for _, o := range t.objects {
		if o.IsPinned() || o.ExpirePending {
			continue
		}
		list = append(list, o)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		ae, be := a.IsExpired(now), b.IsExpired(now)
		if ae != be {
			return ae
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		if !a.AccessedAt.Equal(b.AccessedAt) {
			return a.AccessedAt.Before(b.AccessedAt)
		}
		return a.ID < b.ID
	})
	return list
}

// reclaim selects and evicts candidates until at least `need` bytes are
// freed or the candidate set is exhausted, returning bytes freed.
func (t *TypeCache) reclaim(need int64) int64 {
	if need <= 0 {
		return 0
	}
	now := time.Now()
	var freed int64
	for _, o := range t.candidates(now) {
		if freed >= need {
			break
		}
		if err := t.removeArtifact(o.ID, o.FileName); err == nil {
			freed += o.Size
			t.used -= o.Size
			delete(t.objects, o.ID)
			t.set.onEvict(t.name, o)
		}
	}
	return freed
}

func (t *TypeCache) removeArtifact(id uint64, filename string) error {
	path := pathcodec.Encode(t.base, t.name, id, filename)
	return os.RemoveAll(path)
}

func (t *TypeCache) lookup(id uint64) (*Object, bool) {
	o, ok := t.objects[id]
	return o, ok
}

func (t *TypeCache) touch(id uint64, now time.Time) bool {
	o, ok := t.objects[id]
	if !ok {
		return false
	}
	o.AccessedAt = now
	return true
}

// resize grows or shrinks an object's on-disk size, reclaiming first if
// growing. Returns the object's final size (unchanged on failure).
func (t *TypeCache) resize(id uint64, newSize int64) (int64, error) {
	o, ok := t.objects[id]
	if !ok {
		return 0, fcerrors.New(fcerrors.KindExists, "ResizeCacheObject", "object not found")
	}
	rounded := roundUpToBlock(newSize)
	if rounded == o.Size {
		return o.Size, nil
	}
	if rounded > o.Size {
		diff := rounded - o.Size
		if err := t.makeRoom(diff); err != nil {
			return o.Size, fcerrors.New(fcerrors.KindResize, "ResizeCacheObject", "unable to reclaim enough space")
		}
	}
	path := pathcodec.Encode(t.base, t.name, id, o.FileName)
	if !t.params.DirType {
		f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
		if err != nil {
			return o.Size, fcerrors.New(fcerrors.KindResize, "ResizeCacheObject", err.Error())
		}
		err = f.Truncate(rounded)
		f.Close()
		if err != nil {
			return o.Size, fcerrors.New(fcerrors.KindResize, "ResizeCacheObject", err.Error())
		}
	}
	t.used += rounded - o.Size
	o.Size = rounded
	return o.Size, nil
}

// expire removes the object immediately if unpinned, or marks it
// ExpirePending and returns false if pinned.
func (t *TypeCache) expire(id uint64) (removed bool, err error) {
	o, ok := t.objects[id]
	if !ok {
		return false, fcerrors.New(fcerrors.KindExists, "ExpireCacheObject", "object not found")
	}
	if o.IsPinned() {
		o.ExpirePending = true
		return false, nil
	}
	if err := t.removeArtifact(o.ID, o.FileName); err != nil {
		return false, fcerrors.New(fcerrors.KindExists, "ExpireCacheObject", err.Error())
	}
	t.used -= o.Size
	delete(t.objects, id)
	return true, nil
}

// releaseIfPending removes the object if it is unpinned and
// ExpirePending. It does not change Subscribers or Writing itself; the
// caller releases the pin first. Returns true if the object was removed.
func (t *TypeCache) releaseIfPending(id uint64) bool {
	o, ok := t.objects[id]
	if !ok {
		return false
	}
	if o.IsPinned() || !o.ExpirePending {
		return false
	}
	if err := t.removeArtifact(o.ID, o.FileName); err != nil {
		return false
	}
	t.used -= o.Size
	delete(t.objects, id)
	return true
}

func (t *TypeCache) status() (usedBytes int64, count int) {
	return t.used, len(t.objects)
}

// slack returns bytes of Used above LoWatermark: the amount this type
// can yield to global reclamation without breaching its reservation.
func (t *TypeCache) slack() int64 {
	s := t.used - t.params.LoWatermark
	if s < 0 {
		return 0
	}
	return s
}

// change updates defaults and watermarks. If the new HiWatermark is
// below current usage, it reclaims down to it first; failure to do so
// aborts the change entirely.
func (t *TypeCache) change(newParams *options.Options) error {
	merged := t.params.Clone()
	if newParams.LoWatermark > 0 {
		merged.LoWatermark = newParams.LoWatermark
	}
	if newParams.HiWatermark > 0 {
		merged.HiWatermark = newParams.HiWatermark
	}
	if newParams.Size > 0 {
		merged.Size = newParams.Size
	}
	if newParams.Cost > 0 {
		merged.Cost = newParams.Cost
	}
	if newParams.Lifetime > 0 {
		merged.Lifetime = newParams.Lifetime
	}

	if merged.HiWatermark <= merged.LoWatermark {
		return fcerrors.New(fcerrors.KindInvalidParams, "ChangeType", "hiWatermark must be greater than loWatermark")
	}

	if merged.HiWatermark < t.used {
		overage := t.used - merged.HiWatermark
		t.reclaim(overage)
		if t.used > merged.HiWatermark {
			return fcerrors.New(fcerrors.KindChange, "ChangeType", "unable to reclaim down to new hiWatermark")
		}
	}

	t.params = merged
	return nil
}

func (t *TypeCache) describe() *options.Options {
	return t.params.Clone()
}
