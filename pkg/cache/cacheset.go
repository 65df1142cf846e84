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

// Package cache implements the persistent, on-disk file cache engine:
// cache types, cached objects, watermark-governed reclamation, the
// pathname<->object-ID codec, subscriptions, and the startup/orphan
// maintenance sweeps.
package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/webosose/filecache/pkg/cache/fcerrors"
	"github.com/webosose/filecache/pkg/cache/metrics"
	"github.com/webosose/filecache/pkg/cache/options"
	"github.com/webosose/filecache/pkg/cache/pathcodec"
	"github.com/webosose/filecache/pkg/copier"
	"github.com/webosose/filecache/pkg/observability/logging"
)

// permissionChecker is the host-provided permission check collaborator
// that CopyCacheObject consults before writing to a destination,
// satisfied by *sandbox.Sandbox. Declared as an interface here so
// CacheSet does not otherwise depend on the sandbox package's internals.
type permissionChecker interface {
	CanWrite(path, principal string) bool
}

// Version is the file cache API version reported by GetVersion.
const Version = "1.0.0"

// CacheSetOptions configures a CacheSet's maintenance cadence and policy.
type CacheSetOptions struct {
	// OrphanGraceInterval is how long an unindexed on-disk file must sit
	// before CleanupOrphans removes it.
	OrphanGraceInterval time.Duration
	// ValidatorInterval is how often subscribed in-progress writes are
	// revalidated against the filesystem.
	ValidatorInterval time.Duration
	// DirCleanerDelay is the delay after Start before the single sweep of
	// empty dir-type subdirectories.
	DirCleanerDelay time.Duration
	// EnforceReserve rejects DefineType/ChangeType calls that would push
	// the sum of LoWatermarks above filesystem capacity.
	EnforceReserve bool
}

// DefaultCacheSetOptions returns the default maintenance cadence and policy.
func DefaultCacheSetOptions() CacheSetOptions {
	return CacheSetOptions{
		OrphanGraceInterval: 15 * time.Second,
		ValidatorInterval:   15 * time.Second,
		DirCleanerDelay:     120 * time.Second,
		EnforceReserve:      true,
	}
}

// CacheSet is the root of the cache engine: it owns every TypeCache, the
// base directory, the monotonic object ID generator, and the
// subscription table. Its index operations are safe for concurrent use
// by multiple goroutines; internally they are serialized onto a single
// event-loop goroutine (see loop.go), so the index itself needs no
// locking of its own. CheckSubscribedObject is the exception: it reads
// the index directly and must be called from the event loop, as the
// validator worker does. SetSandbox and SetDefaultDownloadDir are plain
// field assignments with no synchronization.
type CacheSet struct {
	base   string
	types  map[string]*TypeCache
	nextID uint64
	subs   *subscriptionTable
	loop   *eventLoop
	log    logging.Logger
	opts   CacheSetOptions

	freeSpaceFn func(string) (int64, error)
	capacityFn  func(string) (int64, error)

	copierPool         *copier.Pool
	copierCancel       context.CancelFunc
	permissions        permissionChecker
	defaultDownloadDir string

	lastActivity time.Time
	workerStop   chan struct{}
}

// NewCacheSet constructs a CacheSet rooted at base and starts its event
// loop, so DefineType, WalkDirTree (to rebuild state from a prior run)
// and CleanupAtStartup can be called right away. Start launches the
// periodic workers.
func NewCacheSet(base string, log logging.Logger, opts CacheSetOptions) (*CacheSet, error) {
	if log == nil {
		log = logging.NoopLogger()
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	copierCtx, cancel := context.WithCancel(context.Background())
	cs := &CacheSet{
		base:               base,
		types:              make(map[string]*TypeCache),
		nextID:             1,
		subs:               newSubscriptionTable(),
		loop:               newEventLoop(),
		log:                log,
		opts:               opts,
		freeSpaceFn:        diskFreeBytes,
		capacityFn:         diskCapacityBytes,
		copierPool:         copier.NewPool(copierCtx, 4, 32),
		copierCancel:       cancel,
		defaultDownloadDir: filepath.Join(base, "downloads"),
	}
	go cs.loop.run()
	return cs, nil
}

// SetSandbox installs the permission predicate CopyCacheObject consults
// before writing to a destination. Without one, CopyCacheObject permits
// every principal (suitable for a single-tenant deployment where the
// host does not need per-caller destination restrictions).
func (cs *CacheSet) SetSandbox(p permissionChecker) { cs.permissions = p }

// SetDefaultDownloadDir overrides the directory CopyCacheObject uses
// when the caller supplies no destination.
func (cs *CacheSet) SetDefaultDownloadDir(dir string) { cs.defaultDownloadDir = dir }

// Start launches the periodic maintenance workers (see startWorkers).
// Call once, after WalkDirTree/CleanupAtStartup if restoring prior state.
func (cs *CacheSet) Start() {
	cs.startWorkers()
}

// Stop halts the event loop and periodic workers. It does not flush
// anything to disk, since type parameters are never persisted — a
// restarting caller re-supplies them via DefineType.
func (cs *CacheSet) Stop() {
	cs.stopWorkers()
	cs.copierCancel()
	cs.loop.stop()
}

// Version returns the file cache API version.
func (cs *CacheSet) Version() string { return Version }

// Idle returns how long it has been since the last mutating operation,
// for use by an idle/powerdown supervisor.
func (cs *CacheSet) Idle() time.Duration {
	return submit(cs.loop, func() time.Duration {
		return time.Since(cs.lastActivity)
	})
}

func (cs *CacheSet) touchActivity() {
	cs.lastActivity = time.Now()
}

// -- type lifecycle -----------------------------------------------------

func validateTypeName(name string) error {
	if len(name) == 0 || len(name) > options.MaxNameLength {
		return fcerrors.New(fcerrors.KindInvalidParams, "DefineType", "typeName must be 1-64 characters")
	}
	if name[0] == '.' {
		return fcerrors.New(fcerrors.KindInvalidParams, "DefineType", "typeName must not start with '.'")
	}
	return nil
}

// DefineType registers a new cache type. See DESIGN.md Open Question 1
// for the duplicate-definition policy.
func (cs *CacheSet) DefineType(name string, params *options.Options) error {
	return submit(cs.loop, func() error {
		defer cs.touchActivity()
		if err := validateTypeName(name); err != nil {
			return err
		}
		if params.HiWatermark <= params.LoWatermark {
			return fcerrors.New(fcerrors.KindInvalidParams, "DefineType", "hiWatermark must be greater than loWatermark")
		}
		if existing, ok := cs.types[name]; ok {
			if existing.describe().Equal(params) {
				return fcerrors.New(fcerrors.KindExists, "DefineType", "type '"+name+"' already exists")
			}
			return fcerrors.New(fcerrors.KindConfiguration, "DefineType", "type '"+name+"' has different configuration")
		}
		if cs.opts.EnforceReserve {
			if err := cs.checkReserve(name, params.LoWatermark); err != nil {
				return err
			}
		}
		tc := newTypeCache(cs, name, params, cs.base)
		if err := os.MkdirAll(tc.dir(), 0o755); err != nil {
			return fcerrors.New(fcerrors.KindDefine, "DefineType", err.Error())
		}
		cs.types[name] = tc
		cs.log.Info("type defined", logging.Pairs{"type": name, "lo": params.LoWatermark, "hi": params.HiWatermark})
		return nil
	})
}

// checkReserve verifies that adding (or changing) loWatermark bytes for
// typeName would not push the sum of all LoWatermarks above filesystem
// capacity.
func (cs *CacheSet) checkReserve(typeName string, newLo int64) error {
	capacity, err := cs.capacityFn(cs.base)
	if err != nil {
		return fcerrors.New(fcerrors.KindDefine, "DefineType", "unable to determine filesystem capacity")
	}
	var sum int64
	for name, t := range cs.types {
		if name == typeName {
			continue
		}
		sum += t.params.LoWatermark
	}
	sum += newLo
	if sum > capacity {
		return fcerrors.New(fcerrors.KindDefine, "DefineType", "sum of loWatermarks would exceed filesystem capacity")
	}
	return nil
}

// ChangeType updates the parameters of an existing type.
func (cs *CacheSet) ChangeType(name string, params *options.Options) error {
	return submit(cs.loop, func() error {
		defer cs.touchActivity()
		t, ok := cs.types[name]
		if !ok {
			return fcerrors.New(fcerrors.KindChange, "ChangeType", "type '"+name+"' does not exist")
		}
		if cs.opts.EnforceReserve && params.LoWatermark > 0 {
			if err := cs.checkReserve(name, params.LoWatermark); err != nil {
				return fcerrors.New(fcerrors.KindChange, "ChangeType", err.(*fcerrors.Error).Msg)
			}
		}
		return t.change(params)
	})
}

// DeleteType removes an empty type, returning the bytes freed (always 0,
// since DeleteType requires the type be empty first). Its sole error
// kind is Delete, covering both a missing type and a non-empty one.
func (cs *CacheSet) DeleteType(name string) (int64, error) {
	return submit(cs.loop, func() result2 {
		defer cs.touchActivity()
		t, ok := cs.types[name]
		if !ok {
			return result2{0, fcerrors.New(fcerrors.KindDelete, "DeleteType", "type '"+name+"' does not exist")}
		}
		used, count := t.status()
		if count > 0 {
			return result2{0, fcerrors.New(fcerrors.KindDelete, "DeleteType", "type '"+name+"' is not empty")}
		}
		delete(cs.types, name)
		os.Remove(t.dir())
		cs.log.Info("type deleted", logging.Pairs{"type": name})
		return result2{used, nil}
	}).unpack()
}

type result2 struct {
	n   int64
	err error
}

func (r result2) unpack() (int64, error) { return r.n, r.err }

// DescribeType returns the current parameters of name.
func (cs *CacheSet) DescribeType(name string) (*options.Options, error) {
	return submit(cs.loop, func() descResult {
		t, ok := cs.types[name]
		if !ok {
			return descResult{nil, fcerrors.New(fcerrors.KindExists, "DescribeType", "type '"+name+"' does not exist")}
		}
		return descResult{t.describe(), nil}
	}).unpack()
}

type descResult struct {
	opts *options.Options
	err  error
}

func (r descResult) unpack() (*options.Options, error) { return r.opts, r.err }

// TypeExists reports whether name has been defined.
func (cs *CacheSet) TypeExists(name string) bool {
	return submit(cs.loop, func() bool {
		_, ok := cs.types[name]
		return ok
	})
}

// GetTypes returns the defined type names in a stable, sorted order.
func (cs *CacheSet) GetTypes() []string {
	return submit(cs.loop, func() []string {
		names := make([]string, 0, len(cs.types))
		for n := range cs.types {
			names = append(names, n)
		}
		sort.Strings(names)
		return names
	})
}

// typeDirs returns the on-disk directory of every currently defined
// type, for collaborators (like the fsnotify watcher) that live outside
// the event loop and must not read cs.types directly.
func (cs *CacheSet) typeDirs() []string {
	return submit(cs.loop, func() []string {
		dirs := make([]string, 0, len(cs.types))
		for _, t := range cs.types {
			dirs = append(dirs, t.dir())
		}
		return dirs
	})
}

// -- object lifecycle ----------------------------------------------------

// InsertParams carries the optional per-insert overrides of a type's defaults.
type InsertParams struct {
	Size     *int64
	Cost     *int64
	Lifetime *int64
	Subscribe bool
}

// InsertResult is returned by InsertCacheObject.
type InsertResult struct {
	Path       string
	Subscribed bool
	Sub        *Subscription
}

// InsertCacheObject creates a new object in typeName. If the filesystem
// is too low on free space to write it, global reclamation is attempted
// first across other types with slack above their LoWatermark, in order
// of slack descending. The type then reclaims within itself to fit the
// object inside its HiWatermark; if that falls short the insert fails,
// and other types are not reclaimed from for that case.
func (cs *CacheSet) InsertCacheObject(typeName, filename string, p InsertParams) (InsertResult, error) {
	return submit(cs.loop, func() insertOutcome {
		defer cs.touchActivity()
		t, ok := cs.types[typeName]
		if !ok {
			return insertOutcome{err: fcerrors.New(fcerrors.KindInvalidParams, "InsertCacheObject", "no type '"+typeName+"' defined")}
		}

		size := t.params.Size
		if p.Size != nil {
			size = *p.Size
		}
		cost := t.params.Cost
		if p.Cost != nil {
			cost = *p.Cost
		}
		lifetime := t.params.Lifetime
		if p.Lifetime != nil {
			lifetime = *p.Lifetime
		}

		rounded := roundUpToBlock(size)
		if rounded > 0 {
			if err := cs.ensureFreeSpace(typeName, rounded); err != nil {
				return insertOutcome{err: err}
			}
		}

		id := cs.nextID
		now := time.Now()
		obj, path, err := t.insert(id, filename, size, cost, lifetime, now, p.Subscribe)
		if err != nil {
			return insertOutcome{err: err}
		}
		cs.nextID++
		metrics.ObserveType(typeName, t.used, len(t.objects))

		var sub *Subscription
		if p.Subscribe {
			sub = &Subscription{id: obj.ID, typeName: typeName, set: cs}
			cs.subs.add(sub)
		}
		return insertOutcome{result: InsertResult{Path: path, Subscribed: p.Subscribe, Sub: sub}}
	}).unpack()
}

type insertOutcome struct {
	result InsertResult
	err    error
}

func (o insertOutcome) unpack() (InsertResult, error) { return o.result, o.err }

// ensureFreeSpace checks actual filesystem free space and, if short,
// evicts from other types' slack (used above LoWatermark) in order of
// most slack first, using each type's standard eviction ordering.
func (cs *CacheSet) ensureFreeSpace(excludeType string, need int64) error {
	free, err := cs.freeSpaceFn(cs.base)
	if err != nil {
		return fcerrors.New(fcerrors.KindExists, "InsertCacheObject", "unable to determine filesystem free space")
	}
	if free >= need {
		return nil
	}
	deficit := need - free

	donors := make([]*TypeCache, 0, len(cs.types))
	for name, t := range cs.types {
		if name == excludeType {
			continue
		}
		if t.slack() > 0 {
			donors = append(donors, t)
		}
	}
	sort.Slice(donors, func(i, j int) bool { return donors[i].slack() > donors[j].slack() })

	var freed int64
	for _, donor := range donors {
		if freed >= deficit {
			break
		}
		want := donor.slack()
		if remaining := deficit - freed; want > remaining {
			want = remaining
		}
		if want <= 0 {
			continue
		}
		got := donor.reclaim(want)
		freed += got
		metrics.ObserveType(donor.name, donor.used, len(donor.objects))
	}

	free, _ = cs.freeSpaceFn(cs.base)
	if free < need {
		return fcerrors.New(fcerrors.KindExists, "InsertCacheObject", "insufficient filesystem space even after global reclamation")
	}
	return nil
}

// onEvict is invoked by TypeCache.reclaim for every object it evicts, to
// count the eviction in metrics and log it. It touches no subscription
// bookkeeping: reclaim never evicts pinned objects.
func (cs *CacheSet) onEvict(typeName string, obj *Object) {
	metrics.ObserveEviction(typeName, "reclaim")
	cs.log.Debug("object evicted", logging.Pairs{"type": typeName, "id": obj.ID, "size": obj.Size, "cost": obj.Cost})
}

// resolvePath decodes path and verifies its type segment still matches
// the type currently indexed for the decoded ID.
func (cs *CacheSet) resolvePath(path string) (id uint64, t *TypeCache, err error) {
	decodedID, typeName, decErr := pathcodec.Decode(cs.base, path)
	if decErr != nil {
		return 0, nil, fcerrors.New(fcerrors.KindExists, "", "invalid object path")
	}
	tc, ok := cs.types[typeName]
	if !ok {
		return 0, nil, fcerrors.New(fcerrors.KindExists, "", "no longer in cache")
	}
	if _, ok := tc.lookup(decodedID); !ok {
		return 0, nil, fcerrors.New(fcerrors.KindExists, "", "no longer in cache")
	}
	return decodedID, tc, nil
}

// SubscribeCacheObject subscribes to the object encoded in path,
// pinning it against eviction until the returned Subscription is
// cancelled.
func (cs *CacheSet) SubscribeCacheObject(path string) (*Subscription, error) {
	return submit(cs.loop, func() subResult {
		defer cs.touchActivity()
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return subResult{nil, err}
		}
		obj, _ := t.lookup(id)
		obj.Subscribers++
		sub := &Subscription{id: id, typeName: t.name, set: cs}
		cs.subs.add(sub)
		return subResult{sub, nil}
	}).unpack()
}

type subResult struct {
	sub *Subscription
	err error
}

func (r subResult) unpack() (*Subscription, error) { return r.sub, r.err }

// UnSubscribeCacheObject releases one subscription held on id in
// typeName, chosen arbitrarily from the subscription table since a
// caller identifying the subscription only by (type, id) — rather than
// by its own *Subscription handle — cannot distinguish between fungible
// pins on the same object. If this was the writer's implicit pin, the
// object leaves the Writing state and becomes Live. If subscribers
// reaches zero and ExpirePending was set, the object is removed
// immediately.
func (cs *CacheSet) UnSubscribeCacheObject(typeName string, id uint64) {
	cs.loop.submitAsync(func() {
		if sub := cs.subs.popOne(id); sub != nil {
			sub.cancelled = true
		}
		cs.releaseSubscriber(typeName, id)
	})
}

// releaseSubscriber decrements id's subscriber count in typeName and,
// if it reaches zero, clears Writing and applies any pending expire.
// Must run on the event loop; shared by UnSubscribeCacheObject and
// Subscription.Cancel.
func (cs *CacheSet) releaseSubscriber(typeName string, id uint64) {
	defer cs.touchActivity()
	t, ok := cs.types[typeName]
	if !ok {
		return
	}
	obj, ok := t.lookup(id)
	if !ok {
		return
	}
	if obj.Subscribers > 0 {
		obj.Subscribers--
	}
	if obj.Subscribers == 0 {
		obj.Writing = false
		if t.releaseIfPending(id) {
			cs.log.Debug("pending expire applied on unsubscribe",
				logging.Pairs{"type": typeName, "id": id})
		}
	}
}

// UnSubscribeCacheObjectByPath resolves path to its (type, id) and
// releases one subscription on it. This is the form an RPC transport
// uses, since a wire caller has no in-process *Subscription handle —
// only the path it originally subscribed to.
func (cs *CacheSet) UnSubscribeCacheObjectByPath(path string) error {
	return submit(cs.loop, func() error {
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return err
		}
		cs.UnSubscribeCacheObject(t.name, id)
		return nil
	})
}

// TouchCacheObject marks the object encoded in path as recently used.
func (cs *CacheSet) TouchCacheObject(path string) error {
	return submit(cs.loop, func() error {
		defer cs.touchActivity()
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return err
		}
		t.touch(id, time.Now())
		return nil
	})
}

// ResizeCacheObject changes the size of the object encoded in path.
func (cs *CacheSet) ResizeCacheObject(path string, newSize int64) (int64, error) {
	return submit(cs.loop, func() result2 {
		defer cs.touchActivity()
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return result2{0, err}
		}
		size, err := t.resize(id, newSize)
		if err == nil {
			metrics.ObserveType(t.name, t.used, len(t.objects))
		}
		return result2{size, err}
	}).unpack()
}

// ExpireCacheObject expires the object encoded in path. principal is
// logged on a successful synchronous expire, mirroring the audit log
// the original service emitted for manual expires.
func (cs *CacheSet) ExpireCacheObject(path, principal string) error {
	return submit(cs.loop, func() error {
		defer cs.touchActivity()
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return err
		}
		removed, err := t.expire(id)
		if err != nil {
			return err
		}
		if !removed {
			return fcerrors.New(fcerrors.KindInUse, "ExpireCacheObject", "expire deferred, object in use")
		}
		metrics.ObserveType(t.name, t.used, len(t.objects))
		cs.log.Warn("object expired", logging.Pairs{"path": path, "principal": principal})
		return nil
	})
}

// GetCacheObjectSize returns the size of the object encoded in path.
func (cs *CacheSet) GetCacheObjectSize(path string) (int64, error) {
	return submit(cs.loop, func() result2 {
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return result2{0, err}
		}
		obj, _ := t.lookup(id)
		return result2{obj.Size, nil}
	}).unpack()
}

// GetCacheObjectFilename returns the original filename of the object
// encoded in path.
func (cs *CacheSet) GetCacheObjectFilename(path string) (string, error) {
	return submit(cs.loop, func() fnResult {
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return fnResult{"", err}
		}
		obj, _ := t.lookup(id)
		return fnResult{obj.FileName, nil}
	}).unpack()
}

type fnResult struct {
	name string
	err  error
}

func (r fnResult) unpack() (string, error) { return r.name, r.err }

// copySource is resolved on the event loop so the source path and
// original filename are read without racing a concurrent expire/resize.
type copySource struct {
	src      string
	filename string
	err      error
}

// CopyCacheObject streams the object encoded in path to dest (or the
// configured default download directory if dest is empty), under
// filename (or the object's original filename if empty), subject to a
// permission check and collision-suffixing policy. The actual byte copy
// runs on the async copier pool; this call blocks the caller, not the
// event loop, until the copier replies.
func (cs *CacheSet) CopyCacheObject(path, dest, filename, principal string) (string, error) {
	src := submit(cs.loop, func() copySource {
		id, t, err := cs.resolvePath(path)
		if err != nil {
			return copySource{err: err}
		}
		obj, _ := t.lookup(id)
		name := filename
		if name == "" {
			name = obj.FileName
		}
		return copySource{src: pathcodec.Encode(cs.base, t.name, id, obj.FileName), filename: name}
	})
	if src.err != nil {
		return "", src.err
	}

	destDir := dest
	if destDir == "" {
		destDir = cs.defaultDownloadDir
	}
	if cs.permissions != nil && !cs.permissions.CanWrite(destDir, principal) {
		return "", fcerrors.New(fcerrors.KindPermission, "CopyCacheObject", "destination not writable by principal")
	}
	if info, err := os.Stat(destDir); err == nil && !info.IsDir() {
		return "", fcerrors.New(fcerrors.KindArgument, "CopyCacheObject", "destination exists and is not a directory")
	}

	candidate, err := copier.ResolveDestination(destDir, src.filename)
	if err != nil {
		return "", fcerrors.New(fcerrors.KindDirectory, "CopyCacheObject", err.Error())
	}
	finalDest, err := copier.UniqueDestination(candidate)
	if err != nil {
		return "", fcerrors.New(fcerrors.KindArgument, "CopyCacheObject", "no unique destination name available")
	}

	reply := make(chan copier.Result, 1)
	cs.copierPool.Submit(copier.Job{Src: src.src, Dest: finalDest, Reply: reply})
	result := <-reply
	if result.Err != nil {
		return "", fcerrors.New(fcerrors.KindDirectory, "CopyCacheObject", result.Err.Error())
	}
	cs.log.Info("object copied", logging.Pairs{"path": path, "dest": result.Dest, "principal": principal})
	return result.Dest, nil
}

// GetTypeForObjectID returns the type name indexed for id, or "" if the
// ID is not currently indexed under any type.
func (cs *CacheSet) GetTypeForObjectID(id uint64) string {
	return submit(cs.loop, func() string {
		for name, t := range cs.types {
			if _, ok := t.lookup(id); ok {
				return name
			}
		}
		return ""
	})
}

// -- status ---------------------------------------------------------------

// Status summarizes the cache set as a whole.
type Status struct {
	NumTypes   int
	TotalUsed  int64
	TotalObjs  int
	AvailSpace int64
}

// GetCacheStatus returns aggregate statistics across all types.
func (cs *CacheSet) GetCacheStatus() Status {
	return submit(cs.loop, func() Status {
		var st Status
		st.NumTypes = len(cs.types)
		for _, t := range cs.types {
			used, count := t.status()
			st.TotalUsed += used
			st.TotalObjs += count
		}
		if free, err := cs.freeSpaceFn(cs.base); err == nil {
			st.AvailSpace = free
		}
		return st
	})
}

// GetCacheTypeStatus returns the used bytes and object count of name.
func (cs *CacheSet) GetCacheTypeStatus(name string) (int64, int, error) {
	return submit(cs.loop, func() typeStatusResult {
		t, ok := cs.types[name]
		if !ok {
			return typeStatusResult{err: fcerrors.New(fcerrors.KindExists, "GetCacheTypeStatus", "type '"+name+"' doesn't exist")}
		}
		used, count := t.status()
		return typeStatusResult{used, count, nil}
	}).unpack()
}

type typeStatusResult struct {
	used  int64
	count int
	err   error
}

func (r typeStatusResult) unpack() (int64, int, error) { return r.used, r.count, r.err }

// -- startup & maintenance --------------------------------------------------

// WalkDirTree scans <base>/<type>/<shard>/<file> for every currently
// defined type and rebuilds each object's index entry from what's on
// disk: Size from stat, AccessedAt from mtime, Writing=false. FileName
// is set to the on-disk entry name (hex ID plus preserved extension);
// the client's original filename is not stored on disk and is not
// recovered. The monotonic ID counter is advanced past the largest ID
// observed. Call after all expected types have been re-defined via
// DefineType, before Start.
func (cs *CacheSet) WalkDirTree() error {
	return submit(cs.loop, func() error {
		for name, t := range cs.types {
			typeDir := t.dir()
			shards, err := os.ReadDir(typeDir)
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return err
			}
			for _, shard := range shards {
				if !shard.IsDir() {
					continue
				}
				shardPath := filepath.Join(typeDir, shard.Name())
				entries, err := os.ReadDir(shardPath)
				if err != nil {
					continue
				}
				for _, entry := range entries {
					entryPath := filepath.Join(shardPath, entry.Name())
					id, decodedType, err := pathcodec.Decode(cs.base, entryPath)
					if err != nil || decodedType != name {
						continue
					}
					info, err := entry.Info()
					if err != nil {
						continue
					}
					var size int64
					if info.IsDir() {
						size = dirSize(entryPath)
					} else {
						size = info.Size()
					}
					obj := &Object{
						ID:         id,
						TypeName:   name,
						FileName:   entry.Name(),
						Size:       size,
						Cost:       t.params.Cost,
						Lifetime:   0,
						InsertedAt: info.ModTime(),
						AccessedAt: info.ModTime(),
						Writing:    false,
					}
					t.objects[id] = obj
					t.used += size
					if id >= cs.nextID {
						cs.nextID = id + 1
					}
				}
			}
			metrics.ObserveType(name, t.used, len(t.objects))
		}
		return nil
	})
}

func dirSize(path string) int64 {
	var total int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}

// CleanupAtStartup removes top-level directories under base that do not
// correspond to any currently defined type. Top-level regular files and
// everything inside defined types' directories are left in place;
// unindexed entries there are handled by CleanupOrphans. Call after
// WalkDirTree.
func (cs *CacheSet) CleanupAtStartup() error {
	return submit(cs.loop, func() error {
		entries, err := os.ReadDir(cs.base)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if _, ok := cs.types[e.Name()]; ok {
				continue
			}
			full := filepath.Join(cs.base, e.Name())
			if err := os.RemoveAll(full); err != nil {
				cs.log.Error("cleanup at startup failed to remove stray directory",
					logging.Pairs{"path": full, "error": err.Error()})
			} else {
				cs.log.Info("removed stray directory not owned by any type",
					logging.Pairs{"path": full})
			}
		}
		return nil
	})
}

// CleanupOrphans walks each type directory, removing on-disk entries
// older than OrphanGraceInterval that have no index entry, and dropping
// any index entry whose on-disk file is missing. Filesystem errors
// during this walk are logged and do not abort the sweep.
func (cs *CacheSet) CleanupOrphans() {
	cs.loop.submitAsync(func() {
		now := time.Now()
		for name, t := range cs.types {
			typeDir := t.dir()
			shards, err := os.ReadDir(typeDir)
			if err != nil {
				if !os.IsNotExist(err) {
					cs.log.Error("orphan cleanup: read type dir", logging.Pairs{"type": name, "error": err.Error()})
				}
				continue
			}
			for _, shard := range shards {
				if !shard.IsDir() {
					continue
				}
				shardPath := filepath.Join(typeDir, shard.Name())
				entries, err := os.ReadDir(shardPath)
				if err != nil {
					cs.log.Error("orphan cleanup: read shard dir", logging.Pairs{"type": name, "error": err.Error()})
					continue
				}
				for _, entry := range entries {
					entryPath := filepath.Join(shardPath, entry.Name())
					id, decodedType, err := pathcodec.Decode(cs.base, entryPath)
					if err != nil || decodedType != name {
						continue
					}
					if _, ok := t.lookup(id); ok {
						continue
					}
					info, err := entry.Info()
					if err != nil {
						continue
					}
					if now.Sub(info.ModTime()) < cs.opts.OrphanGraceInterval {
						continue
					}
					if err := os.RemoveAll(entryPath); err != nil {
						cs.log.Error("orphan cleanup: remove", logging.Pairs{"path": entryPath, "error": err.Error()})
						continue
					}
					metrics.ObserveOrphanRemoved(name)
					cs.log.Debug("removed orphaned file", logging.Pairs{"path": entryPath})
				}
			}
			// the reverse direction: an index entry with no on-disk file
			for id, obj := range t.objects {
				path := pathcodec.Encode(cs.base, name, id, obj.FileName)
				if _, err := os.Stat(path); os.IsNotExist(err) {
					t.used -= obj.Size
					delete(t.objects, id)
					cs.log.Debug("dropped index entry missing on disk", logging.Pairs{"type": name, "id": id})
				}
			}
			metrics.ObserveType(name, t.used, len(t.objects))
		}
	})
}

// CleanupDirTypes prunes empty leaf (shard) directories left behind
// after resize/expire for dir_type caches.
func (cs *CacheSet) CleanupDirTypes() {
	cs.loop.submitAsync(func() {
		for name, t := range cs.types {
			if !t.params.DirType {
				continue
			}
			typeDir := t.dir()
			shards, err := os.ReadDir(typeDir)
			if err != nil {
				continue
			}
			for _, shard := range shards {
				if !shard.IsDir() {
					continue
				}
				shardPath := filepath.Join(typeDir, shard.Name())
				entries, err := os.ReadDir(shardPath)
				if err != nil {
					continue
				}
				if len(entries) == 0 {
					os.Remove(shardPath)
					cs.log.Debug("removed empty dir-type shard", logging.Pairs{"type": name, "path": shardPath})
				}
			}
		}
	})
}

// CheckSubscribedObject verifies the on-disk artifact for a subscribed
// object still exists and matches its indexed size. If the file was
// deleted out from under the index (external modification), the record
// is evicted. Run by the validator worker.
func (cs *CacheSet) CheckSubscribedObject(typeName string, id uint64) {
	t, ok := cs.types[typeName]
	if !ok {
		return
	}
	obj, ok := t.lookup(id)
	if !ok {
		return
	}
	path := pathcodec.Encode(cs.base, typeName, id, obj.FileName)
	info, err := os.Stat(path)
	if err != nil {
		cs.log.Warn("subscribed object missing from disk, evicting", logging.Pairs{"type": typeName, "id": id})
		t.used -= obj.Size
		delete(t.objects, id)
		return
	}
	if !t.params.DirType && info.Size() > obj.Size {
		// the writer has grown the file past its reserved size; treat the
		// on-disk size as authoritative for accounting purposes.
		t.used += info.Size() - obj.Size
		obj.Size = info.Size()
	}
}
