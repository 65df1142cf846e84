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

import "time"

// Object is the metadata bundle for one cached file. Mutation of an
// Object is confined to its enclosing TypeCache so that the type's
// aggregate statistics (used bytes, object count) stay consistent with
// the sum of its objects' sizes.
type Object struct {
	ID       uint64
	TypeName string
	// FileName is the original basename supplied by the client,
	// preserved verbatim (including extension) for MIME-sniffing by
	// downstream consumers.
	FileName string
	// Size is in bytes, rounded up to the filesystem block size.
	Size int64
	// Cost is 0-100; lower cost objects are reclaimed first.
	Cost int64
	// Lifetime is in seconds; 0 means infinite.
	Lifetime int64

	InsertedAt time.Time
	AccessedAt time.Time

	// Subscribers counts live subscription handles pinning this object.
	Subscribers int
	// Writing is true while the object's final size is not yet known.
	Writing bool
	// ExpirePending is set when Expire was requested while the object
	// was pinned; the object is removed the instant it becomes unpinned.
	ExpirePending bool
}

// IsPinned reports whether the object is currently ineligible for eviction.
func (o *Object) IsPinned() bool {
	return o.Subscribers > 0 || o.Writing
}

// IsExpired reports whether the object has outlived its lifetime as of now.
// A zero Lifetime never expires.
func (o *Object) IsExpired(now time.Time) bool {
	return o.Lifetime > 0 && now.Sub(o.InsertedAt) > time.Duration(o.Lifetime)*time.Second
}

// snapshot returns a shallow copy safe to hand to callers outside the
// event loop goroutine.
func (o *Object) snapshot() *Object {
	c := *o
	return &c
}
