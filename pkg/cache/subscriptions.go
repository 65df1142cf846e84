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

// subscriptionTable maps an object ID to its live subscription handles.
// It holds only weak references (object IDs); it never keeps an evicted
// object alive, since a non-zero subscriber count is what prevents
// eviction in the first place.
type subscriptionTable struct {
	byObject map[uint64][]*Subscription
}

func newSubscriptionTable() *subscriptionTable {
	return &subscriptionTable{byObject: make(map[uint64][]*Subscription)}
}

// Subscription is a client's live pin on an object. Cancel releases it;
// it is safe to call Cancel more than once, including concurrently from
// multiple goroutines. cancelled is only ever read or written from the
// event loop goroutine — Cancel enqueues the actual work rather than
// touching it directly, so there is no field to guard with a mutex.
type Subscription struct {
	id        uint64
	typeName  string
	cancelled bool
	set       *CacheSet
}

// Cancel releases the subscription: removes it from the subscription
// table, decrements the object's subscriber count, and, if that reaches
// zero, clears Writing and applies any pending expire. The work runs on
// the event loop goroutine so cancelled needs no synchronization of its
// own; Cancel itself returns immediately.
func (s *Subscription) Cancel() {
	s.set.loop.submitAsync(func() {
		if s.cancelled {
			return
		}
		s.cancelled = true
		s.set.subs.remove(s)
		s.set.releaseSubscriber(s.typeName, s.id)
	})
}

func (st *subscriptionTable) add(sub *Subscription) {
	st.byObject[sub.id] = append(st.byObject[sub.id], sub)
}

func (st *subscriptionTable) remove(sub *Subscription) {
	list := st.byObject[sub.id]
	for i, s := range list {
		if s == sub {
			st.byObject[sub.id] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(st.byObject[sub.id]) == 0 {
		delete(st.byObject, sub.id)
	}
}

// popOne removes and returns one subscription held on id, chosen
// arbitrarily since subscriptions on the same object are fungible
// pins, or nil if none exist. Used when a caller releases a
// subscription by (type, id) rather than by its own *Subscription
// handle — the wire path, which never retains one.
func (st *subscriptionTable) popOne(id uint64) *Subscription {
	list := st.byObject[id]
	if len(list) == 0 {
		return nil
	}
	sub := list[len(list)-1]
	if len(list) == 1 {
		delete(st.byObject, id)
	} else {
		st.byObject[id] = list[:len(list)-1]
	}
	return sub
}

func (st *subscriptionTable) count(id uint64) int {
	return len(st.byObject[id])
}

func (st *subscriptionTable) objectIDs() []uint64 {
	ids := make([]uint64, 0, len(st.byObject))
	for id := range st.byObject {
		ids = append(ids, id)
	}
	return ids
}
