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

// Package sandbox implements the permission predicate that gates which
// destination paths a principal may copy cache objects to. It is a
// capability allow-list, not a general ACL engine: each
// entry grants one principal write access under one path prefix.
package sandbox

import (
	"strings"
	"sync"
)

// Grant authorizes principal to write under any path starting with Prefix.
type Grant struct {
	Principal string
	Prefix    string
}

// Sandbox holds the set of active grants and answers CanWrite checks
// against them. A zero Sandbox denies everything.
type Sandbox struct {
	mu     sync.RWMutex
	grants []Grant
}

// New returns a Sandbox seeded with grants.
func New(grants ...Grant) *Sandbox {
	s := &Sandbox{}
	s.grants = append(s.grants, grants...)
	return s
}

// Grant adds a new allow-list entry at runtime.
func (s *Sandbox) Grant(principal, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, Grant{Principal: principal, Prefix: prefix})
}

// Revoke removes every grant that matches both principal and prefix; an
// empty principal or an empty prefix matches any value.
func (s *Sandbox) Revoke(principal, prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.grants[:0]
	for _, g := range s.grants {
		if (principal == "" || g.Principal == principal) && (prefix == "" || g.Prefix == prefix) {
			continue
		}
		kept = append(kept, g)
	}
	s.grants = kept
}

// CanWrite reports whether principal is authorized to write to path,
// i.e. path lies under some grant's Prefix held by principal. The empty
// principal is never authorized.
func (s *Sandbox) CanWrite(path, principal string) bool {
	if principal == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.grants {
		if g.Principal != principal {
			continue
		}
		if strings.HasPrefix(path, g.Prefix) {
			return true
		}
	}
	return false
}
