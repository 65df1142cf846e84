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

// Package fcerrors defines the taxonomy of errors returned by the file
// cache engine. Callers are expected to branch on Kind rather than on
// error text.
package fcerrors

import "strconv"

// Kind enumerates the domain-level error categories the cache engine
// can return. It deliberately does not distinguish "not found" from
// "no longer valid", matching the ExistsError semantics of the source
// service.
type Kind int

const (
	// KindNone indicates no error occurred.
	KindNone = Kind(iota)
	// KindInvalidParams indicates the caller's inputs failed validation.
	KindInvalidParams
	// KindExists indicates the referenced entity was not found, or a
	// caller-supplied path decoded to an object whose type no longer
	// matches the path's type segment. InsertCacheObject also returns it
	// when it cannot obtain enough space for the new object.
	KindExists
	// KindDefine indicates DefineType failed for a reason other than
	// invalid params or a duplicate name.
	KindDefine
	// KindChange indicates ChangeType could not apply the requested params.
	KindChange
	// KindDelete indicates DeleteType failed (most commonly: non-empty type).
	KindDelete
	// KindResize indicates Resize could not grow the object to the
	// requested size.
	KindResize
	// KindInUse indicates an expire was deferred because the object is pinned.
	KindInUse
	// KindPermission indicates the destination is not writable by the caller.
	KindPermission
	// KindArgument indicates the destination is not a directory, or no
	// unique destination name could be found.
	KindArgument
	// KindDirectory indicates a filesystem error while creating or using
	// a destination directory.
	KindDirectory
	// KindConfiguration indicates a duplicate DefineType call supplied
	// parameters that differ from the type's current configuration.
	KindConfiguration
)

var kindNames = map[Kind]string{
	KindNone:          "none",
	KindInvalidParams: "InvalidParams",
	KindExists:        "Exists",
	KindDefine:        "Define",
	KindChange:        "Change",
	KindDelete:        "Delete",
	KindResize:        "Resize",
	KindInUse:         "InUse",
	KindPermission:    "Permission",
	KindArgument:      "Argument",
	KindDirectory:     "Directory",
	KindConfiguration: "Configuration",
}

func (k Kind) String() string {
	if v, ok := kindNames[k]; ok {
		return v
	}
	return strconv.Itoa(int(k))
}

// Error is the concrete error type returned by cache engine operations.
// Op names the failing operation (e.g. "InsertCacheObject") to aid logs
// without requiring callers to parse Msg.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Kind.String() + ": " + e.Msg
	}
	return e.Op + ": " + e.Msg
}

// New builds an *Error for the given kind, operation, and message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// KindOf returns the Kind carried by err, or KindNone if err is nil or
// not an *Error.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if fe, ok := err.(*Error); ok {
		return fe.Kind
	}
	return KindNone
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
