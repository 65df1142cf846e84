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

// Package options defines the parameters of a cache type: its watermarks
// and the defaults applied to objects inserted without explicit values.
package options

const (
	// DefaultSize is the default object size, in bytes, used when an
	// insert does not specify one.
	DefaultSize = 0
	// DefaultCost is the default object cost used when an insert does
	// not specify one.
	DefaultCost = 50
	// DefaultLifetime is the default object lifetime, in seconds, used
	// when an insert does not specify one. 0 means infinite.
	DefaultLifetime = 0
	// MaxCost is the highest permitted object cost.
	MaxCost = 100
	// MaxNameLength is the longest permitted cache type name.
	MaxNameLength = 64
)

// Options describes a cache type's quota and default insertion parameters.
// A zero Options is invalid; use New to obtain sane defaults before
// overriding fields from a caller-supplied DefineType/ChangeType payload.
type Options struct {
	// LoWatermark is the minimum space in bytes guaranteed to be
	// available to the type; it is reserved against the filesystem
	// capacity and never yielded to other types under pressure.
	LoWatermark int64 `toml:"lo_watermark"`
	// HiWatermark is the maximum space in bytes the type may consume.
	HiWatermark int64 `toml:"hi_watermark"`
	// Size is the default object size applied on insert when unspecified.
	Size int64 `toml:"size"`
	// Cost is the default object cost (0-100) applied on insert when unspecified.
	Cost int64 `toml:"cost"`
	// Lifetime is the default object lifetime in seconds (0 = infinite)
	// applied on insert when unspecified.
	Lifetime int64 `toml:"lifetime"`
	// DirType, if true, makes every object in this type a directory
	// rather than a regular file.
	DirType bool `toml:"dir_type"`
}

// New returns an Options populated with package defaults; callers
// overwrite LoWatermark/HiWatermark, which have no sane default.
func New() *Options {
	return &Options{
		Size:     DefaultSize,
		Cost:     DefaultCost,
		Lifetime: DefaultLifetime,
	}
}

// Equal reports whether o and o2 carry identical parameters. Used to
// resolve a duplicate DefineType call: identical parameters are treated
// as Exists, differing ones as Configuration (see DESIGN.md, Open
// Question 1).
func (o *Options) Equal(o2 *Options) bool {
	if o2 == nil {
		return false
	}
	return o.LoWatermark == o2.LoWatermark &&
		o.HiWatermark == o2.HiWatermark &&
		o.Size == o2.Size &&
		o.Cost == o2.Cost &&
		o.Lifetime == o2.Lifetime &&
		o.DirType == o2.DirType
}

// Clone returns a deep (here: full value) copy of o.
func (o *Options) Clone() *Options {
	c := *o
	return &c
}
