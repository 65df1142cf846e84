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

// Package pathcodec implements the bijective mapping between a cached
// object's (id, type, filename) and its on-disk path fragment under a
// cache base directory. It holds no state.
package pathcodec

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrInvalidPath indicates a path is not under the configured base
// directory, or its ID segment is not valid hex.
var ErrInvalidPath = errors.New("invalid path")

// ShardWidth is the number of leading hex digits of the ID used as the
// shard subdirectory, keeping any single directory small.
const ShardWidth = 2

// Encode returns the deterministic on-disk path for an object with the
// given id, type name, and original filename. The filename's extension,
// if any, is preserved on the encoded path.
func Encode(base, typeName string, id uint64, filename string) string {
	hexID := strconv.FormatUint(id, 16)
	shard := shardOf(hexID)
	name := hexID + filepath.Ext(filename)
	return filepath.Join(base, typeName, shard, name)
}

// shardOf returns the shard subdirectory for a hex-encoded ID, left-padding
// with zeros so IDs shorter than ShardWidth still shard predictably.
func shardOf(hexID string) string {
	padded := hexID
	for len(padded) < ShardWidth {
		padded = "0" + padded
	}
	return padded[:ShardWidth]
}

// Decode parses path, which must lie under base, and returns the object
// ID and type name encoded in it. It returns ErrInvalidPath if path is
// not under base or its ID segment is not valid hex. Decode does not
// consult any index; it is a pure parse.
func Decode(base, path string) (id uint64, typeName string, err error) {
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") || rel == "." {
		return 0, "", ErrInvalidPath
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 {
		return 0, "", ErrInvalidPath
	}
	typeName = parts[0]
	fileName := parts[2]
	hexID := fileName
	if dot := strings.IndexByte(fileName, '.'); dot >= 0 {
		hexID = fileName[:dot]
	}
	id, err = strconv.ParseUint(hexID, 16, 64)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %s", ErrInvalidPath, fileName)
	}
	return id, typeName, nil
}

// TypeOf returns the type name segment of path, or "" if path does not
// decode cleanly under base.
func TypeOf(base, path string) string {
	_, typeName, err := Decode(base, path)
	if err != nil {
		return ""
	}
	return typeName
}
