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

package rpc

import "fmt"

// fieldType names the scalar JSON types schema.go validates against.
type fieldType int

const (
	typeString fieldType = iota
	typeNumber
	typeBool
	typeObject
)

// field describes one required or optional key of a method's payload.
type field struct {
	name     string
	kind     fieldType
	required bool
}

// schema is the shape table for one RPC method's payload, standing in
// for the full JSON-schema validator named as an external collaborator:
// it checks only what CacheSet's operations themselves require before
// they see a malformed call.
type schema []field

func (s schema) validate(payload map[string]any) error {
	for _, f := range s {
		v, present := payload[f.name]
		if !present {
			if f.required {
				return fmt.Errorf("missing required field %q", f.name)
			}
			continue
		}
		if !matches(v, f.kind) {
			return fmt.Errorf("field %q has wrong type", f.name)
		}
	}
	return nil
}

func matches(v any, kind fieldType) bool {
	switch kind {
	case typeString:
		_, ok := v.(string)
		return ok
	case typeNumber:
		_, ok := v.(float64)
		return ok
	case typeBool:
		_, ok := v.(bool)
		return ok
	case typeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return false
}

var schemas = map[string]schema{
	"DefineType": {
		{"typeName", typeString, true},
		{"loWatermark", typeNumber, true},
		{"hiWatermark", typeNumber, true},
		{"size", typeNumber, false},
		{"cost", typeNumber, false},
		{"lifetime", typeNumber, false},
		{"dirType", typeBool, false},
	},
	"ChangeType": {
		{"typeName", typeString, true},
		{"loWatermark", typeNumber, false},
		{"hiWatermark", typeNumber, false},
		{"size", typeNumber, false},
		{"cost", typeNumber, false},
		{"lifetime", typeNumber, false},
	},
	"DeleteType":   {{"typeName", typeString, true}},
	"DescribeType": {{"typeName", typeString, true}},
	"InsertCacheObject": {
		{"typeName", typeString, true},
		{"fileName", typeString, true},
		{"size", typeNumber, false},
		{"cost", typeNumber, false},
		{"lifetime", typeNumber, false},
		{"subscribe", typeBool, false},
	},
	"SubscribeCacheObject":   {{"path", typeString, true}},
	"UnSubscribeCacheObject": {{"path", typeString, true}},
	"TouchCacheObject":       {{"path", typeString, true}},
	"ResizeCacheObject": {
		{"path", typeString, true},
		{"newSize", typeNumber, true},
	},
	"ExpireCacheObject": {
		{"path", typeString, true},
		{"principal", typeString, false},
	},
	"CopyCacheObject": {
		{"path", typeString, true},
		{"dest", typeString, false},
		{"filename", typeString, false},
		{"principal", typeString, false},
	},
	"GetCacheObjectSize":     {{"path", typeString, true}},
	"GetCacheObjectFilename": {{"path", typeString, true}},
	"GetCacheTypeStatus":     {{"typeName", typeString, true}},
	"GetCacheStatus":         {},
	"GetCacheTypes":          {},
	"GetVersion":             {},
}
