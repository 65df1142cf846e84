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

// Package level defines the ordered set of log levels used by the
// filecached structured logger.
package level

// Level is a human-readable log level name.
type Level string

// ID is the numeric ordering of a Level; higher is more severe.
type ID int

const (
	// Debug is the lowest severity, verbose level.
	Debug Level = "DEBUG"
	// Info is routine operational detail.
	Info Level = "INFO"
	// Warn indicates a recoverable but noteworthy condition.
	Warn Level = "WARN"
	// Error indicates an operation failed.
	Error Level = "ERROR"
	// Fatal indicates the process cannot continue.
	Fatal Level = "FATAL"
)

const (
	// DebugID is the numeric ID of Debug.
	DebugID ID = iota + 1
	// InfoID is the numeric ID of Info.
	InfoID
	// WarnID is the numeric ID of Warn.
	WarnID
	// ErrorID is the numeric ID of Error.
	ErrorID
	// FatalID is the numeric ID of Fatal.
	FatalID
)

var ids = map[Level]ID{
	Debug: DebugID,
	Info:  InfoID,
	Warn:  WarnID,
	Error: ErrorID,
	Fatal: FatalID,
}

// GetID returns the numeric ID for l, or 0 if l is not a recognized level.
func GetID(l Level) ID {
	return ids[l]
}
