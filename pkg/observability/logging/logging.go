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

// Package logging provides the structured, key=value logger used
// throughout filecached. It is adapted from the "Pairs" style logger
// used across the wider cache ecosystem this project draws on: log
// lines are event-named and carry a flat detail map rather than a
// format string.
package logging

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/webosose/filecache/pkg/observability/logging/level"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Pairs carries structured detail alongside a log event name.
type Pairs map[string]any

// Logger is the structured logging interface consumed by the rest of
// filecached.
type Logger interface {
	SetLogLevel(level.Level)
	Level() level.Level
	Close()

	Log(logLevel level.Level, event string, detail Pairs)
	Debug(event string, detail Pairs)
	Info(event string, detail Pairs)
	Warn(event string, detail Pairs)
	Error(event string, detail Pairs)
	Fatal(code int, event string, detail Pairs)
}

var _ Logger = &logger{}

// Config configures a file-backed Logger.
type Config struct {
	// LogFile is the path to the log file. Empty means log to stdout.
	LogFile string
	// LogLevel is the minimum level that will be emitted.
	LogLevel string
}

// New returns a Logger per conf: to LogFile via lumberjack rotation if
// set, otherwise to stdout.
func New(conf Config) Logger {
	l := &logger{now: time.Now}
	if conf.LogFile == "" {
		l.writer = os.Stdout
	} else {
		ljLogger := &lumberjack.Logger{
			Filename:   conf.LogFile,
			MaxSize:    64,
			MaxBackups: 10,
			MaxAge:     14,
			Compress:   true,
		}
		l.writer = ljLogger
		l.closer = ljLogger
	}
	l.SetLogLevel(level.Level(conf.LogLevel))
	return l
}

// NoopLogger returns a Logger that discards everything. Useful as a
// default and in tests.
func NoopLogger() Logger {
	return &logger{levelID: level.FatalID + 1, now: time.Now}
}

// StreamLogger returns a Logger that writes to an arbitrary io.Writer,
// useful for tests that want to inspect log output.
func StreamLogger(w io.Writer, logLevel level.Level) Logger {
	l := &logger{writer: w, now: time.Now}
	l.SetLogLevel(logLevel)
	return l
}

type logger struct {
	lvl     level.Level
	levelID level.ID
	writer  io.Writer
	closer  io.Closer
	mtx     sync.Mutex
	now     func() time.Time
}

func (l *logger) SetLogLevel(lvl level.Level) {
	id := level.GetID(lvl)
	if id == 0 {
		lvl = level.Info
		id = level.InfoID
	}
	l.lvl = lvl
	l.levelID = id
}

func (l *logger) Level() level.Level { return l.lvl }

func (l *logger) Close() {
	if l.closer != nil {
		l.closer.Close()
	}
}

func (l *logger) Log(logLevel level.Level, event string, detail Pairs) {
	lid := level.GetID(logLevel)
	if lid == 0 || lid < l.levelID {
		return
	}
	l.write(logLevel, event, detail)
}

func (l *logger) Debug(event string, detail Pairs) { l.Log(level.Debug, event, detail) }
func (l *logger) Info(event string, detail Pairs)  { l.Log(level.Info, event, detail) }
func (l *logger) Warn(event string, detail Pairs)  { l.Log(level.Warn, event, detail) }
func (l *logger) Error(event string, detail Pairs) { l.Log(level.Error, event, detail) }

func (l *logger) Fatal(code int, event string, detail Pairs) {
	l.write(level.Fatal, event, detail)
	if code < 0 {
		return
	}
	if code == 0 {
		code = 1
	}
	os.Exit(code)
}

type item struct {
	key string
	val string
}

func (l *logger) write(logLevel level.Level, event string, detail Pairs) {
	if l.writer == nil {
		return
	}
	ts := l.now().UTC().Format(time.RFC3339Nano)
	line := "time=" + ts + " app=filecached level=" + string(logLevel) + " event=" + quote(event)

	if len(detail) > 0 {
		pairs := make([]item, 0, len(detail))
		for k, v := range detail {
			var s string
			switch t := v.(type) {
			case string:
				s = quote(t)
			case fmt.Stringer:
				s = quote(t.String())
			case error:
				s = quote(t.Error())
			default:
				s = fmt.Sprintf("%v", t)
			}
			pairs = append(pairs, item{k, s})
		}
		slices.SortFunc(pairs, func(a, b item) int { return cmp.Compare(a.key, b.key) })
		for _, p := range pairs {
			line += " " + p.key + "=" + p.val
		}
	}
	line += "\n"

	l.mtx.Lock()
	defer l.mtx.Unlock()
	io.WriteString(l.writer, line)
}

func quote(s string) string {
	if strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
