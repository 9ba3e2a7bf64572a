// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"fmt"
	"strings"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/queue"
	"go.wifilogger.dev/wifilogger/record"
)

// TagField is the entry field used as the record tag.
const TagField = "tag"

// DefaultTag tags entries that carry neither TagField nor ComponentField.
const DefaultTag = "logrus"

// Hook routes logrus entries into the queue. Entries are rendered with the
// record formatter, not the logger's own formatter; the caller is used when
// the logger reports it.
type Hook struct {
	queue     *queue.Queue
	formatter *record.Formatter
	levels    []log.Level
	dropped   atomic.Uint64
}

var _ log.Hook = (*Hook)(nil)

// NewHook returns a hook firing on the given levels, or on all of them when
// none are given.
func NewHook(q *queue.Queue, f *record.Formatter, levels ...log.Level) *Hook {
	if len(levels) == 0 {
		levels = log.AllLevels
	}
	return &Hook{queue: q, formatter: f, levels: levels}
}

func (h *Hook) Levels() []log.Level {
	return h.levels
}

// Fire never fails: a rejected record is released and counted.
func (h *Hook) Fire(entry *log.Entry) error {
	tag := DefaultTag
	if v, ok := entry.Data[TagField]; ok {
		tag = fmt.Sprint(v)
	} else if v, ok := entry.Data[ComponentField]; ok {
		tag = fmt.Sprint(v)
	}

	var file, function string
	var line int
	if entry.HasCaller() {
		file = entry.Caller.File
		line = entry.Caller.Line
		function = shortFunction(entry.Caller.Function)
	}

	r := h.formatter.Format(SeverityOf(entry.Level), tag, file, line, function, "%s", entry.Message)
	if !h.queue.Offer(r) {
		h.dropped.Add(1)
	}
	return nil
}

func (h *Hook) Dropped() uint64 {
	return h.dropped.Load()
}

// Attach adds h to logger. The returned function puts back the hooks the
// logger had before.
func Attach(logger *log.Logger, h log.Hook) (detach func()) {
	previous := logger.ReplaceHooks(make(log.LevelHooks))
	hooks := make(log.LevelHooks, len(previous))
	for level, hs := range previous {
		hooks[level] = append([]log.Hook(nil), hs...)
	}
	hooks.Add(h)
	logger.ReplaceHooks(hooks)
	return func() { logger.ReplaceHooks(previous) }
}

// shortFunction strips the package path from a qualified function name:
// go.wifilogger.dev/cmd/wifilogger-agent.(*shell).run becomes (*shell).run.
func shortFunction(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}
