// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package logging

import (
	"bytes"
	"fmt"
	"io"
	stdlog "log"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"go.wifilogger.dev/wifilogger/record"
)

// ComponentField names the part of the pipeline an internal line comes from.
const ComponentField = "component"

var processStart = time.Now()

// SetOutput configures logging output for standard loggers.
func SetOutput(w io.Writer) {
	stdlog.SetOutput(w)
	log.SetOutput(w)
}

// SetLogLevel sets the level of the logrus standard logger and switches it to
// the console line format. Needs to be called very early during startup.
func SetLogLevel(logLevel string) error {
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return errors.Wrapf(err, "valid log levels are %v", log.AllLevels)
	}
	log.SetLevel(level)
	log.SetFormatter(&InternalFormatter{})
	return nil
}

// NewInternalLogger returns the logger the pipeline reports its own state
// with. It is never routed into the queue.
func NewInternalLogger(w io.Writer, level log.Level) *log.Logger {
	logger := log.New()
	logger.SetOutput(w)
	logger.SetLevel(level)
	logger.SetFormatter(&InternalFormatter{})
	return logger
}

// InternalFormatter renders entries the way the device console does:
//
//	W (5012) dispatch: could not send record error="connection refused" streak=2
type InternalFormatter struct {
	// Clock returns the time elapsed since startup. Defaults to the process uptime.
	Clock func() time.Duration
}

var _ log.Formatter = (*InternalFormatter)(nil)

func (f *InternalFormatter) Format(entry *log.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	var uptime time.Duration
	if f.Clock != nil {
		uptime = f.Clock()
	} else {
		uptime = entry.Time.Sub(processStart)
	}
	fmt.Fprintf(b, "%s (%d) ", SeverityOf(entry.Level).Letter(), uptime.Milliseconds())

	if component, ok := entry.Data[ComponentField]; ok {
		fmt.Fprintf(b, "%v: ", component)
	}
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != ComponentField {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		writeValue(b, entry.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

func writeValue(b *bytes.Buffer, v interface{}) {
	var s string
	switch value := v.(type) {
	case string:
		s = value
	case error:
		s = value.Error()
	default:
		fmt.Fprint(b, value)
		return
	}
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		fmt.Fprintf(b, "%q", s)
		return
	}
	b.WriteString(s)
}

// SeverityOf maps a logrus level onto the record severities.
func SeverityOf(level log.Level) record.Severity {
	switch level {
	case log.PanicLevel, log.FatalLevel, log.ErrorLevel:
		return record.SeverityError
	case log.WarnLevel:
		return record.SeverityWarning
	case log.InfoLevel:
		return record.SeverityInfo
	case log.DebugLevel:
		return record.SeverityDebug
	case log.TraceLevel:
		return record.SeverityVerbose
	}
	return record.SeverityInfo
}
