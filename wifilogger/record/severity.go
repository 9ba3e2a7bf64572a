// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package record

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Severity is the ordered set of log severities, most severe first.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityDebug
	SeverityVerbose
)

var severityLetters = [...]string{"E", "W", "I", "D", "V"}

var severityNames = [...]string{"error", "warning", "info", "debug", "verbose"}

// Rank returns the numeric rank used when formatting. Unknown values rank as Info.
func (s Severity) Rank() int {
	if s < SeverityError || s > SeverityVerbose {
		return int(SeverityInfo)
	}
	return int(s)
}

// Letter returns the single-letter tag that starts every rendered record.
func (s Severity) Letter() string {
	return severityLetters[s.Rank()]
}

func (s Severity) String() string {
	return severityNames[s.Rank()]
}

// ParseSeverity accepts either the letter (E, W, I, D, V) or the name of a severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "e", "error":
		return SeverityError, nil
	case "w", "warn", "warning":
		return SeverityWarning, nil
	case "i", "info":
		return SeverityInfo, nil
	case "d", "debug":
		return SeverityDebug, nil
	case "v", "verbose", "trace":
		return SeverityVerbose, nil
	}
	return SeverityInfo, errors.Newf("unknown severity: %q", s)
}
