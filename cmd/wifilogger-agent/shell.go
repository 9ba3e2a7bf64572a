// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/cockroachdb/errors"

	"go.wifilogger.dev/wifilogger/pipeline"
	"go.wifilogger.dev/wifilogger/record"
)

const shellUsage = `Commands:
  E|W|I|D|V <tag> <message>  - emit a record
  level <severity>           - drop records less severe than severity
  stats                      - show pipeline statistics
  route on|off               - route the standard loggers into the queue
  console on|off             - echo records on this terminal
  help                       - show this help
  quit                       - leave the shell`

// shell reads records and commands from a terminal.
type shell struct {
	rl     *readline.Instance
	out    io.Writer
	p      *pipeline.Pipeline
	lineNo int
}

func newShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "wifilogger> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, errors.Wrap(err, "could not create readline")
	}
	return &shell{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that does not garble the prompt.
func (s *shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Run reads lines until EOF, quit or ctx is done.
func (s *shell) Run(ctx context.Context, p *pipeline.Pipeline) {
	defer s.rl.Close()
	s.p = p
	fmt.Fprintln(s.out, shellUsage)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return
		}
		if s.handle(line) {
			return
		}
	}
}

// handle runs one input line and reports whether the shell should exit.
func (s *shell) handle(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	s.lineNo++

	parts := strings.Fields(input)
	switch strings.ToLower(parts[0]) {
	case "help", "?":
		fmt.Fprintln(s.out, shellUsage)
	case "quit", "exit", "q":
		return true
	case "stats":
		body, err := json.MarshalIndent(s.p.Stats(), "", "  ")
		if err != nil {
			fmt.Fprintf(s.out, "could not render stats: %v\n", err)
			return false
		}
		fmt.Fprintln(s.out, string(body))
	case "route":
		if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
			fmt.Fprintln(s.out, "usage: route on|off")
			return false
		}
		s.p.SetRouting(parts[1] == "on")
	case "console":
		if len(parts) != 2 || (parts[1] != "on" && parts[1] != "off") {
			fmt.Fprintln(s.out, "usage: console on|off")
			return false
		}
		if parts[1] == "on" {
			s.p.Console.Enable()
		} else {
			s.p.Console.Disable()
		}
	case "level":
		if len(parts) != 2 {
			fmt.Fprintln(s.out, "usage: level <severity>")
			return false
		}
		sev, err := record.ParseSeverity(parts[1])
		if err != nil {
			fmt.Fprintln(s.out, err)
			return false
		}
		s.p.Logger.SetLevel(sev)
	default:
		sev, tag, msg, err := parseLine(input)
		if err != nil {
			fmt.Fprintf(s.out, "%v (type 'help' for commands)\n", err)
			return false
		}
		if err := s.p.Logger.Emit(sev, tag, "", s.lineNo, "shell", "%s", msg); err != nil {
			fmt.Fprintf(s.out, "record dropped: %v\n", err)
		}
	}
	return false
}

// parseLine splits "<severity> <tag> <message>". The severity is a single
// letter; the message keeps its inner spacing.
func parseLine(input string) (record.Severity, string, string, error) {
	input = strings.TrimSpace(input)
	letter, rest, _ := strings.Cut(input, " ")
	if len(letter) != 1 {
		return record.SeverityInfo, "", "", errors.Newf("unknown command: %s", letter)
	}
	sev, err := record.ParseSeverity(letter)
	if err != nil {
		return sev, "", "", errors.Newf("unknown command: %s", letter)
	}
	tag, msg, _ := strings.Cut(strings.TrimLeft(rest, " \t"), " ")
	msg = strings.TrimSpace(msg)
	if tag == "" || msg == "" {
		return sev, "", "", errors.New("usage: E|W|I|D|V <tag> <message>")
	}
	return sev, tag, msg, nil
}
