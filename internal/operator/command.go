// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package operator turns operator input (console lines, MQTT messages,
// push buttons, web requests) into session commands.
package operator

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/balance_recorder/internal/session"
)

// UnknownCommandError is returned for input outside the command vocabulary.
type UnknownCommandError struct {
	Input string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Input)
}

// Usage is the command help printed on the console.
const Usage = `Commands:
  go | start [task]   start a recording session (default task if omitted)
  stop                stop the current session
  res | reset-cop     reset the center of pressure origin
  exit | quit         close the data file and exit`

// ParseCommand reads one command line. Matching is case-insensitive.
func ParseCommand(line string) (session.Command, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return session.Command{}, &UnknownCommandError{Input: line}
	}

	verb, args := fields[0], fields[1:]
	switch verb {
	case "go", "start":
		if len(args) > 1 {
			break
		}
		cmd := session.Command{Kind: session.CmdStart}
		if len(args) == 1 {
			cmd.Task = session.TaskKind(args[0])
		}
		return cmd, nil
	case "stop":
		if len(args) == 0 {
			return session.Command{Kind: session.CmdStop}, nil
		}
	case "res", "reset-cop":
		if len(args) == 0 {
			return session.Command{Kind: session.CmdResetCoP}, nil
		}
	case "exit", "quit":
		if len(args) == 0 {
			return session.Command{Kind: session.CmdExit}, nil
		}
	}
	return session.Command{}, &UnknownCommandError{Input: strings.TrimSpace(line)}
}
