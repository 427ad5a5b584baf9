// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TaskKind names a trial protocol. Its duration comes from Durations.
type TaskKind string

const (
	TaskSimple  TaskKind = "simple"
	TaskComplex TaskKind = "complex"
)

// Title returns the display form used in operator messages and file names,
// e.g. "Simple".
func (t TaskKind) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Durations maps each task kind to its fixed session length.
type Durations map[TaskKind]time.Duration

// DefaultDurations returns the standard protocol table.
func DefaultDurations() Durations {
	return Durations{
		TaskSimple:  60 * time.Second,
		TaskComplex: 39 * time.Second,
	}
}

// Lookup resolves a task name case-insensitively.
func (d Durations) Lookup(name string) (TaskKind, time.Duration, error) {
	task := TaskKind(strings.ToLower(strings.TrimSpace(name)))
	limit, ok := d[task]
	if !ok {
		return "", 0, fmt.Errorf("unknown task %q (known: %s)", name, strings.Join(d.Names(), ", "))
	}
	return task, limit, nil
}

// Names returns the configured task kinds in sorted order.
func (d Durations) Names() []string {
	names := make([]string, 0, len(d))
	for t := range d {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// CommandKind is one verb of the operator vocabulary.
type CommandKind int

const (
	CmdStart CommandKind = iota + 1
	CmdStop
	CmdResetCoP
	CmdExit
)

func (k CommandKind) String() string {
	switch k {
	case CmdStart:
		return "start"
	case CmdStop:
		return "stop"
	case CmdResetCoP:
		return "reset-cop"
	case CmdExit:
		return "exit"
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is an operator request. Task is only meaningful for CmdStart;
// empty selects the controller's default task.
type Command struct {
	Kind CommandKind
	Task TaskKind
}

func (c Command) String() string {
	if c.Kind == CmdStart && c.Task != "" {
		return "start " + string(c.Task)
	}
	return c.Kind.String()
}
