// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/balance_recorder/internal/operator"
	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

// Console prints controller events for the operator.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Println writes one operator line.
func (c *Console) Println(a ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, a...)
}

// Printf writes formatted operator text.
func (c *Console) Printf(format string, a ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, a...)
}

func (c *Console) OnEvent(ev session.Event) {
	if ev.Kind == session.EventError && ev.Err != nil && !strings.Contains(ev.Message, ev.Err.Error()) {
		c.Printf("%s (%v)\n", ev.Message, ev.Err)
		return
	}
	c.Println(ev.Message)
}

func (c *Console) OnRecord(session.Info, record.Record) {}

// ReportInput tells the operator a line was not understood.
func (c *Console) ReportInput(err error) {
	var unknown *operator.UnknownCommandError
	if errors.As(err, &unknown) {
		c.Println("Unknown command. Use 'go', 'stop', 'res', or 'exit'.")
		return
	}
	c.Printf("Error: %v\n", err)
}

// Banner prints the program header with usage and command help.
func (c *Console) Banner(tasks session.Durations) {
	names := tasks.Names()
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintln(c.w, "===========================================")
	fmt.Fprintln(c.w, " Balance Board Data Recorder ")
	fmt.Fprintln(c.w, "===========================================")
	fmt.Fprintln(c.w, "Usage:")
	fmt.Fprintln(c.w, "  Enter participant name and task type:")
	for _, name := range names {
		fmt.Fprintf(c.w, "    Example:  P01 %s (%.0f s)\n", name, tasks[session.TaskKind(name)].Seconds())
	}
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, operator.Usage)
	fmt.Fprintln(c.w, "===========================================")
	fmt.Fprintln(c.w)
}

// errNoInput is returned when input ends before a valid setup line.
var errNoInput = errors.New("input closed before participant and task were entered")

// PromptSetup asks for "<participant> [task]" until a valid line is read.
// A line without a task selects defaultTask.
func PromptSetup(r *bufio.Reader, c *Console, tasks session.Durations, defaultTask session.TaskKind) (string, session.TaskKind, error) {
	for {
		c.Printf("Participant and task: ")
		line, err := r.ReadString('\n')
		if line == "" && err != nil {
			if errors.Is(err, io.EOF) {
				return "", "", errNoInput
			}
			return "", "", err
		}

		participant, task, perr := parseSetup(line, tasks, defaultTask)
		if perr == nil {
			return participant, task, nil
		}
		c.Printf("Invalid input: %v. Please enter in the format: 'Name %s'\n", perr, strings.Join(tasks.Names(), "' or 'Name "))
		if err != nil {
			return "", "", errNoInput
		}
	}
}

func parseSetup(line string, tasks session.Durations, defaultTask session.TaskKind) (string, session.TaskKind, error) {
	fields := strings.Fields(line)
	if len(fields) == 1 && defaultTask != "" {
		fields = append(fields, string(defaultTask))
	}
	if len(fields) != 2 {
		return "", "", errors.New("expected participant and task")
	}
	task, _, err := tasks.Lookup(fields[1])
	if err != nil {
		return "", "", err
	}
	if _, err := record.SessionPath(".", fields[0], task.Title(), time.Time{}); err != nil {
		return "", "", err
	}
	return fields[0], task, nil
}
