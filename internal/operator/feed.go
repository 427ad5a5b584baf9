// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package operator

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/relabs-tech/balance_recorder/internal/session"
)

// Source yields operator commands. Next blocks until a command arrives and
// returns io.EOF once the source is exhausted. Unrecognized input is returned
// as *UnknownCommandError; callers report it and keep reading.
type Source interface {
	Next(ctx context.Context) (session.Command, error)
}

// Feed is a Source fed with raw text lines by a producer such as a terminal,
// an MQTT subscription or a button handler.
type Feed struct {
	name  string
	lines chan string
	done  chan struct{}
	once  sync.Once
}

// NewFeed creates a feed buffering up to size lines.
func NewFeed(name string, size int) *Feed {
	if size <= 0 {
		size = 16
	}
	return &Feed{
		name:  name,
		lines: make(chan string, size),
		done:  make(chan struct{}),
	}
}

// Name identifies the producer in log messages.
func (f *Feed) Name() string {
	return f.name
}

// Push queues a line, waiting for room. It returns false once the feed is
// closed or ctx is done.
func (f *Feed) Push(ctx context.Context, line string) bool {
	select {
	case f.lines <- line:
		return true
	case <-f.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Offer queues a line without waiting. It returns false if the buffer is full
// or the feed is closed.
func (f *Feed) Offer(line string) bool {
	select {
	case <-f.done:
		return false
	default:
	}
	select {
	case f.lines <- line:
		return true
	default:
		return false
	}
}

// Close ends the feed. Lines already queued are still delivered.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

// Next implements Source. Blank lines are skipped.
func (f *Feed) Next(ctx context.Context) (session.Command, error) {
	for {
		var line string
		select {
		case line = <-f.lines:
		case <-ctx.Done():
			return session.Command{}, ctx.Err()
		case <-f.done:
			select {
			case line = <-f.lines:
			default:
				return session.Command{}, io.EOF
			}
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		return ParseCommand(line)
	}
}

// ReadLines copies lines from r into f until r is exhausted or ctx is done,
// then closes f. Typical use is the terminal.
func ReadLines(ctx context.Context, r io.Reader, f *Feed) error {
	defer f.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if !f.Push(ctx, scanner.Text()) {
			return ctx.Err()
		}
	}
	return scanner.Err()
}
