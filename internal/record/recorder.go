// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"bytes"
	"encoding/csv"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// File is the sink a Recorder writes to. *os.File satisfies it.
type File interface {
	io.Writer
	Sync() error
	Close() error
}

// Recorder appends CSV rows to a session log. Every accepted row is synced
// before Append returns; a failed row leaves no partial line behind.
type Recorder struct {
	mu     sync.Mutex
	path   string
	f      File
	closed bool
	rows   uint64
}

// Open creates the log at path, creating parent directories. An existing
// file is never overwritten.
func Open(path string) (*Recorder, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: dir, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}

	log.Printf("recorder: logging to %s", path)
	return NewRecorder(f, path), nil
}

// NewRecorder wraps an already open sink.
func NewRecorder(f File, path string) *Recorder {
	return &Recorder{path: path, f: f}
}

// Path returns the log file path.
func (r *Recorder) Path() string {
	return r.path
}

// Rows returns the number of data rows written so far.
func (r *Recorder) Rows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// WriteHeader writes the column header that opens a session.
func (r *Recorder) WriteHeader() error {
	return r.writeRow("header", Header)
}

// Append writes one data row.
func (r *Recorder) Append(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.writeRowLocked("append", rec.Row()); err != nil {
		return err
	}
	r.rows++
	return nil
}

// Close flushes and releases the file. Repeated calls return nil.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	syncErr := r.f.Sync()
	if err := r.f.Close(); err != nil {
		return &IOError{Op: "close", Path: r.path, Err: err}
	}
	if syncErr != nil {
		return &IOError{Op: "sync", Path: r.path, Err: syncErr}
	}
	return nil
}

func (r *Recorder) writeRow(op string, row []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeRowLocked(op, row)
}

func (r *Recorder) writeRowLocked(op string, row []string) error {
	if r.closed {
		return &IOError{Op: op, Path: r.path, Err: ErrClosed}
	}

	// Encode the whole line first so the file only ever sees one write per row.
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(row); err != nil {
		return &IOError{Op: op, Path: r.path, Err: err}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return &IOError{Op: op, Path: r.path, Err: err}
	}

	if _, err := r.f.Write(buf.Bytes()); err != nil {
		return &IOError{Op: op, Path: r.path, Err: err}
	}
	if err := r.f.Sync(); err != nil {
		return &IOError{Op: op, Path: r.path, Err: err}
	}
	return nil
}
