// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"bufio"
	"errors"
	"io"
	"log"
	"strings"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialOptions selects the port of the load-cell bridge.
type SerialOptions struct {
	PortName string
	BaudRate uint
}

// OpenSerial opens the bridge's serial port and returns a Source that parses
// one $BBWGT sentence per line.
func OpenSerial(opts SerialOptions) (Source, error) {
	serialOpts := serial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              opts.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, &DeviceError{Op: "open " + opts.PortName, Err: err}
	}
	log.Printf("serial: port opened on %s at %d baud", opts.PortName, opts.BaudRate)

	return newLineSource(port, opts.PortName), nil
}

// lineSource reads sentences from any byte stream. The serial port is one;
// tests use a pipe.
type lineSource struct {
	name string
	port io.ReadCloser

	mu        sync.Mutex
	fn        func(RawSample)
	connected bool
	closed    bool
	started   bool
	err       error
}

func newLineSource(port io.ReadCloser, name string) *lineSource {
	return &lineSource{name: name, port: port, connected: true}
}

func (s *lineSource) Subscribe(fn func(RawSample)) {
	s.mu.Lock()
	s.fn = fn
	start := !s.started
	s.started = true
	s.mu.Unlock()

	if start {
		go s.readLoop()
	}
}

func (s *lineSource) readLoop() {
	reader := bufio.NewReader(s.port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.connected = false
			if !closed {
				s.err = err
			}
			s.mu.Unlock()
			if !closed && !errors.Is(err, io.EOF) {
				log.Printf("serial: %s read error: %v", s.name, err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sample, err := ParseSentence(line)
		if err != nil {
			// partial sentences are common right after the port opens
			continue
		}

		s.mu.Lock()
		fn := s.fn
		s.mu.Unlock()
		fn(sample)
	}
}

func (s *lineSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Err returns the read error that ended the stream, if any.
func (s *lineSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *lineSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	s.mu.Unlock()
	return s.port.Close()
}
