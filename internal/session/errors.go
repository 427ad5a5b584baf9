// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"errors"
	"fmt"
)

var (
	// ErrShutdown is returned for requests made after the controller stopped.
	ErrShutdown = errors.New("session controller is shut down")
	// ErrNoSample is returned when an operation needs a reading and none has arrived.
	ErrNoSample = errors.New("no sample received from the platform yet")
)

// ProtocolError is a command that is not valid in the current state. It is a
// warning; the controller state is unchanged.
type ProtocolError struct {
	Command string
	State   State
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s ignored while %s: %s", e.Command, e.State, e.Reason)
}
