// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import "fmt"

// State is the controller's position in the session lifecycle.
type State int

const (
	// Disconnected: no sample has arrived yet.
	Disconnected State = iota
	// Untared: samples flow but no tare has been taken.
	Untared
	// Idle: tared and ready to start a session.
	Idle
	// Streaming: a session is recording.
	Streaming
	// Shutdown is terminal.
	Shutdown
)

var stateNames = map[State]string{
	Disconnected: "disconnected",
	Untared:      "untared",
	Idle:         "idle",
	Streaming:    "streaming",
	Shutdown:     "shutdown",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
