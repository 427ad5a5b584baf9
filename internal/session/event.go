// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"time"

	"github.com/relabs-tech/balance_recorder/internal/calib"
	"github.com/relabs-tech/balance_recorder/internal/record"
)

// EventKind classifies controller notifications.
type EventKind string

const (
	EventTared          EventKind = "tared"
	EventOriginReset    EventKind = "origin_reset"
	EventSessionStarted EventKind = "session_started"
	EventSessionStopped EventKind = "session_stopped"
	EventWarning        EventKind = "warning"
	EventError          EventKind = "error"
	EventShutdown       EventKind = "shutdown"
)

// Event is a state change or problem worth showing to the operator.
// Message is ready for display.
type Event struct {
	Kind    EventKind `json:"kind"`
	Message string    `json:"message"`
	Status  Status    `json:"status"`
	Err     error     `json:"-"`
}

// Info describes one session.
type Info struct {
	ID        string        `json:"id"`
	Task      TaskKind      `json:"task"`
	StartedAt time.Time     `json:"started_at"`
	Limit     time.Duration `json:"limit_ns"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Records   uint64        `json:"records"`
	Dropped   uint64        `json:"dropped"`
}

// Status is a point-in-time view of the controller.
type Status struct {
	State   State          `json:"state"`
	Session *Info          `json:"session,omitempty"`
	Offset  calib.Offset   `json:"offset"`
	Last    calib.Adjusted `json:"last"`
}

// Observer receives notifications from the controller worker. Implementations
// must not block and must not call back into the controller synchronously.
type Observer interface {
	OnEvent(ev Event)
	OnRecord(info Info, rec record.Record)
}
