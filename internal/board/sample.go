// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import "fmt"

// RawSample is one instantaneous reading from the four-pad platform.
// TotalKg is the sum reported by the device and is never re-derived from the pads.
type RawSample struct {
	TopLeftKg     float64 `json:"tl"`
	TopRightKg    float64 `json:"tr"`
	BottomLeftKg  float64 `json:"bl"`
	BottomRightKg float64 `json:"br"`
	TotalKg       float64 `json:"total"`

	CoPX float64 `json:"cop_x"` // cm
	CoPY float64 `json:"cop_y"` // cm
}

// Source delivers raw samples asynchronously for the lifetime of a connection.
// The callback registered with Subscribe may run on the source's own goroutine.
type Source interface {
	Subscribe(fn func(RawSample))
	IsConnected() bool
	Close() error
}

// DeviceError reports a connection failure, a lost connection, or a wrong device.
type DeviceError struct {
	Op  string
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %v", e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}
