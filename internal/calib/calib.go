// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package calib holds the tare and center-of-pressure offsets of one
// platform connection and applies them to raw readings.
package calib

import "github.com/relabs-tech/balance_recorder/internal/board"

// Offset is the reference point subtracted from raw readings.
type Offset struct {
	TareWeightKg float64 `json:"tare_kg"`
	OriginX      float64 `json:"origin_x"`
	OriginY      float64 `json:"origin_y"`
	Tared        bool    `json:"tared"`
}

// Adjusted is a raw reading with the current offsets applied.
type Adjusted struct {
	WeightKg float64 `json:"weight_kg"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Calibrator is not safe for concurrent use. The session controller owns it
// and only touches it from its worker goroutine.
type Calibrator struct {
	off Offset
}

// Tare captures weight and CoP origin from s. Repeated calls overwrite.
func (c *Calibrator) Tare(s board.RawSample) Offset {
	c.off = Offset{
		TareWeightKg: s.TotalKg,
		OriginX:      s.CoPX,
		OriginY:      s.CoPY,
		Tared:        true,
	}
	return c.off
}

// ResetOrigin moves the CoP origin to s and leaves the tare weight alone.
// Allowed before the first tare.
func (c *Calibrator) ResetOrigin(s board.RawSample) Offset {
	c.off.OriginX = s.CoPX
	c.off.OriginY = s.CoPY
	return c.off
}

// Adjust applies the offsets. Untared, the weight is the raw total.
func (c *Calibrator) Adjust(s board.RawSample) Adjusted {
	w := s.TotalKg
	if c.off.Tared {
		w -= c.off.TareWeightKg
	}
	return Adjusted{
		WeightKg: w,
		X:        s.CoPX - c.off.OriginX,
		Y:        s.CoPY - c.off.OriginY,
	}
}

func (c *Calibrator) Offset() Offset {
	return c.off
}
