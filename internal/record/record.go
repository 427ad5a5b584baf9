// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package record defines the session log row, its CSV encoding, and the
// append-only Recorder that persists rows.
package record

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is the RealTimestamp column format (microsecond precision).
const TimeLayout = "2006-01-02 15:04:05.000000"

// Header is the fixed column header written at the start of every session.
var Header = []string{
	"RealTimestamp",
	"ElapsedSeconds",
	"TopLeft(kg)",
	"TopRight(kg)",
	"BottomLeft(kg)",
	"BottomRight(kg)",
	"TotalWeight(kg)",
	"CoPX(cm)",
	"CoPY(cm)",
}

// Record is one output row. Pad weights are raw; WeightKg, X and Y are adjusted.
type Record struct {
	Time    time.Time     `json:"time"`
	Elapsed time.Duration `json:"elapsed_ns"`

	TopLeftKg     float64 `json:"tl"`
	TopRightKg    float64 `json:"tr"`
	BottomLeftKg  float64 `json:"bl"`
	BottomRightKg float64 `json:"br"`

	WeightKg float64 `json:"weight_kg"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// Row encodes r in column order: weights and CoP with 2 decimals, elapsed
// seconds with 3.
func (r Record) Row() []string {
	return []string{
		r.Time.Format(TimeLayout),
		fixed(r.Elapsed.Seconds(), 3),
		fixed(r.TopLeftKg, 2),
		fixed(r.TopRightKg, 2),
		fixed(r.BottomLeftKg, 2),
		fixed(r.BottomRightKg, 2),
		fixed(r.WeightKg, 2),
		fixed(r.X, 2),
		fixed(r.Y, 2),
	}
}

func fixed(v float64, places int32) string {
	// decimal panics on NaN and infinities
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', int(places), 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}
