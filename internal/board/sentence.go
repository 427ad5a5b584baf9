// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"fmt"
	"strconv"

	nmea "github.com/adrianmo/go-nmea"
)

// TypeWGT is the sentence type emitted by the load-cell bridge firmware:
//
//	$BBWGT,<tl>,<tr>,<bl>,<br>,<total>,<copx>,<copy>*<checksum>
const (
	TypeWGT   = "WGT"
	TalkerWGT = "BB"
)

// WGT is one platform reading framed as an NMEA-0183 sentence.
type WGT struct {
	nmea.BaseSentence
	TopLeft     float64
	TopRight    float64
	BottomLeft  float64
	BottomRight float64
	Total       float64
	CoPX        float64
	CoPY        float64
}

func init() {
	if err := nmea.RegisterParser(TypeWGT, parseWGT); err != nil {
		panic(fmt.Sprintf("board: register %s parser: %v", TypeWGT, err))
	}
}

func parseWGT(s nmea.BaseSentence) (nmea.Sentence, error) {
	p := nmea.NewParser(s)
	return WGT{
		BaseSentence: s,
		TopLeft:      p.Float64(0, "top left"),
		TopRight:     p.Float64(1, "top right"),
		BottomLeft:   p.Float64(2, "bottom left"),
		BottomRight:  p.Float64(3, "bottom right"),
		Total:        p.Float64(4, "total"),
		CoPX:         p.Float64(5, "cop x"),
		CoPY:         p.Float64(6, "cop y"),
	}, p.Err()
}

// Sample converts the sentence into a RawSample.
func (w WGT) Sample() RawSample {
	return RawSample{
		TopLeftKg:     w.TopLeft,
		TopRightKg:    w.TopRight,
		BottomLeftKg:  w.BottomLeft,
		BottomRightKg: w.BottomRight,
		TotalKg:       w.Total,
		CoPX:          w.CoPX,
		CoPY:          w.CoPY,
	}
}

// ParseSentence parses one line from the serial bridge. Checksums are verified.
func ParseSentence(line string) (RawSample, error) {
	s, err := nmea.Parse(line)
	if err != nil {
		return RawSample{}, err
	}
	w, ok := s.(WGT)
	if !ok {
		return RawSample{}, fmt.Errorf("unexpected sentence type %q", s.DataType())
	}
	return w.Sample(), nil
}

// FormatSentence renders s the way the bridge firmware does.
func FormatSentence(s RawSample) string {
	body := TalkerWGT + TypeWGT
	for _, v := range []float64{s.TopLeftKg, s.TopRightKg, s.BottomLeftKg, s.BottomRightKg, s.TotalKg, s.CoPX, s.CoPY} {
		body += "," + strconv.FormatFloat(v, 'f', 3, 64)
	}
	return "$" + body + "*" + nmea.Checksum(body)
}
