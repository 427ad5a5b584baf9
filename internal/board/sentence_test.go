// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"math"
	"strings"
	"testing"
)

func TestParseSentence(t *testing.T) {
	line := FormatSentence(RawSample{
		TopLeftKg: 12.34, TopRightKg: 11.02, BottomLeftKg: 10.55, BottomRightKg: 13.2,
		TotalKg: 47.11, CoPX: 1.1, CoPY: -0.42,
	})
	if !strings.HasPrefix(line, "$BBWGT,") {
		t.Fatalf("unexpected framing: %q", line)
	}

	s, err := ParseSentence(line)
	if err != nil {
		t.Fatalf("ParseSentence(%q): %v", line, err)
	}
	if s.TopLeftKg != 12.34 || s.BottomRightKg != 13.2 || s.TotalKg != 47.11 {
		t.Errorf("weights not parsed: %+v", s)
	}
	if s.CoPX != 1.1 || s.CoPY != -0.42 {
		t.Errorf("CoP not parsed: %+v", s)
	}
}

func TestParseSentence_BadChecksum(t *testing.T) {
	line := FormatSentence(RawSample{TotalKg: 70})
	idx := strings.LastIndex(line, "*")
	corrupted := line[:idx] + "*00"
	if corrupted == line {
		corrupted = line[:idx] + "*01"
	}

	if _, err := ParseSentence(corrupted); err == nil {
		t.Fatal("expected checksum error")
	}
}

func TestParseSentence_OtherType(t *testing.T) {
	// valid GPS sentence, but not one the bridge emits
	line := "$GPRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W*70"
	if _, err := ParseSentence(line); err == nil {
		t.Fatal("expected error for non-WGT sentence")
	}
}

func TestFromCoP(t *testing.T) {
	s := FromCoP(80, 3, -2)

	sum := s.TopLeftKg + s.TopRightKg + s.BottomLeftKg + s.BottomRightKg
	if math.Abs(sum-80) > 1e-9 {
		t.Errorf("pads sum to %v, want 80", sum)
	}

	x := (s.TopRightKg + s.BottomRightKg - s.TopLeftKg - s.BottomLeftKg) / s.TotalKg * padSpanX / 2
	y := (s.TopLeftKg + s.TopRightKg - s.BottomLeftKg - s.BottomRightKg) / s.TotalKg * padSpanY / 2
	if math.Abs(x-3) > 1e-9 || math.Abs(y+2) > 1e-9 {
		t.Errorf("pad balance gives CoP (%v, %v), want (3, -2)", x, y)
	}
}
