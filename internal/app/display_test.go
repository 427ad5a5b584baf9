// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"strings"
	"testing"
	"time"

	"github.com/relabs-tech/balance_recorder/internal/calib"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

func TestFrameLines(t *testing.T) {
	st := session.Status{
		State: session.Streaming,
		Session: &session.Info{
			Task:    session.TaskComplex,
			Limit:   39 * time.Second,
			Elapsed: 12500 * time.Millisecond,
			Records: 1250,
		},
		Last: calib.Adjusted{WeightKg: 1.2, X: 0.5, Y: -0.25},
	}
	lines := frameLines(st)

	want := []string{"REC Complex", "W:   1.20 kg", "X:  0.50 Y: -0.25", " 12.5/39s n=1250"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestFrameLines_States(t *testing.T) {
	if got := frameLines(session.Status{State: session.Disconnected}); got[1] != "Waiting..." {
		t.Errorf("disconnected: %q", got)
	}
	if got := frameLines(session.Status{State: session.Untared}); got[len(got)-1] != "Not tared" {
		t.Errorf("untared: %q", got)
	}
	if got := frameLines(session.Status{State: session.Idle}); got[0] != "IDLE" || len(got) != 3 {
		t.Errorf("idle: %q", got)
	}
}

func TestFrameLines_Truncates(t *testing.T) {
	st := session.Status{State: session.Idle, Last: calib.Adjusted{WeightKg: 1e9, X: -12345.67, Y: 98765.43}}
	for _, l := range frameLines(st) {
		if len(l) > maxColumns {
			t.Errorf("%q is longer than %d", l, maxColumns)
		}
	}
}

func TestRenderFrame_DrawsText(t *testing.T) {
	img := RenderFrame(session.Status{State: session.Idle})
	if img.Bounds().Dx() != frameWidth || img.Bounds().Dy() != frameHeight {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	lit := 0
	for _, px := range img.Pix {
		if px != 0 {
			lit++
		}
	}
	if lit == 0 {
		t.Fatal("frame is blank")
	}
	if strings.Contains(frameLines(session.Status{State: session.Idle})[0], "REC") {
		t.Fatal("idle frame shows recording")
	}
}
