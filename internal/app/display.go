// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/balance_recorder/internal/session"
)

// Status frame geometry, matching a 128x64 monochrome OLED.
const (
	frameWidth  = 128
	frameHeight = 64
	lineHeight  = 13
	maxColumns  = frameWidth / 7
)

// frameLines lays out the status as up to four text lines.
func frameLines(st session.Status) []string {
	head := strings.ToUpper(st.State.String())
	if st.State == session.Streaming && st.Session != nil {
		head = fmt.Sprintf("REC %s", st.Session.Task.Title())
	}

	lines := []string{head}
	switch st.State {
	case session.Disconnected:
		lines = append(lines, "Waiting...")
	case session.Shutdown:
		lines = append(lines, "Data saved")
	default:
		lines = append(lines,
			fmt.Sprintf("W:%7.2f kg", st.Last.WeightKg),
			fmt.Sprintf("X:%6.2f Y:%6.2f", st.Last.X, st.Last.Y),
		)
		if st.Session != nil {
			lines = append(lines, fmt.Sprintf("%5.1f/%.0fs n=%d",
				st.Session.Elapsed.Seconds(), st.Session.Limit.Seconds(), st.Session.Records))
		} else if st.State == session.Untared {
			lines = append(lines, "Not tared")
		}
	}

	for i, l := range lines {
		if len(l) > maxColumns {
			lines[i] = l[:maxColumns]
		}
	}
	return lines
}

// RenderFrame draws the status in white on black with the 7x13 font.
func RenderFrame(st session.Status) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, frameWidth, frameHeight))
	drawLines(img, image.NewUniform(color.White), frameLines(st))
	return img
}

func drawLines(dst draw.Image, ink image.Image, lines []string) {
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  ink,
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(0, lineHeight*(i+1)-2)
		drawer.DrawString(line)
	}
}

// WriteFramePNG renders the status and encodes it as PNG.
func WriteFramePNG(w io.Writer, st session.Status) error {
	return png.Encode(w, RenderFrame(st))
}
