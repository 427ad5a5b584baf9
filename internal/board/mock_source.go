// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package board

import (
	"math"
	"sync"
	"time"
)

// Sensor spacing of a Wii-style platform, in cm.
const (
	padSpanX = 43.3
	padSpanY = 23.8
)

// Synthesize returns a smooth, slowly swaying reading for a standing person of
// bodyKg, elapsed seconds into the run.
func Synthesize(bodyKg, elapsed float64) RawSample {
	x := 2.0 * math.Sin(elapsed)
	y := 1.5 * math.Cos(elapsed*0.7)
	total := bodyKg + 0.3*math.Sin(elapsed*3.1)
	return FromCoP(total, x, y)
}

// FromCoP distributes total over the four pads so that the pad balance matches
// the given center of pressure.
func FromCoP(total, x, y float64) RawSample {
	// x = (right - left) / total * span/2, same for y with top/bottom.
	rx := x / (padSpanX / 2)
	ry := y / (padSpanY / 2)
	q := total / 4
	return RawSample{
		TopLeftKg:     q * (1 - rx + ry),
		TopRightKg:    q * (1 + rx + ry),
		BottomLeftKg:  q * (1 - rx - ry),
		BottomRightKg: q * (1 + rx - ry),
		TotalKg:       total,
		CoPX:          x,
		CoPY:          y,
	}
}

type mockSource struct {
	bodyKg   float64
	interval time.Duration
	start    time.Time

	mu     sync.Mutex
	fn     func(RawSample)
	stop   chan struct{}
	closed bool
}

// NewMockSource creates a platform that emits synthesized samples at rateHz
// once a subscriber is registered.
func NewMockSource(bodyKg float64, rateHz int) Source {
	if rateHz <= 0 {
		rateHz = 100
	}
	return &mockSource{
		bodyKg:   bodyKg,
		interval: time.Second / time.Duration(rateHz),
		start:    time.Now(),
		stop:     make(chan struct{}),
	}
}

func (m *mockSource) Subscribe(fn func(RawSample)) {
	m.mu.Lock()
	first := m.fn == nil
	m.fn = fn
	m.mu.Unlock()

	if first {
		go m.run()
	}
}

func (m *mockSource) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case t := <-ticker.C:
			s := Synthesize(m.bodyKg, t.Sub(m.start).Seconds())
			m.mu.Lock()
			fn := m.fn
			m.mu.Unlock()
			fn(s)
		}
	}
}

func (m *mockSource) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	return nil
}
