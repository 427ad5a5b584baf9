// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

// StatusLED lights a GPIO output while a session is recording.
type StatusLED struct {
	pin gpio.PinOut
}

// OpenStatusLED resolves the pin by name and switches it off.
// host.Init must have been called.
func OpenStatusLED(name string) (*StatusLED, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %s: pin not found", name)
	}
	return NewStatusLED(p)
}

func NewStatusLED(pin gpio.PinOut) (*StatusLED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("gpio %s: configure output: %w", pin.Name(), err)
	}
	return &StatusLED{pin: pin}, nil
}

func (l *StatusLED) OnEvent(ev session.Event) {
	level := gpio.Low
	if ev.Status.State == session.Streaming {
		level = gpio.High
	}
	if err := l.pin.Out(level); err != nil {
		log.Printf("gpio: %s: %v", l.pin.Name(), err)
	}
}

func (l *StatusLED) OnRecord(session.Info, record.Record) {}
