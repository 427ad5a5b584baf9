// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"image"
	"log"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

// frameDevice is the drawing surface of an SSD1306.
type frameDevice interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// OLED shows the status frame on a monochrome display. Events only queue
// the latest status; Run does the slow I2C writes.
type OLED struct {
	dev     frameDevice
	close   func() error
	pending chan session.Status
}

// OpenOLED opens the I2C bus (empty name for the first one) and the SSD1306
// at its default address. host.Init must have been called.
func OpenOLED(busName string) (*OLED, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus: %w", err)
	}
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("failed to initialize SSD1306: %w", err)
	}
	o := NewOLED(dev)
	o.close = func() error {
		if err := dev.Halt(); err != nil {
			log.Printf("oled: halt: %v", err)
		}
		return bus.Close()
	}
	return o, nil
}

func NewOLED(dev frameDevice) *OLED {
	return &OLED{dev: dev, pending: make(chan session.Status, 1)}
}

// OnEvent replaces any frame still waiting to be drawn. Observers are called
// from one goroutine, so the send after the drain never blocks.
func (o *OLED) OnEvent(ev session.Event) {
	select {
	case <-o.pending:
	default:
	}
	select {
	case o.pending <- ev.Status:
	default:
	}
}

func (o *OLED) OnRecord(session.Info, record.Record) {}

// Run draws queued frames until ctx is cancelled, then draws whatever is
// still queued so the final state stays on screen.
func (o *OLED) Run(ctx context.Context) {
	for {
		select {
		case st := <-o.pending:
			o.draw(st)
		case <-ctx.Done():
			select {
			case st := <-o.pending:
				o.draw(st)
			default:
			}
			return
		}
	}
}

func (o *OLED) draw(st session.Status) {
	bounds := o.dev.Bounds()
	img := image1bit.NewVerticalLSB(bounds)
	drawLines(img, &image.Uniform{C: image1bit.On}, frameLines(st))
	if err := o.dev.Draw(bounds, img, image.Point{}); err != nil {
		log.Printf("oled: draw: %v", err)
	}
}

func (o *OLED) Close() error {
	if o.close == nil {
		return nil
	}
	return o.close()
}
