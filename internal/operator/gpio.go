// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package operator

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// edgePoll bounds how long a watcher waits before rechecking ctx.
const edgePoll = 100 * time.Millisecond

// Button binds a push button (active low) to a command line.
type Button struct {
	Pin  gpio.PinIO
	Line string
}

// ResolveButtons looks up pins by name. host.Init must have been called.
func ResolveButtons(mapping map[string]string) ([]Button, error) {
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	sort.Strings(names)

	buttons := make([]Button, 0, len(names))
	for _, name := range names {
		line := mapping[name]
		if _, err := ParseCommand(line); err != nil {
			return nil, fmt.Errorf("gpio %s: %w", name, err)
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio %s: pin not found", name)
		}
		buttons = append(buttons, Button{Pin: p, Line: line})
	}
	return buttons, nil
}

// Buttons feeds debounced button presses into a Feed.
type Buttons struct {
	buttons  []Button
	feed     *Feed
	debounce time.Duration
	clock    clockwork.Clock
}

// NewButtons configures every pin as a pulled-up input with falling-edge
// detection.
func NewButtons(buttons []Button, feed *Feed, debounce time.Duration, clock clockwork.Clock) (*Buttons, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	for _, b := range buttons {
		if err := b.Pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("gpio %s: configure input: %w", b.Pin.Name(), err)
		}
	}
	return &Buttons{buttons: buttons, feed: feed, debounce: debounce, clock: clock}, nil
}

// Run watches every button until ctx is done, then closes the feed.
func (b *Buttons) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, btn := range b.buttons {
		wg.Add(1)
		go func(btn Button) {
			defer wg.Done()
			b.watch(ctx, btn)
		}(btn)
	}
	wg.Wait()
	b.feed.Close()
}

func (b *Buttons) watch(ctx context.Context, btn Button) {
	log.Printf("gpio: watching %s for %q", btn.Pin.Name(), btn.Line)

	var last time.Time
	for ctx.Err() == nil {
		if !btn.Pin.WaitForEdge(edgePoll) {
			continue
		}
		if btn.Pin.Read() != gpio.Low {
			continue
		}
		if !b.accept(&last) {
			continue
		}

		log.Printf("gpio: %s pressed, sending %q", btn.Pin.Name(), btn.Line)
		if !b.feed.Offer(btn.Line) {
			log.Printf("gpio: command queue full, dropped %q", btn.Line)
		}
	}
}

// accept reports whether a press at the current time is outside the
// debounce window of the previous accepted press.
func (b *Buttons) accept(last *time.Time) bool {
	now := b.clock.Now()
	if !last.IsZero() && now.Sub(*last) < b.debounce {
		return false
	}
	*last = now
	return true
}
