// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/balance_recorder/internal/board"
)

// SampleSource receives JSON raw samples published by a platform bridge.
// It reports disconnected when the broker link is down or, once samples have
// started, when none arrived within the stale window.
type SampleSource struct {
	client Client
	topic  string
	stale  time.Duration
	clock  clockwork.Clock

	mu       sync.Mutex
	fn       func(board.RawSample)
	lastSeen time.Time
	closed   bool
	bad      uint64
}

// NewSampleSource subscribes to topic. A zero stale window disables the
// silence check.
func NewSampleSource(client Client, topic string, stale time.Duration, clock clockwork.Clock) (*SampleSource, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &SampleSource{client: client, topic: topic, stale: stale, clock: clock}

	if err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
		s.handle(msg)
	}); err != nil {
		return nil, &board.DeviceError{Op: "subscribe " + topic, Err: err}
	}
	return s, nil
}

func (s *SampleSource) handle(msg mqtt.Message) {
	var sample board.RawSample
	if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
		s.mu.Lock()
		s.bad++
		bad := s.bad
		s.mu.Unlock()
		if bad == 1 || bad%100 == 0 {
			log.Printf("mqtt: bad sample payload on %s (%d so far): %v", msg.Topic(), bad, err)
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.lastSeen = s.clock.Now()
	fn := s.fn
	s.mu.Unlock()

	if fn != nil {
		fn(sample)
	}
}

func (s *SampleSource) Subscribe(fn func(board.RawSample)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
}

func (s *SampleSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.client.IsConnected() {
		return false
	}
	if s.stale > 0 && !s.lastSeen.IsZero() && s.clock.Since(s.lastSeen) > s.stale {
		return false
	}
	return true
}

// unsubscribeWait bounds how long the background unsubscribe is watched.
const unsubscribeWait = 2 * time.Second

// Close stops delivery at once and drops the subscription without waiting
// for the broker's ack. The broker connection itself belongs to the caller.
func (s *SampleSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	token := s.client.Unsubscribe(s.topic)
	go func() {
		if !token.WaitTimeout(unsubscribeWait) {
			log.Printf("mqtt: unsubscribe %s: no ack within %s", s.topic, unsubscribeWait)
			return
		}
		if err := token.Error(); err != nil {
			log.Printf("mqtt: unsubscribe %s: %v", s.topic, err)
		}
	}()
	return nil
}
