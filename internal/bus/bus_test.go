// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/balance_recorder/internal/board"
	"github.com/relabs-tech/balance_recorder/internal/operator"
	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

type doneToken struct {
	err error
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }
func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// pendingToken completes only when release is closed.
type pendingToken struct {
	release chan struct{}
}

func (t *pendingToken) Wait() bool {
	<-t.release
	return true
}

func (t *pendingToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.release:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *pendingToken) Error() error          { return nil }
func (t *pendingToken) Done() <-chan struct{} { return t.release }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	subscribeErr error
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	unsubToken   mqtt.Token
	published    []published
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, handlers: map[string]mqtt.MessageHandler{}}
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return &doneToken{}
}

func (c *fakeClient) Subscribe(topic string, _ byte, cb mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subscribeErr != nil {
		return &doneToken{err: c.subscribeErr}
	}
	c.handlers[topic] = cb
	return &doneToken{}
}

func (c *fakeClient) Unsubscribe(topics ...string) mqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribed = append(c.unsubscribed, topics...)
	if c.unsubToken != nil {
		return c.unsubToken
	}
	return &doneToken{}
}

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	h(nil, &fakeMessage{topic: topic, payload: payload})
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestSampleSource_DeliversJSON(t *testing.T) {
	client := newFakeClient()
	src, err := NewSampleSource(client, "balance/raw", 0, nil)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	var got []board.RawSample
	src.Subscribe(func(s board.RawSample) { got = append(got, s) })

	want := board.FromCoP(70, 1, -1)
	payload, _ := json.Marshal(want)
	client.deliver("balance/raw", payload)
	client.deliver("balance/raw", []byte("not json"))

	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected samples %+v", got)
	}
}

func TestSampleSource_SubscribeFailure(t *testing.T) {
	client := newFakeClient()
	client.subscribeErr = errors.New("not authorized")

	_, err := NewSampleSource(client, "balance/raw", 0, nil)
	var devErr *board.DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("expected DeviceError, got %v", err)
	}
}

func TestSampleSource_IsConnected(t *testing.T) {
	client := newFakeClient()
	clock := clockwork.NewFakeClock()
	src, err := NewSampleSource(client, "balance/raw", time.Second, clock)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	src.Subscribe(func(board.RawSample) {})

	if !src.IsConnected() {
		t.Fatal("expected connected before the first sample")
	}

	client.deliver("balance/raw", []byte(`{"total":70}`))
	clock.Advance(900 * time.Millisecond)
	if !src.IsConnected() {
		t.Fatal("expected connected inside the stale window")
	}

	clock.Advance(200 * time.Millisecond)
	if src.IsConnected() {
		t.Fatal("expected disconnected after silence")
	}

	client.deliver("balance/raw", []byte(`{"total":70}`))
	if !src.IsConnected() {
		t.Fatal("expected connected after samples resume")
	}

	client.mu.Lock()
	client.connected = false
	client.mu.Unlock()
	if src.IsConnected() {
		t.Fatal("expected disconnected with broker down")
	}
}

func TestSampleSource_Close(t *testing.T) {
	client := newFakeClient()
	src, err := NewSampleSource(client, "balance/raw", 0, nil)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	var n int
	src.Subscribe(func(board.RawSample) { n++ })

	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	client.deliver("balance/raw", []byte(`{"total":70}`))

	if n != 0 || src.IsConnected() {
		t.Fatalf("source still live after close")
	}
	if len(client.unsubscribed) != 1 {
		t.Fatalf("expected one unsubscribe, got %v", client.unsubscribed)
	}
}

func TestSampleSource_CloseDoesNotWaitForAck(t *testing.T) {
	client := newFakeClient()
	token := &pendingToken{release: make(chan struct{})}
	defer close(token.release)
	client.unsubToken = token

	src, err := NewSampleSource(client, "balance/raw", 0, nil)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	start := time.Now()
	if err := src.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("close blocked for %s waiting on the broker", elapsed)
	}
	if src.IsConnected() {
		t.Fatal("source still live after close")
	}
}

func TestSubscribeCommands(t *testing.T) {
	client := newFakeClient()
	feed := operator.NewFeed("mqtt", 4)
	if err := SubscribeCommands(client, "balance/cmd", feed); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	client.deliver("balance/cmd", []byte("  "))
	client.deliver("balance/cmd", []byte("start complex\n"))

	cmd, err := feed.Next(context.Background())
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if cmd.Kind != session.CmdStart || cmd.Task != session.TaskComplex {
		t.Fatalf("unexpected command %+v", cmd)
	}
}

func TestPublisher(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, "balance/records", "balance/status", true)

	p.OnEvent(session.Event{
		Kind:    session.EventSessionStarted,
		Message: ">> Simple task: Streaming for 60 seconds...",
		Status:  session.Status{State: session.Streaming},
	})
	p.OnRecord(session.Info{ID: "abc", Task: session.TaskSimple}, record.Record{WeightKg: 1.2})

	if len(client.published) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(client.published))
	}

	status := client.published[0]
	if status.topic != "balance/status" || !status.retained {
		t.Fatalf("unexpected status publish %+v", status)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(status.payload, &raw); err != nil {
		t.Fatalf("status payload: %v", err)
	}
	if raw["event"] != "session_started" || raw["status"].(map[string]interface{})["state"] != "streaming" {
		t.Fatalf("unexpected status payload %s", status.payload)
	}

	rec := client.published[1]
	var msg RecordMessage
	if err := json.Unmarshal(rec.payload, &msg); err != nil {
		t.Fatalf("record payload: %v", err)
	}
	if rec.topic != "balance/records" || rec.retained || msg.SessionID != "abc" || msg.Record.WeightKg != 1.2 {
		t.Fatalf("unexpected record publish %+v / %+v", rec, msg)
	}
}

func TestPublisher_RecordsDisabledOrOffline(t *testing.T) {
	client := newFakeClient()
	p := NewPublisher(client, "balance/records", "balance/status", false)
	p.OnRecord(session.Info{}, record.Record{})
	if len(client.published) != 0 {
		t.Fatal("record published while disabled")
	}

	client.connected = false
	p.OnEvent(session.Event{Kind: session.EventWarning})
	if len(client.published) != 0 {
		t.Fatal("status published while offline")
	}
}
