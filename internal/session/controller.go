// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package session runs the acquisition state machine: calibration, timed
// recording sessions and shutdown, driven by one ordered event queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/relabs-tech/balance_recorder/internal/board"
	"github.com/relabs-tech/balance_recorder/internal/calib"
	"github.com/relabs-tech/balance_recorder/internal/record"
)

// Recorder is the durable sink for session rows.
type Recorder interface {
	WriteHeader() error
	Append(rec record.Record) error
	Close() error
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Durations   Durations
	DefaultTask TaskKind
	Clock       clockwork.Clock
	QueueSize   int
	Observers   []Observer
}

type eventKind int

const (
	evSample eventKind = iota
	evCommand
	evDeadline
	evTare
	evSnapshot
	evDisconnect
)

type event struct {
	kind   eventKind
	sample board.RawSample
	cmd    Command
	gen    uint64
	err    error
	result chan result
}

type result struct {
	status Status
	offset calib.Offset
	err    error
}

// Controller serializes samples, commands and deadline expiries through a
// single queue consumed by Run. All session state is owned by that worker.
type Controller struct {
	rec         Recorder
	src         board.Source
	clock       clockwork.Clock
	durations   Durations
	defaultTask TaskKind
	observers   []Observer

	events chan event
	done   chan struct{}

	// worker-owned
	state      State
	cal        calib.Calibrator
	latest     board.RawSample
	haveLatest bool
	last       calib.Adjusted
	session    *Info
	deadline   clockwork.Timer
	gen        uint64
	exitErr    error
}

// New creates a controller writing to rec. src, if not nil, is closed on
// shutdown; the caller still subscribes it to HandleSample.
func New(rec Recorder, src board.Source, opts Options) *Controller {
	if opts.Durations == nil {
		opts.Durations = DefaultDurations()
	}
	if opts.DefaultTask == "" {
		opts.DefaultTask = TaskSimple
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}

	return &Controller{
		rec:         rec,
		src:         src,
		clock:       opts.Clock,
		durations:   opts.Durations,
		defaultTask: opts.DefaultTask,
		observers:   opts.Observers,
		events:      make(chan event, opts.QueueSize),
		done:        make(chan struct{}),
		state:       Disconnected,
	}
}

// Run consumes the event queue until exit, disconnect or ctx cancellation.
// It returns nil after an operator exit, the device error after a
// disconnect, and ctx.Err() on cancellation. The Recorder is closed in every
// case.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.shutdown(ctx.Err(), "Interrupted. Shutting down.")
			return ctx.Err()
		case ev := <-c.events:
			c.handle(ev)
			if c.state == Shutdown {
				return c.exitErr
			}
		}
	}
}

// Done is closed once Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// HandleSample enqueues a raw reading. It is the Subscribe callback for the
// sample source and blocks only while the queue is full.
func (c *Controller) HandleSample(s board.RawSample) {
	select {
	case c.events <- event{kind: evSample, sample: s}:
	case <-c.done:
	}
}

// Disconnect reports that the sample source is gone. The controller closes
// the Recorder and shuts down.
func (c *Controller) Disconnect(err error) {
	select {
	case c.events <- event{kind: evDisconnect, err: err}:
	case <-c.done:
	}
}

// Submit applies an operator command and returns the resulting status.
// Commands invalid in the current state return a *ProtocolError.
func (c *Controller) Submit(ctx context.Context, cmd Command) (Status, error) {
	r, err := c.request(ctx, event{kind: evCommand, cmd: cmd})
	return r.status, err
}

// Tare captures the latest sample as the zero reference. Taring from
// Untared moves the controller to Idle.
func (c *Controller) Tare(ctx context.Context) (calib.Offset, error) {
	r, err := c.request(ctx, event{kind: evTare})
	return r.offset, err
}

// Snapshot returns the current status.
func (c *Controller) Snapshot(ctx context.Context) (Status, error) {
	r, err := c.request(ctx, event{kind: evSnapshot})
	return r.status, err
}

func (c *Controller) request(ctx context.Context, ev event) (result, error) {
	ev.result = make(chan result, 1)

	select {
	case c.events <- ev:
	case <-c.done:
		return result{}, ErrShutdown
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	select {
	case r := <-ev.result:
		return r, r.err
	case <-c.done:
		// the worker may have answered just before exiting
		select {
		case r := <-ev.result:
			return r, r.err
		default:
			return result{}, ErrShutdown
		}
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evSample:
		c.handleSample(ev.sample)
	case evCommand:
		err := c.handleCommand(ev.cmd)
		ev.result <- result{status: c.status(), err: err}
	case evDeadline:
		if c.state == Streaming && ev.gen == c.gen {
			c.finish(true)
		}
	case evTare:
		off, err := c.tare()
		ev.result <- result{status: c.status(), offset: off, err: err}
	case evSnapshot:
		ev.result <- result{status: c.status()}
	case evDisconnect:
		c.disconnect(ev.err)
	}
}

func (c *Controller) handleSample(s board.RawSample) {
	c.latest = s
	c.haveLatest = true
	if c.state == Disconnected {
		c.state = Untared
	}

	if c.state != Streaming {
		c.last = c.cal.Adjust(s)
		return
	}

	now := c.clock.Now()
	elapsed := now.Sub(c.session.StartedAt)
	if elapsed >= c.session.Limit {
		// the deadline event is still queued behind this sample
		c.finish(true)
		return
	}

	adj := c.cal.Adjust(s)
	c.last = adj
	rec := record.Record{
		Time:          now,
		Elapsed:       elapsed,
		TopLeftKg:     s.TopLeftKg,
		TopRightKg:    s.TopRightKg,
		BottomLeftKg:  s.BottomLeftKg,
		BottomRightKg: s.BottomRightKg,
		WeightKg:      adj.WeightKg,
		X:             adj.X,
		Y:             adj.Y,
	}

	if err := c.rec.Append(rec); err != nil {
		c.session.Dropped++
		log.Printf("session: record dropped: %v", err)
		c.emit(EventError, fmt.Sprintf("Error writing data: %v", err), err)
		return
	}
	c.session.Records++

	info := *c.session
	info.Elapsed = elapsed
	for _, o := range c.observers {
		o.OnRecord(info, rec)
	}
}

func (c *Controller) handleCommand(cmd Command) error {
	var err error
	switch cmd.Kind {
	case CmdStart:
		err = c.start(cmd)
	case CmdStop:
		err = c.stop()
	case CmdResetCoP:
		err = c.resetCoP()
	case CmdExit:
		c.shutdown(nil, "Exiting.")
		return nil
	default:
		err = &ProtocolError{Command: cmd.String(), State: c.state, Reason: "unsupported command"}
	}

	var perr *ProtocolError
	if errors.As(err, &perr) || errors.Is(err, ErrNoSample) {
		c.emit(EventWarning, warningText(err), err)
	}
	return err
}

func (c *Controller) start(cmd Command) error {
	switch c.state {
	case Streaming:
		return &ProtocolError{Command: cmd.String(), State: c.state, Reason: "a session is already running"}
	case Disconnected, Untared:
		return &ProtocolError{Command: cmd.String(), State: c.state, Reason: "the platform is not tared"}
	}

	name := string(cmd.Task)
	if name == "" {
		name = string(c.defaultTask)
	}
	task, limit, err := c.durations.Lookup(name)
	if err != nil {
		return &ProtocolError{Command: cmd.String(), State: c.state, Reason: err.Error()}
	}

	// the origin moves only once the session is sure to start
	if err := c.rec.WriteHeader(); err != nil {
		log.Printf("session: header write failed: %v", err)
		c.emit(EventError, fmt.Sprintf("Error starting session: %v", err), err)
		return err
	}
	c.cal.ResetOrigin(c.latest)

	c.gen++
	gen := c.gen
	c.session = &Info{
		ID:        uuid.NewString(),
		Task:      task,
		StartedAt: c.clock.Now(),
		Limit:     limit,
	}
	c.deadline = c.clock.AfterFunc(limit, func() {
		select {
		case c.events <- event{kind: evDeadline, gen: gen}:
		case <-c.done:
		}
	})
	c.state = Streaming

	log.Printf("session: %s started (%s, limit %s)", c.session.ID, task, limit)
	c.emit(EventSessionStarted,
		fmt.Sprintf(">> %s task: Streaming for %.0f seconds...", task.Title(), limit.Seconds()), nil)
	return nil
}

func (c *Controller) stop() error {
	if c.state != Streaming {
		return &ProtocolError{Command: CmdStop.String(), State: c.state, Reason: "no session is running"}
	}
	c.finish(false)
	return nil
}

// finish ends the active session. Bumping gen invalidates any deadline
// expiry already queued.
func (c *Controller) finish(completed bool) {
	if c.deadline != nil {
		c.deadline.Stop()
		c.deadline = nil
	}
	c.gen++
	c.session.Elapsed = c.clock.Since(c.session.StartedAt)
	if c.session.Elapsed > c.session.Limit {
		c.session.Elapsed = c.session.Limit
	}
	c.state = Idle

	log.Printf("session: %s stopped after %d records (%d dropped)", c.session.ID, c.session.Records, c.session.Dropped)
	msg := ">> Streaming stopped."
	if completed {
		msg = fmt.Sprintf(">> %.0f seconds complete. Streaming stopped.", c.session.Limit.Seconds())
	}
	c.emit(EventSessionStopped, msg, nil)
}

func (c *Controller) resetCoP() error {
	if !c.haveLatest {
		return ErrNoSample
	}
	off := c.cal.ResetOrigin(c.latest)
	c.last = c.cal.Adjust(c.latest)
	c.emit(EventOriginReset, fmt.Sprintf("Center of Pressure reset -> X=%.2f cm, Y=%.2f cm", off.OriginX, off.OriginY), nil)
	return nil
}

func (c *Controller) tare() (calib.Offset, error) {
	if !c.haveLatest {
		return c.cal.Offset(), ErrNoSample
	}
	if c.state == Streaming {
		return c.cal.Offset(), &ProtocolError{Command: "tare", State: c.state, Reason: "a session is running"}
	}

	off := c.cal.Tare(c.latest)
	c.last = c.cal.Adjust(c.latest)
	if c.state == Untared {
		c.state = Idle
	}

	c.emit(EventTared, fmt.Sprintf("Tare set -> Weight: %.2f kg, CoP: X=%.2f cm, Y=%.2f cm",
		off.TareWeightKg, off.OriginX, off.OriginY), nil)
	return off, nil
}

func (c *Controller) disconnect(err error) {
	var devErr *board.DeviceError
	if !errors.As(err, &devErr) {
		err = &board.DeviceError{Op: "read", Err: err}
	}
	log.Printf("session: platform disconnected: %v", err)
	c.emit(EventError, "Balance board disconnected.", err)
	c.shutdown(err, "Shutting down after disconnect.")
}

// shutdown ends any session, closes the Recorder and then the source.
func (c *Controller) shutdown(cause error, msg string) {
	if c.state == Streaming {
		c.finish(false)
	}

	if err := c.rec.Close(); err != nil {
		log.Printf("session: closing recorder: %v", err)
		c.emit(EventError, fmt.Sprintf("Error closing data file: %v", err), err)
	}
	if c.src != nil {
		if err := c.src.Close(); err != nil {
			log.Printf("session: closing source: %v", err)
		}
	}

	c.state = Shutdown
	c.exitErr = cause
	c.emit(EventShutdown, msg, cause)
}

func (c *Controller) status() Status {
	st := Status{
		State:  c.state,
		Offset: c.cal.Offset(),
		Last:   c.last,
	}
	if c.session != nil {
		info := *c.session
		if c.state == Streaming {
			info.Elapsed = c.clock.Since(info.StartedAt)
		}
		st.Session = &info
	}
	return st
}

func (c *Controller) emit(kind EventKind, msg string, err error) {
	ev := Event{Kind: kind, Message: msg, Status: c.status(), Err: err}
	for _, o := range c.observers {
		o.OnEvent(ev)
	}
}

func warningText(err error) string {
	var perr *ProtocolError
	if errors.As(err, &perr) {
		switch perr.Reason {
		case "a session is already running":
			return ">> Streaming already in progress."
		case "the platform is not tared":
			return "Platform is not tared yet. Wait for calibration before starting."
		case "no session is running":
			return ">> Not streaming."
		}
		return perr.Error()
	}
	if errors.Is(err, ErrNoSample) {
		return "No data from the balance board yet."
	}
	return err.Error()
}
