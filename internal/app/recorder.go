// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/balance_recorder/internal/board"
	"github.com/relabs-tech/balance_recorder/internal/bus"
	"github.com/relabs-tech/balance_recorder/internal/config"
	"github.com/relabs-tech/balance_recorder/internal/mirror"
	"github.com/relabs-tech/balance_recorder/internal/operator"
	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

const (
	connectionPoll = 100 * time.Millisecond
	tareRetry      = 100 * time.Millisecond
)

// RunOptions carries the per-run inputs. Empty Participant or Task are
// prompted for on Stdin.
type RunOptions struct {
	Participant string
	Task        string
	Stdin       io.Reader
	Stdout      io.Writer
}

// RunRecorder connects to the platform, tares it and records sessions on
// operator command until exit, disconnect or ctx cancellation.
func RunRecorder(ctx context.Context, cfg *config.Config, opts RunOptions) error {
	console := NewConsole(opts.Stdout)
	durations := make(session.Durations, len(cfg.Tasks))
	for name, d := range cfg.Tasks {
		durations[session.TaskKind(name)] = d
	}

	console.Banner(durations)
	in := bufio.NewReader(opts.Stdin)

	participant, task, err := setup(in, console, durations, session.TaskKind(cfg.DefaultTask), opts)
	if err != nil {
		return err
	}
	path, err := record.SessionPath(cfg.DataDir, participant, task.Title(), time.Now())
	if err != nil {
		return err
	}

	console.Println("Connecting to balance board...")
	var client mqtt.Client
	if cfg.UsesMQTT() {
		client, err = bus.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			return &board.DeviceError{Op: "connect", Err: err}
		}
		defer client.Disconnect(250)
	}

	src, err := openSource(cfg, client)
	if err != nil {
		return err
	}
	console.Println("Connected!")

	rec, err := record.Open(path)
	if err != nil {
		src.Close()
		return err
	}

	if cfg.GPIO.Enabled || cfg.Display.Enabled {
		if _, err := host.Init(); err != nil {
			rec.Close()
			src.Close()
			return fmt.Errorf("failed to initialize periph host: %w", err)
		}
	}

	observers := []session.Observer{console}
	if client != nil && cfg.MQTT.Enabled {
		observers = append(observers, bus.NewPublisher(client, cfg.MQTT.TopicRecords, cfg.MQTT.TopicStatus, cfg.MQTT.PublishRecords))
	}
	if cfg.Influx.Enabled {
		m, closeInflux := mirror.DialInflux(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, participant)
		defer closeInflux()
		observers = append(observers, m)
	}
	if cfg.GPIO.Enabled && cfg.GPIO.LED != "" {
		led, err := OpenStatusLED(cfg.GPIO.LED)
		if err != nil {
			log.Printf("recorder: status LED disabled: %v", err)
		} else {
			observers = append(observers, led)
		}
	}
	var oled *OLED
	if cfg.Display.Enabled {
		if oled, err = OpenOLED(cfg.Display.I2CBus); err != nil {
			log.Printf("recorder: display disabled: %v", err)
		} else {
			defer oled.Close()
			observers = append(observers, oled)
		}
	}
	var hub *Hub
	if cfg.Web.Enabled {
		hub = NewHub()
		observers = append(observers, hub)
	}

	ctrl := session.New(rec, src, session.Options{
		Durations:   durations,
		DefaultTask: task,
		QueueSize:   cfg.QueueSize,
		Observers:   observers,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- ctrl.Run(runCtx) }()
	src.Subscribe(ctrl.HandleSample)

	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		watchConnection(runCtx, src, ctrl)
	}()

	if oled != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			oled.Run(runCtx)
		}()
	}

	if hub != nil {
		panel := NewPanel(ctrl, hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := panel.Run(runCtx, cfg.Web.Addr); err != nil {
				log.Printf("web: server error: %v", err)
			}
		}()
	}

	console.Println("Stabilizing... Please stand still.")
	select {
	case <-time.After(cfg.Stabilize):
	case <-ctrl.Done():
	case <-runCtx.Done():
	}

	if err := tareWithRetry(runCtx, ctrl, cfg.TareTimeout); err != nil && !stopping(ctx, err) {
		cancel()
		<-runErr
		return &board.DeviceError{Op: "tare", Err: err}
	}

	if !isDone(ctrl.Done()) && runCtx.Err() == nil {
		console.Println("Type 'go' to start streaming, 'stop' to stop, 'res' to reset CoP, 'exit' to quit.")
		remote := startRemoteCommands(runCtx, &wg, cfg, client, ctrl, console)

		consoleFeed := operator.NewFeed("console", 16)
		go operator.ReadLines(runCtx, in, consoleFeed)
		go func() {
			if err := operator.Pump(runCtx, consoleFeed, ctrl, console.ReportInput); err != nil {
				return
			}
			if !remote && runCtx.Err() == nil {
				// console closed and nothing else can send exit
				ctrl.Submit(runCtx, session.Command{Kind: session.CmdExit})
			}
		}()
	}

	<-ctrl.Done()
	err = <-runErr
	console.Printf("Data saved to: %s\n", path)

	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func setup(in *bufio.Reader, console *Console, durations session.Durations, defaultTask session.TaskKind, opts RunOptions) (string, session.TaskKind, error) {
	if opts.Participant == "" {
		return PromptSetup(in, console, durations, defaultTask)
	}
	return parseSetup(strings.TrimSpace(opts.Participant+" "+opts.Task), durations, defaultTask)
}

func openSource(cfg *config.Config, client mqtt.Client) (board.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceMock:
		return board.NewMockSource(cfg.Source.MockBodyKg, cfg.Source.MockRateHz), nil
	case config.SourceSerial:
		return board.OpenSerial(board.SerialOptions{PortName: cfg.Serial.Port, BaudRate: cfg.Serial.Baud})
	case config.SourceMQTT:
		return bus.NewSampleSource(client, cfg.MQTT.TopicRaw, cfg.Source.Stale, nil)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Source.Kind)
	}
}

// startRemoteCommands wires the MQTT command topic and the GPIO buttons.
// It reports whether any remote command source is running.
func startRemoteCommands(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, client mqtt.Client, ctrl *session.Controller, console *Console) bool {
	remote := false

	if client != nil && cfg.MQTT.Enabled && cfg.MQTT.TopicCmd != "" {
		feed := operator.NewFeed("mqtt", 16)
		if err := bus.SubscribeCommands(client, cfg.MQTT.TopicCmd, feed); err != nil {
			log.Printf("recorder: mqtt commands disabled: %v", err)
		} else {
			remote = true
			go func() {
				<-ctx.Done()
				feed.Close()
			}()
			go operator.Pump(ctx, feed, ctrl, console.ReportInput)
		}
	}

	if cfg.GPIO.Enabled && len(cfg.GPIO.Buttons) > 0 {
		buttons, err := operator.ResolveButtons(cfg.GPIO.Buttons)
		if err == nil {
			feed := operator.NewFeed("gpio", 16)
			var b *operator.Buttons
			if b, err = operator.NewButtons(buttons, feed, cfg.GPIO.Debounce, nil); err == nil {
				remote = true
				wg.Add(1)
				go func() {
					defer wg.Done()
					b.Run(ctx)
				}()
				go operator.Pump(ctx, feed, ctrl, console.ReportInput)
			}
		}
		if err != nil {
			log.Printf("recorder: buttons disabled: %v", err)
		}
	}
	return remote
}

// stopping reports whether a failed tare is explained by the run ending
// rather than by the platform.
func stopping(ctx context.Context, err error) bool {
	return errors.Is(err, session.ErrShutdown) || ctx.Err() != nil
}

func isDone(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// tareWithRetry tares as soon as a sample is available.
func tareWithRetry(ctx context.Context, ctrl *session.Controller, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		_, err := ctrl.Tare(ctx)
		if !errors.Is(err, session.ErrNoSample) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no sample within %s: %w", timeout, err)
		case <-time.After(tareRetry):
		}
	}
}

// watchConnection polls the source and reports a lost connection.
func watchConnection(ctx context.Context, src board.Source, ctrl *session.Controller) {
	ticker := time.NewTicker(connectionPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ctrl.Done():
			return
		case <-ticker.C:
			if src.IsConnected() {
				continue
			}
			err := errors.New("connection lost")
			if e, ok := src.(interface{ Err() error }); ok && e.Err() != nil {
				err = e.Err()
			}
			ctrl.Disconnect(err)
			return
		}
	}
}
