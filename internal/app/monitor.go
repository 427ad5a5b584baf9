// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/balance_recorder/internal/bus"
	"github.com/relabs-tech/balance_recorder/internal/config"
)

// Monitor prints recorder status and records published on the broker.
type Monitor struct {
	console *Console
}

func NewMonitor(w io.Writer) *Monitor {
	return &Monitor{console: NewConsole(w)}
}

// RunMonitor subscribes to the status and record topics until ctx is done.
func RunMonitor(ctx context.Context, cfg *config.Config, w io.Writer) error {
	client, err := bus.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID+"-monitor")
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	m := NewMonitor(w)

	statusToken := client.Subscribe(cfg.MQTT.TopicStatus, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m.handleStatus(msg)
	})
	statusToken.Wait()
	if statusToken.Error() != nil {
		return statusToken.Error()
	}
	log.Printf("monitor: subscribed to %s", cfg.MQTT.TopicStatus)

	recordsToken := client.Subscribe(cfg.MQTT.TopicRecords, 0, func(_ mqtt.Client, msg mqtt.Message) {
		m.handleRecord(msg)
	})
	recordsToken.Wait()
	if recordsToken.Error() != nil {
		return recordsToken.Error()
	}
	log.Printf("monitor: subscribed to %s", cfg.MQTT.TopicRecords)

	<-ctx.Done()
	log.Println("monitor: shutting down")
	return nil
}

func (m *Monitor) handleStatus(msg mqtt.Message) {
	var s bus.StatusMessage
	if err := json.Unmarshal(msg.Payload(), &s); err != nil {
		log.Printf("monitor: status unmarshal error: %v", err)
		return
	}

	line := fmt.Sprintf("[STATUS] %-10s W=%7.2f X=%6.2f Y=%6.2f  %s",
		s.Status.State, s.Status.Last.WeightKg, s.Status.Last.X, s.Status.Last.Y, s.Message)
	if s.Error != "" {
		line += " (" + s.Error + ")"
	}
	m.console.Println(line)
}

func (m *Monitor) handleRecord(msg mqtt.Message) {
	var r bus.RecordMessage
	if err := json.Unmarshal(msg.Payload(), &r); err != nil {
		log.Printf("monitor: record unmarshal error: %v", err)
		return
	}

	rec := r.Record
	m.console.Printf("[REC ] %-8s t=%7.3f  TL=%6.2f TR=%6.2f BL=%6.2f BR=%6.2f  W=%7.2f  X=%6.2f Y=%6.2f\n",
		r.Task.Title(), rec.Elapsed.Seconds(),
		rec.TopLeftKg, rec.TopRightKg, rec.BottomLeftKg, rec.BottomRightKg,
		rec.WeightKg, rec.X, rec.Y)
}
