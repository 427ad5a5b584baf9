// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"encoding/json"
	"log"

	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

// RecordMessage is the payload published for every stored record.
type RecordMessage struct {
	SessionID string           `json:"session_id"`
	Task      session.TaskKind `json:"task"`
	Record    record.Record    `json:"record"`
}

// StatusMessage is the retained controller status payload.
type StatusMessage struct {
	Event   session.EventKind `json:"event"`
	Message string            `json:"message"`
	Error   string            `json:"error,omitempty"`
	Status  session.Status    `json:"status"`
}

// Publisher mirrors controller activity to the broker. It never waits for
// delivery, so it is safe to use as a session.Observer.
type Publisher struct {
	client         Client
	recordsTopic   string
	statusTopic    string
	publishRecords bool
}

// NewPublisher publishes status on statusTopic and, when publishRecords is
// set, every stored record on recordsTopic.
func NewPublisher(client Client, recordsTopic, statusTopic string, publishRecords bool) *Publisher {
	return &Publisher{
		client:         client,
		recordsTopic:   recordsTopic,
		statusTopic:    statusTopic,
		publishRecords: publishRecords,
	}
}

func (p *Publisher) OnEvent(ev session.Event) {
	msg := StatusMessage{Event: ev.Kind, Message: ev.Message, Status: ev.Status}
	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}
	p.publish(p.statusTopic, true, msg)
}

func (p *Publisher) OnRecord(info session.Info, rec record.Record) {
	if !p.publishRecords {
		return
	}
	p.publish(p.recordsTopic, false, RecordMessage{SessionID: info.ID, Task: info.Task, Record: rec})
}

func (p *Publisher) publish(topic string, retained bool, v interface{}) {
	if topic == "" || !p.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		log.Printf("mqtt: marshal for %s: %v", topic, err)
		return
	}
	p.client.Publish(topic, 0, retained, payload)
}
