// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bus

import (
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/balance_recorder/internal/operator"
)

// SubscribeCommands forwards plain-text command lines published on topic
// into feed. Lines arriving while the feed is full are dropped.
func SubscribeCommands(client Client, topic string, feed *operator.Feed) error {
	return subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
		forwardCommand(feed, msg)
	})
}

func forwardCommand(feed *operator.Feed, msg mqtt.Message) {
	line := strings.TrimSpace(string(msg.Payload()))
	if line == "" {
		return
	}
	if !feed.Offer(line) {
		log.Printf("mqtt: command queue full, dropped %q from %s", line, msg.Topic())
	}
}
