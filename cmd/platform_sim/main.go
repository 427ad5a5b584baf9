// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/balance_recorder/internal/board"
	"github.com/relabs-tech/balance_recorder/internal/bus"
)

func main() {
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker URL")
	topic := flag.String("topic", "balance/raw", "topic for raw samples")
	rate := flag.Int("rate", 100, "samples per second")
	body := flag.Float64("body", 70, "simulated body weight in kg")
	nmeaOut := flag.Bool("nmea", false, "write $BBWGT sentences to stdout instead of publishing")
	flag.Parse()

	if *rate <= 0 {
		log.Fatalf("rate must be positive, got %d", *rate)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var emit func(board.RawSample) error
	if *nmeaOut {
		emit = func(s board.RawSample) error {
			_, err := fmt.Fprintf(os.Stdout, "%s\r\n", board.FormatSentence(s))
			return err
		}
	} else {
		log.Println("starting balance platform simulator (MQTT publisher)")
		client, err := bus.Connect(*broker, "balance-platform-sim")
		if err != nil {
			log.Fatalf("MQTT connect error: %v", err)
		}
		defer client.Disconnect(250)

		emit = func(s board.RawSample) error {
			payload, err := json.Marshal(s)
			if err != nil {
				return err
			}
			client.Publish(*topic, 0, false, payload)
			return nil
		}
	}

	start := time.Now()
	ticker := time.NewTicker(time.Second / time.Duration(*rate))
	defer ticker.Stop()

	var sent uint64
	for {
		select {
		case <-ctx.Done():
			log.Printf("stopped after %d samples", sent)
			return
		case t := <-ticker.C:
			if err := emit(board.Synthesize(*body, t.Sub(start).Seconds())); err != nil {
				log.Fatalf("emit error: %v", err)
			}
			sent++
			if !*nmeaOut && sent%uint64(*rate*10) == 0 {
				log.Printf("published %d samples to %s", sent, *topic)
			}
		}
	}
}
