// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/balance_recorder/internal/app"
	"github.com/relabs-tech/balance_recorder/internal/config"
)

func main() {
	configPath := flag.String("config", "recorder.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "path to an optional .env file")
	participant := flag.String("participant", "", "participant identifier (prompted if empty)")
	task := flag.String("task", "", "task kind, e.g. simple or complex (default_task if empty)")
	flag.Parse()

	log.Println("starting balance board recorder")

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}

	path := *configPath
	if _, err := os.Stat(path); err != nil && path == "recorder.yaml" {
		log.Printf("no %s found, using defaults", path)
		path = ""
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = app.RunRecorder(ctx, cfg, app.RunOptions{
		Participant: *participant,
		Task:        *task,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
