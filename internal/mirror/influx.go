// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package mirror copies stored session records to InfluxDB for live
// dashboards. The CSV log stays the record of truth.
package mirror

import (
	"log"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/relabs-tech/balance_recorder/internal/record"
	"github.com/relabs-tech/balance_recorder/internal/session"
)

// Measurement is the InfluxDB measurement name for records.
const Measurement = "balance"

// PointWriter is the non-blocking write side of an InfluxDB client.
type PointWriter interface {
	WritePoint(point *write.Point)
}

// Influx is a session.Observer that writes one point per stored record.
type Influx struct {
	w           PointWriter
	participant string
}

// NewInflux tags every point with participant.
func NewInflux(w PointWriter, participant string) *Influx {
	return &Influx{w: w, participant: participant}
}

// DialInflux connects to the server and returns the mirror plus a close
// function that flushes pending points.
func DialInflux(url, token, org, bucket, participant string) (*Influx, func()) {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)

	go func() {
		for err := range writeAPI.Errors() {
			log.Printf("influx: write error: %v", err)
		}
	}()
	log.Printf("influx: mirroring records to %s (org %s, bucket %s)", url, org, bucket)

	closeFn := func() {
		writeAPI.Flush()
		client.Close()
	}
	return NewInflux(writeAPI, participant), closeFn
}

// Point builds the InfluxDB point for one record.
func Point(participant string, info session.Info, rec record.Record) *write.Point {
	return influxdb2.NewPointWithMeasurement(Measurement).
		AddTag("participant", participant).
		AddTag("task", string(info.Task)).
		AddTag("session_id", info.ID).
		AddField("elapsed_s", rec.Elapsed.Seconds()).
		AddField("top_left_kg", rec.TopLeftKg).
		AddField("top_right_kg", rec.TopRightKg).
		AddField("bottom_left_kg", rec.BottomLeftKg).
		AddField("bottom_right_kg", rec.BottomRightKg).
		AddField("weight_kg", rec.WeightKg).
		AddField("cop_x_cm", rec.X).
		AddField("cop_y_cm", rec.Y).
		SetTime(rec.Time)
}

func (m *Influx) OnRecord(info session.Info, rec record.Record) {
	m.w.WritePoint(Point(m.participant, info, rec))
}

func (m *Influx) OnEvent(session.Event) {}
