// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

// Session is one header-delimited block of a log file.
type Session struct {
	Records []Record
}

// ReadFile parses a log file written by Recorder.
func ReadFile(path string) ([]Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()
	return Read(f)
}

// Read parses a log stream. Each header row starts a new session.
func Read(r io.Reader) ([]Session, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	var sessions []Session
	for line := 1; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return sessions, nil
		}
		if err != nil {
			return nil, err
		}

		if row[0] == Header[0] {
			sessions = append(sessions, Session{})
			continue
		}
		if len(sessions) == 0 {
			return nil, fmt.Errorf("line %d: data row before header", line)
		}

		rec, err := ParseRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		cur := &sessions[len(sessions)-1]
		cur.Records = append(cur.Records, rec)
	}
}

// ParseRow decodes one data row produced by Record.Row.
func ParseRow(row []string) (Record, error) {
	if len(row) != len(Header) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(Header), len(row))
	}

	ts, err := time.ParseInLocation(TimeLayout, row[0], time.Local)
	if err != nil {
		return Record{}, fmt.Errorf("timestamp: %w", err)
	}

	var nums [8]decimal.Decimal
	for i := range nums {
		nums[i], err = decimal.NewFromString(row[i+1])
		if err != nil {
			return Record{}, fmt.Errorf("%s: %w", Header[i+1], err)
		}
	}

	return Record{
		Time:          ts,
		Elapsed:       time.Duration(nums[0].Shift(9).IntPart()),
		TopLeftKg:     nums[1].InexactFloat64(),
		TopRightKg:    nums[2].InexactFloat64(),
		BottomLeftKg:  nums[3].InexactFloat64(),
		BottomRightKg: nums[4].InexactFloat64(),
		WeightKg:      nums[5].InexactFloat64(),
		X:             nums[6].InexactFloat64(),
		Y:             nums[7].InexactFloat64(),
	}, nil
}
