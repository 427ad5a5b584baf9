// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package record

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// FilePrefix starts every session log file name.
const FilePrefix = "BalanceBoardData"

// SessionPath returns <dataDir>/<participant>/BalanceBoardData_<task>_<YYYYMMDD_HHmmss>.csv.
func SessionPath(dataDir, participant, task string, t time.Time) (string, error) {
	if err := validateElement("participant", participant); err != nil {
		return "", err
	}
	if err := validateElement("task", task); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s_%s_%s.csv", FilePrefix, task, t.Format("20060102_150405"))
	return filepath.Join(dataDir, participant, name), nil
}

// validateElement accepts a single, portable path element.
func validateElement(what, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", what)
	}
	if value == "." || value == ".." {
		return fmt.Errorf("%s %q is not a valid name", what, value)
	}
	if strings.ContainsAny(value, `/\<>:"|?*`) {
		return fmt.Errorf("%s %q contains invalid characters", what, value)
	}
	if strings.TrimSpace(value) != value {
		return errors.New(what + " has leading or trailing spaces")
	}
	return nil
}
