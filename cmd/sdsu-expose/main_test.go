// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/sdsu/config"
)

func newConfig(t *testing.T) (config.Config, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Device.Path = filepath.Join(t.TempDir(), "sdsu.log")
	return cfg, cfg.Device.Path
}

func transcript(t *testing.T, fname string) string {
	t.Helper()
	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read transcript: %+v", err)
	}
	return string(raw)
}

func TestRun(t *testing.T) {
	cfg, fname := newConfig(t)

	err := run(cfg, 2*time.Second, 0, make(chan os.Signal))
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}

	if got := transcript(t, fname); !strings.Contains(got, "SEX") {
		t.Fatalf("exposure was not started:\n%s", got)
	}
}

func TestRunAbort(t *testing.T) {
	cfg, fname := newConfig(t)

	stop := make(chan os.Signal, 1)
	stop <- os.Interrupt

	start := time.Now()
	err := run(cfg, 2*time.Second, time.Hour, stop)
	if err != nil {
		t.Fatalf("could not run: %+v", err)
	}
	if d := time.Since(start); d > 10*time.Second {
		t.Fatalf("abort took too long: %v", d)
	}

	got := transcript(t, fname)
	if strings.Contains(got, "SEX") {
		t.Fatalf("exposure was started:\n%s", got)
	}
	if !strings.Contains(got, "SET") {
		t.Fatalf("exposure time was not set:\n%s", got)
	}
}

func TestRunInvalid(t *testing.T) {
	cfg, _ := newConfig(t)
	err := run(cfg, -time.Second, 0, make(chan os.Signal))
	if err == nil {
		t.Fatalf("expected an error")
	}
}
