// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"

	"github.com/go-lpc/sdsu/exposure"
)

func newContext(ctx context.Context) tdaq.Context {
	return tdaq.Context{
		Ctx: ctx,
		Msg: log.NewMsgStream("sdsu-tdaq", log.LvlDebug, io.Discard),
	}
}

func TestDevice(t *testing.T) {
	t.Setenv("SDSU_DEVICE_PATH", filepath.Join(t.TempDir(), "sdsu.log"))
	t.Setenv("SDSU_WHEEL_TRAVEL", "8ms")
	t.Setenv("SDSU_WHEEL_POLL", "1ms")

	var (
		dev  = newDevice("")
		ctx  = newContext(context.Background())
		resp tdaq.Frame
	)

	err := dev.OnStart(ctx, &resp, tdaq.Frame{})
	if err == nil {
		t.Fatalf("expected an error starting an unconfigured device")
	}

	for _, tc := range []struct {
		name string
		fct  func(tdaq.Context, *tdaq.Frame, tdaq.Frame) error
		body string
	}{
		{name: "/config", fct: dev.OnConfig},
		{name: "/init", fct: dev.OnInit},
		{name: "/reset", fct: dev.OnReset},
		{name: "/start", fct: dev.OnStart, body: `{"length": 2000}`},
	} {
		err := tc.fct(ctx, &resp, tdaq.Frame{Body: []byte(tc.body)})
		if err != nil {
			t.Fatalf("could not run %s: %+v", tc.name, err)
		}
	}
	if got, want := dev.args.Length, int64(2000); got != want {
		t.Fatalf("invalid exposure length: got=%d, want=%d", got, want)
	}
	if got := dev.setup.Wheel.Position(); got != 0 {
		t.Fatalf("invalid wheel position after init: %d", got)
	}

	run, cancel := context.WithCancel(context.Background())
	errch := make(chan error)
	go func() {
		errch <- dev.run(newContext(run))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for dev.setup.DSP.Exposure().Status() != exposure.Expose {
		if time.Now().After(deadline) {
			t.Fatalf("exposure did not start")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	err = <-errch
	if err != nil {
		t.Fatalf("could not run exposure: %+v", err)
	}

	err = dev.OnStop(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not stop: %+v", err)
	}
	if got := dev.setup.DSP.Exposure().Status(); got != exposure.None {
		t.Fatalf("invalid exposure status after stop: %v", got)
	}
	if dev.n != 1 {
		t.Fatalf("invalid number of exposures: %d", dev.n)
	}

	err = dev.OnInit(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not init after stop: %+v", err)
	}

	err = dev.OnQuit(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not quit: %+v", err)
	}
	err = dev.OnInit(ctx, &resp, tdaq.Frame{})
	if err == nil {
		t.Fatalf("expected an error after quit")
	}
}

func TestDeviceAbortDelayedStart(t *testing.T) {
	t.Setenv("SDSU_DEVICE_PATH", filepath.Join(t.TempDir(), "sdsu.log"))

	var (
		dev  = newDevice("")
		ctx  = newContext(context.Background())
		resp tdaq.Frame
	)
	defer dev.close()

	err := dev.OnConfig(ctx, &resp, tdaq.Frame{})
	if err != nil {
		t.Fatalf("could not configure: %+v", err)
	}
	err = dev.OnStart(ctx, &resp, tdaq.Frame{Body: []byte(`{"length": 2000, "delay": 60000}`)})
	if err != nil {
		t.Fatalf("could not start: %+v", err)
	}

	run, cancel := context.WithCancel(context.Background())
	errch := make(chan error)
	go func() {
		errch <- dev.run(newContext(run))
	}()

	deadline := time.Now().Add(5 * time.Second)
	for dev.setup.DSP.Exposure().Status() != exposure.WaitStart {
		if time.Now().After(deadline) {
			t.Fatalf("exposure is not waiting for its start")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-errch:
		if err != nil {
			t.Fatalf("could not stop run: %+v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("delayed start was not aborted")
	}

	if got := dev.setup.DSP.Exposure().Status(); got != exposure.None {
		t.Fatalf("invalid exposure status: %v", got)
	}

	err = dev.OnStart(ctx, &resp, tdaq.Frame{Body: []byte(`{"length":`)})
	if err == nil {
		t.Fatalf("expected a decoding error")
	}
}
