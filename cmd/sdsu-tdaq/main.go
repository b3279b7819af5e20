// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sdsu-tdaq starts a TDAQ server driving the exposures of an SDSU
// controller.
//
// The first positional argument is the path to the YAML configuration
// file of the controller (defaults are used if it is empty).
// The body of the /start command may carry the exposure as JSON, e.g.
// {"length": 2000, "delay": 500}, in ms.
package main // import "github.com/go-lpc/sdsu/cmd/sdsu-tdaq"

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-lpc/sdsu/config"
	"github.com/go-lpc/sdsu/ctl"
)

func main() {
	cmd := flags.New()

	dev := newDevice("")
	if len(cmd.Args) > 0 {
		dev.fname = cmd.Args[0]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.RunHandle(dev.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

const defaultLength = 1000 // ms

type device struct {
	fname string

	mu    sync.Mutex
	setup *config.Setup
	h     *ctl.Handler
	args  ctl.Args

	n int // number of started exposures
}

func newDevice(fname string) *device {
	return &device{
		fname: fname,
		args:  ctl.Args{Length: defaultLength},
	}
}

func (dev *device) handler() (*ctl.Handler, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.h == nil {
		return nil, fmt.Errorf("sdsu-tdaq: controller not configured")
	}
	return dev.h, nil
}

func (dev *device) exec(ctx tdaq.Context, name string, args ctl.Args) error {
	h, err := dev.handler()
	if err != nil {
		return err
	}
	rep, err := h.Exec(name, args)
	if err != nil {
		ctx.Msg.Errorf("could not run %q: %+v", name, err)
		return fmt.Errorf("could not run %q: %w", name, err)
	}
	ctx.Msg.Debugf("%s: %v", name, rep)
	return nil
}

func (dev *device) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	cfg, err := config.Load(dev.fname)
	if err != nil {
		ctx.Msg.Errorf("could not load configuration %q: %+v", dev.fname, err)
		return fmt.Errorf("could not load configuration %q: %w", dev.fname, err)
	}

	err = dev.close()
	if err != nil {
		ctx.Msg.Errorf("could not close previous controller: %+v", err)
		return err
	}

	setup, err := cfg.Open(nil)
	if err != nil {
		ctx.Msg.Errorf("could not open controller: %+v", err)
		return fmt.Errorf("could not open controller: %w", err)
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.setup = setup
	dev.h = ctl.NewHandler(setup.DSP, setup.Wheel, nil)
	return nil
}

func (dev *device) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := dev.exec(ctx, "reset", ctl.Args{})
	if err != nil {
		return err
	}

	dev.mu.Lock()
	wheel := dev.setup.Wheel != nil
	dev.mu.Unlock()
	if !wheel {
		return nil
	}
	return dev.exec(ctx, "fw-reset", ctl.Args{})
}

func (dev *device) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	dev.mu.Lock()
	dev.n = 0
	dev.args = ctl.Args{Length: defaultLength}
	dev.mu.Unlock()
	return dev.exec(ctx, "reset", ctl.Args{})
}

func (dev *device) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	args := ctl.Args{Length: defaultLength}
	if len(req.Body) > 0 {
		err := json.Unmarshal(req.Body, &args)
		if err != nil {
			ctx.Msg.Errorf("could not decode exposure: %+v", err)
			return fmt.Errorf("could not decode exposure: %w", err)
		}
	}
	if _, err := dev.handler(); err != nil {
		return err
	}

	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.args = args
	return nil
}

func (dev *device) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dev.mu.Lock()
	n := dev.n
	dev.mu.Unlock()
	ctx.Msg.Debugf("received /stop command... -> n=%d", n)
	return dev.exec(ctx, "abort", ctl.Args{})
}

func (dev *device) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return dev.close()
}

func (dev *device) close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.setup == nil {
		return nil
	}
	err := dev.setup.Close()
	dev.setup = nil
	dev.h = nil
	if err != nil {
		return fmt.Errorf("could not close controller: %w", err)
	}
	return nil
}

// run starts the exposure and waits for the end of the run.
// An exposure waiting for its start time is aborted when the run stops.
func (dev *device) run(ctx tdaq.Context) error {
	dev.mu.Lock()
	args := dev.args
	dev.n++
	dev.mu.Unlock()

	h, err := dev.handler()
	if err != nil {
		return err
	}

	errch := make(chan error, 1)
	go func() {
		errch <- dev.exec(ctx, "expose", args)
	}()

	select {
	case <-ctx.Ctx.Done():
		rep, err := h.Exec("abort", ctl.Args{})
		if err != nil {
			ctx.Msg.Errorf("could not abort exposure: %+v", err)
		}
		ctx.Msg.Debugf("abort: %v", rep)
		<-errch
		return nil
	case err := <-errch:
		if err != nil {
			return err
		}
	}

	<-ctx.Ctx.Done()
	return nil
}
