// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/sdsu/config"
	"github.com/go-lpc/sdsu/ctl"
	"github.com/go-lpc/sdsu/web"
)

func TestRun(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Path = filepath.Join(t.TempDir(), "sdsu.log")
	cfg.Server.Addr = "localhost:0"
	cfg.Server.HTTP = "localhost:0"

	var (
		stop  = make(chan os.Signal, 1)
		errch = make(chan error, 1)
		addrs = make(chan [2]net.Addr, 1)
	)
	go func() {
		errch <- run(cfg, stop, func(ctlAddr, httpAddr net.Addr) {
			addrs <- [2]net.Addr{ctlAddr, httpAddr}
		})
	}()

	var addr [2]net.Addr
	select {
	case addr = <-addrs:
	case err := <-errch:
		t.Fatalf("could not start server: %+v", err)
	}

	cli, err := ctl.Dial(addr[0].String())
	if err != nil {
		t.Fatalf("could not dial ctl server: %+v", err)
	}
	rep, err := cli.Send("tdl", ctl.Args{Board: "tim", Data: 0x42})
	if err != nil {
		t.Fatalf("could not send tdl: %+v", err)
	}
	if rep.Err() != nil || rep.Value == nil || *rep.Value != 0x42 {
		t.Fatalf("invalid tdl reply: %v", rep)
	}
	_ = cli.Close()

	resp, err := http.Get("http://" + addr[1].String() + "/exposure/status")
	if err != nil {
		t.Fatalf("could not get exposure status: %+v", err)
	}
	defer resp.Body.Close()
	var p web.StrT
	err = json.NewDecoder(resp.Body).Decode(&p)
	if err != nil {
		t.Fatalf("could not decode exposure status: %+v", err)
	}
	if p.Str != "none" {
		t.Fatalf("invalid exposure status: %q", p.Str)
	}

	stop <- os.Interrupt
	err = <-errch
	if err != nil {
		t.Fatalf("could not run server: %+v", err)
	}
}

func TestRunFail(t *testing.T) {
	cfg := config.Default()
	cfg.Device.Type = "pci"
	cfg.Device.Path = filepath.Join(t.TempDir(), "not-there")

	err := run(cfg, make(chan os.Signal), nil)
	if err == nil {
		t.Fatalf("expected an error")
	}
}
