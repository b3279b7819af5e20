// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sdsu-srv serves the control commands of an SDSU controller over
// JSON/TCP and HTTP.
//
// Hardware failures of the controller are mailed when the MAIL_SERVER,
// MAIL_PORT, MAIL_USERNAME, MAIL_PASSWORD and MAIL_TGTS environment
// variables are set.
//
// Usage:
//
//	$> sdsu-srv -mkconf > sdsu.yaml
//	$> sdsu-srv -cfg sdsu.yaml
package main // import "github.com/go-lpc/sdsu/cmd/sdsu-srv"

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/sdsu/config"
	"github.com/go-lpc/sdsu/ctl"
	"github.com/go-lpc/sdsu/web"
)

func main() {
	log.SetPrefix("sdsu-srv: ")
	log.SetFlags(0)

	var (
		fname  = flag.String("cfg", "", "path to a YAML configuration file")
		mkconf = flag.Bool("mkconf", false, "write the default configuration to stdout and exit")
	)

	flag.Parse()

	if *mkconf {
		err := config.Default().Write(os.Stdout)
		if err != nil {
			log.Fatalf("could not write configuration: %+v", err)
		}
		return
	}

	cfg, err := config.Load(*fname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	err = run(cfg, stop, nil)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(cfg config.Config, stop chan os.Signal, ready func(ctlAddr, httpAddr net.Addr)) error {
	setup, err := cfg.Open(log.Default())
	if err != nil {
		return fmt.Errorf("could not open controller: %w", err)
	}
	defer setup.Close()

	h := ctl.NewHandler(setup.DSP, setup.Wheel, log.New(os.Stdout, "ctl: ", 0))
	if a := newAlerter(os.Getenv); a != nil {
		h.OnError(a.alert)
		log.Printf("mailing hardware failures to %q", a.tgts)
	}

	srv, err := ctl.NewServer(cfg.Server.Addr, h)
	if err != nil {
		return fmt.Errorf("could not create ctl server: %w", err)
	}
	defer srv.Close()

	var (
		grp  errgroup.Group
		hsrv = &http.Server{Handler: web.NewRouter(h)}
		lis  net.Listener
	)
	defer hsrv.Close()

	if cfg.Server.HTTP != "" {
		lis, err = net.Listen("tcp", cfg.Server.HTTP)
		if err != nil {
			return fmt.Errorf("could not create http server on %q: %w", cfg.Server.HTTP, err)
		}
		grp.Go(func() error {
			err := hsrv.Serve(lis)
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		log.Printf("serving http on %v...", lis.Addr())
	}

	if ready != nil {
		var addr net.Addr
		if lis != nil {
			addr = lis.Addr()
		}
		ready(srv.Addr(), addr)
	}
	log.Printf("serving ctl on %v...", srv.Addr())

	grp.Go(srv.Serve)
	grp.Go(func() error {
		<-stop
		log.Printf("shutting down...")
		setup.DSP.Abort()
		err := hsrv.Close()
		if err != nil {
			return fmt.Errorf("could not close http server: %w", err)
		}
		return srv.Close()
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not serve: %w", err)
	}
	return nil
}
