// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sdsu-expose starts a timed exposure on an SDSU controller.
//
// The exposure starts after the requested delay, at a 1s (then sub-second)
// resolution; an interrupt (Ctrl-C) aborts the pending start.
//
// Usage:
//
//	$> sdsu-expose -cfg sdsu.yaml -length 2s -delay 10s
package main // import "github.com/go-lpc/sdsu/cmd/sdsu-expose"

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/config"
	"github.com/go-lpc/sdsu/exposure"
)

func main() {
	log.SetPrefix("sdsu-expose: ")
	log.SetFlags(0)

	var (
		fname  = flag.String("cfg", "", "path to a YAML configuration file")
		length = flag.Duration("length", 1*time.Second, "exposure length")
		delay  = flag.Duration("delay", 0, "delay before the start of the exposure")
	)

	flag.Parse()

	cfg, err := config.Load(*fname)
	if err != nil {
		log.Fatalf("could not load configuration: %+v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	err = run(cfg, *length, *delay, stop)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(cfg config.Config, length, delay time.Duration, stop chan os.Signal) error {
	setup, err := cfg.Open(log.Default())
	if err != nil {
		return fmt.Errorf("could not open controller: %w", err)
	}
	defer setup.Close()

	var (
		c    = setup.DSP
		exp  = c.Exposure()
		done = make(chan struct{})
		grp  errgroup.Group
	)

	err = c.SetExposureTime(length)
	if err != nil {
		return fmt.Errorf("could not set exposure time: %w", err)
	}
	exp.SetLength(length)
	if delay > 0 {
		exp.SetStartTime(time.Now().Add(delay))
	}

	grp.Go(func() error {
		defer close(done)
		log.Printf("starting exposure (length=%v, delay=%v)...", length, delay)
		err := c.StartExposure()
		if err != nil {
			return fmt.Errorf("could not start exposure: %w", err)
		}
		log.Printf("exposure started: %v", exp.Status())
		return nil
	})

	grp.Go(func() error {
		select {
		case <-done:
			return nil
		case <-stop:
			log.Printf("aborting exposure...")
			c.Abort()
			<-done
			switch exp.Status() {
			case exposure.Expose, exposure.PreReadout, exposure.Readout:
				err := c.AbortExposure()
				if err != nil {
					return fmt.Errorf("could not abort exposure: %w", err)
				}
				exp.SetStatus(exposure.None)
			}
			return nil
		}
	})

	err = grp.Wait()
	switch {
	case errors.Is(err, sdsu.ErrAborted):
		log.Printf("exposure aborted")
		return nil
	case err != nil:
		return err
	}
	return nil
}
