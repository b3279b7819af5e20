// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"log"

	"github.com/go-lpc/sdsu/driver"
	"github.com/go-lpc/sdsu/driver/pci"
	"github.com/go-lpc/sdsu/driver/text"
	"github.com/go-lpc/sdsu/dsp"
	"github.com/go-lpc/sdsu/fw"
)

var _ fw.Commander = (*dsp.Controller)(nil)

// Setup is an opened controller setup.
type Setup struct {
	Handle *driver.Handle
	DSP    *dsp.Controller
	Wheel  *fw.Wheel // nil when there is no wheel
}

// Open opens the device described by cfg and builds its DSP controller
// and filter wheel. msg, if not nil, receives the logs of every layer.
func (cfg Config) Open(msg *log.Logger) (*Setup, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	var h *driver.Handle
	switch cfg.Device.Type {
	case "pci":
		be := pci.New(pci.WithLogger(logger(msg, "pci: ")))
		h, err = driver.OpenWith(driver.PCI, be, cfg.Device.Path)
	case "text":
		opts := []text.Option{text.WithLogger(logger(msg, "text: "))}
		if cfg.Wheel.Simulate && cfg.Wheel.Positions > 0 {
			opts = append(opts, text.WithFilterWheel(cfg.Wheel.Positions, cfg.Wheel.Travel))
		}
		h, err = driver.OpenWith(driver.Text, text.New(opts...), cfg.Device.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("config: could not open device: %w", err)
	}

	if cfg.Device.MemSize > 0 {
		err = h.MemoryMap(cfg.Device.MemSize)
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("config: could not map image buffer: %w", err)
		}
	}

	policy, _ := dsp.ParsePolicy(cfg.DSP.Policy)
	setup := &Setup{
		Handle: h,
		DSP: dsp.New(h,
			dsp.WithLogger(logger(msg, "dsp: ")),
			dsp.WithMutex(cfg.DSP.Mutex),
			dsp.WithPolicy(policy),
			dsp.WithShutterTriggerDelay(cfg.DSP.ShutterDelay),
			dsp.WithTransmissionOffset(cfg.DSP.TxOffset),
			dsp.WithReadoutRemaining(cfg.DSP.Readout),
		),
	}
	if cfg.Wheel.Positions > 0 {
		setup.Wheel = fw.New(setup.DSP, cfg.Wheel.Positions,
			fw.WithLogger(logger(msg, "fw: ")),
			fw.WithPoll(cfg.Wheel.Poll),
			fw.WithTimeout(cfg.Wheel.Timeout),
		)
	}
	return setup, nil
}

// Close unmaps the image buffer and closes the device.
func (s *Setup) Close() error {
	err := s.Handle.MemoryUnmap()
	if err != nil {
		return fmt.Errorf("config: could not unmap image buffer: %w", err)
	}
	err = s.Handle.Close()
	if err != nil {
		return fmt.Errorf("config: could not close device: %w", err)
	}
	return nil
}
