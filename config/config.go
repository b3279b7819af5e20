// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config loads the configuration of an SDSU controller setup,
// from defaults, an optional YAML file and SDSU_ environment variables.
package config // import "github.com/go-lpc/sdsu/config"

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/dsp"
	"github.com/go-lpc/sdsu/fw"
	"github.com/knadh/koanf"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding the
// configuration, e.g. SDSU_DEVICE_PATH for device.path.
const EnvPrefix = "SDSU_"

// Config describes a controller setup.
type Config struct {
	Device Device `koanf:"device" yaml:"device"`
	DSP    DSP    `koanf:"dsp" yaml:"dsp"`
	Wheel  Wheel  `koanf:"wheel" yaml:"wheel"`
	Server Server `koanf:"server" yaml:"server"`
}

// Device describes the transport to the controller.
type Device struct {
	Type    string `koanf:"type" yaml:"type"`       // "pci" or "text"
	Path    string `koanf:"path" yaml:"path"`       // device node, or transcript file for "text"
	MemSize int    `koanf:"memsize" yaml:"memsize"` // image buffer size in bytes, 0 to skip mapping
}

// DSP configures the DSP command engine.
type DSP struct {
	Mutex        bool          `koanf:"mutex" yaml:"mutex"`
	Policy       string        `koanf:"policy" yaml:"policy"`
	ShutterDelay time.Duration `koanf:"shutterdelay" yaml:"shutterdelay"`
	TxOffset     time.Duration `koanf:"txoffset" yaml:"txoffset"`
	Readout      time.Duration `koanf:"readout" yaml:"readout"` // minimum readout time
}

// Wheel configures the filter wheel.
type Wheel struct {
	Positions int           `koanf:"positions" yaml:"positions"` // 0 when there is no wheel
	Poll      time.Duration `koanf:"poll" yaml:"poll"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
	Simulate  bool          `koanf:"simulate" yaml:"simulate"` // simulate the wheel with a "text" device
	Travel    time.Duration `koanf:"travel" yaml:"travel"`     // travel time of the simulated wheel
}

// Server configures the control servers.
type Server struct {
	Addr string `koanf:"addr" yaml:"addr"` // JSON/TCP control server
	HTTP string `koanf:"http" yaml:"http"` // HTTP server, empty to disable
}

// Default returns the default configuration: an emulated controller
// writing its transcript to stdout.
func Default() Config {
	return Config{
		Device: Device{
			Type: "text",
			Path: "-",
		},
		DSP: DSP{
			Mutex:   true,
			Policy:  dsp.PolicyNotReadout.String(),
			Readout: dsp.DefaultReadoutRemaining,
		},
		Wheel: Wheel{
			Positions: 6,
			Poll:      fw.DefaultPoll,
			Timeout:   fw.DefaultTimeout,
			Simulate:  true,
			Travel:    2 * time.Second,
		},
		Server: Server{
			Addr: ":8877",
			HTTP: ":8878",
		},
	}
}

// Load loads the configuration from the defaults, the YAML file fname
// (if not empty) and the environment, in that order.
func Load(fname string) (Config, error) {
	k := koanf.New(".")
	err := k.Load(structs.Provider(Default(), "koanf"), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not load defaults: %w", err)
	}

	if fname != "" {
		err = k.Load(file.Provider(fname), kyaml.Parser())
		if err != nil {
			return Config{}, fmt.Errorf("config: could not load %q: %w", fname, err)
		}
	}

	err = k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not load environment: %w", err)
	}

	var cfg Config
	err = k.Unmarshal("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("config: could not decode configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", -1)
}

// Validate checks the configuration is usable.
func (cfg Config) Validate() error {
	const op = "config: validate"
	switch cfg.Device.Type {
	case "pci", "text":
	default:
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "unknown device type %q", cfg.Device.Type)
	}
	if cfg.Device.Path == "" {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "missing device path")
	}
	if cfg.Device.MemSize < 0 {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid image buffer size %d", cfg.Device.MemSize)
	}

	if _, err := dsp.ParsePolicy(cfg.DSP.Policy); err != nil {
		return fmt.Errorf("config: invalid dsp policy: %w", err)
	}
	for _, v := range []struct {
		name string
		d    time.Duration
	}{
		{"dsp.shutterdelay", cfg.DSP.ShutterDelay},
		{"dsp.txoffset", cfg.DSP.TxOffset},
		{"dsp.readout", cfg.DSP.Readout},
		{"wheel.travel", cfg.Wheel.Travel},
	} {
		if v.d < 0 {
			return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid %s duration %v", v.name, v.d)
		}
	}

	if cfg.Wheel.Positions < 0 {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid number of wheel positions %d", cfg.Wheel.Positions)
	}
	if cfg.Wheel.Positions > 0 {
		if cfg.Wheel.Poll <= 0 {
			return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid wheel polling period %v", cfg.Wheel.Poll)
		}
		if cfg.Wheel.Timeout <= 0 {
			return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid wheel timeout %v", cfg.Wheel.Timeout)
		}
	}
	if cfg.Wheel.Simulate && cfg.Device.Type != "text" {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "wheel simulation needs a text device (got %q)", cfg.Device.Type)
	}

	if cfg.Server.Addr == "" {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "missing server address")
	}
	return nil
}

// Write writes the configuration as YAML.
func (cfg Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	err := enc.Encode(cfg)
	if err != nil {
		return fmt.Errorf("config: could not encode configuration: %w", err)
	}
	err = enc.Close()
	if err != nil {
		return fmt.Errorf("config: could not flush configuration: %w", err)
	}
	return nil
}

// Save writes the configuration to the YAML file fname.
func (cfg Config) Save(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("config: could not create %q: %w", fname, err)
	}
	defer f.Close()

	err = cfg.Write(f)
	if err != nil {
		return err
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("config: could not close %q: %w", fname, err)
	}
	return nil
}

func logger(msg *log.Logger, prefix string) *log.Logger {
	if msg == nil {
		return log.New(io.Discard, prefix, 0)
	}
	return log.New(msg.Writer(), prefix, msg.Flags())
}
