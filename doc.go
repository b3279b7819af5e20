// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sdsu holds code to drive an SDSU CCD camera controller.
//
// The controller is a set of DSP boards (interface, timing, utility)
// sitting behind a PCI interface card. Boards are programmed with
// 24-bit manual commands (a 3-letter mnemonic, a board id and up to
// four arguments) or with direct host-command vectors written to the
// PCI board, and answer with a single reply word.
//
// Sub-packages:
//   - driver: the transport dispatcher, with the pci and text backends,
//   - dsp: the DSP command engine,
//   - fw: the filter-wheel motion controller,
//   - config, ctl and web: configuration and remote control of a setup.
package sdsu // import "github.com/go-lpc/sdsu"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of sdsu and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/sdsu"
	if b.Main.Path == root {
		return b.Main.Version, b.Main.Sum
	}
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
