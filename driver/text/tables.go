// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package text

import (
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/driver"
)

// vector describes a host command vector. handle, when set, computes
// the reply and applies side effects; otherwise reply is sent back.
type vector struct {
	name   string
	reply  sdsu.Word
	handle func(be *Backend) int32
}

var vectors = map[int32]vector{
	driver.ClearReply: {name: "CLEAR_REPLY_MEMORY", reply: sdsu.DON},
	driver.PCIPCReset: {name: "PCI_PC_RESET", reply: sdsu.DON},
	driver.AbortReadout: {name: "ABORT_READOUT", reply: sdsu.DON, handle: func(be *Backend) int32 {
		be.stopExposure()
		be.progress = 0
		return int32(sdsu.DON)
	}},
	driver.ResetController: {name: "RESET_CONTROLLER", reply: sdsu.SYR, handle: func(be *Backend) int32 {
		be.reset()
		return int32(sdsu.SYR)
	}},
	driver.SetBiasVoltages: {name: "SET_BIAS_VOLTAGES", reply: sdsu.DON},
}

// manual describes a manual command taking argc arguments.
type manual struct {
	name   string
	argc   int
	reply  sdsu.Word
	handle func(be *Backend, board sdsu.Board, args []int32) int32
}

var manuals map[sdsu.Word]manual

func init() {
	manuals = map[sdsu.Word]manual{
		sdsu.ABR: {name: "abort readout", reply: sdsu.DON, handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			be.stopExposure()
			be.progress = 0
			return int32(sdsu.DON)
		}},
		sdsu.AEX: {name: "abort exposure", reply: sdsu.DON, handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			be.stopExposure()
			return int32(sdsu.DON)
		}},
		sdsu.CLR: {name: "clear array", reply: sdsu.DON},
		sdsu.CSH: {name: "close shutter", reply: sdsu.DON},
		sdsu.IDL: {name: "idle", reply: sdsu.DON},
		sdsu.LDA: {name: "load application", argc: 1, reply: sdsu.DON},
		sdsu.OSH: {name: "open shutter", reply: sdsu.DON},
		sdsu.PEX: {name: "pause exposure", reply: sdsu.DON, handle: pauseExposure},
		sdsu.POF: {name: "power off", reply: sdsu.DON},
		sdsu.PON: {name: "power on", reply: sdsu.DON},
		sdsu.RCC: {name: "read controller config", handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			return be.reg.config
		}},
		sdsu.RDM: {name: "read memory", argc: 1, handle: readMemory},
		sdsu.RET: {name: "read elapsed time", handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			return int32(be.elapsed(be.now()) / time.Millisecond)
		}},
		sdsu.REX: {name: "resume exposure", reply: sdsu.DON, handle: resumeExposure},
		sdsu.RST: {name: "reset board", reply: sdsu.SYR, handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			be.reset()
			return int32(sdsu.SYR)
		}},
		sdsu.SBV: {name: "set bias voltages", reply: sdsu.DON},
		sdsu.SET: {name: "set exposure time", argc: 1, handle: func(be *Backend, _ sdsu.Board, args []int32) int32 {
			if args[0] < 0 {
				return int32(sdsu.ERR)
			}
			be.exp.length = time.Duration(args[0]) * time.Millisecond
			return int32(sdsu.DON)
		}},
		sdsu.SEX: {name: "start exposure", handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			be.exp.active = true
			be.exp.start = be.now()
			be.exp.pausing = false
			be.exp.paused = 0
			be.progress = 0
			return int32(sdsu.DON)
		}},
		sdsu.SGN: {name: "set gain", argc: 2, reply: sdsu.DON},
		sdsu.SOS: {name: "set output source", argc: 1, reply: sdsu.DON},
		sdsu.SSP: {name: "set subarray positions", argc: 3, reply: sdsu.DON},
		sdsu.SSS: {name: "set subarray sizes", argc: 3, reply: sdsu.DON},
		sdsu.STP: {name: "stop idling", reply: sdsu.DON},
		sdsu.TDL: {name: "test data link", argc: 1, handle: func(_ *Backend, _ sdsu.Board, args []int32) int32 {
			return args[0]
		}},
		sdsu.WRM: {name: "write memory", argc: 2, handle: writeMemory},

		sdsu.FWA: {name: "filter wheel abort", reply: sdsu.DON, handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			if be.wheel != nil {
				be.wheel.abort(be.now())
			}
			return int32(sdsu.DON)
		}},
		sdsu.FWM: {name: "filter wheel move", argc: 1, reply: sdsu.DON, handle: func(be *Backend, _ sdsu.Board, args []int32) int32 {
			if be.wheel == nil {
				return int32(sdsu.DON)
			}
			if !be.wheel.move(be.now(), int(args[0])) {
				return int32(sdsu.ERR)
			}
			return int32(sdsu.DON)
		}},
		sdsu.FWR: {name: "filter wheel reset", reply: sdsu.DON, handle: func(be *Backend, _ sdsu.Board, _ []int32) int32 {
			if be.wheel != nil {
				be.wheel.reset(be.now())
			}
			return int32(sdsu.DON)
		}},
	}
}

func pauseExposure(be *Backend, _ sdsu.Board, _ []int32) int32 {
	if !be.exp.active || be.exp.pausing {
		return int32(sdsu.ERR)
	}
	be.exp.pausing = true
	be.exp.pauseAt = be.now()
	return int32(sdsu.DON)
}

func resumeExposure(be *Backend, _ sdsu.Board, _ []int32) int32 {
	if !be.exp.pausing {
		return int32(sdsu.ERR)
	}
	be.exp.paused += be.now().Sub(be.exp.pauseAt)
	be.exp.pausing = false
	return int32(sdsu.DON)
}

func validLocation(loc int32) bool {
	space, addr := sdsu.SplitLocation(loc)
	return space.Valid() && addr <= sdsu.MaxAddress
}

func readMemory(be *Backend, board sdsu.Board, args []int32) int32 {
	loc := args[0]
	if !validLocation(loc) {
		return int32(sdsu.ERR)
	}
	if be.wheel != nil && board == sdsu.Utility {
		if v, ok := be.wheel.read(be.now(), loc); ok {
			return v
		}
	}
	return be.mem[memKey{board, loc}]
}

// writeMemory acknowledges the write. The static memory table is left
// untouched: the emulator is not a memory.
func writeMemory(_ *Backend, _ sdsu.Board, args []int32) int32 {
	if !validLocation(args[0]) || args[1] < 0 || args[1] > sdsu.MaxData {
		return int32(sdsu.ERR)
	}
	return int32(sdsu.DON)
}

// defaultMemory holds the values replied to RDM for well-known
// locations. Any other location reads as 0.
var defaultMemory = map[memKey]int32{
	{sdsu.Interface, sdsu.SpaceX.Location(0x0)}: 0x000001, // interface board status word
	{sdsu.Timing, sdsu.SpaceX.Location(0x0)}:    0x000001, // timing board status word
	{sdsu.Timing, sdsu.SpaceY.Location(0x1)}:    0x000880, // serial register length
	{sdsu.Timing, sdsu.SpaceY.Location(0x2)}:    0x000800, // parallel register length
	{sdsu.Utility, sdsu.SpaceX.Location(0x0)}:   0x000001, // utility board status word
	{sdsu.Utility, sdsu.SpaceY.Location(0xc)}:   0x000bb8, // array temperature ADU
}
