// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package text

import (
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/fw"
)

type wheelOp int32

const (
	wheelIdle wheelOp = iota
	wheelReset
	wheelMove
)

// wheel simulates the filter wheel firmware registers.
// Registers are only driven by FWR, FWM and FWA, and evolve with time:
// each operation goes through the locators-out, moving-out, moving-in and
// locators-in phases, each lasting a quarter of the travel time.
type wheel struct {
	n      int
	travel time.Duration

	op     wheelOp
	start  time.Time
	target int

	pos     int // mechanical position, -1 between positions
	last    int32
	errCode int32
}

func newWheel(n int, travel time.Duration) *wheel {
	if travel <= 0 {
		travel = 4 * time.Millisecond
	}
	return &wheel{n: n, travel: travel}
}

// proximity returns the pattern shown by the proximity sensors when the
// wheel sits at position pos.
func proximity(pos int) int32 {
	return int32(pos+1) & fw.ProximityMask
}

func (w *wheel) reset(now time.Time) {
	w.update(now)
	w.op = wheelReset
	w.start = now
	w.target = w.pos
	if w.target < 0 {
		w.target = 0
	}
	w.errCode = 0
}

func (w *wheel) move(now time.Time, pos int) bool {
	if pos < 0 || pos >= w.n {
		return false
	}
	w.update(now)
	w.op = wheelMove
	w.start = now
	w.target = pos
	w.errCode = 0
	return true
}

func (w *wheel) abort(now time.Time) {
	w.update(now)
	if w.op == wheelIdle {
		return
	}
	w.op = wheelIdle
	w.pos = -1
	w.errCode = 1
}

// phase returns the current phase index (0-3) of the running operation.
func (w *wheel) phase(now time.Time) int {
	return int(4 * now.Sub(w.start) / w.travel)
}

func (w *wheel) update(now time.Time) {
	if w.op == wheelIdle || w.phase(now) < 4 {
		return
	}
	w.op = wheelIdle
	w.pos = w.target
	w.last = int32(w.target)
}

func (w *wheel) status(now time.Time) int32 {
	if w.op == wheelIdle {
		return 0
	}
	var st int32
	switch w.op {
	case wheelReset:
		st |= fw.BitResetting
	case wheelMove:
		st |= fw.BitMoving
	}
	switch w.phase(now) {
	case 0:
		st |= fw.BitLocatorsOut
	case 1:
		st |= fw.BitMovingOut
	case 2:
		st |= fw.BitMovingIn
	default:
		st |= fw.BitLocatorsIn
	}
	return st
}

func (w *wheel) read(now time.Time, loc int32) (int32, bool) {
	space, addr := sdsu.SplitLocation(loc)
	if space != fw.Space {
		return 0, false
	}
	w.update(now)
	switch addr {
	case fw.AddrStatus:
		return w.status(now), true
	case fw.AddrErrorCode:
		return w.errCode, true
	case fw.AddrLastPosition:
		return w.last, true
	case fw.AddrProximity:
		if w.op != wheelIdle {
			return proximity(w.target), true
		}
		return proximity(int(w.last)), true
	case fw.AddrDigitalIn:
		if w.op != wheelIdle || w.pos < 0 {
			return 0, true
		}
		return proximity(w.pos), true
	case fw.AddrDigitalOut:
		if w.op != wheelIdle {
			return 0x1, true
		}
		return 0, true
	case fw.AddrDebug:
		if w.op == wheelIdle {
			return 0, true
		}
		return int32(w.op)<<8 | int32(w.phase(now)), true
	}
	return 0, false
}
