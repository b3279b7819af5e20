// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

import (
	"fmt"
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/exposure"
)

// Policy selects the exposure phases during which utility board
// traffic (RDM, WRM, TDL) is forbidden. Policies match successive
// controller firmware revisions.
type Policy int

const (
	// PolicyIdleOnly allows utility board traffic only outside exposures.
	PolicyIdleOnly Policy = iota + 1
	// PolicyNotReadout forbids utility board traffic, as well as RET,
	// while the array is read out.
	PolicyNotReadout
	// PolicyNotExposing forbids utility board traffic from the start
	// of the exposure to the end of the readout.
	PolicyNotExposing
)

func (p Policy) String() string {
	switch p {
	case PolicyIdleOnly:
		return "idle-only"
	case PolicyNotReadout:
		return "not-readout"
	case PolicyNotExposing:
		return "not-exposing"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy parses a policy name, as returned by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	for _, p := range []Policy{PolicyIdleOnly, PolicyNotReadout, PolicyNotExposing} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, sdsu.Errorf("dsp: parse policy", sdsu.ErrInvalidArg, "unknown policy %q", s)
}

type phaseOp int

const (
	phaseUtility phaseOp = iota
	phaseRET
)

// allowed returns whether op may be issued during the exposure phase st.
func (p Policy) allowed(op phaseOp, st exposure.Status) bool {
	switch p {
	case PolicyIdleOnly:
		return op == phaseRET || st == exposure.None
	case PolicyNotReadout:
		return st != exposure.PreReadout && st != exposure.Readout
	case PolicyNotExposing:
		if op == phaseRET {
			return true
		}
		switch st {
		case exposure.Expose, exposure.PreReadout, exposure.Readout:
			return false
		}
		return true
	}
	return true
}

func (c *Controller) checkPhase(op string, kind phaseOp) error {
	st := c.cfg.exp.Status()
	if c.cfg.policy.allowed(kind, st) {
		return nil
	}
	c.msg.Printf("%s forbidden during %v (policy %v)", op, st, c.cfg.policy)
	return sdsu.Errorf(op, sdsu.ErrExposurePhase, "forbidden during %v (policy %v)", st, c.cfg.policy)
}

func (c *Controller) checkUtility(op string, board sdsu.Board) error {
	if board != sdsu.Utility {
		return nil
	}
	return c.checkPhase(op, phaseUtility)
}

// StartExposure starts the exposure described by the exposure state.
//
// If the exposure has a start time, StartExposure waits for it, taking
// the shutter trigger delay and transmission offset into account. The
// wait fails with sdsu.ErrAborted, without starting the exposure, as
// soon as the abort flag is set.
func (c *Controller) StartExposure() error {
	const op = "dsp: start exposure"
	var (
		exp   = c.cfg.exp
		start = exp.StartTime()
	)

	if !start.IsZero() {
		exp.SetStatus(exposure.WaitStart)
		err := c.waitStart(op, start)
		if err != nil {
			exp.SetStatus(exposure.None)
			return err
		}
	}

	if exp.Length() < c.cfg.readoutRemaining {
		exp.SetStatus(exposure.Readout)
	} else {
		exp.SetStatus(exposure.Expose)
	}

	_, err := c.Manual(sdsu.Timing, sdsu.SEX, int32(sdsu.DON))
	if err != nil {
		exp.SetStatus(exposure.None)
		return err
	}
	c.msg.Printf("exposure started (length=%v, status=%v)", exp.Length(), exp.Status())
	return nil
}

func (c *Controller) waitStart(op string, start time.Time) error {
	for {
		if c.Aborted() {
			return &sdsu.Error{Op: op, Kind: sdsu.ErrAborted}
		}
		remaining := start.Sub(c.cfg.now())
		if remaining > time.Second {
			c.cfg.sleep(time.Second)
			continue
		}
		remaining -= c.cfg.shutterDelay + c.cfg.txOffset
		if remaining > 0 {
			c.cfg.sleep(remaining)
		}
		break
	}
	if c.Aborted() {
		return &sdsu.Error{Op: op, Kind: sdsu.ErrAborted}
	}
	return nil
}
