// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dsp drives the DSP boards of an SDSU controller: it encodes
// board operations as host command vectors or manual command
// transactions, and validates their replies.
package dsp // import "github.com/go-lpc/sdsu/dsp"

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/driver"
	"github.com/go-lpc/sdsu/exposure"
)

// ActualValue, passed as the expected reply, makes CheckReply return
// the actual reply unchanged.
const ActualValue int32 = -1

// Controller issues DSP commands through a device handle.
type Controller struct {
	h     *driver.Handle
	msg   *log.Logger
	mu    sync.Mutex // serializes send+reply pairs
	cfg   config
	abort atomic.Bool
}

// New returns a controller driving the device opened as h.
func New(h *driver.Handle, opts ...Option) *Controller {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Controller{
		h:   h,
		msg: cfg.msg,
		cfg: cfg,
	}
}

// Handle returns the device handle of the controller.
func (c *Controller) Handle() *driver.Handle { return c.h }

// Exposure returns the exposure state consulted by the controller.
func (c *Controller) Exposure() *exposure.State { return c.cfg.exp }

// Policy returns the exposure-phase policy of the controller.
func (c *Controller) Policy() Policy { return c.cfg.policy }

// Abort sets the abort flag. Blocking operations observing the flag
// return an error of kind sdsu.ErrAborted.
func (c *Controller) Abort() {
	c.msg.Printf("abort requested")
	c.abort.Store(true)
}

// ClearAbort clears the abort flag.
func (c *Controller) ClearAbort() { c.abort.Store(false) }

// Aborted returns whether the abort flag is set.
func (c *Controller) Aborted() bool { return c.abort.Load() }

func (c *Controller) lock(mutexed bool) func() {
	if !mutexed || !c.cfg.mutex {
		return func() {}
	}
	c.mu.Lock()
	return c.mu.Unlock
}

// CheckReply validates the reply actual against expected.
// ERR and TOUT replies always fail. If expected is ActualValue, any
// other reply is returned unchanged.
func CheckReply(actual, expected int32) (int32, error) {
	switch w := sdsu.Word(actual); w {
	case sdsu.ERR, sdsu.TOUT:
		return actual, sdsu.Errorf("dsp: check reply", sdsu.ErrProtocol, "reply was %v", w)
	}
	if expected == ActualValue {
		return actual, nil
	}
	if actual != expected {
		return actual, sdsu.Errorf(
			"dsp: check reply", sdsu.ErrProtocol,
			"unexpected reply 0x%x (%v), want 0x%x (%v)",
			actual, sdsu.Word(actual), expected, sdsu.Word(expected),
		)
	}
	return actual, nil
}

// EncodeHeader returns the header word of a manual command sent to
// board with argc arguments.
func EncodeHeader(board sdsu.Board, argc int) int32 {
	return int32(board)<<8 | int32(argc+2)
}

// Manual sends the manual command cmd with its arguments to board, and
// checks the reply against expected.
func (c *Controller) Manual(board sdsu.Board, cmd sdsu.Word, expected int32, args ...int32) (int32, error) {
	op := "dsp: " + cmd.String()
	if !board.Valid() {
		return 0, sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid board %v", board)
	}
	if len(args) > driver.ArgCount-2 {
		return 0, sdsu.Errorf(op, sdsu.ErrInvalidArg, "too many arguments (%d)", len(args))
	}

	buf := driver.Pad(append([]int32{EncodeHeader(board, len(args)), int32(cmd)}, args...)...)
	err := c.send(true, func() error {
		return c.h.CommandList(driver.Command, buf[:])
	})
	if err != nil {
		c.msg.Printf("could not send %v to %v board: %+v", cmd, board, err)
		return 0, fmt.Errorf("dsp: could not send %v to %v board: %w", cmd, board, err)
	}

	reply, err := CheckReply(buf[0], expected)
	if err != nil {
		c.msg.Printf("%v on %v board failed: %+v", cmd, board, err)
		return reply, fmt.Errorf("dsp: %v on %v board failed: %w", cmd, board, err)
	}
	return reply, nil
}

func (c *Controller) send(mutexed bool, f func() error) error {
	if c.h == nil {
		return &sdsu.Error{Op: "dsp: send", Kind: sdsu.ErrNotReady}
	}
	unlock := c.lock(mutexed)
	defer unlock()
	return f()
}

// vector writes the host command vector v and checks the reply.
func (c *Controller) vector(v, expected int32, mutexed bool) error {
	arg := v
	err := c.send(mutexed, func() error {
		return c.h.Command(driver.SetHCVR, &arg)
	})
	if err != nil {
		return fmt.Errorf("dsp: could not send %s: %w", driver.VectorName(v), err)
	}
	_, err = CheckReply(arg, expected)
	if err != nil {
		c.msg.Printf("%s failed: %+v", driver.VectorName(v), err)
		return fmt.Errorf("dsp: %s failed: %w", driver.VectorName(v), err)
	}
	return nil
}

// register issues the single-word register request req.
func (c *Controller) register(req driver.Request, arg int32, mutexed bool) (int32, error) {
	err := c.send(mutexed, func() error {
		return c.h.Command(req, &arg)
	})
	if err != nil {
		return 0, fmt.Errorf("dsp: could not issue %v: %w", req, err)
	}
	return arg, nil
}

// Option configures a controller.
type Option func(*config)

type config struct {
	msg    *log.Logger
	mutex  bool
	policy Policy
	exp    *exposure.State

	shutterDelay     time.Duration
	txOffset         time.Duration
	readoutRemaining time.Duration

	now   func() time.Time
	sleep func(time.Duration)
}

// DefaultReadoutRemaining is the default minimum time left to read out
// the array once an exposure is started.
const DefaultReadoutRemaining = 1500 * time.Millisecond

func newConfig() config {
	return config{
		msg:              log.New(io.Discard, "dsp: ", 0),
		mutex:            true,
		policy:           PolicyNotReadout,
		exp:              exposure.NewState(),
		readoutRemaining: DefaultReadoutRemaining,
		now:              time.Now,
		sleep:            time.Sleep,
	}
}

// WithLogger sets the logger of the controller.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithMutex enables or disables the serialization of transactions.
func WithMutex(v bool) Option {
	return func(cfg *config) {
		cfg.mutex = v
	}
}

// WithPolicy sets the exposure-phase policy gating utility board traffic.
func WithPolicy(p Policy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithExposure sets the exposure state consulted by the controller.
func WithExposure(st *exposure.State) Option {
	return func(cfg *config) {
		cfg.exp = st
	}
}

// WithShutterTriggerDelay sets the delay between the start exposure
// command and the opening of the shutter.
func WithShutterTriggerDelay(d time.Duration) Option {
	return func(cfg *config) {
		cfg.shutterDelay = d
	}
}

// WithTransmissionOffset sets the transmission time of the start
// exposure command.
func WithTransmissionOffset(d time.Duration) Option {
	return func(cfg *config) {
		cfg.txOffset = d
	}
}

// WithReadoutRemaining sets the minimum readout time of the array.
// Exposures shorter than d go straight to the readout phase.
func WithReadoutRemaining(d time.Duration) Option {
	return func(cfg *config) {
		cfg.readoutRemaining = d
	}
}

// WithClock sets the clock used to wait for the exposure start time.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}

// WithSleep sets the function used to wait.
func WithSleep(sleep func(time.Duration)) Option {
	return func(cfg *config) {
		cfg.sleep = sleep
	}
}
