// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fw controls the filter wheel attached to the utility board of
// an SDSU controller.
package fw // import "github.com/go-lpc/sdsu/fw"

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-lpc/sdsu"
	"golang.org/x/time/rate"
)

// Status is the mechanical state of the wheel.
type Status int32

const (
	None Status = iota
	LocatorsOut
	Moving
	LocatorsIn
	Aborted
)

func (st Status) String() string {
	switch st {
	case None:
		return "none"
	case LocatorsOut:
		return "locators-out"
	case Moving:
		return "moving"
	case LocatorsIn:
		return "locators-in"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("Status(%d)", int32(st))
}

// Commander issues the DSP commands driving the wheel.
// *dsp.Controller is a Commander.
type Commander interface {
	FilterWheelReset() error
	FilterWheelMove(pos int) error
	FilterWheelAbort() error
	ReadMemory(board sdsu.Board, space sdsu.MemSpace, addr int32) (int32, error)
	Aborted() bool
	ClearAbort()
}

const (
	DefaultPoll    = 2 * time.Millisecond
	DefaultTimeout = 120 * time.Second
)

// Wheel is a filter wheel.
//
// Reset and Move block the calling goroutine. Abort, Position and Status
// may be called from another goroutine.
type Wheel struct {
	c   Commander
	msg *log.Logger
	n   int
	cfg config

	pos    atomic.Int32
	status atomic.Int32
}

// New returns a wheel with n positions driven by c.
// The position of the wheel is unknown until the first Reset or Move.
func New(c Commander, n int, opts ...Option) *Wheel {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	w := &Wheel{
		c:   c,
		msg: cfg.msg,
		n:   n,
		cfg: cfg,
	}
	w.pos.Store(-1)
	return w
}

// Position returns the current position, or -1 if unknown.
func (w *Wheel) Position() int { return int(w.pos.Load()) }

// Status returns the last known mechanical state.
func (w *Wheel) Status() Status { return Status(w.status.Load()) }

// PositionCount returns the number of positions of the wheel.
func (w *Wheel) PositionCount() int { return w.n }

// setStatus updates the status, unless the wheel was aborted.
func (w *Wheel) setStatus(st Status) {
	for {
		cur := w.status.Load()
		if Status(cur) == Aborted {
			return
		}
		if w.status.CompareAndSwap(cur, int32(st)) {
			return
		}
	}
}

// Reset finds the position of the wheel.
//
// Reset clears the abort flag of the controller before it starts: an
// abort left over from an exposure does not apply to the wheel. Setting
// the flag while Reset polls stops it with sdsu.ErrAborted.
func (w *Wheel) Reset() error {
	const op = "fw: reset"
	w.c.ClearAbort()
	w.pos.Store(-1)
	w.status.Store(int32(None))

	err := w.c.FilterWheelReset()
	if err != nil {
		return fmt.Errorf("fw: could not reset wheel: %w", err)
	}

	err = w.poll(op, BitResetting)
	if err != nil {
		return err
	}

	err = w.checkErrorCode(op)
	if err != nil {
		return err
	}

	last, err := w.read(AddrLastPosition)
	if err != nil {
		return fmt.Errorf("fw: could not read last position: %w", err)
	}
	if last < 0 || int(last) >= w.n {
		return sdsu.Errorf(op, sdsu.ErrVerification, "invalid position %d reported after reset", last)
	}

	w.pos.Store(last)
	w.setStatus(None)
	w.msg.Printf("reset done (position=%d)", last)
	return nil
}

// Move moves the wheel to position pos. An unknown position is first
// recovered with a Reset. Like Reset, Move clears the abort flag of the
// controller before it starts.
func (w *Wheel) Move(pos int) error {
	const op = "fw: move"
	if pos < 0 || pos >= w.n {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid position %d (positions: %d)", pos, w.n)
	}
	w.c.ClearAbort()

	cur := w.Position()
	if cur == pos {
		return nil
	}
	if cur < 0 {
		err := w.Reset()
		if err != nil {
			return fmt.Errorf("fw: could not reset wheel before move: %w", err)
		}
	}

	w.pos.Store(-1)
	w.status.Store(int32(None))

	err := w.c.FilterWheelMove(pos)
	if err != nil {
		return fmt.Errorf("fw: could not move wheel to %d: %w", pos, err)
	}

	err = w.poll(op, BitMoving)
	if err != nil {
		return err
	}

	err = w.checkErrorCode(op)
	if err != nil {
		return err
	}

	din, err := w.read(AddrDigitalIn)
	if err != nil {
		return fmt.Errorf("fw: could not read proximity sensors: %w", err)
	}
	want, err := w.read(AddrProximity)
	if err != nil {
		return fmt.Errorf("fw: could not read proximity pattern: %w", err)
	}
	if got := din & ProximityMask; got != want {
		return sdsu.Errorf(op, sdsu.ErrVerification,
			"proximity sensors 0x%x do not match pattern 0x%x of position %d", got, want, pos,
		)
	}

	w.pos.Store(int32(pos))
	w.setStatus(None)
	w.msg.Printf("move done (position=%d)", pos)
	return nil
}

// Abort aborts the operation in progress.
func (w *Wheel) Abort() error {
	err := w.c.FilterWheelAbort()
	if err != nil {
		return fmt.Errorf("fw: could not abort wheel: %w", err)
	}
	w.status.Store(int32(Aborted))
	w.msg.Printf("aborted")
	return nil
}

func (w *Wheel) read(addr int32) (int32, error) {
	return w.c.ReadMemory(Board, Space, addr)
}

func (w *Wheel) checkErrorCode(op string) error {
	code, err := w.read(AddrErrorCode)
	if err != nil {
		return fmt.Errorf("fw: could not read error code: %w", err)
	}
	if code != 0 {
		return sdsu.Errorf(op, sdsu.ErrVerification, "firmware error code %d", code)
	}
	return nil
}

// poll waits for the busy bit of the status register to clear.
func (w *Wheel) poll(op string, busy int32) error {
	start := w.cfg.now()
	for {
		if w.Status() == Aborted || w.c.Aborted() {
			return &sdsu.Error{Op: op, Kind: sdsu.ErrAborted}
		}

		st, err := w.read(AddrStatus)
		if err != nil {
			return fmt.Errorf("fw: could not read status: %w", err)
		}
		err = w.diagnostics(st)
		if err != nil {
			return err
		}
		w.setStatus(decode(st, w.Status()))

		if st&busy == 0 {
			return nil
		}

		if elapsed := w.cfg.now().Sub(start); elapsed > w.cfg.timeout {
			return sdsu.Errorf(op, sdsu.ErrTimeout, "not done after %v (status=0x%x)", elapsed, st)
		}
		w.cfg.sleep(w.cfg.poll)
	}
}

// decode returns the status described by the status register bits st.
// Bits of later phases take precedence.
func decode(st int32, cur Status) Status {
	if st&BitLocatorsOut != 0 {
		cur = LocatorsOut
	}
	if st&BitMovingOut != 0 {
		cur = Moving
	}
	if st&BitMovingIn != 0 {
		cur = Moving
	}
	if st&BitLocatorsIn != 0 {
		cur = LocatorsIn
	}
	return cur
}

func (w *Wheel) diagnostics(st int32) error {
	var regs [3]int32
	for i, addr := range []int32{AddrDigitalIn, AddrDigitalOut, AddrDebug} {
		v, err := w.read(addr)
		if err != nil {
			return fmt.Errorf("fw: could not read register 0x%x: %w", addr, err)
		}
		regs[i] = v
	}
	if w.cfg.limit.Allow() {
		w.msg.Printf("status=0x%x din=0x%x dout=0x%x debug=0x%x", st, regs[0], regs[1], regs[2])
	}
	return nil
}

// Option configures a wheel.
type Option func(*config)

type config struct {
	msg     *log.Logger
	poll    time.Duration
	timeout time.Duration
	limit   *rate.Limiter

	now   func() time.Time
	sleep func(time.Duration)
}

func newConfig() config {
	return config{
		msg:     log.New(io.Discard, "fw: ", 0),
		poll:    DefaultPoll,
		timeout: DefaultTimeout,
		limit:   rate.NewLimiter(rate.Every(time.Second), 1),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// WithLogger sets the logger of the wheel.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithPoll sets the polling period of the status register.
func WithPoll(d time.Duration) Option {
	return func(cfg *config) {
		cfg.poll = d
	}
}

// WithTimeout sets the maximum duration of a reset or a move.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithDiagnosticRate sets the maximum rate of register dumps in the log.
func WithDiagnosticRate(every time.Duration) Option {
	return func(cfg *config) {
		cfg.limit = rate.NewLimiter(rate.Every(every), 1)
	}
}

// WithClock sets the clock measuring timeouts.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		cfg.now = now
	}
}

// WithSleep sets the function used to wait between polls.
func WithSleep(sleep func(time.Duration)) Option {
	return func(cfg *config) {
		cfg.sleep = sleep
	}
}
