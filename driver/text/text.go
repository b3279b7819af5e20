// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package text implements a register-level emulator of the SDSU
// controller. It never touches hardware: requests are interpreted
// against a shadow register set and written as a human-readable
// transcript.
//
// Importing the package registers the backend as driver.Text.
package text // import "github.com/go-lpc/sdsu/driver/text"

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/driver"
	"golang.org/x/sys/unix"
)

func init() {
	driver.Register(driver.Text, "text", func() driver.Backend { return New() })
}

const (
	// ProgressStep is the readout progress increment of each GetProgress
	// request issued while a readout is indicated.
	ProgressStep = 1024

	// DefaultControllerConfig is the controller configuration word
	// replied to RCC.
	DefaultControllerConfig int32 = 0x000c1c
)

// Backend is the emulator transport.
type Backend struct {
	mu  sync.Mutex
	msg *log.Logger
	now func() time.Time

	w io.Writer // transcript
	f *os.File  // transcript file owned by the backend

	reg struct {
		hctr   int32
		hcvr   int32
		hstr   int32 // static bits, the interface board state is derived
		config int32
	}

	exp struct {
		length  time.Duration
		active  bool
		start   time.Time
		pausing bool
		pauseAt time.Time
		paused  time.Duration
	}
	progress int32

	mem   map[memKey]int32
	wheel *wheel
	image []byte
}

var _ driver.Backend = (*Backend)(nil)

type memKey struct {
	board sdsu.Board
	loc   int32
}

// Option configures an emulator backend.
type Option func(*Backend)

// WithClock sets the clock of the emulator.
func WithClock(now func() time.Time) Option {
	return func(be *Backend) {
		be.now = now
	}
}

// WithLogger sets the logger used for diagnostics.
// The transcript itself goes to the stream opened by Open.
func WithLogger(msg *log.Logger) Option {
	return func(be *Backend) {
		be.msg = msg
	}
}

// WithControllerConfig sets the controller configuration word.
func WithControllerConfig(v int32) Option {
	return func(be *Backend) {
		be.reg.config = v
	}
}

// WithMemory adds an entry to the static memory table read by RDM.
func WithMemory(board sdsu.Board, space sdsu.MemSpace, addr, value int32) Option {
	return func(be *Backend) {
		be.mem[memKey{board, space.Location(addr)}] = value
	}
}

// WithFilterWheel simulates a filter wheel with n positions, whose
// moves take travel to complete.
func WithFilterWheel(n int, travel time.Duration) Option {
	return func(be *Backend) {
		be.wheel = newWheel(n, travel)
	}
}

// New returns an emulator backend, ready to be opened with driver.OpenWith.
func New(opts ...Option) *Backend {
	be := &Backend{
		msg: log.New(io.Discard, "text: ", 0),
		now: time.Now,
		w:   io.Discard,
		mem: make(map[memKey]int32, len(defaultMemory)),
	}
	be.reg.config = DefaultControllerConfig
	for k, v := range defaultMemory {
		be.mem[k] = v
	}
	for _, opt := range opts {
		opt(be)
	}
	return be
}

// Open opens the transcript file at path. "-" writes the transcript
// to stdout.
func (be *Backend) Open(path string) error {
	be.mu.Lock()
	defer be.mu.Unlock()

	switch path {
	case "-":
		be.w = os.Stdout
	default:
		f, err := os.Create(path)
		if err != nil {
			return &sdsu.Error{Op: "text: open", Kind: sdsu.ErrTransport, Err: err}
		}
		be.f = f
		be.w = f
	}
	be.printf("OPEN: %s", path)
	return nil
}

func (be *Backend) MemoryMap(size int) error {
	be.mu.Lock()
	defer be.mu.Unlock()

	be.image = make([]byte, size)
	be.printf("MEMORY_MAP: %d bytes", size)
	return nil
}

func (be *Backend) MemoryUnmap() error {
	be.mu.Lock()
	defer be.mu.Unlock()

	be.image = nil
	be.printf("MEMORY_UNMAP")
	return nil
}

func (be *Backend) Type() driver.DeviceType { return driver.Text }

func (be *Backend) ReplyData() []byte {
	be.mu.Lock()
	defer be.mu.Unlock()
	return be.image
}

func (be *Backend) Close() error {
	be.mu.Lock()
	defer be.mu.Unlock()

	be.printf("CLOSE")
	be.image = nil
	be.w = io.Discard
	if be.f == nil {
		return nil
	}
	err := be.f.Close()
	if err != nil {
		return &sdsu.Error{Op: "text: close", Kind: sdsu.ErrTransport, Err: err}
	}
	be.f = nil
	return nil
}

func (be *Backend) Command(req driver.Request, arg *int32) error {
	be.mu.Lock()
	defer be.mu.Unlock()

	if req == driver.Command {
		return be.errorf(req, "manual commands need an argument list")
	}
	return be.register(req, arg)
}

func (be *Backend) CommandList(req driver.Request, args []int32) error {
	be.mu.Lock()
	defer be.mu.Unlock()

	if req != driver.Command {
		if len(args) == 0 {
			return be.errorf(req, "empty argument list")
		}
		return be.register(req, &args[0])
	}
	be.manual(args)
	return nil
}

func (be *Backend) register(req driver.Request, arg *int32) error {
	now := be.now()
	switch req {
	case driver.GetHCTR:
		*arg = be.reg.hctr
		be.printf("%v: 0x%x", req, *arg)
	case driver.SetHCTR:
		be.reg.hctr = *arg
		be.printf("%v: 0x%x", req, *arg)
	case driver.GetHSTR:
		*arg = be.hstr(now)
		be.printf("%v: 0x%x", req, *arg)
	case driver.GetProgress:
		*arg = be.readoutProgress(now)
		be.printf("%v: %d", req, *arg)
	case driver.SetHCVR:
		be.reg.hcvr = *arg
		*arg = be.vector(*arg)
	case driver.PCIDownload:
		be.printf("%v", req)
	case driver.PCIDownloadWait:
		*arg = int32(sdsu.DON)
		be.printf("%v: %v", req, sdsu.DON)
	default:
		return be.errorf(req, "unknown request")
	}
	return nil
}

func (be *Backend) vector(code int32) int32 {
	v, ok := vectors[code]
	if !ok {
		be.printf("%v: %v -> %v", driver.SetHCVR, driver.VectorName(code), sdsu.ERR)
		return int32(sdsu.ERR)
	}
	reply := int32(v.reply)
	if v.handle != nil {
		reply = v.handle(be)
	}
	be.printf("%v: %s -> %s", driver.SetHCVR, v.name, replyString(reply))
	return reply
}

func (be *Backend) manual(args []int32) {
	if len(args) < 2 {
		be.printf("%v: short transaction %x -> %v", driver.Command, args, sdsu.ERR)
		args[0] = int32(sdsu.ERR)
		return
	}

	var (
		board = sdsu.Board((args[0] >> 8) & 0xff)
		argc  = int(args[0]&0xff) - 2
		cmd   = sdsu.Word(args[1])
	)
	reply := func() int32 {
		if !board.Valid() {
			be.msg.Printf("%v: invalid board %v", cmd, board)
			return int32(sdsu.ERR)
		}
		if argc < 0 || argc+2 > len(args) {
			be.msg.Printf("%v: invalid argument count %d", cmd, argc)
			return int32(sdsu.ERR)
		}
		m, ok := manuals[cmd]
		if !ok {
			be.msg.Printf("%v: unknown command", cmd)
			return int32(sdsu.ERR)
		}
		if m.argc != argc {
			be.msg.Printf("%v: got %d arguments, want %d", cmd, argc, m.argc)
			return int32(sdsu.ERR)
		}
		if m.handle == nil {
			return int32(m.reply)
		}
		return m.handle(be, board, args[2:2+argc])
	}()

	be.printf("%v: %v %v %x -> %s", driver.Command, board, cmd, args[2:clamp(argc+2, 2, len(args))], replyString(reply))
	args[0] = reply
}

func replyString(v int32) string {
	if w := sdsu.Word(v); sdsu.IsSentinel(w) {
		return w.String()
	}
	return fmt.Sprintf("0x%x", v)
}

func clamp(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// elapsed returns the exposure time elapsed at now, discounting pauses.
func (be *Backend) elapsed(now time.Time) time.Duration {
	if !be.exp.active {
		return 0
	}
	d := now.Sub(be.exp.start) - be.exp.paused
	if be.exp.pausing {
		d -= now.Sub(be.exp.pauseAt)
	}
	return d
}

func (be *Backend) readout(now time.Time) bool {
	return be.exp.active && be.elapsed(now) > be.exp.length
}

func (be *Backend) hstr(now time.Time) int32 {
	hstr := be.reg.hstr &^ driver.HSTRStatusMask
	if be.readout(now) {
		return hstr | driver.HSTRReadout
	}
	return hstr | driver.HSTRIdle
}

func (be *Backend) readoutProgress(now time.Time) int32 {
	if !be.readout(now) {
		be.progress = 0
		return be.progress
	}
	be.progress += ProgressStep
	if be.image != nil && int(be.progress) >= len(be.image) {
		be.progress = int32(len(be.image))
		be.stopExposure()
	}
	return be.progress
}

func (be *Backend) stopExposure() {
	be.exp.active = false
	be.exp.pausing = false
	be.exp.paused = 0
}

func (be *Backend) reset() {
	be.stopExposure()
	be.exp.length = 0
	be.progress = 0
	be.reg.hctr = 0
	if be.wheel != nil {
		be.wheel.abort(be.now())
	}
}

func (be *Backend) printf(format string, args ...interface{}) {
	fmt.Fprintf(be.w, format+"\n", args...)
}

func (be *Backend) errorf(req driver.Request, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	be.printf("%v: error: %s", req, msg)
	return &sdsu.Error{
		Op:   fmt.Sprintf("text: %v", req),
		Kind: sdsu.ErrTransport,
		Err:  fmt.Errorf("%s: %w", msg, unix.ENOTTY),
	}
}
