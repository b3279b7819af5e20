// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctl implements the control commands of an SDSU controller
// setup, and a JSON-over-TCP server and client to run them remotely.
//
// Requests are JSON objects {"name": "tdl", "args": {"board": "tim", "data": 66}},
// replies are {"msg": "ok", "value": 66} or {"msg": "<error>"}.
package ctl // import "github.com/go-lpc/sdsu/ctl"

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/dsp"
	"github.com/go-lpc/sdsu/exposure"
	"github.com/go-lpc/sdsu/fw"
)

// Request is a control command.
type Request struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Args are the arguments of a control command.
type Args struct {
	Board    string `json:"board,omitempty"`
	Space    string `json:"space,omitempty"`
	Addr     int32  `json:"addr,omitempty"`
	Data     int32  `json:"data,omitempty"`
	Length   int64  `json:"length,omitempty"` // exposure length in ms
	Delay    int64  `json:"delay,omitempty"`  // exposure start delay in ms
	Position int    `json:"position,omitempty"`
}

// Reply is the result of a control command.
type Reply struct {
	Msg    string `json:"msg"`
	Value  *int64 `json:"value,omitempty"`
	Status string `json:"status,omitempty"`
}

// Err returns the error carried by the reply, if any.
func (rep Reply) Err() error {
	if rep.Msg == "ok" {
		return nil
	}
	return fmt.Errorf("ctl: %s", rep.Msg)
}

func (rep Reply) String() string {
	o := new(strings.Builder)
	o.WriteString(rep.Msg)
	if rep.Value != nil {
		fmt.Fprintf(o, " value=%d (0x%x)", *rep.Value, *rep.Value)
	}
	if rep.Status != "" {
		fmt.Fprintf(o, " status=%s", rep.Status)
	}
	return o.String()
}

func okReply(v ...int64) Reply {
	rep := Reply{Msg: "ok"}
	if len(v) > 0 {
		rep.Value = &v[0]
	}
	return rep
}

type command struct {
	help   string
	params []string // positional parameters of the command line form
	locked bool     // serialized with other locked commands
	run    func(h *Handler, args Args) (Reply, error)
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"tdl": {
			help:   "test the data link of a board",
			params: []string{"board", "data"},
			locked: true,
			run: func(h *Handler, args Args) (Reply, error) {
				board, err := sdsu.ParseBoard(args.Board)
				if err != nil {
					return Reply{}, err
				}
				v, err := h.dsp.TestDataLink(board, args.Data)
				return okReply(int64(v)), err
			},
		},
		"rdm": {
			help:   "read a memory word",
			params: []string{"board", "space", "addr"},
			locked: true,
			run: func(h *Handler, args Args) (Reply, error) {
				board, space, err := parseLocation(args)
				if err != nil {
					return Reply{}, err
				}
				v, err := h.dsp.ReadMemory(board, space, args.Addr)
				return okReply(int64(v)), err
			},
		},
		"wrm": {
			help:   "write a memory word",
			params: []string{"board", "space", "addr", "data"},
			locked: true,
			run: func(h *Handler, args Args) (Reply, error) {
				board, space, err := parseLocation(args)
				if err != nil {
					return Reply{}, err
				}
				return okReply(), h.dsp.WriteMemory(board, space, args.Addr, args.Data)
			},
		},
		"rcc": {
			help:   "read the controller configuration word",
			locked: true,
			run: func(h *Handler, _ Args) (Reply, error) {
				v, err := h.dsp.ReadControllerConfig()
				return okReply(int64(v)), err
			},
		},
		"reset": {
			help:   "reset the controller",
			locked: true,
			run: func(h *Handler, _ Args) (Reply, error) {
				err := h.dsp.ResetController()
				if err == nil {
					h.dsp.Exposure().SetStatus(exposure.None)
				}
				return okReply(), err
			},
		},
		"expose": {
			help:   "start an exposure of length ms, after delay ms",
			params: []string{"length", "delay"},
			locked: true,
			run:    (*Handler).expose,
		},
		"abort": {
			help: "abort the exposure",
			run: func(h *Handler, _ Args) (Reply, error) {
				h.dsp.Abort()
				switch h.dsp.Exposure().Status() {
				case exposure.Expose, exposure.PreReadout, exposure.Readout:
					err := h.dsp.AbortExposure()
					if err != nil {
						return Reply{}, err
					}
					h.dsp.Exposure().SetStatus(exposure.None)
				}
				return okReply(), nil
			},
		},
		"elapsed": {
			help: "show the elapsed exposure time in ms",
			run: func(h *Handler, _ Args) (Reply, error) {
				d, err := h.dsp.ReadElapsedTime()
				return okReply(d.Milliseconds()), err
			},
		},
		"status": {
			help: "show the host status register and exposure status",
			run: func(h *Handler, _ Args) (Reply, error) {
				hstr, err := h.dsp.HSTR()
				if err != nil {
					return Reply{}, err
				}
				rep := okReply(int64(hstr))
				rep.Status = h.dsp.Exposure().Status().String()
				return rep, nil
			},
		},
		"fw-reset": {
			help:   "reset the filter wheel",
			locked: true,
			run: func(h *Handler, _ Args) (Reply, error) {
				w, err := h.wheel()
				if err != nil {
					return Reply{}, err
				}
				err = w.Reset()
				return okReply(int64(w.Position())), err
			},
		},
		"fw-move": {
			help:   "move the filter wheel",
			params: []string{"position"},
			locked: true,
			run: func(h *Handler, args Args) (Reply, error) {
				w, err := h.wheel()
				if err != nil {
					return Reply{}, err
				}
				err = w.Move(args.Position)
				return okReply(int64(w.Position())), err
			},
		},
		"fw-abort": {
			help: "abort the filter wheel operation",
			run: func(h *Handler, _ Args) (Reply, error) {
				w, err := h.wheel()
				if err != nil {
					return Reply{}, err
				}
				return okReply(), w.Abort()
			},
		},
		"fw-status": {
			help: "show the filter wheel position and status",
			run: func(h *Handler, _ Args) (Reply, error) {
				w, err := h.wheel()
				if err != nil {
					return Reply{}, err
				}
				rep := okReply(int64(w.Position()))
				rep.Status = w.Status().String()
				return rep, nil
			},
		},
	}
}

// Commands returns the sorted names of the control commands.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the command line form and help of the command name.
func Usage(name string) string {
	cmd, ok := commands[name]
	if !ok {
		return ""
	}
	form := name
	for _, p := range cmd.params {
		form += " <" + p + ">"
	}
	return fmt.Sprintf("%-28s %s", form, cmd.help)
}

// ParseLine parses the command line form of a request, e.g.
// "rdm util y 0x20" or "fw-move 3".
func ParseLine(line string) (string, Args, error) {
	var (
		args   Args
		fields = strings.Fields(line)
	)
	if len(fields) == 0 {
		return "", args, fmt.Errorf("ctl: empty command")
	}
	name := strings.ToLower(fields[0])
	cmd, ok := commands[name]
	if !ok {
		return name, args, fmt.Errorf("ctl: unknown command %q", name)
	}
	if len(fields)-1 > len(cmd.params) {
		return name, args, fmt.Errorf("ctl: too many arguments for %q", name)
	}
	for i, v := range fields[1:] {
		var err error
		switch p := cmd.params[i]; p {
		case "board":
			args.Board = v
		case "space":
			args.Space = v
		case "addr":
			args.Addr, err = parseInt32(v)
		case "data":
			args.Data, err = parseInt32(v)
		case "length":
			args.Length, err = strconv.ParseInt(v, 0, 64)
		case "delay":
			args.Delay, err = strconv.ParseInt(v, 0, 64)
		case "position":
			args.Position, err = strconv.Atoi(v)
		}
		if err != nil {
			return name, args, fmt.Errorf("ctl: could not parse %s of %q: %w", cmd.params[i], name, err)
		}
	}
	return name, args, nil
}

func parseInt32(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	return int32(v), err
}

func parseLocation(args Args) (sdsu.Board, sdsu.MemSpace, error) {
	board, err := sdsu.ParseBoard(args.Board)
	if err != nil {
		return 0, 0, err
	}
	space, err := sdsu.ParseMemSpace(args.Space)
	if err != nil {
		return 0, 0, err
	}
	return board, space, nil
}

// Handler runs control commands against one controller and its
// optional filter wheel.
type Handler struct {
	msg *log.Logger
	mu  sync.Mutex
	dsp *dsp.Controller
	fw  *fw.Wheel
	now func() time.Time

	onErr func(name string, err error)
}

// NewHandler returns a handler for the controller c and the wheel w,
// which may be nil.
func NewHandler(c *dsp.Controller, w *fw.Wheel, msg *log.Logger) *Handler {
	if msg == nil {
		msg = log.New(io.Discard, "ctl: ", 0)
	}
	return &Handler{
		msg: msg,
		dsp: c,
		fw:  w,
		now: time.Now,
	}
}

func (h *Handler) wheel() (*fw.Wheel, error) {
	if h.fw == nil {
		return nil, &sdsu.Error{Op: "ctl: filter wheel", Kind: sdsu.ErrNotReady}
	}
	return h.fw, nil
}

// OnError registers f to be called, outside the command lock, with
// the name and the error of every failed command.
func (h *Handler) OnError(f func(name string, err error)) {
	h.onErr = f
}

// Do runs the request req.
func (h *Handler) Do(req Request) Reply {
	var args Args
	if len(req.Args) > 0 && string(req.Args) != "null" {
		err := json.Unmarshal(req.Args, &args)
		if err != nil {
			h.msg.Printf("could not decode %q payload: %+v", req.Name, err)
			return errReply(fmt.Errorf("could not decode %q payload: %w", req.Name, err))
		}
	}
	return h.Run(req.Name, args)
}

// Run runs the command name with args.
func (h *Handler) Run(name string, args Args) Reply {
	rep, err := h.Exec(name, args)
	if err != nil {
		return errReply(err)
	}
	return rep
}

// Exec runs the command name with args, and returns the failure of
// the command as an error.
func (h *Handler) Exec(name string, args Args) (Reply, error) {
	cmd, ok := commands[strings.ToLower(name)]
	if !ok {
		h.msg.Printf("unknown command name=%q", name)
		return Reply{}, sdsu.Errorf("ctl", sdsu.ErrInvalidArg, "unknown command %q", name)
	}

	rep, err := h.exec(cmd, args)
	if err != nil {
		h.msg.Printf("could not run %q: %+v", name, err)
		if h.onErr != nil {
			h.onErr(strings.ToLower(name), err)
		}
		return Reply{}, err
	}
	return rep, nil
}

func (h *Handler) exec(cmd command, args Args) (Reply, error) {
	if cmd.locked {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	return cmd.run(h, args)
}

func errReply(err error) Reply {
	return Reply{Msg: fmt.Sprintf("%+v", err)}
}

func (h *Handler) expose(args Args) (Reply, error) {
	if args.Length < 0 || args.Delay < 0 {
		return Reply{}, sdsu.Errorf("ctl: expose", sdsu.ErrInvalidArg, "invalid length=%d or delay=%d", args.Length, args.Delay)
	}
	length := time.Duration(args.Length) * time.Millisecond

	err := h.dsp.SetExposureTime(length)
	if err != nil {
		return Reply{}, err
	}

	var start time.Time
	if args.Delay > 0 {
		start = h.now().Add(time.Duration(args.Delay) * time.Millisecond)
	}

	exp := h.dsp.Exposure()
	exp.SetLength(length)
	exp.SetStartTime(start)

	h.dsp.ClearAbort()
	err = h.dsp.StartExposure()
	if err != nil {
		return Reply{}, err
	}
	rep := okReply()
	rep.Status = exp.Status().String()
	return rep, nil
}
