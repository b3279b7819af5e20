// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver routes device operations to the transport backend a
// handle was opened against.
//
// Backends register themselves with Register, usually from the init
// function of their package:
//
//	import _ "github.com/go-lpc/sdsu/driver/pci"
//
//	h, err := driver.Open(driver.PCI, "/dev/astropci0")
package driver // import "github.com/go-lpc/sdsu/driver"

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-lpc/sdsu"
)

// DeviceType identifies a transport backend.
type DeviceType int

const (
	PCI  DeviceType = 1 // SDSU PCI interface board
	Text DeviceType = 2 // register-level emulator
)

func (typ DeviceType) String() string {
	regMu.RLock()
	defer regMu.RUnlock()
	if e, ok := registry[typ]; ok {
		return e.name
	}
	return fmt.Sprintf("DeviceType(%d)", int(typ))
}

// Backend is a transport to the controller.
//
// Command and CommandList write the reply back into their arguments.
// Type reports the device type the backend implements.
type Backend interface {
	Type() DeviceType
	Open(path string) error
	MemoryMap(size int) error
	MemoryUnmap() error
	Command(req Request, arg *int32) error
	CommandList(req Request, args []int32) error
	ReplyData() []byte
	Close() error
}

type entry struct {
	name string
	new  func() Backend
}

var (
	regMu    sync.RWMutex
	registry = make(map[DeviceType]entry)
)

// Register makes a backend available under the device type typ.
// Register panics if typ is registered twice or if mk is nil.
func Register(typ DeviceType, name string, mk func() Backend) {
	regMu.Lock()
	defer regMu.Unlock()

	if mk == nil {
		panic("driver: Register backend is nil")
	}
	if _, dup := registry[typ]; dup {
		panic(fmt.Sprintf("driver: Register called twice for device type %d", int(typ)))
	}
	registry[typ] = entry{name: name, new: mk}
}

// Types returns the sorted list of registered device types.
func Types() []DeviceType {
	regMu.RLock()
	defer regMu.RUnlock()
	types := make([]DeviceType, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParseType returns the registered device type named name.
func ParseType(name string) (DeviceType, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	for typ, e := range registry {
		if e.name == name {
			return typ, nil
		}
	}
	return 0, sdsu.Errorf("driver: parse type", sdsu.ErrInvalidArg, "unknown device type %q", name)
}

func lookup(typ DeviceType) (entry, bool) {
	regMu.RLock()
	defer regMu.RUnlock()
	e, ok := registry[typ]
	return e, ok
}

// Handle is a connection to a controller through one backend.
// A Handle is not safe for concurrent use.
type Handle struct {
	typ  DeviceType
	path string
	be   Backend
}

// Open opens the device at path with a new backend of type typ.
func Open(typ DeviceType, path string) (*Handle, error) {
	e, ok := lookup(typ)
	if !ok {
		return nil, sdsu.Errorf("driver: open", sdsu.ErrNotReady, "unknown device type %d", int(typ))
	}
	return open(typ, e.new(), path)
}

// OpenWith opens the device at path with the already configured backend be.
// typ must be registered and be must be a backend of type typ.
func OpenWith(typ DeviceType, be Backend, path string) (*Handle, error) {
	if _, ok := lookup(typ); !ok {
		return nil, sdsu.Errorf("driver: open", sdsu.ErrNotReady, "unknown device type %d", int(typ))
	}
	if be == nil {
		return nil, sdsu.Errorf("driver: open", sdsu.ErrInvalidArg, "nil backend")
	}
	return open(typ, be, path)
}

func open(typ DeviceType, be Backend, path string) (*Handle, error) {
	if got := be.Type(); got != typ {
		return nil, sdsu.Errorf("driver: open", sdsu.ErrInvalidArg, "backend of type %v opened as %v", got, typ)
	}
	h := &Handle{typ: typ, path: path}
	err := be.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: could not open %s device %q: %w", typ, path, err)
	}
	h.be = be
	return h, nil
}

func (h *Handle) backend(op string) (Backend, error) {
	if h == nil || h.be == nil {
		return nil, &sdsu.Error{Op: "driver: " + op, Kind: sdsu.ErrNotReady}
	}
	return h.be, nil
}

// Type returns the device type of the handle.
func (h *Handle) Type() DeviceType { return h.typ }

func (h *Handle) String() string {
	if h == nil {
		return "<nil>"
	}
	state := "open"
	if h.be == nil {
		state = "closed"
	}
	return fmt.Sprintf("%s:%s (%s)", h.typ, h.path, state)
}

// MemoryMap maps an image buffer of size bytes.
func (h *Handle) MemoryMap(size int) error {
	be, err := h.backend("memory map")
	if err != nil {
		return err
	}
	if size <= 0 {
		return sdsu.Errorf("driver: memory map", sdsu.ErrInvalidArg, "invalid size %d", size)
	}
	return be.MemoryMap(size)
}

// MemoryUnmap releases the image buffer.
func (h *Handle) MemoryUnmap() error {
	be, err := h.backend("memory unmap")
	if err != nil {
		return err
	}
	return be.MemoryUnmap()
}

// Command issues the single-argument request req. The reply, if any,
// is written back into arg.
func (h *Handle) Command(req Request, arg *int32) error {
	be, err := h.backend("command")
	if err != nil {
		return err
	}
	if arg == nil {
		return sdsu.Errorf("driver: command", sdsu.ErrInvalidArg, "nil argument for %v", req)
	}
	return be.Command(req, arg)
}

// CommandList issues the multi-argument request req. Replies are written
// back into args.
func (h *Handle) CommandList(req Request, args []int32) error {
	be, err := h.backend("command list")
	if err != nil {
		return err
	}
	if len(args) == 0 || len(args) > ArgCount {
		return sdsu.Errorf("driver: command list", sdsu.ErrInvalidArg, "invalid argument count %d for %v", len(args), req)
	}
	return be.CommandList(req, args)
}

// ReplyData returns the image buffer, or nil when not mapped.
func (h *Handle) ReplyData() []byte {
	be, err := h.backend("reply data")
	if err != nil {
		return nil
	}
	return be.ReplyData()
}

// Close closes the backend. The handle stays usable if the backend
// could not be closed.
func (h *Handle) Close() error {
	be, err := h.backend("close")
	if err != nil {
		return err
	}
	err = be.Close()
	if err != nil {
		return fmt.Errorf("driver: could not close %s device %q: %w", h.typ, h.path, err)
	}
	h.be = nil
	return nil
}
