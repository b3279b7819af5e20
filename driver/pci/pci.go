// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pci implements the transport backend for the SDSU PCI
// interface board, through the ioctl and mmap interface of its device
// driver.
//
// Importing the package registers the backend as driver.PCI.
package pci // import "github.com/go-lpc/sdsu/driver/pci"

import (
	"fmt"
	"io"
	"log"
	"os"
	"unsafe"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/driver"
	"github.com/go-lpc/sdsu/internal/mmap"
	"golang.org/x/sys/unix"
)

func init() {
	driver.Register(driver.PCI, "pci", func() driver.Backend { return New() })
}

// Backend is a PCI transport.
type Backend struct {
	msg *log.Logger
	f   *os.File
	mem *mmap.Handle
}

var _ driver.Backend = (*Backend)(nil)

// Option configures a PCI backend.
type Option func(*Backend)

// WithLogger sets the logger used to trace every device operation.
func WithLogger(msg *log.Logger) Option {
	return func(be *Backend) {
		be.msg = msg
	}
}

// New returns a PCI backend, ready to be opened with driver.OpenWith.
func New(opts ...Option) *Backend {
	be := &Backend{
		msg: log.New(io.Discard, "pci: ", 0),
	}
	for _, opt := range opts {
		opt(be)
	}
	return be
}

func (be *Backend) Open(path string) error {
	if be.f != nil {
		return sdsu.Errorf("pci: open", sdsu.ErrInvalidArg, "device %q already open", be.f.Name())
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return &sdsu.Error{Op: "pci: open", Kind: sdsu.ErrTransport, Err: err}
	}
	be.msg.Printf("opened %q (fd=%d)", path, f.Fd())
	be.f = f
	return nil
}

func (be *Backend) MemoryMap(size int) error {
	if be.f == nil {
		return &sdsu.Error{Op: "pci: memory map", Kind: sdsu.ErrNotReady}
	}
	if be.mem != nil {
		return sdsu.Errorf("pci: memory map", sdsu.ErrInvalidArg, "image buffer already mapped (%d bytes)", be.mem.Len())
	}
	mem, err := mmap.Map(be.f.Fd(), size)
	if err != nil {
		return &sdsu.Error{Op: "pci: memory map", Kind: sdsu.ErrTransport, Err: err}
	}
	be.msg.Printf("mapped %d bytes", size)
	be.mem = mem
	return nil
}

func (be *Backend) MemoryUnmap() error {
	if be.mem == nil {
		return nil
	}
	err := be.mem.Close()
	if err != nil {
		return &sdsu.Error{Op: "pci: memory unmap", Kind: sdsu.ErrTransport, Err: err}
	}
	be.msg.Printf("unmapped image buffer")
	be.mem = nil
	return nil
}

func (be *Backend) Command(req driver.Request, arg *int32) error {
	buf := driver.Pad(*arg)
	err := be.ioctl(req, &buf)
	if err != nil {
		return err
	}
	be.msg.Printf("%v: 0x%x -> 0x%x", req, *arg, buf[0])
	*arg = buf[0]
	return nil
}

func (be *Backend) CommandList(req driver.Request, args []int32) error {
	if len(args) > driver.ArgCount {
		return sdsu.Errorf("pci: ioctl", sdsu.ErrInvalidArg, "too many arguments (%d)", len(args))
	}
	buf := driver.Pad(args...)
	err := be.ioctl(req, &buf)
	if err != nil {
		return err
	}
	be.msg.Printf("%v: %x -> %x", req, args, buf[:len(args)])
	copy(args, buf[:])
	return nil
}

func (be *Backend) ioctl(req driver.Request, buf *[driver.ArgCount]int32) error {
	if be.f == nil {
		return &sdsu.Error{Op: "pci: ioctl", Kind: sdsu.ErrNotReady}
	}
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL, be.f.Fd(),
		uintptr(req), uintptr(unsafe.Pointer(&buf[0])),
	)
	if errno != 0 {
		be.msg.Printf("%v: ioctl failed: %v", req, errno)
		return &sdsu.Error{
			Op:   fmt.Sprintf("pci: ioctl %v", req),
			Kind: sdsu.ErrTransport,
			Err:  errno,
		}
	}
	return nil
}

func (be *Backend) Type() driver.DeviceType { return driver.PCI }

func (be *Backend) ReplyData() []byte {
	return be.mem.Bytes()
}

func (be *Backend) Close() error {
	if be.f == nil {
		return nil
	}
	err := be.MemoryUnmap()
	if err != nil {
		return err
	}
	err = be.f.Close()
	if err != nil {
		return &sdsu.Error{Op: "pci: close", Kind: sdsu.ErrTransport, Err: err}
	}
	be.msg.Printf("closed %q", be.f.Name())
	be.f = nil
	return nil
}
