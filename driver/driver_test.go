// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-lpc/sdsu"
)

const (
	fakeType  DeviceType = 100
	otherType DeviceType = 101
)

type fakeBackend struct {
	opened   string
	closeErr error
	reqs     []Request
	buf      []byte
}

func (be *fakeBackend) Open(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}
	be.opened = path
	return nil
}

func (be *fakeBackend) MemoryMap(size int) error {
	be.buf = make([]byte, size)
	return nil
}

func (be *fakeBackend) MemoryUnmap() error {
	be.buf = nil
	return nil
}

func (be *fakeBackend) Command(req Request, arg *int32) error {
	be.reqs = append(be.reqs, req)
	*arg = int32(req)
	return nil
}

func (be *fakeBackend) CommandList(req Request, args []int32) error {
	be.reqs = append(be.reqs, req)
	args[0] = int32(sdsu.DON)
	return nil
}

func (be *fakeBackend) Type() DeviceType   { return fakeType }
func (be *fakeBackend) ReplyData() []byte { return be.buf }
func (be *fakeBackend) Close() error      { return be.closeErr }

var _ Backend = (*fakeBackend)(nil)

func init() {
	Register(fakeType, "fake", func() Backend { return new(fakeBackend) })
	Register(otherType, "other", func() Backend { return new(otherBackend) })
}

func TestRegistry(t *testing.T) {
	typ, err := ParseType("fake")
	if err != nil {
		t.Fatalf("could not parse device type: %+v", err)
	}
	if typ != fakeType {
		t.Fatalf("invalid device type: got=%v, want=%v", typ, fakeType)
	}
	if got, want := typ.String(), "fake"; got != want {
		t.Fatalf("invalid name: got=%q, want=%q", got, want)
	}

	_, err = ParseType("not-there")
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error: %+v", err)
	}

	found := false
	for _, typ := range Types() {
		if typ == fakeType {
			found = true
		}
	}
	if !found {
		t.Fatalf("fake device type not listed in %v", Types())
	}

	func() {
		defer func() {
			if e := recover(); e == nil {
				t.Fatalf("expected a panic on duplicate registration")
			}
		}()
		Register(fakeType, "fake", func() Backend { return new(fakeBackend) })
	}()
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open(DeviceType(42), "/dev/null")
	if !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = OpenWith(DeviceType(42), new(fakeBackend), "/dev/null")
	if !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = OpenWith(fakeType, nil, "/dev/null")
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error: %+v", err)
	}

	_, err = Open(fakeType, "")
	if err == nil {
		t.Fatalf("expected an error opening an empty path")
	}
}

type otherBackend struct {
	fakeBackend
}

func (be *otherBackend) Type() DeviceType { return otherType }

func TestOpenTypeMismatch(t *testing.T) {
	be := new(otherBackend)
	_, err := OpenWith(fakeType, be, "/dev/fake0")
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error: %+v", err)
	}
	if be.opened != "" {
		t.Fatalf("mismatched backend should not be opened (path=%q)", be.opened)
	}

	h, err := OpenWith(otherType, be, "/dev/fake0")
	if err != nil {
		t.Fatalf("could not open handle: %+v", err)
	}
	if got, want := h.Type(), otherType; got != want {
		t.Fatalf("invalid type: got=%v, want=%v", got, want)
	}
}

func TestHandle(t *testing.T) {
	be := new(fakeBackend)
	h, err := OpenWith(fakeType, be, "/dev/fake0")
	if err != nil {
		t.Fatalf("could not open handle: %+v", err)
	}

	if got, want := h.Type(), fakeType; got != want {
		t.Fatalf("invalid type: got=%v, want=%v", got, want)
	}
	if got, want := h.String(), "fake:/dev/fake0 (open)"; got != want {
		t.Fatalf("invalid string: got=%q, want=%q", got, want)
	}
	if be.opened != "/dev/fake0" {
		t.Fatalf("backend not opened: %q", be.opened)
	}

	var arg int32
	err = h.Command(GetHSTR, &arg)
	if err != nil {
		t.Fatalf("could not issue command: %+v", err)
	}
	if arg != int32(GetHSTR) {
		t.Fatalf("invalid reply: got=%d", arg)
	}

	err = h.Command(GetHSTR, nil)
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error: %+v", err)
	}

	buf := Pad(0x203, int32(sdsu.TDL), 0x42)
	err = h.CommandList(Command, buf[:])
	if err != nil {
		t.Fatalf("could not issue command list: %+v", err)
	}
	if buf[0] != int32(sdsu.DON) {
		t.Fatalf("invalid reply: %v", sdsu.Word(buf[0]))
	}

	err = h.CommandList(Command, make([]int32, ArgCount+1))
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error: %+v", err)
	}

	err = h.MemoryMap(0)
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error: %+v", err)
	}
	err = h.MemoryMap(16)
	if err != nil {
		t.Fatalf("could not map: %+v", err)
	}
	if got, want := len(h.ReplyData()), 16; got != want {
		t.Fatalf("invalid reply data: got=%d, want=%d", got, want)
	}
	err = h.MemoryUnmap()
	if err != nil {
		t.Fatalf("could not unmap: %+v", err)
	}

	be.closeErr = fmt.Errorf("busy")
	err = h.Close()
	if err == nil {
		t.Fatalf("expected a close error")
	}
	if err := h.Command(GetHSTR, &arg); err != nil {
		t.Fatalf("handle should still be usable after a failed close: %+v", err)
	}

	be.closeErr = nil
	err = h.Close()
	if err != nil {
		t.Fatalf("could not close handle: %+v", err)
	}

	err = h.Command(GetHSTR, &arg)
	if !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}
	err = h.Close()
	if !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}
	if h.ReplyData() != nil {
		t.Fatalf("closed handle should have no reply data")
	}
}

func TestNilHandle(t *testing.T) {
	var h *Handle
	var arg int32
	if err := h.Command(GetHCTR, &arg); !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}
	if got, want := h.String(), "<nil>"; got != want {
		t.Fatalf("invalid string: got=%q, want=%q", got, want)
	}
}

func TestPad(t *testing.T) {
	buf := Pad(1, 2)
	want := [ArgCount]int32{1, 2, -1, -1, -1, -1}
	if buf != want {
		t.Fatalf("invalid padding: got=%v, want=%v", buf, want)
	}
}

func TestReadout(t *testing.T) {
	if !Readout(HSTRReadout | 0x3) {
		t.Fatalf("readout bits not detected")
	}
	if Readout(HSTRIdle) {
		t.Fatalf("idle should not be readout")
	}
}
