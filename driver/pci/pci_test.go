// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/driver"
	"golang.org/x/sys/unix"
)

func fakeDevice(t *testing.T, size int) string {
	t.Helper()
	fname := filepath.Join(t.TempDir(), "astropci0")
	err := os.WriteFile(fname, make([]byte, size), 0644)
	if err != nil {
		t.Fatalf("could not create fake device: %+v", err)
	}
	return fname
}

func TestOpenMissing(t *testing.T) {
	_, err := driver.Open(driver.PCI, filepath.Join(t.TempDir(), "not-there"))
	if !errors.Is(err, sdsu.ErrTransport) {
		t.Fatalf("invalid error: %+v", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("OS error should be reachable: %+v", err)
	}
}

func TestBackend(t *testing.T) {
	fname := fakeDevice(t, 4096)
	h, err := driver.OpenWith(driver.PCI, New(), fname)
	if err != nil {
		t.Fatalf("could not open fake device: %+v", err)
	}
	defer h.Close()

	if got, want := h.Type().String(), "pci"; got != want {
		t.Fatalf("invalid device type: got=%q, want=%q", got, want)
	}

	if h.ReplyData() != nil {
		t.Fatalf("unmapped device should have no reply data")
	}

	err = h.MemoryMap(4096)
	if err != nil {
		t.Fatalf("could not map image buffer: %+v", err)
	}
	if got, want := len(h.ReplyData()), 4096; got != want {
		t.Fatalf("invalid image buffer size: got=%d, want=%d", got, want)
	}

	err = h.MemoryMap(4096)
	if !errors.Is(err, sdsu.ErrInvalidArg) {
		t.Fatalf("invalid error for a double map: %+v", err)
	}

	// a regular file does not implement the driver ioctls.
	arg := int32(0)
	err = h.Command(driver.GetHSTR, &arg)
	if !errors.Is(err, sdsu.ErrTransport) {
		t.Fatalf("invalid error: %+v", err)
	}
	if !errors.Is(err, unix.ENOTTY) {
		t.Fatalf("errno should be reachable: %+v", err)
	}

	args := driver.Pad(0x203, int32(sdsu.TDL), 0x42)
	err = h.CommandList(driver.Command, args[:3])
	if !errors.Is(err, sdsu.ErrTransport) {
		t.Fatalf("invalid error: %+v", err)
	}

	err = h.MemoryUnmap()
	if err != nil {
		t.Fatalf("could not unmap image buffer: %+v", err)
	}

	err = h.Close()
	if err != nil {
		t.Fatalf("could not close device: %+v", err)
	}
}

func TestNotOpen(t *testing.T) {
	be := New()
	if err := be.MemoryMap(16); !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}
	arg := int32(0)
	if err := be.Command(driver.GetHCTR, &arg); !errors.Is(err, sdsu.ErrNotReady) {
		t.Fatalf("invalid error: %+v", err)
	}
	if err := be.Close(); err != nil {
		t.Fatalf("closing an unopened backend should be a no-op: %+v", err)
	}
}
