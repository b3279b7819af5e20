// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap // import "github.com/go-lpc/sdsu/internal/mmap"

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNilHandle(t *testing.T) {
	var h *Handle

	err := h.Close()
	if !errors.Is(err, os.ErrInvalid) {
		t.Fatalf("invalid close error: %+v", err)
	}

	if h.Bytes() != nil {
		t.Fatalf("nil handle should have no bytes")
	}
}

func TestMap(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "dev.mem")
	err := os.WriteFile(fname, make([]byte, 4096), 0644)
	if err != nil {
		t.Fatalf("could not create fake device: %+v", err)
	}

	f, err := os.OpenFile(fname, os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("could not open fake device: %+v", err)
	}
	defer f.Close()

	_, err = Map(f.Fd(), 0)
	if err == nil {
		t.Fatalf("expected an error for a zero-sized map")
	}

	h, err := Map(f.Fd(), 4096)
	if err != nil {
		t.Fatalf("could not mmap fake device: %+v", err)
	}
	defer h.Close()

	if got, want := h.Len(), 4096; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}
	copy(h.Bytes()[10:], []byte{0xca, 0xfe})

	err = h.Close()
	if err != nil {
		t.Fatalf("could not unmap: %+v", err)
	}
	if h.Bytes() != nil || h.Len() != 0 {
		t.Fatalf("closed handle should have no bytes")
	}
	err = h.Close()
	if err != nil {
		t.Fatalf("error closing closed handle: %+v", err)
	}

	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read back fake device: %+v", err)
	}
	if raw[10] != 0xca || raw[11] != 0xfe {
		t.Fatalf("invalid content: got=%x", raw[10:12])
	}
}
