// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap gives access to a memory-mapped region of a device node,
// e.g. the image buffer of the SDSU PCI interface board.
package mmap // import "github.com/go-lpc/sdsu/internal/mmap"

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// Handle is a memory-mapped region.
type Handle struct {
	data []byte
}

// Map maps size bytes of the file descriptor fd, shared and read/write.
func Map(fd uintptr, size int) (*Handle, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mmap: invalid size %d", size)
	}
	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %d bytes: %w", size, err)
	}
	h := &Handle{data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// Close unmaps the region.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	data := h.data
	h.data = nil
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(data)
}

// Len returns the length of the mapped region.
func (h *Handle) Len() int {
	return len(h.data)
}

// Bytes returns the mapped region. The slice is only valid until Close.
func (h *Handle) Bytes() []byte {
	if h == nil {
		return nil
	}
	return h.data
}

var _ io.Closer = (*Handle)(nil)
