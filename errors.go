// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdsu

import (
	"errors"
	"fmt"
)

// Kind classifies a failed operation. Kind values are stable: upper
// layers (e.g. the camera control software) key on their Code.
type Kind int

const (
	ErrInvalidArg    Kind = 1 // board, space, address, data or position out of range
	ErrNotReady      Kind = 2 // nil, unopened or closed handle, unknown device type
	ErrTransport     Kind = 3 // open, ioctl or mmap failure
	ErrProtocol      Kind = 4 // ERR or TOUT reply, or unexpected reply
	ErrExposurePhase Kind = 5 // utility board access during a forbidden exposure phase
	ErrTimeout       Kind = 6 // operation did not complete in time
	ErrVerification  Kind = 7 // firmware error code or sensor mismatch
	ErrAborted       Kind = 8 // cooperative abort
)

func (k Kind) Error() string {
	switch k {
	case ErrInvalidArg:
		return "invalid argument"
	case ErrNotReady:
		return "device not ready"
	case ErrTransport:
		return "transport failure"
	case ErrProtocol:
		return "protocol failure"
	case ErrExposurePhase:
		return "utility board access forbidden during exposure phase"
	case ErrTimeout:
		return "timeout"
	case ErrVerification:
		return "verification failure"
	case ErrAborted:
		return "aborted"
	}
	return fmt.Sprintf("sdsu error kind %d", int(k))
}

// Code returns the stable numeric code of k.
func (k Kind) Code() int { return int(k) }

// Error describes a failed operation.
type Error struct {
	Op   string // operation, e.g. "dsp: RDM"
	Kind Kind
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// Errorf returns an *Error of kind k for operation op, whose cause is
// formatted from format and args (%w is honoured).
func Errorf(op string, k Kind, format string, args ...interface{}) error {
	return &Error{Op: op, Kind: k, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error (or Kind) in err's chain,
// and 0 if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return 0
}
