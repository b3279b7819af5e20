// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package exposure holds the state of the current exposure, as seen by
// the DSP command engine.
package exposure // import "github.com/go-lpc/sdsu/exposure"

import (
	"fmt"
	"sync"
	"time"
)

// Status is the phase of an exposure.
type Status int32

const (
	None Status = iota
	WaitStart
	Clear
	Expose
	PreReadout
	Readout
	PostReadout
)

func (st Status) String() string {
	switch st {
	case None:
		return "none"
	case WaitStart:
		return "wait-start"
	case Clear:
		return "clear"
	case Expose:
		return "expose"
	case PreReadout:
		return "pre-readout"
	case Readout:
		return "readout"
	case PostReadout:
		return "post-readout"
	}
	return fmt.Sprintf("Status(%d)", int32(st))
}

// State is the exposure state shared between the exposure sequencer and
// the DSP command engine. State is safe for concurrent use.
type State struct {
	mu     sync.RWMutex
	status Status
	start  time.Time
	length time.Duration
}

// NewState returns an idle exposure state.
func NewState() *State {
	return &State{}
}

func (s *State) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *State) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// StartTime returns the requested start time of the exposure.
// The zero time means "start immediately".
func (s *State) StartTime() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.start
}

func (s *State) SetStartTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.start = t
}

// Length returns the requested exposure length.
func (s *State) Length() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.length
}

func (s *State) SetLength(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.length = d
}
