// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sdsu

import (
	"fmt"
	"strings"
)

// Word is a controller command word: up to 3 (4 for TOUT) packed ASCII
// bytes, most significant byte first.
type Word int32

// Mnemonic packs the ASCII mnemonic s into a command word.
func Mnemonic(s string) Word {
	var w Word
	for i := 0; i < len(s) && i < 4; i++ {
		w = w<<8 | Word(s[i])
	}
	return w
}

func (w Word) String() string {
	var (
		o = new(strings.Builder)
		v = uint32(w)
	)
	for shift := 24; shift >= 0; shift -= 8 {
		c := byte(v >> uint(shift))
		if c == 0 {
			continue
		}
		if c < ' ' || c > '~' {
			return fmt.Sprintf("0x%x", v)
		}
		o.WriteByte(c)
	}
	if o.Len() == 0 {
		return "0x0"
	}
	return o.String()
}

// Reply sentinels. They are never legitimate data replies.
var (
	DON  = Mnemonic("DON")  // done
	ERR  = Mnemonic("ERR")  // error
	SYR  = Mnemonic("SYR")  // system reset
	TOUT = Mnemonic("TOUT") // timeout
)

// IsSentinel returns whether w is one of the reserved reply words.
func IsSentinel(w Word) bool {
	switch w {
	case DON, ERR, SYR, TOUT:
		return true
	}
	return false
}

// Manual command mnemonics.
var (
	ABR = Mnemonic("ABR") // abort readout
	AEX = Mnemonic("AEX") // abort exposure
	CLR = Mnemonic("CLR") // clear array
	CSH = Mnemonic("CSH") // close shutter
	FWA = Mnemonic("FWA") // filter wheel abort
	FWM = Mnemonic("FWM") // filter wheel move
	FWR = Mnemonic("FWR") // filter wheel reset
	IDL = Mnemonic("IDL") // idle
	LDA = Mnemonic("LDA") // load application
	OSH = Mnemonic("OSH") // open shutter
	PEX = Mnemonic("PEX") // pause exposure
	POF = Mnemonic("POF") // power off
	PON = Mnemonic("PON") // power on
	RCC = Mnemonic("RCC") // read controller configuration
	RDM = Mnemonic("RDM") // read memory
	RET = Mnemonic("RET") // read elapsed exposure time
	REX = Mnemonic("REX") // resume exposure
	RST = Mnemonic("RST") // reset board
	SBV = Mnemonic("SBV") // set bias voltages
	SET = Mnemonic("SET") // set exposure time
	SEX = Mnemonic("SEX") // start exposure
	SGN = Mnemonic("SGN") // set gain
	SOS = Mnemonic("SOS") // set output source
	SSP = Mnemonic("SSP") // set subarray positions
	SSS = Mnemonic("SSS") // set subarray sizes
	STP = Mnemonic("STP") // stop idling
	TDL = Mnemonic("TDL") // test data link
	WRM = Mnemonic("WRM") // write memory
)

// Board identifies a DSP board of the controller.
type Board int32

const (
	Host      Board = 0
	Interface Board = 1
	Timing    Board = 2
	Utility   Board = 3
)

func (b Board) String() string {
	switch b {
	case Host:
		return "host"
	case Interface:
		return "interface"
	case Timing:
		return "timing"
	case Utility:
		return "utility"
	}
	return fmt.Sprintf("Board(%d)", int32(b))
}

// Valid returns whether manual commands can be addressed to b.
func (b Board) Valid() bool {
	return b == Interface || b == Timing || b == Utility
}

// MemSpace is a DSP memory space. A memory location is space|address.
type MemSpace int32

const (
	SpaceP MemSpace = 0x100000 // program memory
	SpaceX MemSpace = 0x200000
	SpaceY MemSpace = 0x400000
	SpaceR MemSpace = 0x800000 // ROM

	// MaxAddress is the largest addressable word within a memory space.
	MaxAddress = 0xffff
	// MaxData is the largest value a DSP data word can hold.
	MaxData = 0xffffff
)

func (s MemSpace) String() string {
	switch s {
	case SpaceP:
		return "P"
	case SpaceX:
		return "X"
	case SpaceY:
		return "Y"
	case SpaceR:
		return "R"
	}
	return fmt.Sprintf("MemSpace(0x%x)", int32(s))
}

// Valid returns whether s is one of the P, X, Y or R spaces.
func (s MemSpace) Valid() bool {
	switch s {
	case SpaceP, SpaceX, SpaceY, SpaceR:
		return true
	}
	return false
}

// Location returns the memory location word for address addr in space s.
func (s MemSpace) Location(addr int32) int32 {
	return int32(s) | addr
}

// SplitLocation splits a memory location word into its space and address.
func SplitLocation(loc int32) (MemSpace, int32) {
	return MemSpace(loc &^ MaxAddress), loc & MaxAddress
}

// ParseBoard parses a board name ("tim", "timing", "2", ...).
func ParseBoard(s string) (Board, error) {
	switch strings.ToLower(s) {
	case "host", "0":
		return Host, nil
	case "int", "interface", "pci", "1":
		return Interface, nil
	case "tim", "timing", "2":
		return Timing, nil
	case "util", "utility", "3":
		return Utility, nil
	}
	return 0, &Error{Op: "sdsu: parse board", Kind: ErrInvalidArg, Err: fmt.Errorf("unknown board %q", s)}
}

// ParseMemSpace parses a memory space name ("p", "x", "y" or "r").
func ParseMemSpace(s string) (MemSpace, error) {
	switch strings.ToLower(s) {
	case "p":
		return SpaceP, nil
	case "x":
		return SpaceX, nil
	case "y":
		return SpaceY, nil
	case "r":
		return SpaceR, nil
	}
	return 0, &Error{Op: "sdsu: parse memory space", Kind: ErrInvalidArg, Err: fmt.Errorf("unknown memory space %q", s)}
}
