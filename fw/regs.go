// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fw

import "github.com/go-lpc/sdsu"

// Utility board Y memory registers of the filter wheel firmware.
const (
	AddrStatus       int32 = 0x20 // status bits, see Bit*
	AddrErrorCode    int32 = 0x21 // non-zero when the last operation failed
	AddrLastPosition int32 = 0x22 // position reached by the last operation
	AddrProximity    int32 = 0x23 // expected proximity pattern of the target position
	AddrDigitalIn    int32 = 0x24 // live digital inputs
	AddrDigitalOut   int32 = 0x25 // live digital outputs
	AddrDebug        int32 = 0x26 // firmware debug word
)

// Board and MemSpace of the filter wheel registers.
const (
	Board = sdsu.Utility
	Space = sdsu.SpaceY
)

// Status register bits.
const (
	BitMoving      int32 = 1 << 0 // move in progress
	BitResetting   int32 = 1 << 1 // reset in progress
	BitLocatorsOut int32 = 1 << 2 // locators withdrawn
	BitMovingOut   int32 = 1 << 3 // leaving the current position
	BitMovingIn    int32 = 1 << 4 // entering the target position
	BitLocatorsIn  int32 = 1 << 5 // locators engaged
)

// ProximityMask selects the proximity sensor bits of the digital inputs.
const ProximityMask int32 = 0x3f
