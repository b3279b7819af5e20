// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import "fmt"

// ArgCount is the fixed width of the argument array of a request.
// Unused slots hold -1.
const ArgCount = 6

// Request is a register-level request code, as understood by the PCI
// device driver ioctl interface.
type Request uint

const (
	GetHCTR         Request = 0x01 // read host control register
	GetProgress     Request = 0x02 // read image readout progress
	GetHSTR         Request = 0x04 // read host status register
	SetHCTR         Request = 0x11 // write host control register
	SetHCVR         Request = 0x12 // write host command vector register, reply in the same slot
	PCIDownload     Request = 0x13 // prepare for PCI boot code download
	PCIDownloadWait Request = 0x14 // wait for PCI boot code download to start
	Command         Request = 0x15 // manual command carrier
)

func (req Request) String() string {
	switch req {
	case GetHCTR:
		return "GET_HCTR"
	case GetProgress:
		return "GET_PROGRESS"
	case GetHSTR:
		return "GET_HSTR"
	case SetHCTR:
		return "SET_HCTR"
	case SetHCVR:
		return "SET_HCVR"
	case PCIDownload:
		return "PCI_DOWNLOAD"
	case PCIDownloadWait:
		return "PCI_DOWNLOAD_WAIT"
	case Command:
		return "COMMAND"
	}
	return fmt.Sprintf("Request(0x%x)", uint(req))
}

// Host command vectors, written with SetHCVR.
const (
	ClearReply      int32 = 0x8075
	PCIPCReset      int32 = 0x8077
	AbortReadout    int32 = 0x8079
	ResetController int32 = 0x87
	SetBiasVoltages int32 = 0x8089
)

// VectorName returns the name of the host command vector v.
func VectorName(v int32) string {
	switch v {
	case ClearReply:
		return "CLEAR_REPLY_MEMORY"
	case PCIPCReset:
		return "PCI_PC_RESET"
	case AbortReadout:
		return "ABORT_READOUT"
	case ResetController:
		return "RESET_CONTROLLER"
	case SetBiasVoltages:
		return "SET_BIAS_VOLTAGES"
	}
	return fmt.Sprintf("HCVR(0x%x)", v)
}

// Host status register layout.
const (
	HSTRStatusMask int32 = 0x38     // bits 3-5 carry the interface board state
	HSTRIdle       int32 = 0x0 << 3 // no transfer in progress
	HSTRReadout    int32 = 0x5 << 3 // image readout in progress
)

// Readout reports whether the host status register hstr indicates an
// image readout.
func Readout(hstr int32) bool {
	return hstr&HSTRStatusMask == HSTRReadout
}

// Pad returns a fixed-width argument array holding args, with unused
// slots set to -1.
func Pad(args ...int32) [ArgCount]int32 {
	var buf [ArgCount]int32
	for i := range buf {
		buf[i] = -1
	}
	copy(buf[:], args)
	return buf
}
