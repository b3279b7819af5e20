// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dsp

import (
	"time"

	"github.com/go-lpc/sdsu"
	"github.com/go-lpc/sdsu/driver"
)

// ResetController resets the whole controller.
func (c *Controller) ResetController() error {
	return c.vector(driver.ResetController, int32(sdsu.SYR), true)
}

// PCIPCReset resets the program counter of the PCI interface board.
// It is not serialized with other transactions, so that a wedged
// transaction can be recovered.
func (c *Controller) PCIPCReset() error {
	return c.vector(driver.PCIPCReset, int32(sdsu.DON), false)
}

// AbortReadout aborts the current image readout.
// It is not serialized with other transactions.
func (c *Controller) AbortReadout() error {
	return c.vector(driver.AbortReadout, int32(sdsu.DON), false)
}

// SetBiasVoltages sends the bias voltages to the video boards.
func (c *Controller) SetBiasVoltages() error {
	return c.vector(driver.SetBiasVoltages, int32(sdsu.DON), true)
}

// ClearReply clears the reply memory of the interface board.
func (c *Controller) ClearReply() error {
	return c.vector(driver.ClearReply, int32(sdsu.DON), true)
}

// PCIDownload prepares the interface board for a boot code download.
// It does not wait for a reply and is not serialized.
func (c *Controller) PCIDownload() error {
	_, err := c.register(driver.PCIDownload, 0, false)
	return err
}

// PCIDownloadWait waits for the interface board to be ready for the
// boot code download.
func (c *Controller) PCIDownloadWait() error {
	reply, err := c.register(driver.PCIDownloadWait, 0, true)
	if err != nil {
		return err
	}
	_, err = CheckReply(reply, int32(sdsu.DON))
	return err
}

// HSTR returns the host status register.
func (c *Controller) HSTR() (int32, error) {
	return c.register(driver.GetHSTR, 0, true)
}

// HCTR returns the host control register.
func (c *Controller) HCTR() (int32, error) {
	return c.register(driver.GetHCTR, 0, true)
}

// SetHCTR writes the host control register.
func (c *Controller) SetHCTR(v int32) error {
	_, err := c.register(driver.SetHCTR, v, true)
	return err
}

// ReadoutProgress returns the number of bytes read out so far.
func (c *Controller) ReadoutProgress() (int32, error) {
	return c.register(driver.GetProgress, 0, true)
}

func (c *Controller) timing(cmd sdsu.Word, args ...int32) error {
	_, err := c.Manual(sdsu.Timing, cmd, int32(sdsu.DON), args...)
	return err
}

// AbortExposure aborts the current exposure.
func (c *Controller) AbortExposure() error { return c.timing(sdsu.AEX) }

// Clear clears the array.
func (c *Controller) Clear() error { return c.timing(sdsu.CLR) }

func (c *Controller) OpenShutter() error  { return c.timing(sdsu.OSH) }
func (c *Controller) CloseShutter() error { return c.timing(sdsu.CSH) }

// Idle makes the array clock continuously while not exposing.
func (c *Controller) Idle() error { return c.timing(sdsu.IDL) }

// StopIdling stops the idle clocking of the array.
func (c *Controller) StopIdling() error { return c.timing(sdsu.STP) }

func (c *Controller) PowerOn() error  { return c.timing(sdsu.PON) }
func (c *Controller) PowerOff() error { return c.timing(sdsu.POF) }

func (c *Controller) PauseExposure() error  { return c.timing(sdsu.PEX) }
func (c *Controller) ResumeExposure() error { return c.timing(sdsu.REX) }

// SetExposureTime sets the exposure length, with a millisecond resolution.
func (c *Controller) SetExposureTime(d time.Duration) error {
	ms := d / time.Millisecond
	if ms < 0 || ms > sdsu.MaxData {
		return sdsu.Errorf("dsp: SET", sdsu.ErrInvalidArg, "invalid exposure time %v", d)
	}
	return c.timing(sdsu.SET, int32(ms))
}

// ReadElapsedTime returns the elapsed exposure time.
func (c *Controller) ReadElapsedTime() (time.Duration, error) {
	err := c.checkPhase("dsp: RET", phaseRET)
	if err != nil {
		return 0, err
	}
	ms, err := c.Manual(sdsu.Timing, sdsu.RET, ActualValue)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// ReadControllerConfig returns the controller configuration word.
func (c *Controller) ReadControllerConfig() (int32, error) {
	return c.Manual(sdsu.Timing, sdsu.RCC, ActualValue)
}

func checkMemory(op string, board sdsu.Board, space sdsu.MemSpace, addr int32) error {
	switch {
	case !board.Valid():
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid board %v", board)
	case !space.Valid():
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid memory space %v", space)
	case addr < 0 || addr > sdsu.MaxAddress:
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid address 0x%x", addr)
	}
	return nil
}

// ReadMemory reads the word at addr in the memory space of board.
func (c *Controller) ReadMemory(board sdsu.Board, space sdsu.MemSpace, addr int32) (int32, error) {
	const op = "dsp: RDM"
	err := checkMemory(op, board, space, addr)
	if err != nil {
		return 0, err
	}
	err = c.checkUtility(op, board)
	if err != nil {
		return 0, err
	}
	return c.Manual(board, sdsu.RDM, ActualValue, space.Location(addr))
}

// WriteMemory writes data at addr in the memory space of board.
func (c *Controller) WriteMemory(board sdsu.Board, space sdsu.MemSpace, addr, data int32) error {
	const op = "dsp: WRM"
	err := checkMemory(op, board, space, addr)
	if err != nil {
		return err
	}
	if data < 0 || data > sdsu.MaxData {
		return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid data 0x%x", data)
	}
	err = c.checkUtility(op, board)
	if err != nil {
		return err
	}
	_, err = c.Manual(board, sdsu.WRM, int32(sdsu.DON), space.Location(addr), data)
	return err
}

// TestDataLink sends data to board, which must echo it back.
func (c *Controller) TestDataLink(board sdsu.Board, data int32) (int32, error) {
	const op = "dsp: TDL"
	switch {
	case !board.Valid():
		return 0, sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid board %v", board)
	case data < 0 || data > sdsu.MaxData:
		return 0, sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid data 0x%x", data)
	}
	err := c.checkUtility(op, board)
	if err != nil {
		return 0, err
	}
	return c.Manual(board, sdsu.TDL, data, data)
}

// Video processor gains.
const (
	Gain1  int32 = 0x1 // x1
	Gain2  int32 = 0x2 // x2
	Gain5  int32 = 0x5 // x4.75
	Gain10 int32 = 0xa // x9.5
)

// SetGain sets the video processor gain and integrator speed.
func (c *Controller) SetGain(gain int32, fast bool) error {
	switch gain {
	case Gain1, Gain2, Gain5, Gain10:
	default:
		return sdsu.Errorf("dsp: SGN", sdsu.ErrInvalidArg, "invalid gain 0x%x", gain)
	}
	speed := int32(0)
	if fast {
		speed = 1
	}
	return c.timing(sdsu.SGN, gain, speed)
}

// Output amplifiers, as understood by SOS.
var (
	AmpLeft  = sdsu.Mnemonic("__L")
	AmpRight = sdsu.Mnemonic("__R")
	AmpBoth  = sdsu.Mnemonic("_LR")
	AmpAll   = sdsu.Mnemonic("ALL")
)

// SetOutputSource selects the output amplifiers used for readout.
func (c *Controller) SetOutputSource(amp sdsu.Word) error {
	switch amp {
	case AmpLeft, AmpRight, AmpBoth, AmpAll:
	default:
		return sdsu.Errorf("dsp: SOS", sdsu.ErrInvalidArg, "invalid amplifier %v", amp)
	}
	return c.timing(sdsu.SOS, int32(amp))
}

func checkData(op string, vs ...int32) error {
	for _, v := range vs {
		if v < 0 || v > sdsu.MaxData {
			return sdsu.Errorf(op, sdsu.ErrInvalidArg, "invalid argument %d", v)
		}
	}
	return nil
}

// SetSubarraySizes sets the bias strip width and the size of the
// readout boxes.
func (c *Controller) SetSubarraySizes(biasWidth, boxCols, boxRows int32) error {
	err := checkData("dsp: SSS", biasWidth, boxCols, boxRows)
	if err != nil {
		return err
	}
	return c.timing(sdsu.SSS, biasWidth, boxCols, boxRows)
}

// SetSubarrayPositions sets the position of a readout box and of its
// bias strip.
func (c *Controller) SetSubarrayPositions(rowOffset, colOffset, biasOffset int32) error {
	err := checkData("dsp: SSP", rowOffset, colOffset, biasOffset)
	if err != nil {
		return err
	}
	return c.timing(sdsu.SSP, rowOffset, colOffset, biasOffset)
}

// Reset resets board, which replies SYR.
func (c *Controller) Reset(board sdsu.Board) error {
	_, err := c.Manual(board, sdsu.RST, int32(sdsu.SYR))
	return err
}

// FilterWheelReset starts a filter wheel reset.
func (c *Controller) FilterWheelReset() error {
	_, err := c.Manual(sdsu.Utility, sdsu.FWR, int32(sdsu.DON))
	return err
}

// FilterWheelMove starts a move of the filter wheel to pos.
func (c *Controller) FilterWheelMove(pos int) error {
	if pos < 0 || pos > sdsu.MaxData {
		return sdsu.Errorf("dsp: FWM", sdsu.ErrInvalidArg, "invalid position %d", pos)
	}
	_, err := c.Manual(sdsu.Utility, sdsu.FWM, int32(sdsu.DON), int32(pos))
	return err
}

// FilterWheelAbort aborts the filter wheel operation in progress.
func (c *Controller) FilterWheelAbort() error {
	_, err := c.Manual(sdsu.Utility, sdsu.FWA, int32(sdsu.DON))
	return err
}
