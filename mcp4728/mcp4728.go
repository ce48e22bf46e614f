// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package mcp4728 provides a driver for the Microchip MCP4728 quad 12-bit
// Digital to Analog converter with EEPROM.
//
// The driver keeps the pending configuration of the four outputs in memory.
// Setters only validate and update that configuration; nothing is sent to
// the device until one of the write methods is called. The write methods
// differ in what they transmit and where the device stores it:
//
//	FastWrite        codes and power down of all channels, input registers
//	MultiWrite       any subset of channels, input registers
//	SingleWrite      one channel, input register and EEPROM
//	SequentialWrite  channels N to 3, input registers and EEPROM
//
// After SingleWrite or SequentialWrite the device is busy programming its
// EEPROM; call WaitEEPROM before the next command.
//
// # Datasheet
//
// https://ww1.microchip.com/downloads/en/DeviceDoc/22187E.pdf
package mcp4728

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

const (
	// InternalRef is the internal precision reference.
	InternalRef physic.ElectricPotential = 2048 * physic.MilliVolt
	// MaxExternalVCC is the highest VDD the device accepts.
	MaxExternalVCC physic.ElectricPotential = 5500 * physic.MilliVolt
	// NumChannels is the number of outputs, A to D.
	NumChannels = 4
	// RegistersSize is the length of a full register readback.
	RegistersSize = 6 * NumChannels
	// EEPROMWriteTime is the time the device needs to program its EEPROM
	// after a single or sequential write.
	EEPROMWriteTime = 50 * time.Millisecond

	stepCount = 1 << 12 // 12-bit D/A
	// MaxCode is the highest DAC code.
	MaxCode = stepCount - 1

	cmdMultiWrite     byte = 0x40
	cmdSeqWrite       byte = 0x50
	cmdSingleWrite    byte = 0x58
	cmdVrefWrite      byte = 0x80
	cmdGainWrite      byte = 0xC0
	cmdPowerDownWrite byte = 0xA0

	busyFlag = 0x80
	porFlag  = 0x40
	pdMask   = 0x03
)

var (
	ErrInvalidChannel       = errors.New("mcp4728: invalid channel")
	ErrOutOfRange           = errors.New("mcp4728: voltage out of range")
	ErrInvalidGain          = errors.New("mcp4728: invalid gain")
	ErrInvalidPowerDown     = errors.New("mcp4728: invalid power down mode")
	ErrInvalidReference     = errors.New("mcp4728: invalid reference")
	ErrVoltageExceedsSupply = errors.New("mcp4728: voltage exceeds full scale")
	ErrNoChannelsSelected   = errors.New("mcp4728: no channels selected")
	ErrInvalidUpdateMode    = errors.New("mcp4728: invalid update mode")
	ErrMalformedLength      = errors.New("mcp4728: malformed register readback")
)

// Opts holds the configuration options.
type Opts struct {
	// Addr is the I²C address. Only used by New.
	Addr uint16
	// ExternalVCC is the VDD voltage, used as reference by channels
	// configured for the external reference.
	ExternalVCC physic.ElectricPotential
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Addr:        0x60,
	ExternalVCC: 3300 * physic.MilliVolt,
}

// Dev represents an MCP4728 D/A converter.
type Dev struct {
	t    Transport
	name string
	ch   *Channels
	// persisted is the time of the last write that programs the EEPROM.
	persisted time.Time
}

// New returns a driver for an MCP4728 on the I²C bus b.
func New(b i2c.Bus, opts *Opts) (*Dev, error) {
	t := &i2cTransport{d: i2c.Dev{Bus: b, Addr: opts.Addr}}
	d, err := NewWithTransport(t, opts)
	if err != nil {
		return nil, err
	}
	d.name = fmt.Sprintf("MCP4728{%s}", &t.d)
	return d, nil
}

// NewWithTransport returns a driver that talks to the device through t.
func NewWithTransport(t Transport, opts *Opts) (*Dev, error) {
	ch, err := NewChannels(opts.ExternalVCC)
	if err != nil {
		return nil, err
	}
	return &Dev{t: t, name: "MCP4728", ch: ch}, nil
}

// String implements conn.Resource.
func (d *Dev) String() string {
	return d.name
}

// Halt implements conn.Resource. The outputs keep their value.
func (d *Dev) Halt() error {
	return nil
}

// Channel returns a copy of the pending configuration of channel ch.
func (d *Dev) Channel(ch int) (Channel, error) {
	return d.ch.Channel(ch)
}

// Recompute refreshes the derived values of every channel. See
// Channels.Recompute.
func (d *Dev) Recompute() error {
	return d.ch.Recompute()
}

// SetReference selects the reference of channel ch. Not sent until a write.
func (d *Dev) SetReference(ch int, ref Reference) error {
	return d.ch.SetReference(ch, ref)
}

// SetExternalVCC sets the VDD voltage of channel ch and switches it to the
// external reference. Not sent until a write.
func (d *Dev) SetExternalVCC(ch int, v physic.ElectricPotential) error {
	return d.ch.SetExternalVCC(ch, v)
}

// SetGain sets the gain of channel ch and switches it to the internal
// reference. Not sent until a write.
func (d *Dev) SetGain(ch int, g Gain) error {
	return d.ch.SetGain(ch, g)
}

// SetPowerDown sets the power down mode of channel ch. Not sent until a
// write.
func (d *Dev) SetPowerDown(ch int, m PDMode) error {
	return d.ch.SetPowerDown(ch, m)
}

// SetVoltage sets the output voltage of channel ch. Not sent until a write.
func (d *Dev) SetVoltage(ch int, v physic.ElectricPotential) error {
	return d.ch.SetVoltage(ch, v)
}

// FastWrite sends the code and power down mode of all four channels. The
// reference and gain of the device are unchanged.
func (d *Dev) FastWrite() error {
	w, err := d.ch.EncodeFast()
	if err != nil {
		return err
	}
	return d.write(w)
}

// MultiWrite sends the full configuration of the selected channels to the
// input registers.
func (d *Dev) MultiWrite(mode UpdateMode, chs ...int) error {
	w, err := d.ch.EncodeMulti(mode, chs...)
	if err != nil {
		return err
	}
	return d.write(w)
}

// SingleWrite sends the configuration of channel ch to its input register
// and EEPROM. Call WaitEEPROM before the next command.
func (d *Dev) SingleWrite(ch int, mode UpdateMode) error {
	w, err := d.ch.EncodeSingle(ch, mode)
	if err != nil {
		return err
	}
	return d.persist(w)
}

// SequentialWrite sends the configuration of channels start to 3 to the
// input registers and EEPROM. Call WaitEEPROM before the next command.
func (d *Dev) SequentialWrite(start int, mode UpdateMode) error {
	w, err := d.ch.EncodeSequential(start, mode)
	if err != nil {
		return err
	}
	return d.persist(w)
}

// WriteReferences sends the reference selection of the four channels.
func (d *Dev) WriteReferences() error {
	return d.write(d.ch.EncodeReferences())
}

// WriteGains sends the gain of the four channels.
func (d *Dev) WriteGains() error {
	return d.write(d.ch.EncodeGains())
}

// WritePowerDown sends the power down mode of the four channels.
func (d *Dev) WritePowerDown() error {
	return d.write(d.ch.EncodePowerDown())
}

// PowerOffAll powers down every output with the 500k pull down and saves
// that state to EEPROM, so the outputs also stay off after a power cycle.
// The channels are switched to the external reference at full scale. Call
// WaitEEPROM before the next command.
func (d *Dev) PowerOffAll() error {
	off, err := NewChannels(0)
	if err != nil {
		return err
	}
	for ch := range NumChannels {
		vcc := d.ch.ch[ch].ExternalVCC
		if err := off.SetGain(ch, Gain1x); err != nil {
			return err
		}
		if err := off.SetPowerDown(ch, PDMode500K); err != nil {
			return err
		}
		if err := off.SetExternalVCC(ch, vcc); err != nil {
			return err
		}
		if err := off.SetVoltage(ch, vcc); err != nil {
			return err
		}
	}
	w, err := off.EncodeSequential(0, UpdateDeferred)
	if err != nil {
		return err
	}
	if err := d.persist(w); err != nil {
		return err
	}
	*d.ch = *off
	return nil
}

// ReadRegisters reads back the input registers and EEPROM of the four
// channels.
func (d *Dev) ReadRegisters() (*Registers, error) {
	raw, err := d.t.ReadBlock(0, RegistersSize)
	if err != nil {
		return nil, fmt.Errorf("mcp4728: %w", err)
	}
	return DecodeRegisters(raw)
}

// WaitEEPROM blocks until the EEPROM write started by the last SingleWrite,
// SequentialWrite or PowerOffAll completed. It returns immediately if there
// was none.
func (d *Dev) WaitEEPROM() {
	if d.persisted.IsZero() {
		return
	}
	if left := EEPROMWriteTime - time.Since(d.persisted); left > 0 {
		time.Sleep(left)
	}
	d.persisted = time.Time{}
}

func (d *Dev) write(w []byte) error {
	if err := d.t.WriteBlock(w[0], w[1:]); err != nil {
		return fmt.Errorf("mcp4728: %w", err)
	}
	return nil
}

func (d *Dev) persist(w []byte) error {
	if err := d.write(w); err != nil {
		return err
	}
	d.persisted = time.Now()
	return nil
}

var _ conn.Resource = &Dev{}
