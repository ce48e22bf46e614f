// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp4728

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// UpdateMode is the UDAC bit of the multi, single and sequential write
// commands.
type UpdateMode byte

const (
	// UpdateDeferred latches the input registers and waits until every channel
	// of the transaction is received.
	UpdateDeferred UpdateMode = 0
	// UpdateImmediate updates the output as soon as its channel is received.
	UpdateImmediate UpdateMode = 1
)

func (u UpdateMode) String() string {
	switch u {
	case UpdateDeferred:
		return "deferred"
	case UpdateImmediate:
		return "immediate"
	}
	return fmt.Sprintf("UpdateMode(%d)", byte(u))
}

func checkUpdateMode(u UpdateMode) error {
	if u != UpdateDeferred && u != UpdateImmediate {
		return fmt.Errorf("%w %d", ErrInvalidUpdateMode, u)
	}
	return nil
}

// prepare recomputes every channel and reports the ones in chs that cannot
// be encoded.
func (c *Channels) prepare(chs ...int) error {
	var errs [NumChannels]error
	for i := range c.ch {
		errs[i] = c.ch[i].update()
	}
	for _, ch := range chs {
		if errs[ch] != nil {
			return fmt.Errorf("channel %d: %w", ch, errs[ch])
		}
	}
	return nil
}

// EncodeFast returns the fast write frame for the four channels. Fast write
// carries the power down mode and the code only; the reference and gain
// already latched in the device are left untouched.
func (c *Channels) EncodeFast() ([]byte, error) {
	if err := c.prepare(0, 1, 2, 3); err != nil {
		return nil, err
	}
	w := make([]byte, 0, 2*NumChannels)
	for i := range c.ch {
		w = append(w, c.ch[i].fastByte(), c.ch[i].dataByte())
	}
	return w, nil
}

// EncodeMulti returns the multi write frame for the selected channels, in
// ascending order. Only the input registers are written.
func (c *Channels) EncodeMulti(mode UpdateMode, chs ...int) ([]byte, error) {
	if len(chs) == 0 {
		return nil, ErrNoChannelsSelected
	}
	if err := checkUpdateMode(mode); err != nil {
		return nil, err
	}
	var selected [NumChannels]bool
	for _, ch := range chs {
		if err := checkChannel(ch); err != nil {
			return nil, err
		}
		selected[ch] = true
	}
	sorted := make([]int, 0, NumChannels)
	for ch, ok := range selected {
		if ok {
			sorted = append(sorted, ch)
		}
	}
	if err := c.prepare(sorted...); err != nil {
		return nil, err
	}
	w := make([]byte, 0, 3*len(sorted))
	for _, ch := range sorted {
		w = append(w, cmdMultiWrite|byte(ch)<<1|byte(mode), c.ch[ch].configByte(), c.ch[ch].dataByte())
	}
	return w, nil
}

// EncodeSingle returns the single write frame for channel ch. The device
// stores the channel in both the input register and EEPROM.
func (c *Channels) EncodeSingle(ch int, mode UpdateMode) ([]byte, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	if err := checkUpdateMode(mode); err != nil {
		return nil, err
	}
	if err := c.prepare(ch); err != nil {
		return nil, err
	}
	return []byte{cmdSingleWrite | byte(ch)<<1 | byte(mode), c.ch[ch].configByte(), c.ch[ch].dataByte()}, nil
}

// EncodeSequential returns the sequential write frame for channels start to
// 3. The device stores them in both the input registers and EEPROM. Only the
// first group carries the command byte.
func (c *Channels) EncodeSequential(start int, mode UpdateMode) ([]byte, error) {
	if err := checkChannel(start); err != nil {
		return nil, err
	}
	if err := checkUpdateMode(mode); err != nil {
		return nil, err
	}
	chs := make([]int, 0, NumChannels)
	for ch := start; ch < NumChannels; ch++ {
		chs = append(chs, ch)
	}
	if err := c.prepare(chs...); err != nil {
		return nil, err
	}
	w := make([]byte, 0, 1+2*len(chs))
	w = append(w, cmdSeqWrite|byte(start)<<1|byte(mode))
	for _, ch := range chs {
		w = append(w, c.ch[ch].configByte(), c.ch[ch].dataByte())
	}
	return w, nil
}

// EncodeReferences returns the single byte command that sets the reference
// of the four channels at once.
func (c *Channels) EncodeReferences() []byte {
	b := cmdVrefWrite
	for i := range c.ch {
		b |= byte(c.ch[i].Reference&1) << (3 - i)
	}
	return []byte{b}
}

// EncodeGains returns the single byte command that sets the gain of the four
// channels at once.
func (c *Channels) EncodeGains() []byte {
	b := cmdGainWrite
	for i := range c.ch {
		b |= byte(c.ch[i].Gain&1) << (3 - i)
	}
	return []byte{b}
}

// EncodePowerDown returns the two byte command that sets the power down mode
// of the four channels at once.
func (c *Channels) EncodePowerDown() []byte {
	return []byte{
		cmdPowerDownWrite | byte(c.ch[0].PDMode&pdMask)<<2 | byte(c.ch[1].PDMode&pdMask),
		byte(c.ch[2].PDMode&pdMask)<<6 | byte(c.ch[3].PDMode&pdMask)<<4,
	}
}

// Register is the decoded content of one channel register, either the input
// register or its EEPROM copy.
type Register struct {
	// Ready is false while an EEPROM write is in progress.
	Ready     bool
	POR       bool
	Reference Reference
	PDMode    PDMode
	Gain      Gain
	Code      uint16
}

// FullScale returns the output voltage for a code of 4095, given the VDD
// voltage used by the external reference.
func (r Register) FullScale(externalVCC physic.ElectricPotential) physic.ElectricPotential {
	if r.Reference == RefExternal {
		return externalVCC
	}
	return InternalRef * physic.ElectricPotential(r.Gain+1)
}

// Voltage returns the output voltage the register programs.
func (r Register) Voltage(externalVCC physic.ElectricPotential) physic.ElectricPotential {
	return r.FullScale(externalVCC) * physic.ElectricPotential(r.Code) / MaxCode
}

func (r Register) String() string {
	return fmt.Sprintf("VREF=%s PD=%s GAIN=%s DAC=0x%03x", r.Reference, r.PDMode, r.Gain, r.Code)
}

// Registers is a decoded register readback.
type Registers struct {
	Current [NumChannels]Register
	EEPROM  [NumChannels]Register
}

// Busy returns true if the device reported an EEPROM write in progress.
func (r *Registers) Busy() bool {
	for i := range r.Current {
		if !r.Current[i].Ready || !r.EEPROM[i].Ready {
			return true
		}
	}
	return false
}

func (r *Registers) String() string {
	s := ""
	for i := range r.Current {
		s += fmt.Sprintf("Channel %d, %s\n", i, r.Current[i])
	}
	for i := range r.EEPROM {
		s += fmt.Sprintf("EEPROM Channel %d, %s\n", i, r.EEPROM[i])
	}
	return s
}

// DecodeRegisters decodes the 24 bytes read back from the device. Each
// channel takes 6 bytes: 3 for the input register followed by 3 for its
// EEPROM copy. Each group is a status byte, a config byte and a data byte.
func DecodeRegisters(raw []byte) (*Registers, error) {
	if len(raw) != RegistersSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedLength, len(raw), RegistersSize)
	}
	r := &Registers{}
	for ch := range NumChannels {
		pos := ch * 6
		r.Current[ch] = decodeRegister(raw[pos : pos+3])
		r.EEPROM[ch] = decodeRegister(raw[pos+3 : pos+6])
	}
	return r, nil
}

func decodeRegister(b []byte) Register {
	return Register{
		Ready:     b[0]&busyFlag != 0,
		POR:       b[0]&porFlag != 0,
		Reference: Reference(b[1]>>7&1),
		PDMode:    PDMode(b[1]>>5&pdMask),
		Gain:      Gain(b[1]>>4&1),
		Code:      uint16(b[1]&0x0f)<<8 | uint16(b[2]),
	}
}
