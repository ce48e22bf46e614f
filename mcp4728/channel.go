// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp4728

import (
	"encoding/json"
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Reference selects the voltage reference of a channel. The values match the
// VREF bit on the wire.
type Reference byte

const (
	// RefExternal uses VDD as the reference.
	RefExternal Reference = 0
	// RefInternal uses the 2.048V precision reference.
	RefInternal Reference = 1
)

func (r Reference) String() string {
	switch r {
	case RefExternal:
		return "external"
	case RefInternal:
		return "internal"
	}
	return fmt.Sprintf("Reference(%d)", byte(r))
}

// Gain is the output gain applied to the internal reference. It has no
// effect when the channel uses the external reference.
type Gain byte

const (
	Gain1x Gain = 0
	Gain2x Gain = 1
)

func (g Gain) String() string {
	switch g {
	case Gain1x:
		return "x1"
	case Gain2x:
		return "x2"
	}
	return fmt.Sprintf("Gain(%d)", byte(g))
}

// Channel PowerDown mode.
type PDMode byte

const (
	PDModeNormal PDMode = iota
	// The remaining values specify resistance value used to tie the output pin
	// to ground.
	PDMode1K
	PDMode100K
	PDMode500K
)

func (p PDMode) String() string {
	switch p {
	case PDModeNormal:
		return "normal"
	case PDMode1K:
		return "1k"
	case PDMode100K:
		return "100k"
	case PDMode500K:
		return "500k"
	}
	return fmt.Sprintf("PDMode(%d)", byte(p))
}

// Channel is the pending configuration of one DAC output along with the
// values derived from it. Channels returned by Channels.Channel are copies;
// use the setters to change the configuration.
type Channel struct {
	// Voltage is the requested output voltage.
	Voltage physic.ElectricPotential
	// ExternalVCC is the voltage on VDD. Only used with RefExternal.
	ExternalVCC physic.ElectricPotential
	Gain        Gain
	Reference   Reference
	PDMode      PDMode

	// VCC is the full scale voltage for the current reference and gain.
	VCC physic.ElectricPotential
	// Code is the 12 bit count sent to the DAC.
	Code uint16
}

// update refreshes VCC and Code. It returns an error when the requested
// voltage is above full scale; Code is then pinned at MaxCode.
func (c *Channel) update() error {
	if c.Reference == RefExternal {
		c.VCC = c.ExternalVCC
	} else {
		c.VCC = InternalRef * physic.ElectricPotential(c.Gain+1)
	}
	switch {
	case c.VCC <= 0 || c.Voltage <= 0:
		c.Code = 0
	case c.Voltage > c.VCC:
		c.Code = MaxCode
	default:
		// Integer nanovolts keep the floor exact; the product fits in int64 up
		// to ~2.2kV.
		c.Code = uint16(int64(c.Voltage) * MaxCode / int64(c.VCC))
	}
	if c.Voltage > c.VCC {
		return fmt.Errorf("%w: %s > %s", ErrVoltageExceedsSupply, c.Voltage, c.VCC)
	}
	return nil
}

// configByte is the second byte of a multi, single or sequential write.
func (c *Channel) configByte() byte {
	return byte(c.Reference&1)<<7 | byte(c.PDMode&pdMask)<<5 | byte(c.Gain&1)<<4 | byte(c.Code>>8)&0x0f
}

// fastByte is the first byte of a channel in a fast write. The two high bits
// are the fast write command (00).
func (c *Channel) fastByte() byte {
	return byte(c.PDMode&pdMask)<<4 | byte(c.Code>>8)&0x0f
}

func (c *Channel) dataByte() byte {
	return byte(c.Code)
}

// String returns a JSON representation of the channel.
func (c Channel) String() string {
	bytes, _ := json.Marshal(&c)
	return string(bytes)
}

// Channels holds the configuration of the four DAC outputs. The zero value
// is not usable; use NewChannels.
type Channels struct {
	ch [NumChannels]Channel
}

// NewChannels returns the power on configuration: 0V output, internal
// reference with gain x2, normal power mode and the given VDD for the
// external reference.
func NewChannels(externalVCC physic.ElectricPotential) (*Channels, error) {
	if externalVCC < 0 || externalVCC > MaxExternalVCC {
		return nil, fmt.Errorf("%w: %s", ErrOutOfRange, externalVCC)
	}
	c := &Channels{}
	for i := range c.ch {
		c.ch[i] = Channel{
			ExternalVCC: externalVCC,
			Gain:        Gain2x,
			Reference:   RefInternal,
			PDMode:      PDModeNormal,
		}
	}
	_ = c.Recompute()
	return c, nil
}

// Channel returns a copy of the configuration of channel ch.
func (c *Channels) Channel(ch int) (Channel, error) {
	if err := checkChannel(ch); err != nil {
		return Channel{}, err
	}
	return c.ch[ch], nil
}

// Recompute refreshes the derived values of every channel. It is safe to
// call any number of times. The returned error lists the channels whose
// voltage exceeds their full scale, which can happen when the reference or
// gain was lowered after the voltage was set.
func (c *Channels) Recompute() error {
	var errs []error
	for i := range c.ch {
		if err := c.ch[i].update(); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// SetReference selects the voltage reference of channel ch.
func (c *Channels) SetReference(ch int, ref Reference) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if ref != RefExternal && ref != RefInternal {
		return fmt.Errorf("%w %d", ErrInvalidReference, ref)
	}
	c.ch[ch].Reference = ref
	_ = c.Recompute()
	return nil
}

// SetExternalVCC sets the VDD voltage used as reference by channel ch and
// switches it to the external reference.
func (c *Channels) SetExternalVCC(ch int, v physic.ElectricPotential) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if v < 0 || v > MaxExternalVCC {
		return fmt.Errorf("%w: %s", ErrOutOfRange, v)
	}
	c.ch[ch].ExternalVCC = v
	c.ch[ch].Reference = RefExternal
	_ = c.Recompute()
	return nil
}

// SetGain sets the gain of channel ch and switches it to the internal
// reference.
func (c *Channels) SetGain(ch int, g Gain) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if g != Gain1x && g != Gain2x {
		return fmt.Errorf("%w %d", ErrInvalidGain, g)
	}
	c.ch[ch].Gain = g
	c.ch[ch].Reference = RefInternal
	_ = c.Recompute()
	return nil
}

// SetPowerDown sets the power down mode of channel ch.
func (c *Channels) SetPowerDown(ch int, m PDMode) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if m > PDMode500K {
		return fmt.Errorf("%w %d", ErrInvalidPowerDown, m)
	}
	c.ch[ch].PDMode = m
	_ = c.Recompute()
	return nil
}

// SetVoltage sets the output voltage of channel ch. The voltage is checked
// against the full scale of the channel as currently configured, so set the
// reference and gain first.
func (c *Channels) SetVoltage(ch int, v physic.ElectricPotential) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: %s", ErrOutOfRange, v)
	}
	if vcc := c.ch[ch].VCC; v > vcc {
		return fmt.Errorf("%w: %s > %s", ErrVoltageExceedsSupply, v, vcc)
	}
	c.ch[ch].Voltage = v
	_ = c.Recompute()
	return nil
}

func checkChannel(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("%w %d", ErrInvalidChannel, ch)
	}
	return nil
}
