// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dacview renders an MCP4728 register readback for humans.
//
// Term prints one colored level bar per channel to a terminal using ANSI
// color codes. Render draws the same bars into an image, which DrawTo sends
// to any display.Drawer such as an OLED or e-paper panel.
package dacview

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/GermanBionicSystems/dac/mcp4728"
	"github.com/maruel/ansi256"
	"github.com/mattn/go-colorable"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// Opts represents the options available for rendering.
type Opts struct {
	// Width is the length of a level bar, in terminal cells.
	Width int
	// ExternalVCC is the VDD voltage, used to compute the output voltage of
	// channels on the external reference.
	ExternalVCC physic.ElectricPotential
	Palette     *ansi256.Palette

	_ struct{}
}

// DefaultOpts is the recommended default options.
var DefaultOpts = Opts{
	Width:       32,
	ExternalVCC: 3300 * physic.MilliVolt,
}

var (
	errWidth = errors.New("dacview: invalid width")
	errNil   = errors.New("dacview: no registers")
)

var (
	colorOff   = color.NRGBA{0x30, 0x30, 0x30, 255}
	colorEmpty = color.NRGBA{0x10, 0x10, 0x10, 255}
)

// Term prints register readbacks to a terminal.
type Term struct {
	w       io.Writer
	width   int
	vcc     physic.ElectricPotential
	palette ansi256.Palette

	buf bytes.Buffer
}

// NewTerm returns a Term that prints to stdout.
func NewTerm(opts *Opts) (*Term, error) {
	return NewTermWriter(colorable.NewColorableStdout(), opts)
}

// NewTermWriter returns a Term that prints to w.
func NewTermWriter(w io.Writer, opts *Opts) (*Term, error) {
	if opts.Width <= 0 {
		return nil, errWidth
	}
	p := opts.Palette
	if p == nil {
		p = ansi256.Default
	}
	return &Term{w: w, width: opts.Width, vcc: opts.ExternalVCC, palette: *p}, nil
}

func (t *Term) String() string {
	return "DACView"
}

// Halt implements conn.Resource.
//
// It resets the terminal colors.
func (t *Term) Halt() error {
	_, err := t.w.Write([]byte("\033[0m"))
	return err
}

// Show prints the input registers and the EEPROM of the four channels.
func (t *Term) Show(r *mcp4728.Registers) error {
	if r == nil {
		return errNil
	}
	// This code is designed to minimize the amount of memory allocated per call.
	t.buf.Reset()
	t.section("Current", r.Current[:])
	t.section("EEPROM", r.EEPROM[:])
	if r.Busy() {
		_, _ = t.buf.WriteString("EEPROM write in progress\n")
	}
	_, err := t.buf.WriteTo(t.w)
	return err
}

func (t *Term) section(title string, regs []mcp4728.Register) {
	_, _ = fmt.Fprintf(&t.buf, "%s\n", title)
	for ch, reg := range regs {
		_, _ = fmt.Fprintf(&t.buf, "  %c ", 'A'+ch)
		c := levelColor(reg)
		filled := (int(reg.Code)*t.width + mcp4728.MaxCode/2) / mcp4728.MaxCode
		for i := 0; i < t.width; i++ {
			if i < filled {
				_, _ = io.WriteString(&t.buf, t.palette.Block(c))
			} else {
				_, _ = io.WriteString(&t.buf, t.palette.Block(colorEmpty))
			}
		}
		_, _ = fmt.Fprintf(&t.buf, "\033[0m %8s  %s\n", reg.Voltage(t.vcc), reg)
	}
}

// levelColor returns the bar color of a register: green at 0 going to red at
// full scale, grey when the output is powered down.
func levelColor(reg mcp4728.Register) color.NRGBA {
	if reg.PDMode != mcp4728.PDModeNormal {
		return colorOff
	}
	f := int(reg.Code) * 255 / mcp4728.MaxCode
	return color.NRGBA{byte(f), byte(255 - f), 0x20, 255}
}

var _ conn.Resource = &Term{}
var _ fmt.Stringer = &Term{}
