// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dacview

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/GermanBionicSystems/dac/mcp4728"
	"periph.io/x/conn/v3/display"
)

func registers() *mcp4728.Registers {
	r := &mcp4728.Registers{}
	for i := range r.Current {
		r.Current[i] = mcp4728.Register{Ready: true, Reference: mcp4728.RefInternal, Gain: mcp4728.Gain2x}
		r.EEPROM[i] = r.Current[i]
	}
	r.Current[0].Code = mcp4728.MaxCode
	r.Current[2].Code = 0x800
	r.Current[2].PDMode = mcp4728.PDMode500K
	r.Current[3].Reference = mcp4728.RefExternal
	r.Current[3].Code = mcp4728.MaxCode
	return r
}

func TestTerm(t *testing.T) {
	buf := bytes.Buffer{}
	d, err := NewTermWriter(&buf, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.String(); s != "DACView" {
		t.Fatal(s)
	}
	r := registers()
	if err := d.Show(r); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Current\n",
		"EEPROM\n",
		"  A ",
		"  D ",
		"4.096V",
		"3.300V",
		"VREF=internal PD=500k GAIN=x2 DAC=0x800",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "in progress") {
		t.Errorf("unexpected busy line:\n%s", out)
	}
	if n := strings.Count(out, "\n"); n != 2+2*mcp4728.NumChannels {
		t.Errorf("got %d lines", n)
	}

	buf.Reset()
	r.EEPROM[1].Ready = false
	if err := d.Show(r); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), "EEPROM write in progress\n") {
		t.Errorf("missing busy line:\n%s", buf.String())
	}

	buf.Reset()
	if err := d.Halt(); err != nil {
		t.Fatal(err)
	}
	if s := buf.String(); s != "\033[0m" {
		t.Fatalf("%q", s)
	}
}

func TestTermErrors(t *testing.T) {
	if _, err := NewTermWriter(&bytes.Buffer{}, &Opts{}); !errors.Is(err, errWidth) {
		t.Fatalf("expected errWidth, got %v", err)
	}
	d, err := NewTermWriter(&bytes.Buffer{}, &DefaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Show(nil); !errors.Is(err, errNil) {
		t.Fatalf("expected errNil, got %v", err)
	}
}

func TestLevelColor(t *testing.T) {
	if c := levelColor(mcp4728.Register{}); c != (color.NRGBA{0, 255, 0x20, 255}) {
		t.Errorf("empty %v", c)
	}
	if c := levelColor(mcp4728.Register{Code: mcp4728.MaxCode}); c != (color.NRGBA{255, 0, 0x20, 255}) {
		t.Errorf("full %v", c)
	}
	if c := levelColor(mcp4728.Register{Code: mcp4728.MaxCode, PDMode: mcp4728.PDMode1K}); c != colorOff {
		t.Errorf("off %v", c)
	}
}

func TestRender(t *testing.T) {
	r := registers()
	img, err := Render(r, 200, 80, DefaultOpts.ExternalVCC)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b != image.Rect(0, 0, 200, 80) {
		t.Fatalf("bounds %v", b)
	}
	// Rows are 20 pixels high and bars span x=20 to x=140.
	data := []struct {
		x, y int
		want color.Color
	}{
		{80, 10, levelColor(r.Current[0])},
		{80, 30, colorEmpty},
		{50, 50, colorOff},
		{100, 50, colorEmpty},
		{100, 1, colorBackground},
	}
	for _, line := range data {
		if got := img.At(line.x, line.y); !near(got, line.want) {
			t.Errorf("(%d, %d) = %v, want %v", line.x, line.y, got, line.want)
		}
	}
}

func TestRenderErrors(t *testing.T) {
	if _, err := Render(registers(), 0, 10, 0); !errors.Is(err, errSize) {
		t.Errorf("expected errSize, got %v", err)
	}
	if _, err := Render(registers(), 10, -1, 0); !errors.Is(err, errSize) {
		t.Errorf("expected errSize, got %v", err)
	}
	if _, err := Render(nil, 10, 10, 0); !errors.Is(err, errNil) {
		t.Errorf("expected errNil, got %v", err)
	}
}

func TestDrawTo(t *testing.T) {
	d := &drawer{bounds: image.Rect(0, 0, 128, 64)}
	if err := DrawTo(d, registers(), DefaultOpts.ExternalVCC); err != nil {
		t.Fatal(err)
	}
	if d.img == nil || d.img.Bounds() != d.bounds || d.r != d.bounds {
		t.Fatalf("unexpected draw %v %v", d.r, d.img)
	}
	d = &drawer{}
	if err := DrawTo(d, registers(), 0); !errors.Is(err, errSize) {
		t.Fatalf("expected errSize, got %v", err)
	}
	if d.img != nil {
		t.Fatal("Draw called on error")
	}
}

//

type drawer struct {
	bounds image.Rectangle
	r      image.Rectangle
	img    image.Image
}

func (d *drawer) String() string          { return "drawer" }
func (d *drawer) Halt() error             { return nil }
func (d *drawer) ColorModel() color.Model { return color.RGBAModel }
func (d *drawer) Bounds() image.Rectangle { return d.bounds }

func (d *drawer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	d.r = r
	d.img = src
	return nil
}

var _ display.Drawer = &drawer{}

// near compares colors allowing for rounding in the rasterizer.
func near(a, b color.Color) bool {
	const tolerance = 0x300
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	for _, p := range [][2]uint32{{ar, br}, {ag, bg}, {ab, bb}, {aa, ba}} {
		if p[0] > p[1]+tolerance || p[1] > p[0]+tolerance {
			return false
		}
	}
	return true
}
