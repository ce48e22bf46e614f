// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dacview

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/GermanBionicSystems/dac/mcp4728"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
)

var (
	errSize = errors.New("dacview: invalid image size")

	colorBackground = color.NRGBA{0, 0, 0, 255}
	colorText       = color.NRGBA{0xff, 0xff, 0xff, 255}
)

var font *truetype.Font

func init() {
	var err error
	if font, err = truetype.Parse(goregular.TTF); err != nil {
		panic(err)
	}
}

// Layout of a row, as fractions of the row height and the image width.
const (
	labelRatio = 1.0
	textRatio  = 0.3
	padRatio   = 0.15
)

// Render draws the live output of the four channels as horizontal level
// bars, one row per channel, with the channel letter on the left and the
// output voltage on the right.
func Render(r *mcp4728.Registers, w, h int, externalVCC physic.ElectricPotential) (image.Image, error) {
	if r == nil {
		return nil, errNil
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w %dx%d", errSize, w, h)
	}
	dc := gg.NewContext(w, h)
	dc.SetColor(colorBackground)
	dc.Clear()

	rowH := float64(h) / mcp4728.NumChannels
	pad := rowH * padRatio
	labelW := rowH * labelRatio
	textW := float64(w) * textRatio
	barX := labelW
	barW := float64(w) - labelW - textW
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: rowH * 0.6}))

	for ch, reg := range r.Current {
		y := float64(ch) * rowH
		if barW > 0 {
			dc.SetColor(colorEmpty)
			dc.DrawRectangle(barX, y+pad, barW, rowH-2*pad)
			dc.Fill()
			if reg.Code != 0 {
				dc.SetColor(levelColor(reg))
				dc.DrawRectangle(barX, y+pad, barW*float64(reg.Code)/mcp4728.MaxCode, rowH-2*pad)
				dc.Fill()
			}
		}
		dc.SetColor(colorText)
		dc.DrawStringAnchored(string(rune('A'+ch)), labelW/2, y+rowH/2, 0.5, 0.35)
		dc.DrawStringAnchored(reg.Voltage(externalVCC).String(), float64(w)-pad, y+rowH/2, 1, 0.35)
	}
	return dc.Image(), nil
}

// DrawTo renders the registers to fit d and draws the result.
func DrawTo(d display.Drawer, r *mcp4728.Registers, externalVCC physic.ElectricPotential) error {
	b := d.Bounds()
	img, err := Render(r, b.Dx(), b.Dy(), externalVCC)
	if err != nil {
		return err
	}
	return d.Draw(b, img, image.Point{})
}
