// Copyright 2021 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dac is a container for digital to analog converter drivers and
// the tools to inspect them.
//
// mcp4728 drives the Microchip MCP4728 quad 12-bit DAC. dacview renders its
// register readback to a terminal or to any display.Drawer.
package dac
