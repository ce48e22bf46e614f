// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package mcp4728

import (
	"errors"

	"periph.io/x/conn/v3/i2c"
)

// Transport is the block oriented bus the device is reached through.
//
// WriteBlock sends cmd followed by data in a single transaction. ReadBlock
// reads n bytes starting at register reg.
type Transport interface {
	WriteBlock(cmd byte, data []byte) error
	ReadBlock(reg byte, n int) ([]byte, error)
}

var errRegister = errors.New("mcp4728: reads always start at channel A")

// i2cTransport implements Transport over a periph I²C device.
type i2cTransport struct {
	d i2c.Dev
}

func (t *i2cTransport) WriteBlock(cmd byte, data []byte) error {
	w := make([]byte, 0, 1+len(data))
	w = append(w, cmd)
	w = append(w, data...)
	return t.d.Tx(w, nil)
}

// ReadBlock reads n bytes. The MCP4728 has no register pointer: a read
// always returns the registers from channel A on, so reg must be 0.
func (t *i2cTransport) ReadBlock(reg byte, n int) ([]byte, error) {
	if reg != 0 {
		return nil, errRegister
	}
	r := make([]byte, n)
	if err := t.d.Tx(nil, r); err != nil {
		return nil, err
	}
	return r, nil
}
