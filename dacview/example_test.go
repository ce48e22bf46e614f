// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dacview_test

import (
	"log"

	"github.com/GermanBionicSystems/dac/dacview"
	"github.com/GermanBionicSystems/dac/mcp4728"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

func Example() {
	// Make sure periph is initialized.
	if _, err := host.Init(); err != nil {
		log.Fatal(err)
	}
	b, err := i2creg.Open("")
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()

	dev, err := mcp4728.New(b, &mcp4728.DefaultOpts)
	if err != nil {
		log.Fatal(err)
	}
	r, err := dev.ReadRegisters()
	if err != nil {
		log.Fatal(err)
	}

	t, err := dacview.NewTerm(&dacview.DefaultOpts)
	if err != nil {
		log.Fatal(err)
	}
	defer t.Halt()
	if err := t.Show(r); err != nil {
		log.Fatal(err)
	}
}
