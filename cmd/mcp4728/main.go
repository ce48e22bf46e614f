// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// mcp4728 programs and reads back an MCP4728 quad DAC.
//
// Usage:
//
//	mcp4728 [flags] read
//	mcp4728 [flags] -ch A=1.6V -ch D=1.65V,ext fast
//	mcp4728 [flags] -ch B=0.5V,gain=1 multi B
//	mcp4728 [flags] -ch C=1V,pd=100k single C
//	mcp4728 [flags] seq B
//	mcp4728 [flags] poweroff
//
// single, seq and poweroff also program the EEPROM.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/GermanBionicSystems/dac/dacview"
	"github.com/GermanBionicSystems/dac/mcp4728"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// setting is the configuration of one channel given on the command line.
type setting struct {
	ch      int
	voltage physic.ElectricPotential
	ext     bool
	gain    mcp4728.Gain
	pd      mcp4728.PDMode
}

// settings implements flag.Value for the repeatable -ch flag.
type settings []setting

func (s *settings) String() string {
	var out []string
	for _, c := range *s {
		out = append(out, fmt.Sprintf("%c=%s", 'A'+c.ch, c.voltage))
	}
	return strings.Join(out, " ")
}

func (s *settings) Set(v string) error {
	c, err := parseSetting(v)
	if err != nil {
		return err
	}
	*s = append(*s, c)
	return nil
}

// parseSetting parses "<channel>=<voltage>[,ext][,gain=1|2][,pd=<mode>]".
func parseSetting(v string) (setting, error) {
	c := setting{gain: mcp4728.Gain2x}
	name, rest, ok := strings.Cut(v, "=")
	if !ok {
		return c, fmt.Errorf("expected <channel>=<voltage>, got %q", v)
	}
	ch, err := parseChannel(name)
	if err != nil {
		return c, err
	}
	c.ch = ch
	gain := false
	fields := strings.Split(rest, ",")
	if err := c.voltage.Set(fields[0]); err != nil {
		return c, err
	}
	for _, f := range fields[1:] {
		k, val, _ := strings.Cut(f, "=")
		switch k {
		case "ext":
			c.ext = true
		case "gain":
			gain = true
			switch val {
			case "1":
				c.gain = mcp4728.Gain1x
			case "2":
				c.gain = mcp4728.Gain2x
			default:
				return c, fmt.Errorf("invalid gain %q", val)
			}
		case "pd":
			m, err := parsePDMode(val)
			if err != nil {
				return c, err
			}
			c.pd = m
		default:
			return c, fmt.Errorf("unknown option %q", k)
		}
	}
	if c.ext && gain {
		return c, errors.New("gain only applies to the internal reference, drop ext")
	}
	return c, nil
}

// parseChannel accepts a channel letter A to D or its index 0 to 3.
func parseChannel(s string) (int, error) {
	if len(s) == 1 {
		if c := s[0] | 0x20; c >= 'a' && c < 'a'+mcp4728.NumChannels {
			return int(c - 'a'), nil
		}
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= mcp4728.NumChannels {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	return i, nil
}

func parsePDMode(s string) (mcp4728.PDMode, error) {
	for m := mcp4728.PDModeNormal; m <= mcp4728.PDMode500K; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid power down mode %q", s)
}

// apply loads the settings into the device model. The reference and gain are
// set before the voltage since the voltage is checked against full scale.
func apply(d *mcp4728.Dev, s settings, vcc physic.ElectricPotential) error {
	for _, c := range s {
		if c.ext {
			if err := d.SetExternalVCC(c.ch, vcc); err != nil {
				return err
			}
		} else if err := d.SetGain(c.ch, c.gain); err != nil {
			return err
		}
		if err := d.SetPowerDown(c.ch, c.pd); err != nil {
			return err
		}
		if err := d.SetVoltage(c.ch, c.voltage); err != nil {
			return fmt.Errorf("channel %c: %w", 'A'+c.ch, err)
		}
	}
	return nil
}

// run executes one command against d.
func run(d *mcp4728.Dev, cmd string, args []string, mode mcp4728.UpdateMode) (bool, error) {
	persisted := false
	switch cmd {
	case "read":
		if len(args) != 0 {
			return false, errors.New("read takes no argument")
		}
		return false, nil
	case "fast":
		if len(args) != 0 {
			return false, errors.New("fast takes no argument")
		}
		return false, d.FastWrite()
	case "multi":
		var chs []int
		for _, a := range args {
			ch, err := parseChannel(a)
			if err != nil {
				return false, err
			}
			chs = append(chs, ch)
		}
		return false, d.MultiWrite(mode, chs...)
	case "single", "seq":
		if len(args) != 1 {
			return false, fmt.Errorf("%s takes one channel", cmd)
		}
		ch, err := parseChannel(args[0])
		if err != nil {
			return false, err
		}
		if cmd == "single" {
			err = d.SingleWrite(ch, mode)
		} else {
			err = d.SequentialWrite(ch, mode)
		}
		persisted = err == nil
		return persisted, err
	case "poweroff":
		if len(args) != 0 {
			return false, errors.New("poweroff takes no argument")
		}
		err := d.PowerOffAll()
		return err == nil, err
	}
	return false, fmt.Errorf("unknown command %q", cmd)
}

// checkAddr returns addr as a 7 bit I²C address.
func checkAddr(addr uint) (uint16, error) {
	if addr > 0x7f {
		return 0, fmt.Errorf("invalid I²C address %#x", addr)
	}
	return uint16(addr), nil
}

// config is the device configuration collected from the flags.
type config struct {
	opts    mcp4728.Opts
	chs     settings
	mode    mcp4728.UpdateMode
	verbose bool
}

// execute runs cmd on the device reached through bus, then prints the
// readback to t unless t is nil.
func execute(bus i2c.Bus, cfg *config, cmd string, args []string, t *dacview.Term) error {
	if cfg.verbose {
		rec := &i2ctest.Record{Bus: bus}
		bus = rec
		defer func() {
			for _, op := range rec.Ops {
				log.Printf("0x%02x W:%#x R:%#x", op.Addr, op.W, op.R)
			}
		}()
	}
	d, err := mcp4728.New(bus, &cfg.opts)
	if err != nil {
		return err
	}
	log.Printf("using %s", d)
	if err := apply(d, cfg.chs, cfg.opts.ExternalVCC); err != nil {
		return err
	}
	persisted, err := run(d, cmd, args, cfg.mode)
	if err != nil {
		return err
	}
	if persisted {
		log.Printf("waiting for EEPROM")
		d.WaitEEPROM()
	}
	if t == nil {
		return nil
	}
	r, err := d.ReadRegisters()
	if err != nil {
		return err
	}
	return t.Show(r)
}

func mainImpl() error {
	busName := flag.String("b", "", "I²C bus to use")
	addr := flag.Uint("a", uint(mcp4728.DefaultOpts.Addr), "I²C address")
	cfg := config{opts: mcp4728.DefaultOpts, mode: mcp4728.UpdateImmediate}
	flag.Var(&cfg.opts.ExternalVCC, "vcc", "VDD voltage, used by channels on the external reference")
	flag.Var(&cfg.chs, "ch", "channel setting <channel>=<voltage>[,ext][,gain=1|2][,pd=normal|1k|100k|500k]; can be repeated")
	deferred := flag.Bool("defer", false, "latch the outputs on LDAC instead of immediately")
	show := flag.Bool("show", true, "print the registers after the command")
	width := flag.Int("w", dacview.DefaultOpts.Width, "width of the level bars")
	flag.BoolVar(&cfg.verbose, "v", false, "log the I²C transactions")
	flag.Parse()
	if !cfg.verbose {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.Lmicroseconds)
	if flag.NArg() == 0 {
		return errors.New("specify a command: read, fast, multi, single, seq or poweroff")
	}
	var err error
	if cfg.opts.Addr, err = checkAddr(*addr); err != nil {
		return err
	}
	if *deferred {
		cfg.mode = mcp4728.UpdateDeferred
	}

	var t *dacview.Term
	if *show {
		if t, err = dacview.NewTerm(&dacview.Opts{Width: *width, ExternalVCC: cfg.opts.ExternalVCC}); err != nil {
			return err
		}
		defer t.Halt()
	}

	if _, err := host.Init(); err != nil {
		return err
	}
	b, err := i2creg.Open(*busName)
	if err != nil {
		return err
	}
	defer b.Close()
	return execute(b, &cfg, flag.Arg(0), flag.Args()[1:], t)
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp4728: %s.\n", err)
		os.Exit(1)
	}
}
