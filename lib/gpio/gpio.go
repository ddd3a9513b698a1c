// Package gpio drives the latch-and-decoder relay board from Raspberry Pi
// pins: eight data pins shared by every bank, three pins into a 3-to-8
// decoder selecting which bank's latch is clocked, and the decoder enable.
package gpio

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Default wiring of the latch board (wiringPi 0-7, 23-21, 24), as BCM names.
var (
	DefaultData    = []string{"GPIO17", "GPIO18", "GPIO27", "GPIO22", "GPIO23", "GPIO24", "GPIO25", "GPIO4"}
	DefaultAddress = []string{"GPIO13", "GPIO6", "GPIO5"}
	DefaultEnable  = "GPIO19"
)

type pin interface {
	Out(l gpio.Level) error
}

type Driver struct {
	data    [8]pin
	address [3]pin
	enable  pin
}

// Open initializes the host and looks up the pins by name. address is
// low bit first.
func Open(data, address []string, enable string) (*Driver, error) {
	if len(data) != 8 || len(address) != 3 {
		return nil, fmt.Errorf("gpio: want 8 data and 3 address pins, got %d and %d", len(data), len(address))
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: %w", err)
	}

	lookup := func(name string) (pin, error) {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio: no pin %q", name)
		}
		if err := p.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("gpio: %s: %w", name, err)
		}
		return p, nil
	}

	d := &Driver{}
	var err error
	for i, name := range data {
		if d.data[i], err = lookup(name); err != nil {
			return nil, err
		}
	}
	for i, name := range address {
		if d.address[i], err = lookup(name); err != nil {
			return nil, err
		}
	}
	if d.enable, err = lookup(enable); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Driver) Enable(on bool) error {
	return d.enable.Out(gpio.Level(on))
}

func (d *Driver) Address(bank int) error {
	for i, p := range d.address {
		if err := p.Out(gpio.Level(bank&(1<<i) != 0)); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Write(word uint8) error {
	for i, p := range d.data {
		if err := p.Out(gpio.Level(word&(1<<i) != 0)); err != nil {
			return err
		}
	}
	return nil
}
