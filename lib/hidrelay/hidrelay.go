// Package hidrelay drives USB HID relay boards (the dcttech "USBRelayN"
// family) as a channel matrix back end. Each board stands in for one bank.
package hidrelay

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"rafaelmartins.com/p/usbhid"
)

const (
	vendorID  = 0x16c0
	productID = 0x05df

	cmdOn  = 0xff
	cmdOff = 0xfd

	reportLen = 8
)

type board interface {
	SetFeatureReport(reportID byte, data []byte) error
	Close() error
}

// Driver latches the word written for the addressed bank and, when the
// matrix re-enables output, switches the relays on that bank's board that
// changed.
type Driver struct {
	mu      sync.Mutex
	boards  []board
	relays  int
	state   []uint8
	bank    int
	pending uint8
}

// Open claims every attached relay board, ordered by serial number so
// bank numbering is stable across restarts.
func Open(relays int) (*Driver, error) {
	devices, err := usbhid.Enumerate(func(dev *usbhid.Device) bool {
		return dev.VendorId() == vendorID && dev.ProductId() == productID
	})
	if err != nil {
		return nil, fmt.Errorf("hidrelay: enumerate: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("hidrelay: no relay board found")
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].SerialNumber() < devices[j].SerialNumber()
	})

	boards := make([]board, 0, len(devices))
	for _, dev := range devices {
		if err := dev.Open(true); err != nil {
			for _, b := range boards {
				b.Close()
			}
			return nil, fmt.Errorf("hidrelay: open %s: %w", dev.SerialNumber(), err)
		}
		boards = append(boards, dev)
	}
	return newDriver(boards, relays), nil
}

func newDriver(boards []board, relays int) *Driver {
	if relays <= 0 || relays > 8 {
		relays = 8
	}
	return &Driver{
		boards: boards,
		relays: relays,
		state:  make([]uint8, len(boards)),
	}
}

func (d *Driver) Boards() int {
	return len(d.boards)
}

func (d *Driver) Address(bank int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bank = bank
	return nil
}

func (d *Driver) Write(word uint8) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = word
	return nil
}

func (d *Driver) Enable(on bool) error {
	if !on {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bank < 0 || d.bank >= len(d.boards) {
		return nil
	}
	b := d.boards[d.bank]
	changed := d.state[d.bank] ^ d.pending
	for i := 0; i < d.relays; i++ {
		bit := uint8(1) << i
		if changed&bit == 0 {
			continue
		}
		if err := setRelay(b, i+1, d.pending&bit != 0); err != nil {
			return fmt.Errorf("hidrelay: bank %d relay %d: %w", d.bank, i+1, err)
		}
		d.state[d.bank] ^= bit
	}
	return nil
}

// Off switches every relay on every board off.
func (d *Driver) Off() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for n, b := range d.boards {
		for i := 0; i < d.relays; i++ {
			if err := setRelay(b, i+1, false); err != nil {
				errs = append(errs, err)
			}
		}
		d.state[n] = 0
	}
	return errors.Join(errs...)
}

func (d *Driver) Close() error {
	var errs []error
	for _, b := range d.boards {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func setRelay(b board, relay int, on bool) error {
	pl := make([]byte, reportLen)
	pl[0] = cmdOff
	if on {
		pl[0] = cmdOn
	}
	pl[1] = byte(relay)
	return b.SetFeatureReport(0, pl)
}
