// Package matrix holds channel levels for a bank-multiplexed relay output and
// the mirror edges that copy one channel's changes onto others.
//
// Channels are numbered from 1. Channel c lives in bank (c-1)/8 at bit
// (c-1)%8. Only one bank may be addressed at a time, so every write goes
// through the same sequence: disable, address (if it changed), data, enable.
package matrix

import (
	"errors"
	"fmt"
	"log"
)

const (
	BankSize    = 8
	MaxBanks    = 8
	MaxChannels = BankSize * MaxBanks
)

var ErrChannelRange = errors.New("matrix: channel out of range")

// Driver is the pin-level side of the output: a 3-bit bank address, an
// enable line and an 8-bit data word latched by the addressed bank.
type Driver interface {
	Enable(on bool) error
	Address(bank int) error
	Write(word uint8) error
}

type Matrix struct {
	drv      Driver
	channels int
	log      *log.Logger
	debug    bool

	levels   [MaxChannels]bool
	words    [MaxBanks]uint8
	masters  [MaxChannels]int
	lastBank int
}

func New(drv Driver, channels int, logger *log.Logger) (*Matrix, error) {
	if channels < 1 || channels > MaxChannels {
		return nil, fmt.Errorf("matrix: %d channels, want 1..%d", channels, MaxChannels)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Matrix{drv: drv, channels: channels, log: logger, lastBank: -1}, nil
}

// SetDebug logs every decoder and data write.
func (m *Matrix) SetDebug(on bool) {
	m.debug = on
}

func (m *Matrix) Channels() int {
	return m.channels
}

func (m *Matrix) Banks() int {
	return (m.channels + BankSize - 1) / BankSize
}

func (m *Matrix) check(ch int) error {
	if ch < 1 || ch > m.channels {
		return fmt.Errorf("%w: %d not in 1..%d", ErrChannelRange, ch, m.channels)
	}
	return nil
}

// Set drives ch to level, then propagates the level to every channel
// mirroring ch. The mirror graph must be acyclic; a cycle recurses without
// bound.
func (m *Matrix) Set(ch int, on bool) error {
	if err := m.check(ch); err != nil {
		return err
	}
	if err := m.write(ch, on); err != nil {
		return err
	}
	return m.propagate(ch, on)
}

func (m *Matrix) write(ch int, on bool) error {
	bank := (ch - 1) / BankSize
	bit := uint((ch - 1) % BankSize)

	m.levels[ch-1] = on
	if on {
		m.words[bank] |= 1 << bit
	} else {
		m.words[bank] &^= 1 << bit
	}
	return m.latch(bank)
}

// latch drives the in-memory word of bank onto the hardware.
func (m *Matrix) latch(bank int) error {
	if err := m.drv.Enable(false); err != nil {
		return fmt.Errorf("matrix: disable: %w", err)
	}
	if bank != m.lastBank {
		if err := m.drv.Address(bank); err != nil {
			return fmt.Errorf("matrix: address bank %d: %w", bank, err)
		}
		if m.debug {
			m.log.Printf("Decoder set to: %03b", bank)
		}
		// Only remember the bank once the address lines actually hold it.
		m.lastBank = bank
	}

	if err := m.drv.Write(m.words[bank]); err != nil {
		return fmt.Errorf("matrix: write bank %d: %w", bank, err)
	}
	if m.debug {
		m.log.Printf("Bank %d set to %08b", bank, m.words[bank])
	}
	if err := m.drv.Enable(true); err != nil {
		return fmt.Errorf("matrix: enable: %w", err)
	}
	return nil
}

func (m *Matrix) Level(ch int) bool {
	if m.check(ch) != nil {
		return false
	}
	return m.levels[ch-1]
}

// Word returns the in-memory state vector of bank, bit 0 being the lowest
// channel of the bank.
func (m *Matrix) Word(bank int) uint8 {
	if bank < 0 || bank >= MaxBanks {
		return 0
	}
	return m.words[bank]
}

// Reset clears every level and mirror edge and latches a zero word into
// each bank that still has a channel on.
func (m *Matrix) Reset() error {
	m.levels = [MaxChannels]bool{}
	m.masters = [MaxChannels]int{}

	var errs []error
	for bank := range m.words {
		if m.words[bank] == 0 {
			continue
		}
		m.words[bank] = 0
		errs = append(errs, m.latch(bank))
	}
	return errors.Join(errs...)
}
