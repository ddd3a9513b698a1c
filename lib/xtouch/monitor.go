package xtouch

import (
	"fmt"
	"sync"
)

var rowNotes = [4]uint8{NoteRecFirst, NoteSoloFirst, NoteMuteFirst, NoteSelectFirst}

// Monitor is a matrix driver that lights one strip button per channel.
// Channels 1-8 use the REC row, 9-16 SOLO, 17-24 MUTE and 25-32 SELECT;
// higher channels are not shown.
type Monitor struct {
	out *Output

	mu      sync.Mutex
	bank    int
	pending uint8
	words   [8]uint8
}

func NewMonitor(out *Output) *Monitor {
	return &Monitor{out: out}
}

// Label names each scribble strip after the channels it shows and clears
// every LED.
func (m *Monitor) Label() error {
	for s := 0; s < Strips; s++ {
		upper := fmt.Sprintf("%d/%d", s+1, s+9)
		lower := fmt.Sprintf("%d/%d", s+17, s+25)
		if err := m.out.SetLCD(uint8(s), ColorWhite, false, false, upper, lower); err != nil {
			return err
		}
		for _, first := range rowNotes {
			if err := m.out.SetButtonLED(first+uint8(s), LEDOff); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Monitor) Address(bank int) error {
	m.mu.Lock()
	m.bank = bank
	m.mu.Unlock()
	return nil
}

func (m *Monitor) Write(word uint8) error {
	m.mu.Lock()
	m.pending = word
	m.mu.Unlock()
	return nil
}

func (m *Monitor) Enable(on bool) error {
	if !on {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bank < 0 || m.bank >= len(rowNotes) {
		return nil
	}
	changed := m.words[m.bank] ^ m.pending
	for bit := 0; bit < 8; bit++ {
		mask := uint8(1) << bit
		if changed&mask == 0 {
			continue
		}
		state := LEDOff
		if m.pending&mask != 0 {
			state = LEDOn
		}
		if err := m.out.SetButtonLED(rowNotes[m.bank]+uint8(bit), state); err != nil {
			return err
		}
		m.words[m.bank] ^= mask
	}
	return nil
}
