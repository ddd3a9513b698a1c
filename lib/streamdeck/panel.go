package streamdeck

import (
	"fmt"
	"image/color"
	"sync"
)

var (
	colorOn  = color.RGBA{50, 180, 50, 255}
	colorOff = color.RGBA{30, 30, 30, 255}
)

type keyDisplay interface {
	Keys() int
	SetKeyText(key int, bg color.Color, fg color.Color, text string) error
}

// Panel is a matrix driver that shows each channel on its own key,
// channel 1 on key 0. Channels beyond the key count are not shown.
type Panel struct {
	dev keyDisplay

	mu      sync.Mutex
	bank    int
	pending uint8
	words   [8]uint8
}

func NewPanel(dev keyDisplay) *Panel {
	return &Panel{dev: dev}
}

// Draw paints every key in the off state.
func (p *Panel) Draw() error {
	for key := 0; key < p.dev.Keys(); key++ {
		if err := p.drawKey(key, false); err != nil {
			return err
		}
	}
	return nil
}

func (p *Panel) drawKey(key int, on bool) error {
	bg, state := colorOff, "off"
	if on {
		bg, state = colorOn, "ON"
	}
	return p.dev.SetKeyText(key, bg, color.White, fmt.Sprintf("CH %d\n%s", key+1, state))
}

func (p *Panel) Address(bank int) error {
	p.mu.Lock()
	p.bank = bank
	p.mu.Unlock()
	return nil
}

func (p *Panel) Write(word uint8) error {
	p.mu.Lock()
	p.pending = word
	p.mu.Unlock()
	return nil
}

func (p *Panel) Enable(on bool) error {
	if !on {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bank < 0 || p.bank >= len(p.words) {
		return nil
	}
	changed := p.words[p.bank] ^ p.pending
	for bit := 0; bit < 8; bit++ {
		mask := uint8(1) << bit
		if changed&mask == 0 {
			continue
		}
		key := p.bank*8 + bit
		if key >= p.dev.Keys() {
			continue
		}
		if err := p.drawKey(key, p.pending&mask != 0); err != nil {
			return err
		}
		p.words[p.bank] ^= mask
	}
	return nil
}
