// Package xtouch mirrors the channel matrix onto the button LEDs and
// scribble strips of a Behringer X-Touch in Mackie Control mode.
package xtouch

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

const (
	DeviceIDXTouch = 0x14
	Strips         = 8
)

// Strip buttons, one row of eight per note block.
const (
	NoteRecFirst    = 0
	NoteSoloFirst   = 8
	NoteMuteFirst   = 16
	NoteSelectFirst = 24
)

type LCDColor uint8

const ColorWhite LCDColor = 7

type LEDState uint8

const (
	LEDOff LEDState = 0
	LEDOn  LEDState = 127
)

func FindOutPort(substr string) (drivers.Out, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", substr)
}

type Output struct {
	send     func(msg midi.Message) error
	DeviceID uint8
}

func NewOutput(port drivers.Out, deviceID uint8) (*Output, error) {
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, fmt.Errorf("open output port: %w", err)
	}
	return &Output{send: send, DeviceID: deviceID}, nil
}

func (o *Output) SetButtonLED(button uint8, state LEDState) error {
	return o.send(midi.NoteOn(0, button, uint8(state)))
}

func (o *Output) SetLCD(lcd uint8, color LCDColor, invertUpper bool, invertLower bool, upper string, lower string) error {
	cc := uint8(color)
	if invertUpper {
		cc |= 0x10
	}
	if invertLower {
		cc |= 0x20
	}

	upper = padOrTruncate(upper, 7)
	lower = padOrTruncate(lower, 7)

	data := []byte{0x00, 0x20, 0x32, o.DeviceID, 0x4C, lcd, cc}
	data = append(data, []byte(upper)...)
	data = append(data, []byte(lower)...)
	return o.send(midi.SysEx(data))
}

func padOrTruncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	for len(s) < n {
		s += " "
	}
	return s
}
