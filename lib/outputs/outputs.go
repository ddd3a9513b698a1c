// Package outputs opens the relay hardware and monitors named in the
// configuration and combines them into one matrix driver.
package outputs

import (
	"errors"
	"fmt"
	"log"

	"relayshow/lib/config"
	"relayshow/lib/gpio"
	"relayshow/lib/hidrelay"
	"relayshow/lib/matrix"
	"relayshow/lib/streamdeck"
	"relayshow/lib/xtouch"
)

type Set struct {
	Drivers matrix.Tee
	Names   []string
	closers []func() error
}

func (s *Set) add(name string, d matrix.Driver, closer func() error) {
	s.Drivers = append(s.Drivers, d)
	s.Names = append(s.Names, name)
	if closer != nil {
		s.closers = append(s.closers, closer)
	}
}

// Open opens every enabled output. On error, outputs already opened are
// closed again.
func Open(cfg config.Outputs, logger *log.Logger) (*Set, error) {
	if logger == nil {
		logger = log.Default()
	}
	s := &Set{}
	if err := s.open(cfg, logger); err != nil {
		s.Close()
		return nil, err
	}
	if len(s.Drivers) == 0 {
		logger.Printf("No outputs enabled; channel changes are only recorded")
	}
	return s, nil
}

func (s *Set) open(cfg config.Outputs, logger *log.Logger) error {
	if cfg.GPIO.Enabled {
		d, err := gpio.Open(cfg.GPIO.Data, cfg.GPIO.Address, cfg.GPIO.Enable)
		if err != nil {
			return err
		}
		s.add("gpio", d, nil)
		logger.Printf("GPIO pins initialized.")
	}

	if cfg.HIDRelay.Enabled {
		d, err := hidrelay.Open(cfg.HIDRelay.Relays)
		if err != nil {
			return err
		}
		s.add("hidrelay", d, func() error {
			return errors.Join(d.Off(), d.Close())
		})
		logger.Printf("%d USB relay boards opened", d.Boards())
	}

	if cfg.XTouch.Enabled {
		port, err := xtouch.FindOutPort(cfg.XTouch.Port)
		if err != nil {
			return fmt.Errorf("xtouch: %w", err)
		}
		out, err := xtouch.NewOutput(port, xtouch.DeviceIDXTouch)
		if err != nil {
			return fmt.Errorf("xtouch: %w", err)
		}
		mon := xtouch.NewMonitor(out)
		if err := mon.Label(); err != nil {
			return fmt.Errorf("xtouch: %w", err)
		}
		s.add("xtouch", mon, nil)
		logger.Printf("X-Touch monitor on %s", port)
	}

	if cfg.StreamDeck.Enabled {
		dev, err := streamdeck.Open()
		if err != nil {
			return err
		}
		s.closers = append(s.closers, dev.Close)
		if err := dev.SetBrightness(byte(cfg.StreamDeck.Brightness)); err != nil {
			return fmt.Errorf("streamdeck: %w", err)
		}
		panel := streamdeck.NewPanel(dev)
		if err := panel.Draw(); err != nil {
			return fmt.Errorf("streamdeck: %w", err)
		}
		s.add("streamdeck", panel, nil)
		logger.Printf("Stream Deck %s monitor showing %d channels", dev.Model().Name, dev.Keys())
	}
	return nil
}

// Close switches relays off where the hardware supports it and releases
// every device.
func (s *Set) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
