package audio

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// MPD plays files through a Music Player Daemon. File names are MPD URIs
// relative to its music directory.
type MPD struct {
	Network string
	Address string
	// Interval is how often Play checks whether the track is still playing.
	Interval time.Duration

	// Poll keeps one connection open between calls; Play dials its own
	// because it runs on the audio goroutine.
	mu   sync.Mutex
	poll *mpd.Client
}

func (m *MPD) dial() (*mpd.Client, error) {
	network := m.Network
	if network == "" {
		network = "tcp"
	}
	c, err := mpd.Dial(network, m.Address)
	if err != nil {
		return nil, fmt.Errorf("mpd: dial %s: %w", m.Address, err)
	}
	return c, nil
}

func (m *MPD) Play(file string) error {
	c, err := m.dial()
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Clear(); err != nil {
		return fmt.Errorf("mpd: clear: %w", err)
	}
	if err := c.Add(file); err != nil {
		return fmt.Errorf("mpd: add %s: %w", file, err)
	}
	if err := c.Play(0); err != nil {
		return fmt.Errorf("mpd: play: %w", err)
	}

	interval := m.Interval
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	for {
		time.Sleep(interval)
		status, err := c.Status()
		if err != nil {
			return fmt.Errorf("mpd: status: %w", err)
		}
		if state := status["state"]; state != "play" && state != "pause" {
			return nil
		}
	}
}

func (m *MPD) Poll() (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.poll == nil {
		c, err := m.dial()
		if err != nil {
			return 0, false
		}
		m.poll = c
	}
	status, err := m.poll.Status()
	if err != nil {
		m.poll.Close()
		m.poll = nil
		return 0, false
	}
	return parseElapsed(status)
}

func (m *MPD) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.poll != nil {
		err := m.poll.Close()
		m.poll = nil
		return err
	}
	return nil
}

func parseElapsed(status mpd.Attrs) (float64, bool) {
	s, ok := status["elapsed"]
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
