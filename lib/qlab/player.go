package qlab

import (
	"fmt"
	"sync"
	"time"
)

// startTimeout bounds how long Play waits for a started cue to report
// that it is running.
const startTimeout = 5 * time.Second

// Player runs QLab cues as show soundtracks. The play operand of a show is
// the cue number.
type Player struct {
	Client    *Client
	Workspace string
	Interval  time.Duration

	mu  sync.Mutex
	cue string
}

func (p *Player) interval() time.Duration {
	if p.Interval <= 0 {
		return 250 * time.Millisecond
	}
	return p.Interval
}

// Play starts the cue and blocks until QLab reports it is no longer
// running. A cue that is already over by the first check counts as played
// when its action elapsed time has moved.
func (p *Player) Play(number string) error {
	if err := p.Client.Start(p.Workspace, number); err != nil {
		return err
	}
	p.mu.Lock()
	p.cue = number
	p.mu.Unlock()

	started := false
	begin := time.Now()
	for {
		var running bool
		if err := p.Client.Property(p.Workspace, number, "isRunning", &running); err != nil {
			return err
		}
		switch {
		case running:
			started = true
		case started:
			return nil
		default:
			var elapsed float64
			if err := p.Client.Property(p.Workspace, number, "actionElapsed", &elapsed); err != nil {
				return err
			}
			if elapsed > 0 {
				return nil
			}
			if time.Since(begin) > startTimeout {
				return fmt.Errorf("qlab: cue %s did not start", number)
			}
		}
		time.Sleep(p.interval())
	}
}

// Stop stops the cue last started, if any.
func (p *Player) Stop() error {
	p.mu.Lock()
	cue := p.cue
	p.mu.Unlock()
	if cue == "" {
		return nil
	}
	return p.Client.Stop(p.Workspace, cue)
}

// Poll reports the action elapsed time of the cue last started.
func (p *Player) Poll() (float64, bool) {
	p.mu.Lock()
	cue := p.cue
	p.mu.Unlock()
	if cue == "" {
		return 0, false
	}
	var elapsed float64
	if err := p.Client.Property(p.Workspace, cue, "actionElapsed", &elapsed); err != nil {
		return 0, false
	}
	return elapsed, true
}
