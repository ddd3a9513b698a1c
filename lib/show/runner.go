// Package show runs show scripts: the Runner executes one script against
// the playback clock and the channel matrix, and the Session chooses which
// script runs next.
package show

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"relayshow/lib/clock"
	"relayshow/lib/matrix"
	"relayshow/lib/script"
)

var ErrShowNotFound = errors.New("show: file not found")

type State int32

const (
	Loading State = iota
	AwaitingTime
	Dispatching
	RestartPending
	ContinuePending
	Ended
)

func (s State) String() string {
	switch s {
	case Loading:
		return "LOADING"
	case AwaitingTime:
		return "AWAITING_TIME"
	case Dispatching:
		return "DISPATCHING"
	case RestartPending:
		return "RESTART_PENDING"
	case ContinuePending:
		return "CONTINUE_PENDING"
	case Ended:
		return "ENDED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Player plays one audio file and returns when playback is over.
type Player interface {
	Play(file string) error
}

// NightGate blocks until it is night.
type NightGate interface {
	WaitUntilNight()
}

type Runner struct {
	matrix *matrix.Matrix
	clock  *clock.Clock
	player Player
	night  NightGate
	log    *log.Logger

	state atomic.Int32
	line  atomic.Int64
	audio chan struct{}
}

// NewRunner builds a runner. player and night may be nil: without a player
// play commands only wait for the time source, and without a night gate
// "restart night" restarts at once.
func NewRunner(m *matrix.Matrix, c *clock.Clock, player Player, night NightGate, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	r := &Runner{matrix: m, clock: c, player: player, night: night, log: logger}
	r.setState(Ended)
	return r
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

// Line is the script line of the command last dispatched.
func (r *Runner) Line() int {
	return int(r.line.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// Run executes the script at path from the top and returns the terminal
// state it stopped in: RestartPending, ContinuePending or Ended. A script
// that runs out of lines without a terminal command counts as ended.
func (r *Runner) Run(path string) (State, error) {
	r.setState(Loading)
	f, err := os.Open(path)
	if err != nil {
		r.setState(Ended)
		return Ended, fmt.Errorf("%w: %s", ErrShowNotFound, path)
	}
	defer f.Close()

	r.log.Printf("Starting show: %s", path)
	if err := r.matrix.Reset(); err != nil {
		r.log.Printf("ERROR: clearing channels: %v", err)
	}
	r.clock.Reset()
	r.line.Store(0)

	state := r.execute(script.NewReader(f))
	r.joinAudio()
	r.setState(state)
	return state, nil
}

func (r *Runner) execute(rd *script.Reader) State {
	for {
		r.setState(AwaitingTime)
		cmd, err := rd.Next()
		if err == io.EOF {
			r.log.Printf("Script ended without end command at line %d", rd.Line())
			return Ended
		}
		if err != nil {
			if errors.Is(err, script.ErrSyntax) {
				r.log.Printf("ERROR: %v", err)
				continue
			}
			r.log.Printf("ERROR: reading script: %v", err)
			return Ended
		}

		terminal := cmd.Op.Terminal()
		if terminal {
			r.log.Printf("Waiting for end, restart, or continue in: %.2f seconds", r.clock.Remaining(cmd.Offset))
		}
		r.clock.WaitUntil(cmd.Offset, terminal)

		r.setState(Dispatching)
		r.line.Store(int64(cmd.Line))
		r.log.Printf("Executing %s at line %d", cmd, cmd.Line)
		if next, done := r.dispatch(cmd); done {
			return next
		}
	}
}

func (r *Runner) dispatch(cmd script.Command) (State, bool) {
	switch cmd.Op {
	case script.OpPlay:
		r.play(cmd.File)

	case script.OpOn, script.OpOff:
		if err := r.matrix.Set(cmd.Channel, cmd.Op == script.OpOn); err != nil {
			r.log.Printf("ERROR: line %d: %v", cmd.Line, err)
		}

	case script.OpAdd:
		r.clock.Add(cmd.Seconds)

	case script.OpMirror:
		if err := r.matrix.Mirror(cmd.Channel, cmd.Master); err != nil {
			r.log.Printf("ERROR: line %d: %v", cmd.Line, err)
		}

	case script.OpUnmirror:
		if err := r.matrix.Unmirror(cmd.Channel); err != nil {
			r.log.Printf("ERROR: line %d: %v", cmd.Line, err)
		}

	case script.OpRestart:
		if cmd.Night && r.night != nil {
			r.night.WaitUntilNight()
		}
		r.log.Printf("Restarting show now.")
		return RestartPending, true

	case script.OpContinue:
		r.log.Printf("END OF SHOW")
		return ContinuePending, true

	case script.OpEnd:
		r.log.Printf("END OF DISPLAY")
		return Ended, true

	default:
		r.log.Printf("ERROR: unknown command %q at line %d", cmd.Name, cmd.Line)
	}
	return Dispatching, false
}

// play starts file on the audio task and blocks until the clock sees the
// new track. The wait is abandoned if the task ends first.
func (r *Runner) play(file string) {
	r.joinAudio()

	leftover, hadLeftover := r.clock.Peek()
	var done chan struct{}
	if r.player != nil {
		done = make(chan struct{})
		go func() {
			defer close(done)
			if err := r.player.Play(file); err != nil {
				r.log.Printf("ERROR: playing %s: %v", file, err)
			}
		}()
		r.audio = done
	}

	if !r.clock.AwaitTrack(leftover, hadLeftover, done) {
		r.log.Printf("ERROR: audio for %s ended before playback started", file)
	}
}

func (r *Runner) joinAudio() {
	if r.audio == nil {
		return
	}
	r.log.Printf("Waiting for audio to finish...")
	<-r.audio
	r.audio = nil
	r.log.Printf("Audio finished.")
}
