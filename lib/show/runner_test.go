package show

import (
	"bytes"
	"errors"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"relayshow/lib/clock"
	"relayshow/lib/matrix"
)

type fakeTime struct {
	mu      sync.Mutex
	now     time.Time
	onSleep func(now time.Time)
}

func newFakeTime() *fakeTime {
	return &fakeTime{now: time.Date(2024, 7, 1, 21, 0, 0, 0, time.UTC)}
}

func (f *fakeTime) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeTime) Sleep(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now, hook := f.now, f.onSleep
	f.mu.Unlock()
	if hook != nil {
		hook(now)
	}
}

// trackSource reports elapsed playback in 0.1 s steps once started.
type trackSource struct {
	ft      *fakeTime
	mu      sync.Mutex
	started bool
	start   time.Time
}

func (s *trackSource) begin() {
	s.mu.Lock()
	s.started = true
	s.start = s.ft.Now()
	s.mu.Unlock()
}

func (s *trackSource) elapsed() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return -1
	}
	return s.ft.Now().Sub(s.start).Seconds()
}

func (s *trackSource) Poll() (float64, bool) {
	e := s.elapsed()
	if e < 0 {
		return 0, false
	}
	return math.Floor(e*10) / 10, true
}

type silentSource struct{}

func (silentSource) Poll() (float64, bool) { return 0, false }

// trackPlayer starts src when asked to play and blocks until released.
type trackPlayer struct {
	src     *trackSource
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	files   []string
}

func (p *trackPlayer) Play(file string) error {
	p.mu.Lock()
	p.files = append(p.files, file)
	p.mu.Unlock()
	p.src.begin()
	<-p.release
	return nil
}

func (p *trackPlayer) stop() {
	p.once.Do(func() { close(p.release) })
}

type failingPlayer struct{}

func (failingPlayer) Play(file string) error { return errors.New("no audio device") }

type write struct {
	at   float64
	word uint8
}

// timedDriver records the word latched into bank 0 with the playback time.
type timedDriver struct {
	src     *trackSource
	bank    int
	pending uint8
	writes  []write
}

func (d *timedDriver) Address(bank int) error { d.bank = bank; return nil }
func (d *timedDriver) Write(word uint8) error { d.pending = word; return nil }

func (d *timedDriver) Enable(on bool) error {
	if on && d.bank == 0 {
		d.writes = append(d.writes, write{at: d.src.elapsed(), word: d.pending})
	}
	return nil
}

type countingGate struct {
	calls int
	hook  func(call int)
}

func (g *countingGate) WaitUntilNight() {
	g.calls++
	if g.hook != nil {
		g.hook(g.calls)
	}
}

type rig struct {
	runner *Runner
	matrix *matrix.Matrix
	ft     *fakeTime
	logs   *bytes.Buffer
}

func newRig(t *testing.T, drv matrix.Driver, src clock.Source, ft *fakeTime, player Player, night NightGate) *rig {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := log.New(&syncWriter{w: logs}, "", 0)
	if drv == nil {
		drv = &matrix.Recorder{}
	}
	m, err := matrix.New(drv, 16, logger)
	if err != nil {
		t.Fatal(err)
	}
	if ft == nil {
		ft = newFakeTime()
	}
	c := clock.New(src, logger)
	c.SetTime(ft.Now, ft.Sleep)
	return &rig{
		runner: NewRunner(m, c, player, night, logger),
		matrix: m,
		ft:     ft,
		logs:   logs,
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  *bytes.Buffer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEndToEnd(t *testing.T) {
	ft := newFakeTime()
	src := &trackSource{ft: ft}
	player := &trackPlayer{src: src, release: make(chan struct{})}
	ft.onSleep = func(time.Time) {
		if src.elapsed() >= 4.5 {
			player.stop()
		}
	}
	drv := &timedDriver{src: src}
	r := newRig(t, drv, src, ft, player, nil)

	path := writeScript(t, "e2e.show", "0 play a.mp3\n1 on 1\n1 mirror 2 1\n3 off 1\n5 end\n")
	state, err := r.runner.Run(path)
	if err != nil {
		t.Fatal(err)
	}
	if state != Ended {
		t.Errorf("got state %v, want %v", state, Ended)
	}
	if r.runner.State() != Ended {
		t.Errorf("got runner state %v, want %v", r.runner.State(), Ended)
	}
	if len(player.files) != 1 || player.files[0] != "a.mp3" {
		t.Errorf("got played %q, want [a.mp3]", player.files)
	}

	want := []write{{1, 0x01}, {3, 0x00}, {3, 0x00}}
	if len(drv.writes) != len(want) {
		t.Fatalf("got writes %v, want %v", drv.writes, want)
	}
	for i, w := range want {
		got := drv.writes[i]
		if got.word != w.word {
			t.Errorf("write %d: got word %#02x, want %#02x", i, got.word, w.word)
		}
		if got.at < w.at-0.05 || got.at > w.at+0.15 {
			t.Errorf("write %d: at %.3fs, want about %.1fs", i, got.at, w.at)
		}
	}

	if e := src.elapsed(); e < 5 || e > 5.2 {
		t.Errorf("finished at %.3fs, want about 5s", e)
	}
	if r.matrix.Level(1) || r.matrix.Level(2) {
		t.Error("channels 1 and 2 should be off")
	}
	if !strings.Contains(r.logs.String(), "END OF DISPLAY") {
		t.Errorf("missing END OF DISPLAY in log:\n%s", r.logs)
	}
}

func TestAddDelaysLaterCommands(t *testing.T) {
	ft := newFakeTime()
	src := &trackSource{ft: ft}
	src.begin()
	drv := &timedDriver{src: src}
	r := newRig(t, drv, src, ft, nil, nil)

	path := writeScript(t, "add.show", "0 add 5\n10 on 1\n10 end\n")
	if _, err := r.runner.Run(path); err != nil {
		t.Fatal(err)
	}
	if len(drv.writes) != 1 {
		t.Fatalf("got writes %v, want one", drv.writes)
	}
	if at := drv.writes[0].at; at < 14.95 || at > 15.15 {
		t.Errorf("on 1 at %.3fs, want about 15s", at)
	}
	if e := src.elapsed(); e < 15 || e > 15.2 {
		t.Errorf("finished at %.3fs, want about 15s", e)
	}
}

func TestUnknownOpcodeContinues(t *testing.T) {
	r := newRig(t, nil, silentSource{}, nil, nil, nil)
	path := writeScript(t, "unknown.show", "0 on 1\n\n0 blink 2\n0 on 3\n0 end\n")

	state, err := r.runner.Run(path)
	if err != nil {
		t.Fatal(err)
	}
	if state != Ended {
		t.Errorf("got %v, want %v", state, Ended)
	}
	if !r.matrix.Level(1) || !r.matrix.Level(3) {
		t.Error("commands around the unknown opcode did not run")
	}
	if !strings.Contains(r.logs.String(), `unknown command "blink" at line 3`) {
		t.Errorf("unknown opcode not reported with its line:\n%s", r.logs)
	}
}

func TestSyntaxErrorSkipped(t *testing.T) {
	r := newRig(t, nil, silentSource{}, nil, nil, nil)
	path := writeScript(t, "bad.show", "0 on x\n0 on 99\n0 on 2\n0 end\n")

	if _, err := r.runner.Run(path); err != nil {
		t.Fatal(err)
	}
	if !r.matrix.Level(2) {
		t.Error("channel 2 should be on")
	}
	logs := r.logs.String()
	if !strings.Contains(logs, "line 1") || !strings.Contains(logs, "line 2") {
		t.Errorf("errors not reported with line numbers:\n%s", logs)
	}
}

func TestEOFCountsAsEnd(t *testing.T) {
	r := newRig(t, nil, silentSource{}, nil, nil, nil)
	state, err := r.runner.Run(writeScript(t, "short.show", "0 on 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	if state != Ended {
		t.Errorf("got %v, want %v", state, Ended)
	}
}

func TestTerminalStates(t *testing.T) {
	tests := []struct {
		body   string
		state  State
		nights int
	}{
		{"0 restart\n", RestartPending, 0},
		{"0 restart night\n", RestartPending, 1},
		{"0 continue\n", ContinuePending, 0},
		{"0 end\n0 on 1\n", Ended, 0},
	}
	for _, tt := range tests {
		gate := &countingGate{}
		r := newRig(t, nil, silentSource{}, nil, nil, gate)
		state, err := r.runner.Run(writeScript(t, "t.show", tt.body))
		if err != nil {
			t.Fatal(err)
		}
		if state != tt.state {
			t.Errorf("%q: got %v, want %v", tt.body, state, tt.state)
		}
		if gate.calls != tt.nights {
			t.Errorf("%q: got %d night waits, want %d", tt.body, gate.calls, tt.nights)
		}
		if r.matrix.Level(1) {
			t.Errorf("%q: command after terminal ran", tt.body)
		}
	}
}

func TestShowNotFound(t *testing.T) {
	r := newRig(t, nil, silentSource{}, nil, nil, nil)
	_, err := r.runner.Run(filepath.Join(t.TempDir(), "missing.show"))
	if !errors.Is(err, ErrShowNotFound) {
		t.Errorf("got %v, want %v", err, ErrShowNotFound)
	}
}

func TestPlayAbandonedWhenAudioFails(t *testing.T) {
	r := newRig(t, nil, silentSource{}, nil, failingPlayer{}, nil)
	path := writeScript(t, "fail.show", "0 play a.mp3\n0 on 1\n0 end\n")

	state, err := r.runner.Run(path)
	if err != nil {
		t.Fatal(err)
	}
	if state != Ended || !r.matrix.Level(1) {
		t.Errorf("show did not continue after failed play: state %v", state)
	}
	logs := r.logs.String()
	if !strings.Contains(logs, "no audio device") || !strings.Contains(logs, "ended before playback started") {
		t.Errorf("failure not logged:\n%s", logs)
	}
}

func TestRunResetsState(t *testing.T) {
	r := newRig(t, nil, silentSource{}, nil, nil, nil)
	if _, err := r.runner.Run(writeScript(t, "a.show", "0 mirror 2 1\n0 on 3\n0 continue\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.runner.Run(writeScript(t, "b.show", "0 on 1\n0 end\n")); err != nil {
		t.Fatal(err)
	}
	if r.matrix.Level(2) {
		t.Error("mirror edge survived into the next show")
	}
	if r.matrix.Level(3) {
		t.Error("channel level survived into the next show")
	}
}

func TestRunClearsLatchedBanks(t *testing.T) {
	rec := &matrix.Recorder{}
	r := newRig(t, rec, silentSource{}, nil, nil, nil)
	if _, err := r.runner.Run(writeScript(t, "a.show", "0 on 3\n0 on 9\n0 continue\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := r.runner.Run(writeScript(t, "b.show", "0 on 10\n0 end\n")); err != nil {
		t.Fatal(err)
	}
	words, _ := rec.Snapshot()
	if words[0] != 0 {
		t.Errorf("got bank 0 latched %08b, want 0", words[0])
	}
	if words[1] != 0b10 {
		t.Errorf("got bank 1 latched %08b, want 00000010", words[1])
	}
}
