package qlab

import (
	"bytes"
	"testing"
	"time"
)

func setupTest(t *testing.T) (*MockServer, *Client) {
	t.Helper()
	mock, err := NewMockServer()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mock.Close() })

	client, err := Dial("127.0.0.1", mock.Port())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { client.Close() })

	return mock, client
}

func TestMessageEncoding(t *testing.T) {
	msg := message{addr: "/cue/1/start", args: []any{int32(7), float32(1.5), 2.25, "go", true, false}}
	got, err := decodeMessage(msg.encode())
	if err != nil {
		t.Fatal(err)
	}
	if got.addr != msg.addr {
		t.Errorf("got %q, want %q", got.addr, msg.addr)
	}
	if len(got.args) != len(msg.args) {
		t.Fatalf("got %v, want %v", got.args, msg.args)
	}
	for i := range msg.args {
		if got.args[i] != msg.args[i] {
			t.Errorf("arg %d: got %v, want %v", i, got.args[i], msg.args[i])
		}
	}
	if len(msg.encode())%4 != 0 {
		t.Error("encoded message is not 4-byte aligned")
	}
}

func TestDecodeTruncated(t *testing.T) {
	data := message{addr: "/x", args: []any{int32(1)}}.encode()
	if _, err := decodeMessage(data[:len(data)-2]); err == nil {
		t.Error("expected error for truncated int")
	}
}

func TestSLIPFraming(t *testing.T) {
	payload := []byte{1, slipEnd, 2, slipEsc, 3}
	stream := append(slipEncode(payload), slipEnd)
	stream = append(stream, slipEncode([]byte{9})...)

	frame, rest, ok := nextFrame(stream)
	if !ok || !bytes.Equal(frame, payload) {
		t.Fatalf("got %v, %v; want %v", frame, ok, payload)
	}
	frame, rest, ok = nextFrame(rest)
	if !ok || !bytes.Equal(frame, []byte{9}) {
		t.Fatalf("got %v, %v; want [9]", frame, ok)
	}
	if _, _, ok := nextFrame(rest); ok {
		t.Error("found a frame in empty input")
	}
	if _, rest, ok := nextFrame([]byte{slipEnd, 1, 2}); ok || len(rest) != 3 {
		t.Error("partial frame was consumed")
	}
}

func TestVersion(t *testing.T) {
	mock, client := setupTest(t)
	mock.Version = "5.2.3"

	v, err := client.Version()
	if err != nil {
		t.Fatal(err)
	}
	if v != "5.2.3" {
		t.Errorf("got %q, want %q", v, "5.2.3")
	}
}

func TestWorkspacesAndConnect(t *testing.T) {
	mock, client := setupTest(t)
	mock.Workspaces = []Workspace{
		{DisplayName: "Holiday", UniqueID: "ws-1"},
		{DisplayName: "Backup", UniqueID: "ws-2", HasPasscode: true},
	}

	ws, err := client.Workspaces()
	if err != nil {
		t.Fatal(err)
	}
	if len(ws) != 2 || ws[0].UniqueID != "ws-1" || !ws[1].HasPasscode {
		t.Errorf("got %+v", ws)
	}
	if err := client.Connect("ws-2", "secret"); err != nil {
		t.Fatal(err)
	}
}

func TestCueListsAndProperty(t *testing.T) {
	mock, client := setupTest(t)
	mock.CueLists["ws-1"] = []Cue{{
		UniqueID: "list-1",
		Name:     "Main",
		Type:     "Cue List",
		Cues: []Cue{
			{UniqueID: "c1", Number: "1", Name: "Carol of the Bells", Type: "Audio"},
			{UniqueID: "g1", Number: "10", Type: "Group", Cues: []Cue{
				{UniqueID: "c2", Number: "10.1", Name: "Sleigh Ride", Type: "Audio"},
			}},
		},
	}}

	lists, err := client.CueLists("ws-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(lists) != 1 || len(lists[0].Cues) != 2 {
		t.Fatalf("got %+v", lists)
	}

	var name string
	if err := client.Property("ws-1", "10.1", "name", &name); err != nil {
		t.Fatal(err)
	}
	if name != "Sleigh Ride" {
		t.Errorf("got %q, want %q", name, "Sleigh Ride")
	}
	if err := client.Property("ws-1", "99", "name", &name); err == nil {
		t.Error("expected error for missing cue")
	}
}

func TestRequestTimeout(t *testing.T) {
	_, client := setupTest(t)
	client.SetTimeout(50 * time.Millisecond)

	// The mock does not answer unknown top-level addresses.
	if _, err := client.request("/nothing"); err == nil {
		t.Error("expected timeout")
	}
}

func TestPlayerPlayAndPoll(t *testing.T) {
	mock, client := setupTest(t)
	p := &Player{Client: client, Workspace: "ws-1", Interval: 10 * time.Millisecond}

	if _, ok := p.Poll(); ok {
		t.Error("Poll before any cue reported a time")
	}

	done := make(chan error, 1)
	go func() { done <- p.Play("3") }()

	deadline := time.Now().Add(2 * time.Second)
	for len(mock.StartedCues()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cue was never started")
		}
		time.Sleep(5 * time.Millisecond)
	}
	mock.SetCue("3", true, 12.5)

	var elapsed float64
	for time.Now().Before(deadline) {
		if v, ok := p.Poll(); ok && v == 12.5 {
			elapsed = v
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if elapsed != 12.5 {
		t.Fatalf("got elapsed %v, want 12.5", elapsed)
	}

	for mock.RunningSeen("3") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Play never saw the cue running")
		}
		time.Sleep(5 * time.Millisecond)
	}
	select {
	case <-done:
		t.Fatal("Play returned while the cue was running")
	default:
	}

	mock.SetCue("3", false, 30)
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after the cue stopped")
	}
	if got := mock.StartedCues(); len(got) != 1 || got[0] != "3" {
		t.Errorf("got %v, want [3]", got)
	}
}

func TestPlayerShortCue(t *testing.T) {
	mock, client := setupTest(t)
	mock.SetShort("7", 0.4)
	p := &Player{Client: client, Workspace: "ws-1", Interval: 10 * time.Millisecond}

	done := make(chan error, 1)
	go func() { done <- p.Play("7") }()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("got %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return for a cue that already finished")
	}
}

func TestPlayerStop(t *testing.T) {
	mock, client := setupTest(t)
	p := &Player{Client: client, Workspace: "ws-1", Interval: 10 * time.Millisecond}

	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	if got := mock.StoppedCues(); len(got) != 0 {
		t.Errorf("got %v, want no stops before a cue ran", got)
	}

	done := make(chan error, 1)
	go func() { done <- p.Play("3") }()
	deadline := time.Now().Add(2 * time.Second)
	for mock.RunningSeen("3") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Play never saw the cue running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := p.Stop(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop")
	}
	if got := mock.StoppedCues(); len(got) != 1 || got[0] != "3" {
		t.Errorf("got %v, want [3]", got)
	}
}
