package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"relayshow/lib/matrix"
)

func TestChannels(t *testing.T) {
	rec := &matrix.Recorder{}
	m, err := matrix.New(rec, 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	m.Set(1, true)
	m.Set(10, true)

	srv := httptest.NewServer(Handler(rec, 10, func() (string, int) { return "AWAITING_TIME", 7 }))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/channels")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("got content type %q", ct)
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.State != "AWAITING_TIME" || st.Line != 7 {
		t.Errorf("got state %q line %d", st.State, st.Line)
	}
	if st.Latches != 2 {
		t.Errorf("got %d latches, want 2", st.Latches)
	}
	if len(st.Banks) != 2 || st.Banks[0] != "00000001" || st.Banks[1] != "00000010" {
		t.Errorf("got banks %q", st.Banks)
	}
	if len(st.Channels) != 10 {
		t.Fatalf("got %d channels, want 10", len(st.Channels))
	}
	for _, c := range st.Channels {
		want := c.Channel == 1 || c.Channel == 10
		if c.On != want {
			t.Errorf("channel %d: got %v, want %v", c.Channel, c.On, want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := Handler(&matrix.Recorder{}, 8, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/channels", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("got %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
