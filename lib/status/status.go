// Package status serves the latched relay state as JSON.
package status

import (
	"encoding/json"
	"fmt"
	"net/http"

	"relayshow/lib/matrix"
)

type Channel struct {
	Channel int  `json:"channel"`
	On      bool `json:"on"`
}

type Status struct {
	State    string    `json:"state,omitempty"`
	Line     int       `json:"line"`
	Latches  int       `json:"latches"`
	Banks    []string  `json:"banks"`
	Channels []Channel `json:"channels"`
}

// Progress reports what the show is doing. It is called on every request.
type Progress func() (state string, line int)

// Handler serves GET /api/channels from the words latched into rec.
func Handler(rec *matrix.Recorder, channels int, progress Progress) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/channels", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, Snapshot(rec, channels, progress))
	})
	return mux
}

func Snapshot(rec *matrix.Recorder, channels int, progress Progress) Status {
	words, latches := rec.Snapshot()
	st := Status{Latches: latches}
	if progress != nil {
		st.State, st.Line = progress()
	}

	banks := (channels + matrix.BankSize - 1) / matrix.BankSize
	for b := 0; b < banks; b++ {
		st.Banks = append(st.Banks, fmt.Sprintf("%08b", words[b]))
	}
	for ch := 1; ch <= channels; ch++ {
		bank, bit := (ch-1)/matrix.BankSize, (ch-1)%matrix.BankSize
		st.Channels = append(st.Channels, Channel{Channel: ch, On: words[bank]&(1<<bit) != 0})
	}
	return st
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
