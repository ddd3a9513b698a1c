// Package audio plays show soundtracks and reports how far playback has
// got, in the shapes the show runner expects: Play blocks until the track
// ends, Poll returns elapsed seconds or ok=false when unknown.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// TimeFile is an elapsed-time file holding a single number of seconds,
// rewritten by whatever is playing.
type TimeFile struct {
	Path string
}

func (f TimeFile) Poll() (float64, bool) {
	buf, err := os.ReadFile(f.Path)
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(buf))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Write replaces the file contents through a rename so readers never see
// a partial value.
func (f TimeFile) Write(seconds float64) error {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".time-*")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tmp, "%.3f\n", seconds); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

func (f TimeFile) Clear() error {
	err := os.Remove(f.Path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
