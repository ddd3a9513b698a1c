package audio

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

var mpg123Args = []string{"-v", "--no-gapless", "-b", "1024", "-C"}

// Mpg123 plays files with the mpg123 command-line decoder and copies the
// elapsed time from its verbose status line into a TimeFile.
type Mpg123 struct {
	Binary string
	Times  TimeFile
	Log    *log.Logger
}

func (p *Mpg123) Play(file string) error {
	bin := p.Binary
	if bin == "" {
		bin = "mpg123"
	}
	args := append(append([]string{}, mpg123Args...), file)
	cmd := exec.Command(bin, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("mpg123: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mpg123: start: %w", err)
	}

	scanner := bufio.NewScanner(stderr)
	scanner.Split(scanStatusLines)
	for scanner.Scan() {
		sec, ok := parseStatusTime(scanner.Text())
		if !ok {
			continue
		}
		if err := p.Times.Write(sec); err != nil && p.Log != nil {
			p.Log.Printf("mpg123: write %s: %v", p.Times.Path, err)
		}
	}

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("mpg123: %s: %w", file, err)
	}
	return nil
}

var statusTimeRE = regexp.MustCompile(`Time:\s+(?:(\d+):)?(\d+):(\d+(?:\.\d+)?)`)

// parseStatusTime extracts the elapsed time from a status line such as
// "Frame#   123 [ 4567], Time: 00:03.21 [01:59.40], RVA:   off, Vol: 100(100)".
func parseStatusTime(line string) (float64, bool) {
	m := statusTimeRE.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	var h, min int
	if m[1] != "" {
		h, _ = strconv.Atoi(m[1])
	}
	min, _ = strconv.Atoi(m[2])
	sec, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}
	return float64(h*3600+min*60) + sec, true
}

// scanStatusLines splits on both '\r' and '\n', since mpg123 redraws its
// status line in place.
func scanStatusLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
