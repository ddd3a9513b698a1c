package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const speakerRate = beep.SampleRate(44100)

// Beep decodes and plays mp3 and wav files in process. It is its own time
// source: Poll reports the position of the current (or last) track.
type Beep struct {
	once    sync.Once
	initErr error

	mu     sync.Mutex
	stream beep.StreamSeeker
	format beep.Format
}

func (b *Beep) init() error {
	b.once.Do(func() {
		b.initErr = speaker.Init(speakerRate, speakerRate.N(time.Second/10))
	})
	return b.initErr
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".mp3":
		stream, format, err = mp3.Decode(file)
	case ".wav":
		stream, format, err = wav.Decode(file)
	default:
		err = fmt.Errorf("unsupported audio format %q", ext)
	}
	if err != nil {
		file.Close()
		return nil, beep.Format{}, err
	}
	return stream, format, nil
}

func (b *Beep) Play(file string) error {
	if err := b.init(); err != nil {
		return fmt.Errorf("beep: speaker: %w", err)
	}
	stream, format, err := decode(file)
	if err != nil {
		return fmt.Errorf("beep: %s: %w", file, err)
	}
	defer stream.Close()

	b.mu.Lock()
	b.stream, b.format = stream, format
	b.mu.Unlock()

	var out beep.Streamer = stream
	if format.SampleRate != speakerRate {
		out = beep.Resample(4, format.SampleRate, speakerRate, stream)
	}
	done := make(chan struct{})
	speaker.Play(beep.Seq(out, beep.Callback(func() { close(done) })))
	<-done
	return stream.Err()
}

func (b *Beep) Poll() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stream == nil {
		return 0, false
	}
	speaker.Lock()
	pos := b.stream.Position()
	speaker.Unlock()
	return b.format.SampleRate.D(pos).Seconds(), true
}
