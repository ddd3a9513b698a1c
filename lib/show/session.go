package show

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
)

const DefaultExtension = ".show"

// Prompter asks the operator for the next show file. io.EOF means no more
// shows will be asked for.
type Prompter interface {
	Prompt() (string, error)
}

type Session struct {
	Runner    *Runner
	Prompter  Prompter
	Extension string
	Log       *log.Logger
}

// WithExtension appends ext to name unless it already has an extension.
func WithExtension(name, ext string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	return name + ext
}

// Run plays shows until one ends with "end" or the prompter runs dry.
// first, if set, is played before anything is asked for. A restart plays
// the same file again; a continue asks for the next one.
func (s *Session) Run(first string) error {
	logger := s.Log
	if logger == nil {
		logger = log.Default()
	}
	ext := s.Extension
	if ext == "" {
		ext = DefaultExtension
	}

	file := ""
	restart := false
	for {
		logger.Printf("Beginning show.")
		if !restart {
			name := first
			first = ""
			if name == "" {
				var err error
				if name, err = s.prompt(); err != nil {
					if err == io.EOF {
						return nil
					}
					return err
				}
			}
			file = WithExtension(name, ext)
		}

		state, err := s.Runner.Run(file)
		if errors.Is(err, ErrShowNotFound) {
			logger.Printf("ERROR: FILE NOT FOUND: %s", file)
			restart = false
			continue
		}
		if err != nil {
			return err
		}

		switch state {
		case RestartPending:
			restart = true
		case ContinuePending:
			restart = false
		default:
			if err := s.Runner.matrix.Reset(); err != nil {
				logger.Printf("ERROR: clearing channels: %v", err)
			}
			return nil
		}
	}
}

func (s *Session) prompt() (string, error) {
	if s.Prompter == nil {
		return "", io.EOF
	}
	for {
		name, err := s.Prompter.Prompt()
		if err != nil {
			return "", err
		}
		if name = strings.TrimSpace(name); name != "" {
			return name, nil
		}
	}
}

// LinePrompter reads one show name per line.
type LinePrompter struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func NewLinePrompter(in io.Reader, out io.Writer) *LinePrompter {
	return &LinePrompter{scanner: bufio.NewScanner(in), out: out}
}

func (p *LinePrompter) Prompt() (string, error) {
	if p.out != nil {
		fmt.Fprint(p.out, "Type in the name of the show file you would like to play: ")
	}
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return p.scanner.Text(), nil
}
