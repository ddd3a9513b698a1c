// Package script reads show files: one timed command per line,
// "<offset> <opcode> [operands...]".
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var ErrSyntax = errors.New("script: syntax error")

type Opcode int

const (
	OpUnknown Opcode = iota
	OpPlay
	OpOn
	OpOff
	OpAdd
	OpMirror
	OpUnmirror
	OpRestart
	OpContinue
	OpEnd
)

var opcodeNames = map[string]Opcode{
	"play":     OpPlay,
	"on":       OpOn,
	"fade_in":  OpOn,
	"off":      OpOff,
	"fade_out": OpOff,
	"add":      OpAdd,
	"mirror":   OpMirror,
	"unmirror": OpUnmirror,
	"restart":  OpRestart,
	"continue": OpContinue,
	"end":      OpEnd,
}

func (op Opcode) String() string {
	switch op {
	case OpPlay:
		return "play"
	case OpOn:
		return "on"
	case OpOff:
		return "off"
	case OpAdd:
		return "add"
	case OpMirror:
		return "mirror"
	case OpUnmirror:
		return "unmirror"
	case OpRestart:
		return "restart"
	case OpContinue:
		return "continue"
	case OpEnd:
		return "end"
	}
	return "unknown"
}

// Terminal reports whether op ends the command stream of a show.
func (op Opcode) Terminal() bool {
	return op == OpEnd || op == OpRestart || op == OpContinue
}

type Command struct {
	Line   int
	Offset float64
	Op     Opcode
	// Name is the opcode as written, kept for reporting unknown opcodes.
	Name string

	File    string
	Channel int
	Master  int
	Seconds float64
	Night   bool
}

func (c Command) String() string {
	switch c.Op {
	case OpPlay:
		return fmt.Sprintf("%g play %s", c.Offset, c.File)
	case OpOn, OpOff, OpUnmirror:
		return fmt.Sprintf("%g %s %d", c.Offset, c.Op, c.Channel)
	case OpAdd:
		return fmt.Sprintf("%g add %g", c.Offset, c.Seconds)
	case OpMirror:
		return fmt.Sprintf("%g mirror %d %d", c.Offset, c.Channel, c.Master)
	case OpRestart:
		if c.Night {
			return fmt.Sprintf("%g restart night", c.Offset)
		}
	}
	return fmt.Sprintf("%g %s", c.Offset, c.Name)
}

// Parse tokenizes one command line. An unrecognized opcode is not an error:
// it yields OpUnknown so the caller can report it when it comes due.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Command{}, fmt.Errorf("%w: want \"<offset> <opcode> [operands]\", got %q", ErrSyntax, line)
	}
	offset, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return Command{}, fmt.Errorf("%w: bad offset %q", ErrSyntax, fields[0])
	}

	cmd := Command{Offset: offset, Name: fields[1], Op: opcodeNames[fields[1]]}
	args := fields[2:]

	switch cmd.Op {
	case OpPlay:
		if len(args) < 1 {
			return cmd, fmt.Errorf("%w: play needs a file name", ErrSyntax)
		}
		cmd.File = args[0]
	case OpOn, OpOff, OpUnmirror:
		if len(args) < 1 {
			return cmd, fmt.Errorf("%w: %s needs a channel", ErrSyntax, cmd.Name)
		}
		if cmd.Channel, err = parseChannel(args[0]); err != nil {
			return cmd, err
		}
	case OpMirror:
		if len(args) < 2 {
			return cmd, fmt.Errorf("%w: mirror needs a slave and a master channel", ErrSyntax)
		}
		if cmd.Channel, err = parseChannel(args[0]); err != nil {
			return cmd, err
		}
		if cmd.Master, err = parseChannel(args[1]); err != nil {
			return cmd, err
		}
	case OpAdd:
		if len(args) < 1 {
			return cmd, fmt.Errorf("%w: add needs a number of seconds", ErrSyntax)
		}
		if cmd.Seconds, err = strconv.ParseFloat(args[0], 64); err != nil {
			return cmd, fmt.Errorf("%w: bad seconds %q", ErrSyntax, args[0])
		}
	case OpRestart:
		cmd.Night = len(args) > 0 && args[0] == "night"
	}
	return cmd, nil
}

func parseChannel(s string) (int, error) {
	ch, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad channel %q", ErrSyntax, s)
	}
	return ch, nil
}

// Reader yields commands one at a time; the script is never held in memory.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r)}
}

// Next returns the next command, skipping blank and '#' lines. Parse errors
// carry the line number and leave the reader positioned after the bad line.
// io.EOF is returned at the end of the stream.
func (r *Reader) Next() (Command, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cmd, err := Parse(text)
		cmd.Line = r.line
		if err != nil {
			return cmd, fmt.Errorf("line %d: %w", r.line, err)
		}
		return cmd, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Command{}, err
	}
	return Command{}, io.EOF
}

// Line is the physical line number of the last command returned.
func (r *Reader) Line() int {
	return r.line
}
