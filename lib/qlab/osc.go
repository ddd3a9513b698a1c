package qlab

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// QLab speaks OSC over TCP, each packet framed with SLIP (RFC 1055).
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

var errTruncated = errors.New("osc: truncated message")

type message struct {
	addr string
	args []any
}

func pad4(n int) int {
	return (4 - n%4) % 4
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, s...)
	buf = append(buf, 0)
	return append(buf, make([]byte, pad4(len(s)+1))...)
}

func (m message) encode() []byte {
	tags := []byte{','}
	var body []byte
	for _, arg := range m.args {
		switch v := arg.(type) {
		case int32:
			tags = append(tags, 'i')
			body = binary.BigEndian.AppendUint32(body, uint32(v))
		case float32:
			tags = append(tags, 'f')
			body = binary.BigEndian.AppendUint32(body, math.Float32bits(v))
		case float64:
			tags = append(tags, 'd')
			body = binary.BigEndian.AppendUint64(body, math.Float64bits(v))
		case string:
			tags = append(tags, 's')
			body = appendString(body, v)
		case bool:
			if v {
				tags = append(tags, 'T')
			} else {
				tags = append(tags, 'F')
			}
		}
	}
	buf := appendString(nil, m.addr)
	buf = appendString(buf, string(tags))
	return append(buf, body...)
}

type decoder struct {
	data []byte
	pos  int
}

func (d *decoder) string() (string, error) {
	end := d.pos
	for end < len(d.data) && d.data[end] != 0 {
		end++
	}
	if end >= len(d.data) {
		return "", errTruncated
	}
	s := string(d.data[d.pos:end])
	d.pos = end + 1 + pad4(end-d.pos+1)
	return s, nil
}

func (d *decoder) uint32() (uint32, error) {
	if d.pos+4 > len(d.data) {
		return 0, errTruncated
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

func (d *decoder) uint64() (uint64, error) {
	if d.pos+8 > len(d.data) {
		return 0, errTruncated
	}
	v := binary.BigEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

func decodeMessage(data []byte) (message, error) {
	d := &decoder{data: data}
	addr, err := d.string()
	if err != nil {
		return message{}, err
	}
	m := message{addr: addr}
	if d.pos >= len(data) || data[d.pos] != ',' {
		return m, nil
	}
	tags, err := d.string()
	if err != nil {
		return m, err
	}
	for _, tag := range tags[1:] {
		switch tag {
		case 'i':
			v, err := d.uint32()
			if err != nil {
				return m, err
			}
			m.args = append(m.args, int32(v))
		case 'f':
			v, err := d.uint32()
			if err != nil {
				return m, err
			}
			m.args = append(m.args, math.Float32frombits(v))
		case 'd':
			v, err := d.uint64()
			if err != nil {
				return m, err
			}
			m.args = append(m.args, math.Float64frombits(v))
		case 's':
			s, err := d.string()
			if err != nil {
				return m, err
			}
			m.args = append(m.args, s)
		case 'T':
			m.args = append(m.args, true)
		case 'F':
			m.args = append(m.args, false)
		default:
			return m, fmt.Errorf("osc: unsupported type tag %q", tag)
		}
	}
	return m, nil
}

func slipEncode(data []byte) []byte {
	out := make([]byte, 0, len(data)+2)
	out = append(out, slipEnd)
	for _, b := range data {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

// nextFrame returns the first complete SLIP frame in data, decoded, and the
// bytes after it. Empty frames between back-to-back END bytes are skipped.
func nextFrame(data []byte) (frame, rest []byte, ok bool) {
	start := -1
	for i, b := range data {
		if b != slipEnd {
			continue
		}
		if start < 0 || i == start+1 {
			start = i
			continue
		}
		return slipDecode(data[start+1 : i]), data[i+1:], true
	}
	return nil, data, false
}

func slipDecode(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] != slipEsc || i+1 == len(data) {
			out = append(out, data[i])
			continue
		}
		i++
		switch data[i] {
		case slipEscEnd:
			out = append(out, slipEnd)
		case slipEscEsc:
			out = append(out, slipEsc)
		}
	}
	return out
}
