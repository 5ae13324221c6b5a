package protocol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Command is a single request to the controller. Values are immutable once
// built; the With* helpers return modified copies.
type Command struct {
	Name     Name
	Params   []any
	Checksum bool
	Timeout  time.Duration
}

// NewCommand builds a command with the default timeout.
func NewCommand(name Name, params ...any) Command {
	return Command{
		Name:    name,
		Params:  append([]any(nil), params...),
		Timeout: DefaultTimeout,
	}
}

// WithChecksum returns a copy of c with the checksum flag set to on.
func (c Command) WithChecksum(on bool) Command {
	c.Params = append([]any(nil), c.Params...)
	c.Checksum = on
	return c
}

// WithTimeout returns a copy of c that waits at most d for its reply.
func (c Command) WithTimeout(d time.Duration) Command {
	c.Params = append([]any(nil), c.Params...)
	c.Timeout = d
	return c
}

// Text renders the command line without the trailing newline.
func (c Command) Text() string {
	var b strings.Builder
	b.WriteString(string(c.Name))
	if len(c.Params) > 0 {
		b.WriteByte(':')
		for i, p := range c.Params {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(FormatParam(p))
		}
	}
	s := b.String()
	if c.Checksum {
		s += ";" + Checksum(s)
	}
	return s
}

func (c Command) String() string { return c.Text() }

// Format renders c as newline-terminated UTF-8 wire bytes.
//
// Parameter values containing ',', ':' or ';' are not escaped.
func Format(c Command) []byte {
	return []byte(c.Text() + "\n")
}

// FormatParam converts a parameter to its canonical decimal text.
func FormatParam(v any) string {
	switch p := v.(type) {
	case string:
		return p
	case float64:
		return FormatFloat(p)
	case float32:
		return FormatFloat(float64(p))
	case int:
		return strconv.Itoa(p)
	case int64:
		return strconv.FormatInt(p, 10)
	case int32:
		return strconv.FormatInt(int64(p), 10)
	case uint:
		return strconv.FormatUint(uint64(p), 10)
	case uint64:
		return strconv.FormatUint(p, 10)
	case bool:
		if p {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return p.String()
	default:
		return fmt.Sprint(p)
	}
}

// FormatFloat renders v with the shortest digits that round-trip, keeping a
// trailing ".0" on integral values (50 -> "50.0"). Magnitudes below 1e-4 or
// from 1e16 up use exponent form ("1e-05", "1e+16").
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
