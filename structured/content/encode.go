package content

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// NonFinite selects how NaN and ±Inf are written.
type NonFinite int

const (
	// NonFiniteNull writes null, keeping the output strict JSON.
	NonFiniteNull NonFinite = iota
	// NonFiniteString writes "NaN", "Infinity" or "-Infinity" as JSON strings.
	NonFiniteString
	// NonFiniteLiteral writes bare NaN, Infinity and -Infinity. The output is
	// not strict JSON but re-parses with ParseOptions.AllowNonFinite.
	NonFiniteLiteral
)

// EncodeOptions controls Encode.
type EncodeOptions struct {
	NonFinite NonFinite
	// Indent, when non-empty, pretty-prints with one Indent per level.
	Indent string
}

// Encode serializes v. Object members are written in insertion order.
func Encode(v Value, opts EncodeOptions) []byte {
	e := encoder{opts: opts}
	e.value(v, 0)
	return e.buf
}

// MarshalJSON implements json.Marshaler with strict output.
func (v Value) MarshalJSON() ([]byte, error) {
	return Encode(v, EncodeOptions{}), nil
}

// String returns the compact strict JSON text of v.
func (v Value) String() string {
	return string(Encode(v, EncodeOptions{}))
}

// Format implements fmt.Formatter so %v and %s print JSON text.
func (v Value) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 's':
		_, _ = f.Write(Encode(v, EncodeOptions{NonFinite: NonFiniteLiteral}))
	case 'q':
		_, _ = f.Write([]byte(strconv.Quote(v.String())))
	default:
		fmt.Fprintf(f, "%%!%c(content.Value=%s)", verb, v.String())
	}
}

type encoder struct {
	buf  []byte
	opts EncodeOptions
}

func (e *encoder) newline(level int) {
	if e.opts.Indent == "" {
		return
	}
	e.buf = append(e.buf, '\n')
	e.buf = append(e.buf, strings.Repeat(e.opts.Indent, level)...)
}

func (e *encoder) value(v Value, level int) {
	switch v.kind {
	case KindNull:
		e.buf = append(e.buf, "null"...)
	case KindBool:
		e.buf = strconv.AppendBool(e.buf, v.b)
	case KindNumber:
		e.number(v.n)
	case KindString:
		e.buf = appendQuoted(e.buf, v.s)
	case KindArray:
		if len(v.arr) == 0 {
			e.buf = append(e.buf, "[]"...)
			return
		}
		e.buf = append(e.buf, '[')
		for i, item := range v.arr {
			if i > 0 {
				e.buf = append(e.buf, ',')
			}
			e.newline(level + 1)
			e.value(item, level+1)
		}
		e.newline(level)
		e.buf = append(e.buf, ']')
	case KindObject:
		if v.obj.Len() == 0 {
			e.buf = append(e.buf, "{}"...)
			return
		}
		e.buf = append(e.buf, '{')
		for i, k := range v.obj.keys {
			if i > 0 {
				e.buf = append(e.buf, ',')
			}
			e.newline(level + 1)
			e.buf = appendQuoted(e.buf, k)
			e.buf = append(e.buf, ':')
			if e.opts.Indent != "" {
				e.buf = append(e.buf, ' ')
			}
			e.value(v.obj.fields[k], level+1)
		}
		e.newline(level)
		e.buf = append(e.buf, '}')
	}
}

func (e *encoder) number(f float64) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		word := "NaN"
		if math.IsInf(f, 1) {
			word = "Infinity"
		} else if math.IsInf(f, -1) {
			word = "-Infinity"
		}
		switch e.opts.NonFinite {
		case NonFiniteString:
			e.buf = appendQuoted(e.buf, word)
		case NonFiniteLiteral:
			e.buf = append(e.buf, word...)
		default:
			e.buf = append(e.buf, "null"...)
		}
		return
	}

	// Same shortest-representation rules as encoding/json.
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	e.buf = strconv.AppendFloat(e.buf, f, format, -1, 64)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(e.buf)
		if n >= 4 && e.buf[n-4] == 'e' && e.buf[n-3] == '-' && e.buf[n-2] == '0' {
			e.buf[n-2] = e.buf[n-1]
			e.buf = e.buf[:n-1]
		}
	}
}

var controlEsc = [' ']byte{
	'\b': 'b',
	'\f': 'f',
	'\n': 'n',
	'\r': 'r',
	'\t': 't',
}

const hexDigit = "0123456789abcdef"

// appendQuoted appends s as a JSON string literal.
func appendQuoted(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c < ' ':
				if esc := controlEsc[c]; esc != 0 {
					buf = append(buf, '\\', esc)
				} else {
					buf = append(buf, '\\', 'u', '0', '0', hexDigit[c>>4], hexDigit[c&15])
				}
			case c == '\\' || c == '"':
				buf = append(buf, '\\', c)
			default:
				buf = append(buf, c)
			}
			i++
			continue
		}

		r, n := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && n == 1:
			buf = append(buf, `\ufffd`...)
		case r == '\u2028':
			buf = append(buf, `\u2028`...)
		case r == '\u2029':
			buf = append(buf, `\u2029`...)
		default:
			buf = append(buf, s[i:i+n]...)
		}
		i += n
	}
	return append(buf, '"')
}
