package content

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/BaSui01/structflow/structured/jsoncomplete"
	"github.com/BaSui01/structflow/types"
)

// ErrParseFailed reports text that is not valid JSON. Errors returned by Parse
// match it with errors.Is and carry the failing byte offset.
var ErrParseFailed = types.NewError(types.ErrParseFailed, "invalid JSON")

// ParseOptions controls Parse.
type ParseOptions struct {
	// MaxDepth bounds container nesting. Zero means jsoncomplete.DefaultMaxDepth.
	MaxDepth int
	// AllowNonFinite accepts NaN, Infinity and -Infinity literals.
	AllowNonFinite bool
}

// Parse decodes a single JSON document. Object member order is preserved;
// numbers are decoded as float64.
func Parse(data []byte, opts ParseOptions) (Value, error) {
	p := &parser{buf: data, nonFinite: opts.AllowNonFinite, max: opts.MaxDepth}
	if p.max <= 0 {
		p.max = jsoncomplete.DefaultMaxDepth
	}

	p.skipSpace()
	v, err := p.value(0)
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos < len(p.buf) {
		return Value{}, p.errorf("unexpected %q after top-level value", p.buf[p.pos])
	}
	return v, nil
}

// ParseString is Parse for string input.
func ParseString(text string, opts ParseOptions) (Value, error) {
	return Parse([]byte(text), opts)
}

type parser struct {
	buf       []byte
	pos       int
	nonFinite bool
	max       int
}

func (p *parser) errorf(format string, args ...any) error {
	return types.Errorf(types.ErrParseFailed, format, args...).WithOffset(p.pos)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.buf) {
		switch p.buf[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) value(depth int) (Value, error) {
	if p.pos >= len(p.buf) {
		return Value{}, p.errorf("unexpected end of input")
	}

	switch c := p.buf[p.pos]; {
	case c == '{':
		return p.object(depth + 1)
	case c == '[':
		return p.array(depth + 1)
	case c == '"':
		s, err := p.str()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == 't':
		return Bool(true), p.word("true")
	case c == 'f':
		return Bool(false), p.word("false")
	case c == 'n':
		return Null(), p.word("null")
	case c == 'N' && p.nonFinite:
		return Number(math.NaN()), p.word("NaN")
	case c == 'I' && p.nonFinite:
		return Number(math.Inf(1)), p.word("Infinity")
	case c == '-' && p.nonFinite && p.pos+1 < len(p.buf) && p.buf[p.pos+1] == 'I':
		return Number(math.Inf(-1)), p.word("-Infinity")
	case c == '-' || (c >= '0' && c <= '9'):
		return p.number()
	default:
		return Value{}, p.errorf("unexpected %q", c)
	}
}

func (p *parser) word(w string) error {
	if p.pos+len(w) > len(p.buf) || string(p.buf[p.pos:p.pos+len(w)]) != w {
		return p.errorf("invalid literal, want %q", w)
	}
	p.pos += len(w)
	return nil
}

func (p *parser) digits() int {
	start := p.pos
	for p.pos < len(p.buf) && p.buf[p.pos] >= '0' && p.buf[p.pos] <= '9' {
		p.pos++
	}
	return p.pos - start
}

func (p *parser) number() (Value, error) {
	start := p.pos
	if p.buf[p.pos] == '-' {
		p.pos++
	}
	lead := p.pos
	if p.digits() == 0 {
		return Value{}, p.errorf("invalid number")
	}
	if p.buf[lead] == '0' && p.pos-lead > 1 {
		p.pos = lead
		return Value{}, p.errorf("invalid number: leading zero")
	}
	if p.pos < len(p.buf) && p.buf[p.pos] == '.' {
		p.pos++
		if p.digits() == 0 {
			return Value{}, p.errorf("invalid number: missing fraction digits")
		}
	}
	if p.pos < len(p.buf) && (p.buf[p.pos] == 'e' || p.buf[p.pos] == 'E') {
		p.pos++
		if p.pos < len(p.buf) && (p.buf[p.pos] == '+' || p.buf[p.pos] == '-') {
			p.pos++
		}
		if p.digits() == 0 {
			return Value{}, p.errorf("invalid number: missing exponent digits")
		}
	}

	// Out-of-range literals saturate to ±Inf or 0, matching float64 semantics.
	f, err := strconv.ParseFloat(string(p.buf[start:p.pos]), 64)
	if err != nil && !isRangeErr(err) {
		return Value{}, p.errorf("invalid number: %v", err)
	}
	return Number(f), nil
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// str decodes a quoted string starting at the opening quote.
func (p *parser) str() (string, error) {
	p.pos++ // opening quote
	start := p.pos

	// Fast path: no escapes.
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		if c == '"' {
			s := string(p.buf[start:p.pos])
			p.pos++
			return validUTF8(s), nil
		}
		if c == '\\' {
			break
		}
		if c < ' ' {
			return "", p.errorf("control character %q in string", c)
		}
		p.pos++
	}

	var sb strings.Builder
	sb.Write(p.buf[start:p.pos])
	for p.pos < len(p.buf) {
		c := p.buf[p.pos]
		switch {
		case c == '"':
			p.pos++
			return validUTF8(sb.String()), nil
		case c < ' ':
			return "", p.errorf("control character %q in string", c)
		case c != '\\':
			sb.WriteByte(c)
			p.pos++
			continue
		}

		if p.pos+1 >= len(p.buf) {
			return "", p.errorf("incomplete escape sequence")
		}
		esc := p.buf[p.pos+1]
		p.pos += 2
		switch esc {
		case '"', '\\', '/':
			sb.WriteByte(esc)
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'u':
			r, err := p.hex4()
			if err != nil {
				return "", err
			}
			if utf16.IsSurrogate(r) {
				r = p.lowSurrogate(r)
			}
			sb.WriteRune(r)
		default:
			p.pos -= 1
			return "", p.errorf("invalid escape %q", esc)
		}
	}
	return "", p.errorf("unterminated string")
}

func (p *parser) hex4() (rune, error) {
	if p.pos+4 > len(p.buf) {
		return 0, p.errorf("incomplete unicode escape")
	}
	var r rune
	for _, b := range p.buf[p.pos : p.pos+4] {
		r <<= 4
		switch {
		case b >= '0' && b <= '9':
			r += rune(b - '0')
		case b >= 'a' && b <= 'f':
			r += rune(b - 'a' + 10)
		case b >= 'A' && b <= 'F':
			r += rune(b - 'A' + 10)
		default:
			return 0, p.errorf("invalid hex digit %q", b)
		}
	}
	p.pos += 4
	return r, nil
}

// lowSurrogate combines hi with a following \uDCxx escape. A lone surrogate
// decodes to the replacement rune.
func (p *parser) lowSurrogate(hi rune) rune {
	if p.pos+6 > len(p.buf) || p.buf[p.pos] != '\\' || p.buf[p.pos+1] != 'u' {
		return utf8.RuneError
	}
	save := p.pos
	p.pos += 2
	lo, err := p.hex4()
	if err != nil {
		p.pos = save
		return utf8.RuneError
	}
	if r := utf16.DecodeRune(hi, lo); r != utf8.RuneError {
		return r
	}
	p.pos = save
	return utf8.RuneError
}

func validUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}

func (p *parser) array(depth int) (Value, error) {
	if depth > p.max {
		return Value{}, jsoncomplete.ErrDepthExceeded.WithOffset(p.pos)
	}
	p.pos++ // [
	p.skipSpace()

	var items []Value
	if p.pos < len(p.buf) && p.buf[p.pos] == ']' {
		p.pos++
		return Value{kind: KindArray, arr: items}, nil
	}
	for {
		p.skipSpace()
		v, err := p.value(depth)
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)

		p.skipSpace()
		if p.pos >= len(p.buf) {
			return Value{}, p.errorf("unterminated array")
		}
		switch p.buf[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Value{kind: KindArray, arr: items}, nil
		default:
			return Value{}, p.errorf("expected ',' or ']', got %q", p.buf[p.pos])
		}
	}
}

func (p *parser) object(depth int) (Value, error) {
	if depth > p.max {
		return Value{}, jsoncomplete.ErrDepthExceeded.WithOffset(p.pos)
	}
	p.pos++ // {
	p.skipSpace()

	obj := newObject(4)
	if p.pos < len(p.buf) && p.buf[p.pos] == '}' {
		p.pos++
		return Value{kind: KindObject, obj: obj}, nil
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.buf) || p.buf[p.pos] != '"' {
			return Value{}, p.errorf("expected object key")
		}
		key, err := p.str()
		if err != nil {
			return Value{}, err
		}

		p.skipSpace()
		if p.pos >= len(p.buf) || p.buf[p.pos] != ':' {
			return Value{}, p.errorf("expected ':' after object key")
		}
		p.pos++
		p.skipSpace()

		v, err := p.value(depth)
		if err != nil {
			return Value{}, err
		}
		obj.add(key, v)

		p.skipSpace()
		if p.pos >= len(p.buf) {
			return Value{}, p.errorf("unterminated object")
		}
		switch p.buf[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Value{kind: KindObject, obj: obj}, nil
		default:
			return Value{}, p.errorf("expected ',' or '}', got %q", p.buf[p.pos])
		}
	}
}
