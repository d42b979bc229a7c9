package jsoncomplete

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/structflow/types"
)

// DefaultMaxDepth is the container nesting limit used when Options.MaxDepth is zero.
const DefaultMaxDepth = 64

var (
	// ErrDepthExceeded reports nesting past Options.MaxDepth. Callers may wait
	// for more input or abandon the current round.
	ErrDepthExceeded = types.NewError(types.ErrDepthExceeded, "json nesting exceeds maximum depth").WithRetryable(true)

	// ErrNotCompletable reports that no safe completion exists yet, e.g. for
	// empty input under the Conservative policy.
	ErrNotCompletable = types.NewError(types.ErrNotCompletable, "no safe completion yet").WithRetryable(true)

	// ErrMalformed reports input that is not a prefix of any JSON document.
	ErrMalformed = types.NewError(types.ErrMalformedJSON, "input is not a JSON prefix")
)

// Policy selects how truncated fragments are closed.
type Policy int

const (
	// Conservative keeps every complete token and pads missing values with null.
	Conservative Policy = iota
	// Repair deletes dangling keys and members instead of padding them.
	Repair
)

// String returns the policy name.
func (p Policy) String() string {
	switch p {
	case Conservative:
		return "conservative"
	case Repair:
		return "repair"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "conservative":
		return Conservative, nil
	case "repair", "aggressive":
		return Repair, nil
	default:
		return Conservative, fmt.Errorf("unknown completion policy %q", s)
	}
}

// Options controls a completion pass.
type Options struct {
	// MaxDepth bounds container nesting. Zero means DefaultMaxDepth.
	MaxDepth int
	// Policy selects conservative completion or aggressive repair.
	Policy Policy
	// AllowNonFinite accepts NaN, Infinity and -Infinity literals.
	AllowNonFinite bool
}

// DefaultOptions returns conservative options with the default depth.
func DefaultOptions() Options {
	return Options{MaxDepth: DefaultMaxDepth, Policy: Conservative}
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

// Result describes how to turn the input into valid JSON.
type Result struct {
	// Valid is set when the input is already a complete document.
	Valid bool
	// TruncateAt is the number of input bytes to keep.
	TruncateAt int
	// Suffix is appended after truncation.
	Suffix string
	// Drop lists offsets of bytes removed before truncation, ascending.
	// Repair uses it for commas that sit directly before a closer.
	Drop []int
}

// Apply returns the completed document for text. text is returned unchanged
// when r.Valid is set; otherwise a new slice is allocated.
func (r Result) Apply(text []byte) []byte {
	if r.Valid {
		return text
	}
	out := make([]byte, 0, r.TruncateAt+len(r.Suffix))
	prev := 0
	for _, d := range r.Drop {
		if d >= r.TruncateAt {
			break
		}
		out = append(out, text[prev:d]...)
		prev = d + 1
	}
	out = append(out, text[prev:r.TruncateAt]...)
	return append(out, r.Suffix...)
}

// ApplyString is the string form of Apply.
func (r Result) ApplyString(text string) string {
	if r.Valid {
		return text
	}
	if len(r.Drop) > 0 {
		return string(r.Apply([]byte(text)))
	}
	return text[:r.TruncateAt] + r.Suffix
}

// Complete computes the completion of text under opts.
func Complete(text []byte, opts Options) (Result, error) {
	c := &completer{buf: text, policy: opts.Policy, nonFinite: opts.AllowNonFinite, max: opts.maxDepth()}

	out, err := c.value(0, 0)
	if err != nil {
		return Result{}, err
	}
	switch out.st {
	case stAbsent:
		if opts.Policy == Repair {
			return Result{TruncateAt: 0, Suffix: "{}"}, nil
		}
		return Result{}, ErrNotCompletable
	case stPartial:
		return Result{TruncateAt: out.pos, Suffix: out.suffix, Drop: c.dropsBefore(out.pos)}, nil
	}

	if rest := c.skipSpace(out.pos); rest < len(text) {
		return Result{}, ErrMalformed.WithOffset(rest)
	}
	if len(c.drops) > 0 {
		return Result{TruncateAt: len(text), Drop: c.drops}, nil
	}
	return Result{Valid: true}, nil
}

// CompleteString is Complete for string input.
func CompleteString(text string, opts Options) (Result, error) {
	return Complete([]byte(text), opts)
}

// Completed runs Complete and applies the result.
func Completed(text []byte, opts Options) ([]byte, error) {
	r, err := Complete(text, opts)
	if err != nil {
		return nil, err
	}
	return r.Apply(text), nil
}

type state uint8

const (
	stComplete state = iota // value ends at pos
	stPartial               // keep buf[:pos], then append suffix
	stAbsent                // end of input before any value
)

type outcome struct {
	st     state
	pos    int
	suffix string
}

func complete(pos int) outcome { return outcome{st: stComplete, pos: pos} }

func partial(pos int, suffix string) outcome {
	return outcome{st: stPartial, pos: pos, suffix: suffix}
}

type completer struct {
	buf       []byte
	policy    Policy
	nonFinite bool
	max       int
	drops     []int
}

// dropsBefore returns the recorded drops that survive a cut at pos.
func (c *completer) dropsBefore(pos int) []int {
	for i, d := range c.drops {
		if d >= pos {
			return c.drops[:i]
		}
	}
	return c.drops
}

// closesAfterComma reports whether, under Repair, the comma at i is followed
// only by whitespace and the closer. The comma is then recorded for removal
// and the closer's offset returned.
func (c *completer) closesAfterComma(i int, closer byte) (int, bool) {
	if c.policy != Repair {
		return 0, false
	}
	k := c.skipSpace(i + 1)
	if k >= len(c.buf) || c.buf[k] != closer {
		return 0, false
	}
	c.drops = append(c.drops, i)
	return k, true
}

func (c *completer) skipSpace(i int) int {
	for i < len(c.buf) {
		switch c.buf[i] {
		case ' ', '\t', '\n', '\r':
			i++
		default:
			return i
		}
	}
	return i
}

// value dispatches on the first byte of the next value at or after i.
func (c *completer) value(i, depth int) (outcome, error) {
	i = c.skipSpace(i)
	if i >= len(c.buf) {
		return outcome{st: stAbsent, pos: i}, nil
	}

	switch b := c.buf[i]; {
	case b == '"':
		return c.str(i), nil
	case b == '{':
		return c.object(i, depth)
	case b == '[':
		return c.array(i, depth)
	case b == '-' && c.nonFinite && i+1 < len(c.buf) && c.buf[i+1] == 'I':
		return c.literal(i, "-Infinity")
	case b == '-' || isDigit(b):
		return c.number(i)
	case b == 't':
		return c.literal(i, "true")
	case b == 'f':
		return c.literal(i, "false")
	case b == 'n':
		return c.literal(i, "null")
	case b == 'N' && c.nonFinite:
		return c.literal(i, "NaN")
	case b == 'I' && c.nonFinite:
		return c.literal(i, "Infinity")
	default:
		return outcome{}, ErrMalformed.WithOffset(i)
	}
}

// str scans a string starting at the opening quote. An unterminated string
// is cut before any dangling escape or split multi-byte character and closed
// with a quote.
func (c *completer) str(i int) outcome {
	n := len(c.buf)
	for j := i + 1; j < n; {
		switch c.buf[j] {
		case '"':
			return complete(j + 1)
		case '\\':
			if j+1 >= n {
				return partial(j, `"`)
			}
			if c.buf[j+1] == 'u' {
				if j+6 > n {
					return partial(j, `"`)
				}
				j += 6
			} else {
				j += 2
			}
		default:
			j++
		}
	}
	return partial(cutIncompleteRune(c.buf, i+1, n), `"`)
}

// cutIncompleteRune returns the largest index <= hi such that b[lo:index]
// does not end inside a multi-byte UTF-8 sequence.
func cutIncompleteRune(b []byte, lo, hi int) int {
	for k := hi - 1; k >= lo && k >= hi-utf8.UTFMax; k-- {
		if utf8.RuneStart(b[k]) {
			if utf8.FullRune(b[k:hi]) {
				return hi
			}
			return k
		}
	}
	return hi
}

func (c *completer) number(i int) (outcome, error) {
	n := len(c.buf)
	j := i
	if c.buf[j] == '-' {
		j++
	}
	if j >= n {
		return partial(n, "0"), nil
	}
	if !isDigit(c.buf[j]) {
		return outcome{}, ErrMalformed.WithOffset(j)
	}
	for j < n && isDigit(c.buf[j]) {
		j++
	}

	if j < n && c.buf[j] == '.' {
		j++
		if j >= n {
			return partial(n, "0"), nil
		}
		if !isDigit(c.buf[j]) {
			return outcome{}, ErrMalformed.WithOffset(j)
		}
		for j < n && isDigit(c.buf[j]) {
			j++
		}
	}

	if j < n && (c.buf[j] == 'e' || c.buf[j] == 'E') {
		j++
		if j < n && (c.buf[j] == '+' || c.buf[j] == '-') {
			j++
		}
		if j >= n {
			return partial(n, "0"), nil
		}
		if !isDigit(c.buf[j]) {
			return outcome{}, ErrMalformed.WithOffset(j)
		}
		for j < n && isDigit(c.buf[j]) {
			j++
		}
	}
	return complete(j), nil
}

func (c *completer) literal(i int, word string) (outcome, error) {
	n := len(c.buf)
	k := 0
	for k < len(word) && i+k < n {
		if c.buf[i+k] != word[k] {
			return outcome{}, ErrNotCompletable.WithOffset(i + k)
		}
		k++
	}
	if k == len(word) {
		return complete(i + k), nil
	}
	return partial(n, word[k:]), nil
}

func (c *completer) enter(i, depth int) (int, error) {
	depth++
	if depth > c.max {
		return depth, ErrDepthExceeded.WithOffset(i)
	}
	return depth, nil
}

// dropOnRepair reports whether an element error is absorbed by closing the
// container at its last complete position.
func (c *completer) dropOnRepair(err error) bool {
	return c.policy == Repair && errors.Is(err, ErrNotCompletable)
}

func (c *completer) array(i, depth int) (outcome, error) {
	depth, err := c.enter(i, depth)
	if err != nil {
		return outcome{}, err
	}

	n := len(c.buf)
	closeAt := i + 1
	j := c.skipSpace(i + 1)
	if j >= n {
		return partial(closeAt, "]"), nil
	}
	if c.buf[j] == ']' {
		return complete(j + 1), nil
	}

	for {
		el, err := c.value(j, depth)
		if err != nil {
			if c.dropOnRepair(err) {
				return partial(closeAt, "]"), nil
			}
			return outcome{}, err
		}
		switch el.st {
		case stAbsent:
			return partial(closeAt, "]"), nil
		case stPartial:
			return partial(el.pos, el.suffix+"]"), nil
		}

		closeAt = el.pos
		j = c.skipSpace(el.pos)
		if j >= n {
			return partial(closeAt, "]"), nil
		}
		switch c.buf[j] {
		case ',':
			if k, ok := c.closesAfterComma(j, ']'); ok {
				return complete(k + 1), nil
			}
			j++
		case ']':
			return complete(j + 1), nil
		default:
			return outcome{}, ErrMalformed.WithOffset(j)
		}
	}
}

func (c *completer) object(i, depth int) (outcome, error) {
	depth, err := c.enter(i, depth)
	if err != nil {
		return outcome{}, err
	}

	n := len(c.buf)
	closeAt := i + 1
	j := c.skipSpace(i + 1)
	if j < n && c.buf[j] == '}' {
		return complete(j + 1), nil
	}

	for {
		if j >= n {
			return partial(closeAt, "}"), nil
		}
		if c.buf[j] != '"' {
			return outcome{}, ErrMalformed.WithOffset(j)
		}

		key := c.str(j)
		if key.st == stPartial {
			if c.policy == Repair {
				return partial(closeAt, "}"), nil
			}
			return partial(key.pos, key.suffix+": null}"), nil
		}

		k := c.skipSpace(key.pos)
		if k >= n {
			if c.policy == Repair {
				return partial(closeAt, "}"), nil
			}
			return partial(key.pos, ": null}"), nil
		}
		if c.buf[k] != ':' {
			return outcome{}, ErrMalformed.WithOffset(k)
		}

		val, err := c.value(k+1, depth)
		if err != nil {
			if c.dropOnRepair(err) {
				return partial(closeAt, "}"), nil
			}
			return outcome{}, err
		}
		switch val.st {
		case stAbsent:
			if c.policy == Repair {
				return partial(closeAt, "}"), nil
			}
			return partial(k+1, "null}"), nil
		case stPartial:
			return partial(val.pos, val.suffix+"}"), nil
		}

		closeAt = val.pos
		j = c.skipSpace(val.pos)
		if j >= n {
			return partial(closeAt, "}"), nil
		}
		switch c.buf[j] {
		case ',':
			if k, ok := c.closesAfterComma(j, '}'); ok {
				return complete(k + 1), nil
			}
			j = c.skipSpace(j + 1)
		case '}':
			return complete(j + 1), nil
		default:
			return outcome{}, ErrMalformed.WithOffset(j)
		}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
