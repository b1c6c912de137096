package serial2csv

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Transform is the linear mapping applied to every record:
// (value - Offset) * Scale.
type Transform struct {
	Scale  float64
	Offset float64
}

// Apply maps a parsed value to its output value.
func (t Transform) Apply(v float64) float64 {
	return (v - t.Offset) * t.Scale
}

// Processor parses record text and applies a Transform.
//
// By default parsing is permissive: the longest numeric prefix after
// leading whitespace is used and text without one reads as 0. With strict
// set, the trimmed record must be a number in full and anything else is
// reported as ErrParseDegradation.
type Processor struct {
	transform Transform
	strict    bool
}

func NewProcessor(t Transform, strict bool) *Processor {
	return &Processor{transform: t, strict: strict}
}

// Transform returns the parameters the processor was built with.
func (p *Processor) Transform() Transform { return p.transform }

// Process parses record and returns the transformed value.
// It only fails in strict mode.
func (p *Processor) Process(record []byte) (float64, error) {
	if p.strict {
		v, err := parseStrict(record)
		if err != nil {
			return 0, err
		}
		return p.transform.Apply(v), nil
	}
	return p.transform.Apply(ParseLeadingFloat(record)), nil
}

func parseStrict(record []byte) (float64, error) {
	text := bytes.TrimSpace(record)
	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, fmt.Errorf("%w: %q", ErrParseDegradation, record)
	}
	return v, nil
}

// ParseLeadingFloat parses the longest decimal floating point prefix of b,
// skipping leading whitespace, and returns 0 when there is none.
// Trailing bytes are ignored. Values beyond float64 range saturate to ±Inf.
func ParseLeadingFloat(b []byte) float64 {
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	n := numericPrefix(b[i:])
	if n == 0 {
		return 0
	}
	text := b[i : i+n]
	if isNaN(text) {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(string(text), 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return v
}

// numericPrefix returns the length of the longest prefix of b that forms a
// decimal number, an infinity or a NaN, or 0 if there is none.
func numericPrefix(b []byte) int {
	i := 0
	if i < len(b) && (b[i] == '+' || b[i] == '-') {
		i++
	}
	if n := specialPrefix(b[i:]); n > 0 {
		return i + n
	}

	digits := 0
	for i < len(b) && isDigit(b[i]) {
		i++
		digits++
	}
	if i < len(b) && b[i] == '.' {
		j := i + 1
		frac := 0
		for j < len(b) && isDigit(b[j]) {
			j++
			frac++
		}
		if digits+frac > 0 {
			i = j
			digits += frac
		}
	}
	if digits == 0 {
		return 0
	}

	// An exponent only counts when at least one digit follows it.
	if i < len(b) && (b[i] == 'e' || b[i] == 'E') {
		j := i + 1
		if j < len(b) && (b[j] == '+' || b[j] == '-') {
			j++
		}
		k := j
		for k < len(b) && isDigit(b[k]) {
			k++
		}
		if k > j {
			i = k
		}
	}
	return i
}

func specialPrefix(b []byte) int {
	switch {
	case hasPrefixFold(b, "infinity"):
		return len("infinity")
	case hasPrefixFold(b, "inf"), hasPrefixFold(b, "nan"):
		return 3
	}
	return 0
}

// isNaN reports whether a numeric prefix spells NaN. strconv rejects a
// signed NaN, so it is handled here.
func isNaN(text []byte) bool {
	if len(text) > 0 && (text[0] == '+' || text[0] == '-') {
		text = text[1:]
	}
	return hasPrefixFold(text, "nan")
}

func hasPrefixFold(b []byte, prefix string) bool {
	return len(b) >= len(prefix) && bytes.EqualFold(b[:len(prefix)], []byte(prefix))
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// isSpace matches the C locale whitespace set.
func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}
