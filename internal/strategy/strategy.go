// Package strategy describes how a fuzzed fragment is combined with the
// original value of a field.
package strategy

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KindReplace Kind = iota
	KindPrefix
	KindTrail
	KindSkip
	KindNoop
)

var kindNames = map[Kind]string{
	KindReplace: "REPLACE",
	KindPrefix:  "PREFIX",
	KindTrail:   "TRAIL",
	KindSkip:    "SKIP",
	KindNoop:    "NOOP",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

const truncateAt = 30

// Strategy is an immutable value. The zero value is REPLACE without data.
type Strategy struct {
	kind    Kind
	data    string
	hasData bool
}

func Replace() Strategy { return Strategy{kind: KindReplace} }
func Prefix() Strategy  { return Strategy{kind: KindPrefix} }
func Trail() Strategy   { return Strategy{kind: KindTrail} }
func Skip() Strategy    { return Strategy{kind: KindSkip} }
func Noop() Strategy    { return Strategy{kind: KindNoop} }

// WithData returns a copy carrying data.
func (s Strategy) WithData(data string) Strategy {
	s.data = data
	s.hasData = true
	return s
}

func (s Strategy) Kind() Kind { return s.kind }

func (s Strategy) Name() string { return s.kind.String() }

func (s Strategy) Data() string { return s.data }

func (s Strategy) IsSkip() bool { return s.kind == KindSkip }

// Process combines the strategy data with value.
func (s Strategy) Process(value string) string {
	switch s.kind {
	case KindPrefix:
		return s.data + value
	case KindTrail:
		return value + s.data
	case KindSkip:
		return value
	default: // REPLACE, NOOP
		return s.data
	}
}

// FromValue classifies a fuzzed marker value. A blank marker replaces with
// inner, leading whitespace prefixes with inner, trailing whitespace trails
// with inner, anything else replaces with the marker itself.
func FromValue(value, inner string) Strategy {
	if strings.TrimSpace(value) == "" {
		return Replace().WithData(inner)
	}
	if strings.HasPrefix(value, " ") || strings.HasPrefix(value, "\t") {
		return Prefix().WithData(inner)
	}
	if strings.HasSuffix(value, " ") || strings.HasSuffix(value, "\t") {
		return Trail().WithData(inner)
	}
	return Replace().WithData(value)
}

// MergeFuzzing classifies fuzzed and applies the result to supplied.
func MergeFuzzing(fuzzed, supplied, inner string) string {
	return FromValue(fuzzed, inner).Process(supplied)
}

// String renders the strategy with its full data.
func (s Strategy) String() string {
	if s.hasData {
		return s.Name() + " with " + s.data
	}
	return s.Name()
}

// Truncated renders the strategy for reports, cutting data at 30 characters.
func (s Strategy) Truncated() string {
	if !s.hasData {
		return s.Name()
	}
	data := s.data
	if len([]rune(data)) > truncateAt {
		data = string([]rune(data)[:truncateAt]) + "..."
	}
	return s.Name() + " with " + data
}
