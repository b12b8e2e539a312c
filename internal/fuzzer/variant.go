package fuzzer

import (
	"math"
	"strconv"
	"strings"

	"github.com/y0f/apifuzz/internal/contract"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/strategy"
)

// Variant configures a FieldFuzzer: which fields it touches, which values
// it sends and what it expects back.
type Variant interface {
	Name() string
	// Describe names the data sent, e.g. "values with leading spaces".
	Describe() string
	// BoundaryCheck reports whether a field of the declared type is fuzzed.
	// fieldType may carry a format suffix such as "string:email".
	BoundaryCheck(fieldType string) bool
	// DataVariant returns the values sent in one field, one test case
	// each.
	DataVariant(f Field) []Payload
	Expected() report.CodeFamily
}

// Field is a request property as seen by a variant.
type Field struct {
	Path string
	Type string
	// Schema is the declared schema, nil when the contract does not
	// describe the property.
	Schema *contract.Schema
}

// Payload is one fuzzed value. Marker is classified by strategy.FromValue
// to decide where Data goes relative to the value already in the field.
// A Skip payload leaves the field alone.
type Payload struct {
	Marker string
	Data   string
	Skip   bool
}

// Strategy returns the classified strategy, used to describe the test case.
func (p Payload) Strategy() strategy.Strategy {
	if p.Skip {
		return strategy.Skip()
	}
	return strategy.FromValue(p.Marker, p.Data)
}

// Merge applies the payload to the supplied value.
func (p Payload) Merge(supplied string) string {
	if p.Skip {
		return supplied
	}
	return strategy.MergeFuzzing(p.Marker, supplied, p.Data)
}

// Invisible character sets.
var charSets = map[string][]string{
	"whitespace": {" ", "\t", "\u00a0", "\u2002", "\u2003", "\u3000"},
	"zero_width": {"\u200b", "\u200c", "\u200d", "\u2060", "\ufeff"},
	"emoji":      {"\U0001F600", "\U0001F916", "\U0001F389", "\U0001F408"},
}

func baseType(fieldType string) string {
	t, _, _ := strings.Cut(fieldType, ":")
	return t
}

// Placement markers, classified by strategy.FromValue: the padding shows
// where the original value stays.
const (
	markerAlone    = ""
	markerLeading  = " {value}"
	markerTrailing = "{value} "
)

// charVariant sends invisible characters alone or around the original
// value of string fields.
type charVariant struct {
	name     string
	describe string
	chars    []string
	marker   string
	expected report.CodeFamily
}

func (v charVariant) Name() string                { return v.name }
func (v charVariant) Describe() string            { return v.describe }
func (v charVariant) Expected() report.CodeFamily { return v.expected }
func (v charVariant) BoundaryCheck(t string) bool { return baseType(t) == contract.TypeString }

func (v charVariant) DataVariant(Field) []Payload {
	out := make([]Payload, 0, len(v.chars))
	for _, c := range v.chars {
		out = append(out, Payload{Marker: v.marker, Data: c})
	}
	return out
}

var onlyInvisible = map[string]struct{ name, describe string }{
	"whitespace": {"OnlyWhitespacesInFieldsFuzzer", "values with unicode whitespaces only"},
	"zero_width": {"OnlyZeroWidthCharsInFieldsFuzzer", "values with zero-width characters only"},
	"emoji":      {"OnlySingleCodePointEmojisInFieldsFuzzer", "values with single code point emojis only"},
}

// OnlyInvisible replaces string values with characters from set. The
// service should reject them.
func OnlyInvisible(set string) (Variant, bool) {
	meta, ok := onlyInvisible[set]
	if !ok {
		return nil, false
	}
	return charVariant{
		name:     meta.name,
		describe: meta.describe,
		chars:    charSets[set],
		marker:   markerAlone,
		expected: report.Family4XX,
	}, true
}

// LeadingSpaces prefixes string values with whitespace. The service should
// trim and accept them.
func LeadingSpaces() Variant {
	return charVariant{
		name:     "LeadingWhitespacesInFieldsTrimValidateFuzzer",
		describe: "values prefixed with unicode whitespaces",
		chars:    charSets["whitespace"],
		marker:   markerLeading,
		expected: report.Family2XX,
	}
}

// TrailingSpaces appends whitespace to string values.
func TrailingSpaces() Variant {
	return charVariant{
		name:     "TrailingWhitespacesInFieldsTrimValidateFuzzer",
		describe: "values suffixed with unicode whitespaces",
		chars:    charSets["whitespace"],
		marker:   markerTrailing,
		expected: report.Family2XX,
	}
}

// boundaryVariant replaces numeric values with one out-of-range literal.
// bound, when set, derives the literal from the field schema instead.
type boundaryVariant struct {
	name     string
	describe string
	types    []string
	value    string
	bound    func(*contract.Schema) string
}

func (v boundaryVariant) Name() string                { return v.name }
func (v boundaryVariant) Describe() string            { return v.describe }
func (v boundaryVariant) Expected() report.CodeFamily { return report.Family4XX }

func (v boundaryVariant) BoundaryCheck(t string) bool {
	base := baseType(t)
	for _, want := range v.types {
		if base == want {
			return true
		}
	}
	return false
}

func (v boundaryVariant) DataVariant(f Field) []Payload {
	value := v.value
	if v.bound != nil {
		value = v.bound(f.Schema)
	}
	return []Payload{{Marker: value}}
}

func ExtremePositiveIntegers() Variant {
	return boundaryVariant{
		name:     "ExtremePositiveValueInIntegerFieldsFuzzer",
		describe: "extreme positive values in integer fields",
		types:    []string{contract.TypeInteger},
		value:    "9223372036854775807999999999999999",
	}
}

func ExtremeNegativeIntegers() Variant {
	return boundaryVariant{
		name:     "ExtremeNegativeValueInIntegerFieldsFuzzer",
		describe: "extreme negative values in integer fields",
		types:    []string{contract.TypeInteger},
		value:    "-9223372036854775808999999999999999",
	}
}

func ExtremePositiveDecimals() Variant {
	return boundaryVariant{
		name:     "ExtremePositiveValueDecimalFieldsFuzzer",
		describe: "extreme positive values in decimal fields",
		types:    []string{contract.TypeNumber},
		value:    "999999999999999999999999999999999999999999999999999999.99999999999",
	}
}

func ExtremeNegativeDecimals() Variant {
	return boundaryVariant{
		name:     "ExtremeNegativeValueDecimalFieldsFuzzer",
		describe: "extreme negative values in decimal fields",
		types:    []string{contract.TypeNumber},
		value:    "-999999999999999999999999999999999999999999999999999999.99999999999",
	}
}

// DecimalsLeftBoundary sends the first value below the declared minimum of
// decimal fields.
func DecimalsLeftBoundary() Variant {
	return boundaryVariant{
		name:     "DecimalFieldsLeftBoundaryFuzzer",
		describe: "values just below the minimum in decimal fields",
		types:    []string{contract.TypeNumber},
		bound:    decimalBelowMinimum,
	}
}

// decimalLowerBound lies below the most negative float64.
const decimalLowerBound = "-1.7976931348623157e+309"

const decimalStep = 0.01

// decimalBelowMinimum returns a decimal under s.Minimum, or under every
// float64 when no minimum is declared.
func decimalBelowMinimum(s *contract.Schema) string {
	if s == nil || s.Minimum == nil {
		return decimalLowerBound
	}
	below := *s.Minimum - decimalStep
	if below == *s.Minimum {
		below = math.Nextafter(below, math.Inf(-1))
	}
	if math.IsInf(below, -1) {
		return decimalLowerBound
	}
	return strconv.FormatFloat(below, 'f', -1, 64)
}
