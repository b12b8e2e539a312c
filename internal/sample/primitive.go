package sample

import (
	"strconv"
	"strings"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/contract"
)

var formatExamples = map[string]string{
	"date-time": "2020-01-01T10:00:00Z",
	"date":      "2020-01-01",
	"time":      "10:00:00",
	"uuid":      "8b2b6a8e-3a0f-4c9f-9d57-3a2f5c1e7b10",
	"email":     "apifuzz@example.com",
	"uri":       "https://example.com",
	"url":       "https://example.com",
	"hostname":  "example.com",
	"ipv4":      "127.0.0.1",
	"ipv6":      "::1",
	"byte":      "YXBpZnV6eg==",
	"password":  "apifuzz-secret",
}

func primitive(s *contract.Schema) *compose.Node {
	if v := declaredValue(s); v != nil {
		if n, err := compose.NewValue(v); err == nil {
			return n
		}
	}

	switch s.Type {
	case contract.TypeInteger:
		return compose.NewRaw(strconv.FormatInt(integerValue(s), 10))
	case contract.TypeNumber:
		return compose.NewRaw(strconv.FormatFloat(numberValue(s), 'f', -1, 64))
	case contract.TypeBoolean:
		return compose.NewRaw("true")
	default:
		return compose.NewString(stringValue(s))
	}
}

func declaredValue(s *contract.Schema) any {
	if s.Example != nil {
		return s.Example
	}
	if len(s.Enum) > 0 && s.Enum[0] != nil {
		return s.Enum[0]
	}
	return s.Default
}

func integerValue(s *contract.Schema) int64 {
	if s.Minimum != nil {
		return int64(*s.Minimum)
	}
	if s.Maximum != nil && *s.Maximum < 1 {
		return int64(*s.Maximum)
	}
	return 1
}

func numberValue(s *contract.Schema) float64 {
	if s.Minimum != nil {
		return *s.Minimum
	}
	if s.Maximum != nil && *s.Maximum < 1.5 {
		return *s.Maximum
	}
	return 1.5
}

func stringValue(s *contract.Schema) string {
	v, ok := formatExamples[s.Format]
	if !ok {
		v = "string"
	}
	if s.MinLength != nil && len(v) < *s.MinLength {
		v += strings.Repeat("a", *s.MinLength-len(v))
	}
	if s.MaxLength != nil && *s.MaxLength >= 0 && len(v) > *s.MaxLength {
		v = v[:*s.MaxLength]
	}
	return v
}
