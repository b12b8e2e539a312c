package synth

import (
	"strings"

	"github.com/y0f/apifuzz/internal/contract"
)

// Header describes a header parameter of an operation.
type Header struct {
	Name     string
	Required bool
	Schema   *contract.Schema
}

// Scenario is one concrete request derived from a documented operation.
// Scenarios are shared between fuzzers and must not be modified after
// synthesis; fuzzers derive new payload strings instead.
type Scenario struct {
	Method        string
	Path          string
	Headers       []Header
	Payload       string
	ResponseCodes []string
	ReqSchema     *contract.Schema
	ReqSchemaName string
	Operation     *contract.Operation
	Schemas       contract.Schemas
	// Responses maps a documented response code to example bodies. An empty
	// list means the contract expects an empty body.
	Responses map[string][]string
	// RequestPropertyTypes maps "#"-separated request property paths to
	// their declared type.
	RequestPropertyTypes map[string]string
}

// DocumentedCodes returns the response codes listed in the contract.
func (s *Scenario) DocumentedCodes() []string {
	return s.ResponseCodes
}

// ResponseExamples returns the precomputed example bodies for code.
func (s *Scenario) ResponseExamples(code string) ([]string, bool) {
	ex, ok := s.Responses[code]
	return ex, ok
}

// HasBody reports whether the payload travels in the request body rather
// than in path and query parameters.
func (s *Scenario) HasBody() bool {
	return IsBodyMethod(s.Method)
}

// IsBodyMethod reports whether method carries a request body.
func IsBodyMethod(method string) bool {
	switch method {
	case contract.MethodPost, contract.MethodPut, contract.MethodPatch:
		return true
	}
	return false
}

// Fields returns the request property paths in sorted order.
func (s *Scenario) Fields() []string {
	return sortedKeys(s.RequestPropertyTypes)
}

// FieldSchema returns the declared schema of a request property path as
// listed by Fields, or nil when the request schema does not describe it.
func (s *Scenario) FieldSchema(field string) *contract.Schema {
	cur := s.ReqSchema
	for _, name := range strings.Split(field, "#") {
		if cur = s.property(cur, name, nil); cur == nil {
			return nil
		}
	}
	cur, _ = s.deref(cur, nil)
	return cur
}

// property finds name on sch, looking through array items and composed
// parts the same way sample payloads are built.
func (s *Scenario) property(sch *contract.Schema, name string, seen []string) *contract.Schema {
	sch, seen = s.deref(sch, seen)
	if sch == nil {
		return nil
	}
	if p, ok := sch.Properties[name]; ok {
		return p
	}
	if sch.IsArray() && sch.Items != nil {
		return s.property(sch.Items, name, seen)
	}
	for _, group := range [][]*contract.Schema{sch.AllOf, sch.OneOf, sch.AnyOf} {
		for _, part := range group {
			if p := s.property(part, name, seen); p != nil {
				return p
			}
		}
	}
	return nil
}

func (s *Scenario) deref(sch *contract.Schema, seen []string) (*contract.Schema, []string) {
	for sch != nil && sch.Ref != "" {
		name := contract.RefName(sch.Ref)
		for _, n := range seen {
			if n == name {
				return nil, seen
			}
		}
		seen = append(seen[:len(seen):len(seen)], name)
		sch = s.Schemas[name]
	}
	return sch, seen
}
