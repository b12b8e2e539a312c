// Package contract holds the typed model of an OpenAPI 3 document: paths,
// operations, parameters and the component schema dictionary.
package contract

import (
	"sort"
	"strings"
)

// HTTP methods the fuzzer knows how to synthesize scenarios for.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodPatch  = "PATCH"
	MethodDelete = "DELETE"
)

// Parameter locations.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

const (
	MediaTypeJSON = "application/json"
	MediaTypeAny  = "*/*"
)

type Document struct {
	OpenAPI    string               `yaml:"openapi"`
	Info       Info                 `yaml:"info"`
	Servers    []Server             `yaml:"servers"`
	Paths      map[string]*PathItem `yaml:"paths"`
	Components Components           `yaml:"components"`
}

type Info struct {
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

type Server struct {
	URL string `yaml:"url"`
}

type Components struct {
	Schemas       Schemas                 `yaml:"schemas"`
	Parameters    map[string]*Parameter   `yaml:"parameters"`
	RequestBodies map[string]*RequestBody `yaml:"requestBodies"`
	Responses     map[string]*Response    `yaml:"responses"`
}

// Schemas is the schema dictionary, keyed by component name. It is read-only
// once the document is loaded.
type Schemas map[string]*Schema

// With returns a copy of the dictionary with name bound to s. The receiver
// is left untouched.
func (s Schemas) With(name string, schema *Schema) Schemas {
	out := make(Schemas, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[name] = schema
	return out
}

type PathItem struct {
	Parameters []*Parameter `yaml:"parameters"`
	Get        *Operation   `yaml:"get"`
	Put        *Operation   `yaml:"put"`
	Post       *Operation   `yaml:"post"`
	Patch      *Operation   `yaml:"patch"`
	Delete     *Operation   `yaml:"delete"`
}

// Operations returns the documented operations keyed by upper-case method.
func (p *PathItem) Operations() map[string]*Operation {
	ops := make(map[string]*Operation)
	for method, op := range map[string]*Operation{
		MethodGet: p.Get, MethodPut: p.Put, MethodPost: p.Post,
		MethodPatch: p.Patch, MethodDelete: p.Delete,
	} {
		if op != nil {
			ops[method] = op
		}
	}
	return ops
}

type Operation struct {
	OperationID string               `yaml:"operationId"`
	Summary     string               `yaml:"summary"`
	Tags        []string             `yaml:"tags"`
	Parameters  []*Parameter         `yaml:"parameters"`
	RequestBody *RequestBody         `yaml:"requestBody"`
	Responses   map[string]*Response `yaml:"responses"`
}

// ResponseCodes returns the documented response codes in sorted order.
func (o *Operation) ResponseCodes() []string {
	codes := make([]string, 0, len(o.Responses))
	for code := range o.Responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

type Parameter struct {
	Ref      string  `yaml:"$ref"`
	Name     string  `yaml:"name"`
	In       string  `yaml:"in"`
	Required bool    `yaml:"required"`
	Schema   *Schema `yaml:"schema"`
}

// Located reports whether the parameter lives in the given location,
// ignoring case.
func (p *Parameter) Located(in string) bool {
	return strings.EqualFold(p.In, in)
}

type RequestBody struct {
	Ref      string                `yaml:"$ref"`
	Required bool                  `yaml:"required"`
	Content  map[string]*MediaType `yaml:"content"`
}

type MediaType struct {
	Schema *Schema `yaml:"schema"`
}

type Response struct {
	Ref         string                `yaml:"$ref"`
	Description string                `yaml:"description"`
	Content     map[string]*MediaType `yaml:"content"`
}

// RefName returns the last path segment of a reference such as
// "#/components/schemas/Pet".
func RefName(ref string) string {
	return ref[strings.LastIndex(ref, "/")+1:]
}
