// Package sample generates structural example payloads from contract
// schemas. Composition is not resolved here: allOf parts are emitted under an
// ALL_OF key and oneOf/anyOf branches under marker keys, which the compose
// package later squashes and expands.
package sample

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/contract"
)

const defaultMaxDepth = 6

// Example is one raw payload produced for a schema.
type Example struct {
	Example string `json:"example"`
}

// Generator is bound to one schema dictionary. Discriminator paths and
// property types accumulate across Generate calls.
type Generator struct {
	schemas        contract.Schemas
	maxDepth       int
	discriminators map[string]bool
	propertyTypes  map[string]string
}

func New(schemas contract.Schemas) *Generator {
	return &Generator{
		schemas:        schemas,
		maxDepth:       defaultMaxDepth,
		discriminators: make(map[string]bool),
		propertyTypes:  make(map[string]string),
	}
}

// Generate returns the raw example for the named schema.
func (g *Generator) Generate(name string) ([]Example, error) {
	s, ok := g.schemas[name]
	if !ok || s == nil {
		return nil, fmt.Errorf("schema %q not found", name)
	}
	n := g.sample(s, "", []string{name})
	return []Example{{Example: n.String()}}, nil
}

// Discriminators returns "<property>#<discriminatorProperty>" paths in
// sorted order.
func (g *Generator) Discriminators() []string {
	out := make([]string, 0, len(g.discriminators))
	for d := range g.discriminators {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// PropertyTypes maps "#"-separated property paths to their declared type.
func (g *Generator) PropertyTypes() map[string]string {
	out := make(map[string]string, len(g.propertyTypes))
	for k, v := range g.propertyTypes {
		out[k] = v
	}
	return out
}

// deref follows $ref chains. stack holds the schema names on the current
// branch; a reference back into it is a cycle.
func (g *Generator) deref(s *contract.Schema, stack []string) (*contract.Schema, []string, bool) {
	for s != nil && s.Ref != "" {
		name := contract.RefName(s.Ref)
		for _, seen := range stack {
			if seen == name {
				return nil, stack, false
			}
		}
		stack = append(stack[:len(stack):len(stack)], name)
		s = g.schemas[name]
	}
	return s, stack, s != nil
}

func (g *Generator) sample(s *contract.Schema, path string, stack []string) *compose.Node {
	s, stack, ok := g.deref(s, stack)
	if !ok || len(stack) > g.maxDepth {
		return compose.NewObject()
	}

	switch {
	case s.IsComposed() || len(s.Properties) > 0 || s.Type == contract.TypeObject:
		return g.object(s, path, stack)
	case s.IsArray():
		arr := compose.NewArray()
		if s.Items != nil {
			arr.Append(g.sample(s.Items, path, stack))
		}
		return arr
	default:
		return primitive(s)
	}
}

func (g *Generator) object(s *contract.Schema, path string, stack []string) *compose.Node {
	obj := compose.NewObject()

	for _, prop := range s.PropertyNames() {
		childPath := compose.JoinPath(path, prop)
		child, childStack, ok := g.deref(s.Properties[prop], stack)
		if !ok {
			obj.Set(prop, compose.NewObject())
			continue
		}
		g.recordType(childPath, child)

		if len(child.OneOf) > 0 || len(child.AnyOf) > 0 {
			g.alternatives(obj, prop, child, childPath, childStack)
			if len(child.AllOf) == 0 && len(child.Properties) == 0 {
				continue
			}
		}
		obj.Set(prop, g.sample(child, childPath, childStack))
	}

	if len(s.AllOf) > 0 {
		all := compose.NewObject()
		for _, part := range s.AllOf {
			n := g.sample(part, path, stack)
			if n.IsObject() {
				mergeAllOf(all, n)
			}
		}
		obj.Set(compose.AllOf, all)
	}

	// composition declared on the schema itself is attached with an empty
	// property name and merged into the root on expansion
	if len(s.OneOf) > 0 || len(s.AnyOf) > 0 {
		g.alternatives(obj, "", s, path, stack)
	}
	return obj
}

// alternatives adds one marker member per oneOf/anyOf branch of s.
func (g *Generator) alternatives(obj *compose.Node, prop string, s *contract.Schema, path string, stack []string) {
	if s.Discriminator != nil && s.Discriminator.PropertyName != "" {
		g.discriminators[prop+"#"+s.Discriminator.PropertyName] = true
	}
	add := func(marker string, branches []*contract.Schema) {
		for i, b := range branches {
			if resolved, _, ok := g.deref(b, stack); ok && resolved.Discriminator != nil && resolved.Discriminator.PropertyName != "" {
				g.discriminators[prop+"#"+resolved.Discriminator.PropertyName] = true
			}
			obj.Set(compose.MarkerKey(prop, marker, branchRef(b, i)), g.sample(b, path, stack))
		}
	}
	add(compose.OneOf, s.OneOf)
	add(compose.AnyOf, s.AnyOf)
}

func branchRef(b *contract.Schema, i int) string {
	if b.Ref != "" {
		return b.Ref
	}
	if b.Title != "" {
		return "/inline/" + b.Title
	}
	return "/inline/Option" + strconv.Itoa(i+1)
}

// mergeAllOf copies src members into dst; nested ALL_OF objects are merged
// rather than overwritten so no part is lost before squashing.
func mergeAllOf(dst, src *compose.Node) {
	for _, m := range src.Members() {
		if strings.EqualFold(m.Key, compose.AllOf) {
			if existing := dst.Get(compose.AllOf); existing != nil && existing.IsObject() && m.Value.IsObject() {
				mergeAllOf(existing, m.Value)
				continue
			}
		}
		dst.Set(m.Key, m.Value)
	}
}

func (g *Generator) recordType(path string, s *contract.Schema) {
	typ := s.Type
	switch {
	case typ != "":
	case s.IsComposed() || len(s.Properties) > 0:
		typ = contract.TypeObject
	case s.Items != nil:
		typ = contract.TypeArray
	default:
		typ = contract.TypeString
	}
	if s.Format != "" {
		typ += ":" + s.Format
	}
	g.propertyTypes[path] = typ
}
