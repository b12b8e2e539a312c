package contract

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// Schema types.
const (
	TypeObject  = "object"
	TypeArray   = "array"
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

type Schema struct {
	Ref           string             `yaml:"$ref"`
	Title         string             `yaml:"title"`
	Type          string             `yaml:"type"`
	Format        string             `yaml:"format"`
	Pattern       string             `yaml:"pattern"`
	Properties    map[string]*Schema `yaml:"properties"`
	Required      []string           `yaml:"required"`
	Items         *Schema            `yaml:"items"`
	AllOf         []*Schema          `yaml:"allOf"`
	OneOf         []*Schema          `yaml:"oneOf"`
	AnyOf         []*Schema          `yaml:"anyOf"`
	Discriminator *Discriminator     `yaml:"discriminator"`
	Enum          []any              `yaml:"enum"`
	Example       any                `yaml:"example"`
	Default       any                `yaml:"default"`
	Minimum       *float64           `yaml:"minimum"`
	Maximum       *float64           `yaml:"maximum"`
	MinLength     *int               `yaml:"minLength"`
	MaxLength     *int               `yaml:"maxLength"`
	Nullable      bool               `yaml:"nullable"`

	// propertyOrder keeps the declaration order of Properties.
	propertyOrder []string
}

type Discriminator struct {
	PropertyName string `yaml:"propertyName"`
}

// UnmarshalYAML decodes the schema and records the order in which its
// properties were declared, which the plain map decoding loses.
func (s *Schema) UnmarshalYAML(value *yaml.Node) error {
	type plain Schema
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = Schema(p)

	if value.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value != "properties" || value.Content[i+1].Kind != yaml.MappingNode {
			continue
		}
		props := value.Content[i+1].Content
		for j := 0; j+1 < len(props); j += 2 {
			s.propertyOrder = append(s.propertyOrder, props[j].Value)
		}
	}
	return nil
}

// NewObjectSchema returns an empty object schema.
func NewObjectSchema() *Schema {
	return &Schema{Type: TypeObject, Properties: make(map[string]*Schema)}
}

// AddProperty appends a property, keeping declaration order.
func (s *Schema) AddProperty(name string, prop *Schema) {
	if s.Properties == nil {
		s.Properties = make(map[string]*Schema)
	}
	if _, exists := s.Properties[name]; !exists {
		s.propertyOrder = append(s.propertyOrder, name)
	}
	s.Properties[name] = prop
}

// PropertyNames returns property names in declaration order. Properties
// with no recorded position are appended in sorted order.
func (s *Schema) PropertyNames() []string {
	names := make([]string, 0, len(s.Properties))
	seen := make(map[string]bool, len(s.Properties))
	for _, n := range s.propertyOrder {
		if _, ok := s.Properties[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	var rest []string
	for n := range s.Properties {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func (s *Schema) IsRequired(name string) bool {
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

func (s *Schema) IsArray() bool {
	return s.Type == TypeArray || (s.Type == "" && s.Items != nil)
}

func (s *Schema) IsComposed() bool {
	return len(s.AllOf) > 0 || len(s.OneOf) > 0 || len(s.AnyOf) > 0
}
