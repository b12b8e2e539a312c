package contract

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var nonIdentChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Load reads an OpenAPI 3 document in YAML or JSON form.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read contract: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document and resolves component references for
// parameters and request bodies. Schema references are left in place; they
// are resolved lazily against the schema dictionary.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse contract: %w", err)
	}
	if len(doc.Paths) == 0 {
		return nil, fmt.Errorf("contract has no paths")
	}
	if doc.Components.Schemas == nil {
		doc.Components.Schemas = make(Schemas)
	}

	for _, path := range doc.SortedPaths() {
		item := doc.Paths[path]
		if item == nil {
			return nil, fmt.Errorf("path %s: empty path item", path)
		}
		common, err := doc.resolveParameters(item.Parameters)
		if err != nil {
			return nil, fmt.Errorf("path %s: %w", path, err)
		}
		for method, op := range item.Operations() {
			if err := doc.resolveOperation(path, method, op, common); err != nil {
				return nil, fmt.Errorf("%s %s: %w", method, path, err)
			}
		}
	}
	return &doc, nil
}

// SortedPaths returns the document paths in lexical order.
func (d *Document) SortedPaths() []string {
	paths := make([]string, 0, len(d.Paths))
	for p := range d.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (d *Document) resolveOperation(path, method string, op *Operation, common []*Parameter) error {
	if op.OperationID == "" {
		op.OperationID = strings.ToLower(method) + nonIdentChars.ReplaceAllString(path, "_")
	}

	own, err := d.resolveParameters(op.Parameters)
	if err != nil {
		return err
	}
	op.Parameters = mergeParameters(common, own)

	if op.RequestBody != nil && op.RequestBody.Ref != "" {
		rb, ok := d.Components.RequestBodies[RefName(op.RequestBody.Ref)]
		if !ok {
			return fmt.Errorf("unresolved request body %s", op.RequestBody.Ref)
		}
		op.RequestBody = rb
	}
	if op.Responses == nil {
		op.Responses = make(map[string]*Response)
	}
	for code, resp := range op.Responses {
		if resp == nil {
			op.Responses[code] = &Response{}
		}
	}
	return nil
}

func (d *Document) resolveParameters(params []*Parameter) ([]*Parameter, error) {
	out := make([]*Parameter, 0, len(params))
	for _, p := range params {
		if p == nil {
			continue
		}
		if p.Ref != "" {
			resolved, ok := d.Components.Parameters[RefName(p.Ref)]
			if !ok {
				return nil, fmt.Errorf("unresolved parameter %s", p.Ref)
			}
			p = resolved
		}
		if p.Name == "" || p.In == "" {
			return nil, fmt.Errorf("parameter missing name or location")
		}
		if p.Schema == nil {
			p.Schema = &Schema{Type: TypeString}
		}
		out = append(out, p)
	}
	return out, nil
}

// mergeParameters applies path-level parameters unless the operation
// redefines the same name and location.
func mergeParameters(common, own []*Parameter) []*Parameter {
	merged := make([]*Parameter, 0, len(common)+len(own))
	for _, c := range common {
		overridden := false
		for _, o := range own {
			if o.Name == c.Name && strings.EqualFold(o.In, c.In) {
				overridden = true
				break
			}
		}
		if !overridden {
			merged = append(merged, c)
		}
	}
	return append(merged, own...)
}
