// Package synth turns documented operations into request scenarios.
package synth

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/contract"
	"github.com/y0f/apifuzz/internal/sample"
)

// Names under which synthetic request schemas are registered.
const (
	GetSchemaPrefix  = "apifuzzGetSchema"
	BodySchemaPrefix = "apifuzzBodySchema"
)

// methodOrder fixes the order in which operations of one path are visited.
var methodOrder = []string{
	contract.MethodPost, contract.MethodPut, contract.MethodPatch,
	contract.MethodGet, contract.MethodDelete,
}

// Resolver produces structural examples for schemas of one dictionary.
type Resolver interface {
	Generate(name string) ([]sample.Example, error)
	Discriminators() []string
	PropertyTypes() map[string]string
}

// ResolverFactory binds a Resolver to a schema dictionary.
type ResolverFactory func(contract.Schemas) Resolver

// DefaultResolver binds the built-in sample generator.
func DefaultResolver(schemas contract.Schemas) Resolver {
	return sample.New(schemas)
}

type Synthesizer struct {
	newResolver ResolverFactory
	logger      *slog.Logger
}

func New(newResolver ResolverFactory, logger *slog.Logger) *Synthesizer {
	if newResolver == nil {
		newResolver = DefaultResolver
	}
	return &Synthesizer{newResolver: newResolver, logger: logger}
}

// Synthesize returns the scenarios for all operations of one path. The
// schema dictionary is only read; synthetic schemas go into copies.
func (s *Synthesizer) Synthesize(path string, ops map[string]*contract.Operation, schemas contract.Schemas) []*Scenario {
	var out []*Scenario
	for _, method := range methodOrder {
		op, ok := ops[method]
		if !ok || op == nil {
			continue
		}
		var scenarios []*Scenario
		if IsBodyMethod(method) {
			scenarios = s.bodyScenarios(path, method, op, schemas)
		} else {
			scenarios = s.queryScenarios(path, method, op, schemas)
		}
		s.logger.Debug("synthesized operation", "method", method, "path", path, "scenarios", len(scenarios))
		out = append(out, scenarios...)
	}
	return out
}

// SynthesizeDocument synthesizes every path of doc, up to jobs paths at a
// time. paths restricts the run when non-empty. Results keep sorted path
// order.
func (s *Synthesizer) SynthesizeDocument(ctx context.Context, doc *contract.Document, paths []string, jobs int) ([]*Scenario, error) {
	selected := doc.SortedPaths()
	if len(paths) > 0 {
		wanted := make(map[string]bool, len(paths))
		for _, p := range paths {
			wanted[p] = true
		}
		filtered := selected[:0:0]
		for _, p := range selected {
			if wanted[p] {
				filtered = append(filtered, p)
			}
		}
		selected = filtered
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("no contract paths selected")
	}

	results := make([][]*Scenario, len(selected))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(selected))))
	for i, path := range selected {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.Synthesize(path, doc.Paths[path].Operations(), doc.Components.Schemas)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []*Scenario
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func (s *Synthesizer) bodyScenarios(path, method string, op *contract.Operation, schemas contract.Schemas) []*Scenario {
	media := mediaType(op)
	if media == nil || media.Schema == nil {
		s.logger.Debug("no usable request media type, skipping", "method", method, "path", path)
		return nil
	}

	names, schemas := requestSchemaNames(media.Schema, op, schemas)
	if len(names) == 0 {
		s.logger.Warn("request schema cannot be resolved, skipping", "method", method, "path", path)
		return nil
	}

	headers := extractHeaders(op)
	responses := s.responseSamples(op, schemas)
	resolver := s.newResolver(schemas)

	var out []*Scenario
	for _, name := range names {
		payloads, err := generateSample(resolver, name)
		if err != nil {
			s.logger.Warn("request sample failed", "method", method, "path", path, "schema", name, "error", err)
			continue
		}
		if media.Schema.IsArray() {
			for i, p := range payloads {
				payloads[i] = compose.DuplicateArray(p)
			}
		}
		types := resolver.PropertyTypes()
		for _, payload := range payloads {
			out = append(out, &Scenario{
				Method:               method,
				Path:                 path,
				Headers:              headers,
				Payload:              payload,
				ResponseCodes:        op.ResponseCodes(),
				ReqSchema:            schemas[name],
				ReqSchemaName:        name,
				Operation:            op,
				Schemas:              schemas,
				Responses:            responses,
				RequestPropertyTypes: types,
			})
		}
	}
	return out
}

// queryScenarios handles GET-style operations. Path and query parameters
// become the properties of a synthetic object schema so the body pipeline
// can serve them.
func (s *Synthesizer) queryScenarios(path, method string, op *contract.Operation, schemas contract.Schemas) []*Scenario {
	synthetic := contract.NewObjectSchema()
	for _, p := range op.Parameters {
		if !p.Located(contract.InPath) && !p.Located(contract.InQuery) {
			continue
		}
		synthetic.AddProperty(p.Name, p.Schema)
		if p.Required {
			synthetic.Required = append(synthetic.Required, p.Name)
		}
	}

	name := GetSchemaPrefix + op.OperationID
	schemas = schemas.With(name, synthetic)

	resolver := s.newResolver(schemas)
	payloads, err := generateSample(resolver, name)
	if err != nil {
		s.logger.Warn("parameter sample failed", "method", method, "path", path, "error", err)
		return nil
	}

	headers := extractHeaders(op)
	responses := s.responseSamples(op, schemas)
	types := resolver.PropertyTypes()

	out := make([]*Scenario, 0, len(payloads))
	for _, payload := range payloads {
		out = append(out, &Scenario{
			Method:               method,
			Path:                 path,
			Headers:              headers,
			Payload:              payload,
			ResponseCodes:        op.ResponseCodes(),
			ReqSchema:            synthetic,
			ReqSchemaName:        name,
			Operation:            op,
			Schemas:              schemas,
			Responses:            responses,
			RequestPropertyTypes: types,
		})
	}
	return out
}

// responseSamples precomputes example bodies per documented response code.
func (s *Synthesizer) responseSamples(op *contract.Operation, schemas contract.Schemas) map[string][]string {
	resolver := s.newResolver(schemas)
	out := make(map[string][]string, len(op.Responses))
	for _, code := range op.ResponseCodes() {
		ref := responseSchemaRef(op.Responses[code])
		if ref == "" {
			out[code] = []string{}
			continue
		}
		samples, err := generateSample(resolver, contract.RefName(ref))
		if err != nil {
			s.logger.Debug("response sample failed", "code", code, "ref", ref, "error", err)
			out[code] = []string{}
			continue
		}
		out[code] = samples
	}
	return out
}

// generateSample runs the marker pipeline over the resolver's raw example.
func generateSample(r Resolver, name string) ([]string, error) {
	examples, err := r.Generate(name)
	if err != nil {
		return nil, err
	}
	if len(examples) == 0 {
		return nil, fmt.Errorf("schema %q produced no example", name)
	}
	return compose.Resolve(examples[0].Example, r.Discriminators())
}

func mediaType(op *contract.Operation) *contract.MediaType {
	if op.RequestBody == nil {
		return nil
	}
	if m, ok := op.RequestBody.Content[contract.MediaTypeJSON]; ok && m != nil {
		return m
	}
	return op.RequestBody.Content[contract.MediaTypeAny]
}

// requestSchemaNames resolves the schema names to sample for a request body.
// Inline schemas are registered under a synthetic name in a copy of the
// dictionary, which is returned alongside.
func requestSchemaNames(schema *contract.Schema, op *contract.Operation, schemas contract.Schemas) ([]string, contract.Schemas) {
	if schema.Ref != "" {
		return []string{contract.RefName(schema.Ref)}, schemas
	}
	if schema.IsArray() && schema.Items != nil && schema.Items.Ref != "" {
		return []string{contract.RefName(schema.Items.Ref)}, schemas
	}
	if len(schema.AnyOf) > 0 || len(schema.OneOf) > 0 {
		var names []string
		for _, branch := range append(append([]*contract.Schema{}, schema.AnyOf...), schema.OneOf...) {
			if branch.Ref != "" {
				names = append(names, contract.RefName(branch.Ref))
			}
		}
		return names, schemas
	}

	inline := schema
	if schema.IsArray() && schema.Items != nil {
		inline = schema.Items
	}
	name := BodySchemaPrefix + op.OperationID
	return []string{name}, schemas.With(name, inline)
}

func responseSchemaRef(resp *contract.Response) string {
	if resp == nil {
		return ""
	}
	if resp.Ref != "" {
		return resp.Ref
	}
	media, ok := resp.Content[contract.MediaTypeJSON]
	if !ok || media == nil || media.Schema == nil {
		return ""
	}
	if media.Schema.Ref != "" {
		return media.Schema.Ref
	}
	if media.Schema.IsArray() && media.Schema.Items != nil {
		return media.Schema.Items.Ref
	}
	return ""
}

func extractHeaders(op *contract.Operation) []Header {
	seen := make(map[string]bool)
	var headers []Header
	for _, p := range op.Parameters {
		if !p.Located(contract.InHeader) || seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		headers = append(headers, Header{Name: p.Name, Required: p.Required, Schema: p.Schema})
	}
	sort.Slice(headers, func(i, j int) bool { return headers[i].Name < headers[j].Name })
	return headers
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
