package fuzzer

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/synth"
)

// FieldFuzzer runs one test case per (field, payload) pair offered by its
// variant.
type FieldFuzzer struct {
	variant Variant
	env     Env
}

func NewFieldFuzzer(v Variant, env Env) *FieldFuzzer {
	return &FieldFuzzer{variant: v, env: env}
}

func (f *FieldFuzzer) Name() string { return f.variant.Name() }

func (f *FieldFuzzer) Description() string {
	return "iterate through each field and send " + f.variant.Describe()
}

func (f *FieldFuzzer) String() string { return f.Name() }

func (f *FieldFuzzer) Fuzz(ctx context.Context, sc *synth.Scenario) error {
	var errs error
	for _, field := range sc.Fields() {
		typ := sc.RequestPropertyTypes[field]
		if !f.variant.BoundaryCheck(typ) {
			continue
		}
		payloads := []Payload{{Skip: true}}
		if !f.env.skipField(field) {
			payloads = f.variant.DataVariant(Field{Path: field, Type: typ, Schema: sc.FieldSchema(field)})
		}
		for _, p := range payloads {
			if err := ctx.Err(); err != nil {
				return multierr.Append(errs, err)
			}
			err := f.env.Ledger.Run(ctx, f.Name(), func(tc *report.TestCase) {
				f.run(ctx, tc, sc, field, p)
			})
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func (f *FieldFuzzer) run(ctx context.Context, tc *report.TestCase, sc *synth.Scenario, field string, p Payload) {
	expected := f.env.expect(f.Name(), f.variant.Expected())
	s := p.Strategy()
	tc.AddScenario("Send %s in request field [%s] using %s", f.variant.Describe(), field, s.Truncated())
	tc.AddExpectedResult("Should return [%s]", expected)

	if s.IsSkip() {
		tc.Skip("Field [" + field + "] is excluded from fuzzing")
		return
	}

	payload, ok := compose.WithField(sc.Payload, field, func(cur *compose.Node) *compose.Node {
		return apply(cur, p)
	})
	if !ok {
		tc.Skip("Field [" + field + "] is not present in the payload")
		return
	}
	f.env.send(ctx, tc, sc, payload, expected)
}

// apply merges p into the current value. String values stay strings; any
// other value is replaced by the result when it is valid JSON without
// padding and by a string otherwise.
func apply(cur *compose.Node, p Payload) *compose.Node {
	if cur.Kind() == compose.KindScalar && len(cur.Raw()) > 0 && cur.Raw()[0] == '"' {
		return compose.NewString(p.Merge(cur.Text()))
	}
	out := p.Merge(cur.String())
	if strings.TrimSpace(out) == out {
		if n, err := compose.Parse(out); err == nil {
			return n
		}
	}
	return compose.NewString(out)
}
