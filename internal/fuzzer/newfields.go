package fuzzer

import (
	"context"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/report"
	"github.com/y0f/apifuzz/internal/synth"
)

// FuzzyField is the property name added by NewFieldsFuzzer.
const FuzzyField = "apifuzzFuzzyField"

// NewFieldsFuzzer adds an undocumented property to the payload. Services
// are expected to ignore unknown properties.
type NewFieldsFuzzer struct {
	env Env
}

func NewNewFieldsFuzzer(env Env) *NewFieldsFuzzer {
	return &NewFieldsFuzzer{env: env}
}

func (f *NewFieldsFuzzer) Name() string { return "NewFieldsFuzzer" }

func (f *NewFieldsFuzzer) Description() string {
	return "send a request with a new, undocumented field added to the payload"
}

func (f *NewFieldsFuzzer) String() string { return f.Name() }

func (f *NewFieldsFuzzer) Fuzz(ctx context.Context, sc *synth.Scenario) error {
	expected := f.env.expect(f.Name(), report.Family2XX)
	return f.env.Ledger.Run(ctx, f.Name(), func(tc *report.TestCase) {
		tc.AddScenario("Add new field [%s] inside the request", FuzzyField)
		tc.AddExpectedResult("Should return [%s]", expected)

		payload, ok := withNewField(sc.Payload)
		if !ok {
			tc.Skip("Payload is not a JSON object or array")
			return
		}
		f.env.send(ctx, tc, sc, payload, expected)
	})
}

// withNewField adds FuzzyField to the payload object, or to every object
// element of a payload array.
func withNewField(payload string) (string, bool) {
	root, err := compose.Parse(payload)
	if err != nil {
		return payload, false
	}
	switch {
	case root.IsObject():
		root.Set(FuzzyField, compose.NewString(FuzzyField))
	case root.IsArray():
		for _, it := range root.Items() {
			if it.IsObject() {
				it.Set(FuzzyField, compose.NewString(FuzzyField))
			}
		}
	default:
		return payload, false
	}
	return root.String(), true
}
