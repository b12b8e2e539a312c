package report

import (
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/diff"
	"github.com/y0f/apifuzz/internal/httpcall"
)

// Assertions are the facts a verdict is derived from.
type Assertions struct {
	MatchesSchema     bool
	CodeExpected      bool
	CodeDocumented    bool
	CodeUnimplemented bool
}

// Verdict is the outcome of classifying one response.
type Verdict struct {
	Result  string
	Details string
}

// Assess computes the assertions for resp.
func Assess(doc Documented, resp httpcall.Response, expected CodeFamily) Assertions {
	code := strconv.Itoa(resp.Code)
	return Assertions{
		MatchesSchema:     matchesResponseSchema(doc, resp),
		CodeExpected:      expected.Matches(resp.Code) || resp.Code == http.StatusNotImplemented,
		CodeDocumented:    slices.Contains(doc.DocumentedCodes(), code),
		CodeUnimplemented: resp.Code == http.StatusNotImplemented,
	}
}

// Classify applies the decision table. Rules are checked in order and the
// first match wins. 501 counts as expected, so a documented 501 is reported
// by the first rules rather than as unimplemented.
func Classify(a Assertions, resp httpcall.Response, expected CodeFamily, documented []string) Verdict {
	code := resp.Code
	switch {
	case a.CodeExpected && a.CodeDocumented && a.MatchesSchema:
		return Verdict{ResultSuccess, fmt.Sprintf("Response code %d matches the contract and the body matches the documented response", code)}
	case a.CodeExpected && a.CodeDocumented:
		return Verdict{ResultWarning, fmt.Sprintf("Response code %d matches the contract but the body does not match the documented response", code)}
	case a.CodeExpected:
		return Verdict{ResultWarning, fmt.Sprintf("Response code %d is in the expected family %s but is not documented; documented codes: %v", code, expected, documented)}
	case a.CodeDocumented:
		return Verdict{ResultError, fmt.Sprintf("Unexpected response code %d: expected %s, although %d is documented", code, expected, code)}
	case a.CodeUnimplemented:
		return Verdict{ResultWarning, "Response code 501: the functionality is not implemented"}
	default:
		return Verdict{ResultError, fmt.Sprintf("Unexpected behaviour: expected %s, got %d", expected, code)}
	}
}

// matchesResponseSchema is a structural heuristic, not a validator: every
// leaf property name of the body must occur somewhere in the text of one of
// the documented examples.
func matchesResponseSchema(doc Documented, resp httpcall.Response) bool {
	examples, _ := doc.ResponseExamples(strconv.Itoa(resp.Code))
	body := strings.TrimSpace(resp.Body)
	if len(examples) == 0 {
		return body == "" || body == "[]"
	}

	root, err := compose.Parse(body)
	if err != nil {
		return false
	}
	for _, ex := range examples {
		if matchesElement(ex, root, rootName) {
			return true
		}
	}
	return false
}

// rootName stands in for the property name of the body itself. No example
// contains it, so scalar and empty array bodies never match.
const rootName = "ROOT"

// matchesElement walks n; array elements inherit the name of the property
// holding the array. An empty array is judged by its name like a leaf.
func matchesElement(example string, n *compose.Node, name string) bool {
	switch n.Kind() {
	case compose.KindObject:
		for _, m := range n.Members() {
			if !matchesElement(example, m.Value, m.Key) {
				return false
			}
		}
		return true
	case compose.KindArray:
		if len(n.Items()) == 0 {
			return strings.Contains(example, name)
		}
		for _, it := range n.Items() {
			if !matchesElement(example, it, name) {
				return false
			}
		}
		return true
	default:
		return strings.Contains(example, name)
	}
}

// closestExample picks the example sharing the most lines with body, used
// to explain a mismatch.
func closestExample(doc Documented, resp httpcall.Response) (string, bool) {
	examples, _ := doc.ResponseExamples(strconv.Itoa(resp.Code))
	if len(examples) == 0 {
		return "", false
	}
	best, bestLen := examples[0], -1
	for _, ex := range examples {
		d := diff.JSON(ex, resp.Body)
		if bestLen < 0 || len(d) < bestLen {
			best, bestLen = ex, len(d)
		}
	}
	return best, true
}
