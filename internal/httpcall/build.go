package httpcall

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/y0f/apifuzz/internal/compose"
	"github.com/y0f/apifuzz/internal/contract"
	"github.com/y0f/apifuzz/internal/synth"
)

// Build turns a scenario and a (possibly fuzzed) payload into a request.
// Path parameters are taken from the payload's top-level fields. For
// body-bearing methods the payload is the body; otherwise the remaining
// fields become the query string. headers override the defaults.
func Build(baseURL string, sc *synth.Scenario, payload string, headers map[string]string) Request {
	root, err := compose.Parse(payload)
	if err != nil || !root.IsObject() {
		root = nil
	}

	path := sc.Path
	used := make(map[string]bool)
	if sc.Operation != nil {
		for _, p := range sc.Operation.Parameters {
			if !p.Located(contract.InPath) {
				continue
			}
			value := placeholder(p.Schema)
			if root != nil {
				if v := root.Get(p.Name); v != nil {
					value = v.Text()
					used[p.Name] = true
				}
			}
			path = strings.ReplaceAll(path, "{"+p.Name+"}", url.PathEscape(value))
		}
	}

	req := Request{
		Method:  sc.Method,
		URL:     strings.TrimRight(baseURL, "/") + path,
		Headers: map[string]string{"Accept": "application/json"},
	}

	if sc.HasBody() {
		req.Body = payload
		req.Headers["Content-Type"] = "application/json"
	} else if root != nil {
		query := url.Values{}
		for _, m := range root.Members() {
			if used[m.Key] {
				continue
			}
			query.Add(m.Key, m.Value.Text())
		}
		if len(query) > 0 {
			req.URL += "?" + query.Encode()
		}
	}

	for _, h := range sc.Headers {
		if h.Required {
			req.Headers[h.Name] = placeholder(h.Schema)
		}
	}
	for k, v := range headers {
		req.Headers[k] = v
	}
	return req
}

// placeholder picks a plausible value for a parameter that the payload does
// not carry.
func placeholder(s *contract.Schema) string {
	if s == nil {
		return "apifuzz"
	}
	if s.Example != nil {
		return fmt.Sprint(s.Example)
	}
	if len(s.Enum) > 0 && s.Enum[0] != nil {
		return fmt.Sprint(s.Enum[0])
	}
	switch s.Type {
	case contract.TypeInteger, contract.TypeNumber:
		return "1"
	case contract.TypeBoolean:
		return "true"
	}
	return "apifuzz"
}
