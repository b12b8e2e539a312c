package compose

import (
	"fmt"
	"strings"
)

// Composition markers embedded in property keys by the sample resolver.
// A ONE_OF/ANY_OF key has the form "<property><MARKER>#<ref>", where the last
// "/" segment of <ref> names the subtype, e.g. "petONE_OF#/components/schemas/Cat".
const (
	AllOf = "ALL_OF"
	OneOf = "ONE_OF"
	AnyOf = "ANY_OF"
)

// Resolve squashes ALL_OF markers in payload and expands top-level
// ONE_OF/ANY_OF markers into one payload per marker.
func Resolve(payload string, discriminators []string) ([]string, error) {
	root, err := Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse sample: %w", err)
	}
	SquashAllOf(root)
	return Expand(root, discriminators), nil
}

// SquashAllOf merges the members of every ALL_OF object into its enclosing
// object, children first. Arrays are walked element-wise.
func SquashAllOf(n *Node) {
	switch n.kind {
	case KindObject:
		for _, m := range n.members {
			SquashAllOf(m.Value)
		}
		merged := &Node{kind: KindObject}
		for _, m := range n.members {
			if strings.EqualFold(m.Key, AllOf) && m.Value.IsObject() {
				for _, inner := range m.Value.members {
					merged.Set(inner.Key, inner.Value)
				}
				continue
			}
			merged.Set(m.Key, m.Value)
		}
		n.members = merged.members
	case KindArray:
		for _, it := range n.items {
			SquashAllOf(it)
		}
	}
}

// Expand produces one payload per direct ONE_OF/ANY_OF member of root. Each
// variant drops every marker member and re-attaches only its own branch under
// the derived property name, with discriminator properties set to the
// subtype name. Without markers the root is returned as the sole payload.
//
// Only one marker is resolved per variant; objects combining several
// composed properties are not cross-multiplied.
func Expand(root *Node, discriminators []string) []string {
	if !root.IsObject() {
		return []string{root.String()}
	}

	var markers []Member
	for _, m := range root.members {
		if IsAlternativeMarker(m.Key) {
			markers = append(markers, m)
		}
	}
	if len(markers) == 0 {
		return []string{root.String()}
	}

	base := root.Clone()
	for _, m := range markers {
		base.Delete(m.Key)
	}

	known := make(map[string]bool, len(discriminators))
	for _, d := range discriminators {
		known[d] = true
	}

	variants := make([]string, 0, len(markers))
	for _, m := range markers {
		variant := base.Clone()
		name := DerivedName(m.Key)
		branch := m.Value.Clone()

		if branch.IsObject() {
			subtype := SubtypeName(m.Key)
			for i, inner := range branch.members {
				if known[name+"#"+inner.Key] {
					branch.members[i].Value = NewString(subtype)
				}
			}
		}

		if name == "" && branch.IsObject() {
			for _, inner := range branch.members {
				variant.Set(inner.Key, inner.Value)
			}
		} else {
			variant.Set(name, branch)
		}
		variants = append(variants, variant.String())
	}
	return variants
}

// IsAlternativeMarker reports whether key carries a ONE_OF or ANY_OF marker.
func IsAlternativeMarker(key string) bool {
	return strings.Contains(key, OneOf) || strings.Contains(key, AnyOf)
}

// DerivedName strips the reference fragment and the marker tokens from key.
func DerivedName(key string) string {
	if i := strings.IndexByte(key, '#'); i >= 0 {
		key = key[:i]
	}
	key = strings.ReplaceAll(key, AnyOf, "")
	return strings.ReplaceAll(key, OneOf, "")
}

// SubtypeName returns the final "/" segment of a marker key.
func SubtypeName(key string) string {
	return key[strings.LastIndexByte(key, '/')+1:]
}

// MarkerKey builds a ONE_OF/ANY_OF key for property prop and branch ref.
func MarkerKey(prop, marker, ref string) string {
	if !strings.HasPrefix(ref, "#") {
		ref = "#" + ref
	}
	return prop + marker + ref
}

// DuplicateArray wraps payload in a two element array of itself.
func DuplicateArray(payload string) string {
	return "[" + payload + "," + payload + "]"
}
