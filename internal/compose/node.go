// Package compose owns the JSON payload tree used during synthesis and the
// composition marker protocol (ALL_OF, ONE_OF, ANY_OF) produced by the sample
// resolver.
package compose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindArray
)

// Node is a JSON value that keeps object key order and the exact bytes of
// scalars, so a compact document round-trips unchanged.
type Node struct {
	kind    Kind
	members []Member
	items   []*Node
	raw     string
}

type Member struct {
	Key   string
	Value *Node
}

func NewObject() *Node { return &Node{kind: KindObject} }

func NewArray() *Node { return &Node{kind: KindArray} }

// NewRaw wraps an already encoded JSON scalar.
func NewRaw(raw string) *Node { return &Node{kind: KindScalar, raw: raw} }

func NewString(s string) *Node { return NewRaw(encodeString(s)) }

// NewValue encodes v with encoding/json. Maps lose their order.
func NewValue(v any) (*Node, error) {
	data, err := marshalNoEscape(v)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes a JSON document.
func Parse(s string) (*Node, error) {
	return parseRaw([]byte(strings.TrimSpace(s)))
}

func parseRaw(data []byte) (*Node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}
	switch data[0] {
	case '{':
		return parseObject(data)
	case '[':
		return parseArray(data)
	default:
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON value %q", truncate(string(data), 40))
		}
		return NewRaw(string(data)), nil
	}
}

func parseObject(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	n := NewObject()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("value of %q: %w", key, err)
		}
		child, err := parseRaw(raw)
		if err != nil {
			return nil, err
		}
		n.members = append(n.members, Member{Key: key, Value: child})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("trailing data after object")
	}
	return n, nil
}

func parseArray(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	n := NewArray()
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		child, err := parseRaw(raw)
		if err != nil {
			return nil, err
		}
		n.items = append(n.items, child)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) Kind() Kind { return n.kind }

func (n *Node) IsObject() bool { return n.kind == KindObject }

func (n *Node) IsArray() bool { return n.kind == KindArray }

// Raw returns the encoded form of a scalar.
func (n *Node) Raw() string { return n.raw }

// Text returns the decoded string for string scalars and the encoded form
// for every other node.
func (n *Node) Text() string {
	if n.kind == KindScalar && strings.HasPrefix(n.raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(n.raw), &s); err == nil {
			return s
		}
	}
	return n.String()
}

func (n *Node) Members() []Member { return n.members }

func (n *Node) Items() []*Node { return n.items }

func (n *Node) Keys() []string {
	keys := make([]string, len(n.members))
	for i, m := range n.members {
		keys[i] = m.Key
	}
	return keys
}

func (n *Node) Get(key string) *Node {
	for _, m := range n.members {
		if m.Key == key {
			return m.Value
		}
	}
	return nil
}

// Set replaces the value of key in place or appends it.
func (n *Node) Set(key string, v *Node) {
	for i := range n.members {
		if n.members[i].Key == key {
			n.members[i].Value = v
			return
		}
	}
	n.members = append(n.members, Member{Key: key, Value: v})
}

func (n *Node) Delete(key string) {
	out := n.members[:0]
	for _, m := range n.members {
		if m.Key != key {
			out = append(out, m)
		}
	}
	n.members = out
}

func (n *Node) Append(v *Node) {
	n.items = append(n.items, v)
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	c := &Node{kind: n.kind, raw: n.raw}
	if n.members != nil {
		c.members = make([]Member, len(n.members))
		for i, m := range n.members {
			c.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	if n.items != nil {
		c.items = make([]*Node, len(n.items))
		for i, it := range n.items {
			c.items[i] = it.Clone()
		}
	}
	return c
}

// String returns the compact encoding.
func (n *Node) String() string {
	var sb strings.Builder
	n.write(&sb)
	return sb.String()
}

func (n *Node) write(sb *strings.Builder) {
	switch n.kind {
	case KindObject:
		sb.WriteByte('{')
		for i, m := range n.members {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(encodeString(m.Key))
			sb.WriteByte(':')
			m.Value.write(sb)
		}
		sb.WriteByte('}')
	case KindArray:
		sb.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			it.write(sb)
		}
		sb.WriteByte(']')
	default:
		sb.WriteString(n.raw)
	}
}

func encodeString(s string) string {
	data, err := marshalNoEscape(s)
	if err != nil {
		return `""`
	}
	return string(data)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
