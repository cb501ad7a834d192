// Package schema implements a JSON Schema validator (module 4.2) that
// produces, alongside pass/fail validation results, the `reduce` and
// `redact` keyword annotations attached to matched document locations —
// the input the reduce and redact packages consume.
//
// Adapted from original_source's crates/json/src/schema/build.rs. The
// upstream validator indexes a compiled schema into a flat instruction
// list and walks a document's preorder "tape" of nodes, producing
// Outcomes keyed by tape byte-spans. This port targets a Go document tree
// (the result of encoding/json.Unmarshal into interface{}) rather than an
// arena-indexed tape, so annotations are instead keyed by the JSON Pointer
// string of the document location they were produced at — the same
// location identity the tape span named upstream, expressed the way a Go
// program addresses a decoded document. Supported keywords cover the
// subset exercised by this repository's reduce/redact/combine/fields
// packages: type, properties, patternProperties, additionalProperties,
// items, required, enum, const, if/then/else, allOf/anyOf/oneOf/not,
// $ref (via an explicit registry, since this package does not fetch
// remote schemas), nullable, and the reduce/redact extensions.
package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/estuary/data-plane-core/go/reduce"
)

// RedactStrategy names the kind of redaction a `redact` keyword requests.
type RedactStrategy int

const (
	RedactNone RedactStrategy = iota
	RedactBlock
	RedactSha256
)

func (s RedactStrategy) String() string {
	switch s {
	case RedactBlock:
		return "block"
	case RedactSha256:
		return "sha256"
	default:
		return "none"
	}
}

// Schema is a compiled JSON Schema document.
type Schema struct {
	Type                 []string
	Properties           map[string]*Schema
	PatternProperties    map[string]*compiledPattern
	AdditionalProperties *Schema
	AdditionalPropFalse  bool
	Items                *Schema
	Required             []string
	Enum                 []interface{}
	Const                *interface{}
	If, Then, Else       *Schema
	AllOf, AnyOf, OneOf  []*Schema
	Not                  *Schema
	Ref                  string

	// Reduce and Redact are the domain extension annotations attached at
	// this schema's own location (not a child's).
	Reduce reduce.Strategy
	Redact RedactStrategy
}

type compiledPattern struct {
	re     *regexp.Regexp
	schema *Schema
}

// Registry resolves a `$ref` URI to a previously compiled Schema, used in
// place of the upstream bookending/dynamic-scope resolution machinery
// (this package does not fetch or cache remote schema documents).
type Registry map[string]*Schema

// Compile parses a raw JSON Schema document and builds a Schema tree.
func Compile(raw []byte, registry Registry) (*Schema, error) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("schema: invalid JSON: %w", err)
	}
	return compileNode(doc, registry)
}

func compileNode(doc interface{}, registry Registry) (*Schema, error) {
	switch v := doc.(type) {
	case bool:
		if v {
			return &Schema{}, nil
		}
		return &Schema{AdditionalPropFalse: true, Not: &Schema{}}, nil
	case map[string]interface{}:
		return compileObject(v, registry)
	default:
		return nil, fmt.Errorf("schema: expected object or boolean schema, got %T", doc)
	}
}

func compileObject(m map[string]interface{}, registry Registry) (*Schema, error) {
	var s = &Schema{}

	if ref, ok := m["$ref"].(string); ok {
		s.Ref = ref
		if registry != nil {
			if target, ok := registry[ref]; ok {
				return target, nil
			}
		}
		return s, nil
	}

	if t, ok := m["type"]; ok {
		s.Type = asStringSet(t)
	}
	if nullable, ok := m["nullable"].(bool); ok && nullable {
		s.Type = append(s.Type, "null")
	}

	if props, ok := m["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*Schema, len(props))
		for name, raw := range props {
			child, err := compileNode(raw, registry)
			if err != nil {
				return nil, fmt.Errorf("properties.%s: %w", name, err)
			}
			s.Properties[name] = child
		}
	}
	if pp, ok := m["patternProperties"].(map[string]interface{}); ok {
		s.PatternProperties = make(map[string]*compiledPattern, len(pp))
		for pattern, raw := range pp {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("patternProperties %q: %w", pattern, err)
			}
			child, err := compileNode(raw, registry)
			if err != nil {
				return nil, err
			}
			s.PatternProperties[pattern] = &compiledPattern{re: re, schema: child}
		}
	}
	if ap, ok := m["additionalProperties"]; ok {
		if b, isBool := ap.(bool); isBool && !b {
			s.AdditionalPropFalse = true
		} else {
			child, err := compileNode(ap, registry)
			if err != nil {
				return nil, err
			}
			s.AdditionalProperties = child
		}
	}
	if items, ok := m["items"]; ok {
		child, err := compileNode(items, registry)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = child
	}
	if req, ok := m["required"]; ok {
		s.Required = asStringSet(req)
	}
	if enum, ok := m["enum"].([]interface{}); ok {
		s.Enum = enum
	}
	if c, ok := m["const"]; ok {
		s.Const = &c
	}
	if ifS, ok := m["if"]; ok {
		child, err := compileNode(ifS, registry)
		if err != nil {
			return nil, err
		}
		s.If = child
	}
	if thenS, ok := m["then"]; ok {
		child, err := compileNode(thenS, registry)
		if err != nil {
			return nil, err
		}
		s.Then = child
	}
	if elseS, ok := m["else"]; ok {
		child, err := compileNode(elseS, registry)
		if err != nil {
			return nil, err
		}
		s.Else = child
	}
	for _, pair := range []struct {
		name string
		dst  *[]*Schema
	}{
		{"allOf", &s.AllOf}, {"anyOf", &s.AnyOf}, {"oneOf", &s.OneOf},
	} {
		if arr, ok := m[pair.name].([]interface{}); ok {
			for i, raw := range arr {
				child, err := compileNode(raw, registry)
				if err != nil {
					return nil, fmt.Errorf("%s[%d]: %w", pair.name, i, err)
				}
				*pair.dst = append(*pair.dst, child)
			}
		}
	}
	if notS, ok := m["not"]; ok {
		child, err := compileNode(notS, registry)
		if err != nil {
			return nil, err
		}
		s.Not = child
	}

	if red, ok := m["reduce"].(map[string]interface{}); ok {
		strategy, err := compileReduceStrategy(red)
		if err != nil {
			return nil, fmt.Errorf("reduce: %w", err)
		}
		s.Reduce = strategy
	}
	if red, ok := m["redact"].(string); ok {
		switch red {
		case "block":
			s.Redact = RedactBlock
		case "sha256":
			s.Redact = RedactSha256
		default:
			return nil, fmt.Errorf("redact: unknown strategy %q", red)
		}
	}

	return s, nil
}

func asStringSet(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		var out = make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out
	default:
		return nil
	}
}

func compileReduceStrategy(m map[string]interface{}) (reduce.Strategy, error) {
	name, _ := m["strategy"].(string)
	var key []string
	if raw, ok := m["key"].([]interface{}); ok {
		for _, k := range raw {
			if s, ok := k.(string); ok {
				key = append(key, s)
			}
		}
	}
	switch name {
	case "append":
		return reduce.Append{}, nil
	case "firstWriteWins":
		return reduce.FirstWriteWins{}, nil
	case "lastWriteWins":
		return reduce.LastWriteWins{}, nil
	case "minimize":
		return reduce.Minimize{Key: key}, nil
	case "maximize":
		return reduce.Maximize{Key: key}, nil
	case "merge":
		return reduce.Merge{Key: key}, nil
	case "set":
		return reduce.Set{Key: key}, nil
	case "sum":
		return reduce.Sum{}, nil
	default:
		return nil, fmt.Errorf("unknown reduce strategy %q", name)
	}
}
