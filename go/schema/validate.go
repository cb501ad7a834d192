package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/estuary/data-plane-core/go/reduce"
)

// ValidationError reports one schema mismatch at a document location.
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Path, e.Message) }

// Annotation is the reduce/redact metadata a schema location carries.
type Annotation struct {
	Reduce reduce.Strategy
	Redact RedactStrategy
}

// Result is the outcome of validating one document against a Schema:
// every validation error encountered, and the reduce/redact annotations
// present at matched locations, keyed by JSON Pointer path (e.g.
// "/items/0/name", "" for the document root).
type Result struct {
	Errors      []ValidationError
	Annotations map[string]Annotation
}

func (r *Result) Valid() bool { return len(r.Errors) == 0 }

// Validate evaluates doc against s, returning every validation error and
// the full set of reduce/redact annotations matched along the way.
func Validate(s *Schema, doc interface{}) (*Result, error) {
	var r = &Result{Annotations: make(map[string]Annotation)}
	validateAt(s, doc, "", r)
	return r, nil
}

func validateAt(s *Schema, doc interface{}, path string, r *Result) {
	if s == nil {
		return
	}
	if s.Reduce != nil || s.Redact != RedactNone {
		var ann = r.Annotations[path]
		if s.Reduce != nil {
			ann.Reduce = s.Reduce
		}
		if s.Redact != RedactNone {
			if ann.Redact != RedactNone && ann.Redact != s.Redact {
				r.Errors = append(r.Errors, ValidationError{Path: path,
					Message: fmt.Sprintf(
						"conflicting redact strategies at this location: %s vs %s",
						ann.Redact, s.Redact)})
			}
			ann.Redact = s.Redact
		}
		r.Annotations[path] = ann
	}

	if len(s.Type) > 0 && !typeMatches(s.Type, doc) {
		r.Errors = append(r.Errors, ValidationError{Path: path,
			Message: fmt.Sprintf("expected type %v, got %s", s.Type, jsonTypeName(doc))})
	}

	if len(s.Enum) > 0 && !enumContains(s.Enum, doc) {
		r.Errors = append(r.Errors, ValidationError{Path: path, Message: "value not in enum"})
	}
	if s.Const != nil && !deepEqualJSON(*s.Const, doc) {
		r.Errors = append(r.Errors, ValidationError{Path: path, Message: "value does not match const"})
	}

	if s.If != nil {
		var probe = &Result{Annotations: map[string]Annotation{}}
		validateAt(s.If, doc, path, probe)
		if probe.Valid() {
			validateAt(s.Then, doc, path, r)
		} else {
			validateAt(s.Else, doc, path, r)
		}
	}
	for _, sub := range s.AllOf {
		validateAt(sub, doc, path, r)
	}
	if len(s.AnyOf) > 0 {
		var anyOk bool
		for _, sub := range s.AnyOf {
			var probe = &Result{Annotations: map[string]Annotation{}}
			validateAt(sub, doc, path, probe)
			if probe.Valid() {
				anyOk = true
				mergeAnnotations(r, probe)
			}
		}
		if !anyOk {
			r.Errors = append(r.Errors, ValidationError{Path: path, Message: "no branch of anyOf matched"})
		}
	}
	if len(s.OneOf) > 0 {
		var matched int
		for _, sub := range s.OneOf {
			var probe = &Result{Annotations: map[string]Annotation{}}
			validateAt(sub, doc, path, probe)
			if probe.Valid() {
				matched++
				mergeAnnotations(r, probe)
			}
		}
		if matched != 1 {
			r.Errors = append(r.Errors, ValidationError{Path: path,
				Message: fmt.Sprintf("expected exactly one oneOf branch to match, got %d", matched)})
		}
	}
	if s.Not != nil {
		var probe = &Result{Annotations: map[string]Annotation{}}
		validateAt(s.Not, doc, path, probe)
		if probe.Valid() {
			r.Errors = append(r.Errors, ValidationError{Path: path, Message: "matched a schema under not"})
		}
	}

	switch node := doc.(type) {
	case map[string]interface{}:
		validateObject(s, node, path, r)
	case []interface{}:
		validateArray(s, node, path, r)
	}
}

func validateObject(s *Schema, obj map[string]interface{}, path string, r *Result) {
	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			r.Errors = append(r.Errors, ValidationError{Path: path,
				Message: fmt.Sprintf("missing required property %q", name)})
		}
	}

	var names = make([]string, 0, len(obj))
	for name := range obj {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var value = obj[name]
		var childPath = path + "/" + escapeToken(name)

		if s.Properties != nil {
			if child, ok := s.Properties[name]; ok {
				validateAt(child, value, childPath, r)
				continue
			}
		}
		var matchedPattern bool
		for _, cp := range s.PatternProperties {
			if cp.re.MatchString(name) {
				matchedPattern = true
				validateAt(cp.schema, value, childPath, r)
			}
		}
		if matchedPattern {
			continue
		}
		if s.AdditionalPropFalse {
			r.Errors = append(r.Errors, ValidationError{Path: childPath,
				Message: fmt.Sprintf("additional property %q not allowed", name)})
			continue
		}
		if s.AdditionalProperties != nil {
			validateAt(s.AdditionalProperties, value, childPath, r)
		}
	}
}

func validateArray(s *Schema, arr []interface{}, path string, r *Result) {
	if s.Items == nil {
		return
	}
	for i, item := range arr {
		validateAt(s.Items, item, path+"/"+strconv.Itoa(i), r)
	}
}

func mergeAnnotations(dst, src *Result) {
	for k, v := range src.Annotations {
		dst.Annotations[k] = v
	}
}

func escapeToken(tok string) string {
	tok = strings.ReplaceAll(tok, "~", "~0")
	tok = strings.ReplaceAll(tok, "/", "~1")
	return tok
}

func typeMatches(types []string, doc interface{}) bool {
	var want = jsonTypeName(doc)
	for _, t := range types {
		if t == want {
			return true
		}
		if t == "number" && want == "integer" {
			return true
		}
	}
	return false
}

func jsonTypeName(doc interface{}) string {
	switch v := doc.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		if v == float64(int64(v)) {
			return "integer"
		}
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "unknown"
	}
}

func enumContains(enum []interface{}, doc interface{}) bool {
	for _, e := range enum {
		if deepEqualJSON(e, doc) {
			return true
		}
	}
	return false
}

func deepEqualJSON(a, b interface{}) bool {
	switch av := a.(type) {
	case map[string]interface{}:
		bv, ok := b.(map[string]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			if bv2, ok := bv[k]; !ok || !deepEqualJSON(v, bv2) {
				return false
			}
		}
		return true
	case []interface{}:
		bv, ok := b.([]interface{})
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !deepEqualJSON(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
