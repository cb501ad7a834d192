// Package redact implements the tape-indexed redaction pass (module 4.3):
// given a document and the reduce/redact annotations a schema validation
// pass produced for it, remove Block-annotated locations and replace
// Sha256-annotated locations with a salted digest.
//
// Adapted from original_source's crates/doc/src/redact/mod.rs. That
// implementation walks a document's preorder tape, popping annotation
// entries as it reaches their span_begin and pruning whole subtrees the
// tape shows carry no annotation. This port works over a plain Go
// document tree and schema.Result's path-keyed annotation map (see
// go/schema's package doc for why this repository represents the
// validator's annotation tape that way) — the Locate callback it's given
// plays the same role the tape played upstream. There is no subtree
// pruning: Redact visits every node of the document and calls Locate at
// each one.
package redact

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/estuary/data-plane-core/go/schema"
)

// Locate resolves the RedactStrategy, if any, governing a document
// location named by JSON Pointer tokens from the document root.
type Locate func(tokens []string) schema.RedactStrategy

// FromResult adapts a schema validation Result into a Locate.
func FromResult(r *schema.Result) Locate {
	return func(tokens []string) schema.RedactStrategy {
		return r.RedactAt(tokens)
	}
}

// ConflictingStrategies describes two annotations that disagree about how
// to redact the same location. schema.Validate reports such a conflict as
// a ValidationError; Redact calls Locate once per location and does not
// return this error.
type ConflictingStrategies struct {
	Path          string
	First, Second schema.RedactStrategy
}

func (e ConflictingStrategies) Error() string {
	return fmt.Sprintf("%s: conflicting redact strategies %s vs %s", e.Path, e.First, e.Second)
}

// Redact applies locate's annotations to doc, returning the redacted
// document. The top-level return mirrors a single node's Outcome: removed
// is true if the root itself was Block-annotated (the caller holds the
// only reference to doc and must discard it).
func Redact(doc interface{}, locate Locate, salt []byte) (out interface{}, removed bool, err error) {
	return redactAt(doc, nil, locate, salt)
}

func redactAt(doc interface{}, tokens []string, locate Locate, salt []byte) (interface{}, bool, error) {
	switch locate(tokens) {
	case schema.RedactBlock:
		return nil, true, nil
	case schema.RedactSha256:
		v, err := hashNode(doc, salt)
		return v, false, err
	}

	switch node := doc.(type) {
	case map[string]interface{}:
		return redactObject(node, tokens, locate, salt)
	case []interface{}:
		return redactArray(node, tokens, locate, salt)
	default:
		return doc, false, nil
	}
}

func redactObject(obj map[string]interface{}, tokens []string, locate Locate, salt []byte) (interface{}, bool, error) {
	var names = make([]string, 0, len(obj))
	for k := range obj {
		names = append(names, k)
	}
	sort.Strings(names)

	var out = make(map[string]interface{}, len(obj))
	for _, name := range names {
		child, removed, err := redactAt(obj[name], append(tokens, name), locate, salt)
		if err != nil {
			return nil, false, fmt.Errorf("/%s: %w", name, err)
		}
		if !removed {
			out[name] = child
		}
	}
	return out, false, nil
}

func redactArray(arr []interface{}, tokens []string, locate Locate, salt []byte) (interface{}, bool, error) {
	var out = make([]interface{}, 0, len(arr))
	for i, item := range arr {
		child, removed, err := redactAt(item, append(tokens, strconv.Itoa(i)), locate, salt)
		if err != nil {
			return nil, false, fmt.Errorf("/%d: %w", i, err)
		}
		if !removed {
			out = append(out, child)
		}
	}
	return out, false, nil
}

const sha256Prefix = "sha256:"

func isAlreadyHashed(s string) bool {
	if len(s) != len(sha256Prefix)+64 || s[:len(sha256Prefix)] != sha256Prefix {
		return false
	}
	for _, b := range s[len(sha256Prefix):] {
		if !((b >= '0' && b <= '9') || (b >= 'a' && b <= 'f')) {
			return false
		}
	}
	return true
}

// hashNode replaces a scalar or container value with a salted SHA-256
// digest, coalescing integer-valued floats with their integer
// representation so logically-equal numbers hash identically.
func hashNode(doc interface{}, salt []byte) (interface{}, error) {
	var h = sha256.New()
	h.Write(salt)

	switch v := doc.(type) {
	case nil:
		// hash nothing beyond the salt.
	case bool:
		if v {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case string:
		if isAlreadyHashed(v) {
			return v, nil
		}
		h.Write([]byte(v))
	case float64:
		var b [8]byte
		if v == float64(int64(v)) {
			binary.LittleEndian.PutUint64(b[:], uint64(int64(v)))
		} else {
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
		}
		h.Write(b[:])
	case map[string]interface{}, []interface{}:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		h.Write(encoded)
	default:
		return nil, fmt.Errorf("redact: unsupported value type %T", doc)
	}

	return sha256Prefix + hex.EncodeToString(h.Sum(nil)), nil
}
