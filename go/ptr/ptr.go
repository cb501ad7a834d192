// Package ptr implements JSON Pointer (RFC 6901) parsing and mutable
// document navigation, used by the combine package's key extraction
// (combine.PointerExtractor). Adapted from the upstream Flow runtime's
// go/flow/ptr.go.
package ptr

import (
	"fmt"
	"strconv"

	"github.com/go-openapi/jsonpointer"
)

// Pointer is a parsed JSON Pointer.
type Pointer struct {
	jsonpointer.Pointer
	Tokens []string
}

// New parses a Pointer from a JSON Pointer string.
func New(s string) (Pointer, error) {
	var p, err = jsonpointer.New(s)
	if err != nil {
		return Pointer{}, err
	}
	return Pointer{Pointer: p, Tokens: p.DecodedTokens()}, nil
}

// Create or query a mutable existing value at the pointer location within
// the document, recursively creating the location if it doesn't exist.
// Existing parent locations which don't yet exist are instantiated as an
// object or array, depending on the type of token at that location
// (integer, "-", or property name). An existing array is extended with
// nulls as required to instantiate a specified index. Returns a mutable
// *interface{} at the pointed location, or an error if the document
// structure is incompatible with the pointer (e.g. a parent location is a
// scalar, or an array is indexed by property).
func (p Pointer) Create(doc *interface{}) (*interface{}, error) {
	var next = doc
	var child *interface{}

	for _, token := range p.Tokens {
		var index, indexErr = strconv.Atoi(token)

		if *next == nil {
			if indexErr != nil && token != "-" {
				*next = make(map[string]*interface{})
			} else {
				*next = make([]*interface{}, 0)
			}
		}

		switch vv := (*next).(type) {
		case map[string]*interface{}:
			if child = vv[token]; child == nil {
				child = new(interface{})
				vv[token] = child
			}

		case []*interface{}:
			if token == "-" {
				child = new(interface{})
				*next = append(vv, child)
			} else if indexErr == nil {
				for len(vv) <= index {
					vv = append(vv, nil)
				}
				*next = vv

				if child = vv[index]; child == nil {
					child = new(interface{})
					vv[index] = child
				}
			} else {
				return nil, fmt.Errorf("expected array, not %v", *next)
			}
		default:
			return nil, fmt.Errorf("expected object or array, not %v", *next)
		}
		next = child
	}
	return next, nil
}

// Query returns the existing value at the pointer location within doc,
// or nil if the location (or a parent of it) does not exist.
func Query(doc interface{}, s string) (interface{}, error) {
	p, err := New(s)
	if err != nil {
		return nil, err
	}
	v, _, err := p.Get(doc)
	if err != nil {
		return nil, nil
	}
	return v, nil
}
