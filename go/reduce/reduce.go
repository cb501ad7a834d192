// Package reduce implements the reducer algebra (spec module 4.1): the set
// of per-location strategies (LastWriteWins, FirstWriteWins, Append, Sum,
// Minimize, Maximize, Merge, Set) that combine a right-hand document into an
// existing left-hand reduction, recursively, as directed by the schema
// validator's per-location annotations.
//
// Adapted from original_source's crates/doc/src/reduce/strategy.rs and
// crates/doc-poc/src/reduce/{strategy,set}.rs. The upstream implementation
// walks a pre-order "tape" of validation annotations alongside an arena
// HeapNode DOM; this package instead works over plain Go interface{} trees
// (the shape produced by encoding/json), since CORE does not retrieve or
// reimplement the upstream arena allocator. Schema is consulted through the
// Locate callback on Cursor, which plays the role the annotation tape plays
// upstream: it tells a Merge/Minimize/Maximize/Set reduction which Strategy
// governs a child location.
package reduce

import (
	"fmt"
)

// Document is a parsed JSON value: nil, bool, float64/json.Number, string,
// []interface{}, or map[string]interface{}.
type Document = interface{}

// Locate resolves the Strategy governing the document location named by
// the given JSON Pointer tokens (relative to the schema in scope), as
// inferred from the schema's `reduce` keyword annotations at that
// location. A nil Locate, or one returning nil, falls back to
// LastWriteWins, matching the upstream default when a location carries no
// explicit `reduce` annotation.
type Locate func(tokens []string) Strategy

// Cursor is the reduction context for a single document location: the
// existing (left-hand) value, if any, the new (right-hand) value, and
// enough context to recurse into children.
type Cursor struct {
	// Loc is this location's path, as JSON Pointer tokens from the document root.
	Loc []string
	// HasLHS is false the first time a location is reduced (no prior value).
	HasLHS bool
	LHS    Document
	RHS    Document
	// Locate resolves child strategies during a deep merge; propagated
	// unchanged to every recursive call.
	Locate Locate
	// Full marks this reduction as the terminal pass over a key group,
	// rather than one associative fold in a chain that may still be
	// missing left-hand context from an earlier batch. Strategies that
	// carry state forward only on a non-full pass (Set's "intersect" and
	// "remove" markers) or that cannot safely combine without the true
	// left-hand value (Minimize/Maximize on a Key tie) consult it.
	Full bool
}

// child returns the Cursor for a nested location, reusing the parent's
// Locate and Full.
func (c Cursor) child(token string, hasLHS bool, lhs, rhs Document) Cursor {
	var loc = append(append([]string(nil), c.Loc...), token)
	return Cursor{Loc: loc, HasLHS: hasLHS, LHS: lhs, RHS: rhs, Locate: c.Locate, Full: c.Full}
}

func (c Cursor) strategyAt(token string) Strategy {
	if c.Locate == nil {
		return LastWriteWins{}
	}
	var loc = append(append([]string(nil), c.Loc...), token)
	if s := c.Locate(loc); s != nil {
		return s
	}
	return LastWriteWins{}
}

// Strategy reduces a single document location given its Cursor.
type Strategy interface {
	Reduce(cur Cursor) (Document, error)
}

// Reduce applies the Locate-resolved strategy at the document root and
// recursively at every child location, producing the reduction of rhs into
// lhs (or, if hasLHS is false, the initial reduced value of rhs alone).
// full marks this as the terminal pass over the document's key group; see
// Cursor.Full.
func Reduce(hasLHS bool, lhs, rhs Document, locate Locate, full bool) (Document, error) {
	var cur = Cursor{HasLHS: hasLHS, LHS: lhs, RHS: rhs, Locate: locate, Full: full}
	var strategy Strategy = LastWriteWins{}
	if locate != nil {
		if s := locate(nil); s != nil {
			strategy = s
		}
	}
	return strategy.Reduce(cur)
}

// WrongType is returned when a strategy is applied to a document shape it
// cannot reduce (e.g. Sum over a string, Append over an object).
type WrongType struct {
	Strategy string
	Value    Document
}

func (e WrongType) Error() string {
	return fmt.Sprintf("%s: unsupported value type %T", e.Strategy, e.Value)
}

// NotAssociative is returned when a Strategy can't combine its two sides
// without knowing it holds the true left-hand value for the key group
// (Minimize/Maximize, on a Key tie, during a non-full reduction: the
// deep-merge tie-break is only valid once every operand in the group has
// been folded in). The caller is expected to flush whatever it has
// accumulated so far and retry the operand once a full pass supplies real
// left-hand context, matching the upstream reduce module's associativity
// signal.
type NotAssociative struct {
	Strategy string
}

func (e NotAssociative) Error() string {
	return fmt.Sprintf("%s is not associative", e.Strategy)
}
