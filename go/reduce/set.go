package reduce

import (
	"fmt"
	"sort"
)

// Set reduces a working set of items, represented as a document with one or
// more of the properties "add", "intersect", and "remove" (each itself
// either an array of items, ordered and deduplicated by Key, or an object
// whose property names are themselves the set's members). "add" holds the
// set's accumulated members; "intersect" and "remove" are instructions
// still pending against some future member they haven't seen yet, and so
// must themselves be retained across non-full reductions rather than
// applied and discarded (a later delta may still add the very member they
// name). Only a full reduction - the terminal pass over a key group -
// drops them, at which point every member they'd affect has necessarily
// already passed through "add".
//
// Adapted from original_source's crates/doc-poc/src/reduce/set.rs
// (Set::apply and its Builder::vec_term/map_term), which additionally
// threads the operation through a pre-order annotation tape and a HeapNode
// arena; this port instead folds the three terms directly over the plain
// Go document tree CORE uses in place of that arena. Object-form sets are
// normalized to the same array-of-items shape array-form sets use (each
// property becomes a synthetic {"key": name, "value": val} item, keyed by
// "key" rather than by Key), so one merge-join implementation serves both;
// the reduced value is always rendered back in array form, rather than
// reconstructing an object, which original_source's map_term preserves -
// a simplification of this port, since nothing downstream depends on the
// set's own on-the-wire shape surviving a reduction.
type Set struct {
	Key []string
}

func (s Set) Reduce(cur Cursor) (Document, error) {
	rAdd, rIntersect, rRemove, rObj, err := destructureSet(cur.RHS)
	if err != nil {
		return nil, err
	}

	var lAdd, lIntersect, lRemove []interface{}
	var lObj bool
	if cur.HasLHS {
		lAdd, lIntersect, lRemove, lObj, err = destructureSet(cur.LHS)
		if err != nil {
			return nil, err
		}
	}

	// Object-form items are matched by their synthetic "key" property,
	// regardless of what Key the schema configured for value-ordered
	// array items; the two forms can't be mixed within one Set location.
	var key = s.Key
	if lObj || rObj {
		key = []string{"key"}
	}

	sortByKey(lAdd, key)
	sortByKey(lIntersect, key)
	sortByKey(lRemove, key)
	sortByKey(rAdd, key)
	sortByKey(rIntersect, key)
	sortByKey(rRemove, key)

	var out = map[string]interface{}{}

	// "add" is (LA op RI-or-RR) U RA: it's narrowed by whichever
	// instruction the right-hand side carries (intersect takes
	// precedence the way original_source's match arms do, since a delta
	// records at most one of the two), then merge-joined against the
	// right-hand side's own new members, recursively reducing any member
	// both sides name.
	var addSub, addNaught = rRemove, false
	if rIntersect != nil {
		addSub, addNaught = rIntersect, true
	}
	var diffed = setDiffNaught(lAdd, addSub, key, addNaught)
	var add, aerr = setUnionReduce(cur, "add", diffed, rAdd, key)
	if aerr != nil {
		return nil, aerr
	}
	if lAdd != nil || rAdd != nil {
		out["add"] = add
	}

	switch {
	case lIntersect != nil && rIntersect != nil:
		// I,A (*) I,A: the new intersect instruction narrows to members
		// both sides still name, recursively reducing each.
		var term, terr = setIntersectReduce(cur, "intersect", lIntersect, rIntersect, key)
		if terr != nil {
			return nil, terr
		}
		if !cur.Full {
			out["intersect"] = term
		}
	case lIntersect != nil && rIntersect == nil:
		// I,A (*) R,A: the right-hand remove instruction also prunes the
		// pending intersect filter.
		if !cur.Full {
			out["intersect"] = setDiffNaught(lIntersect, rRemove, key, false)
		}
	case lIntersect == nil && rIntersect != nil:
		// R,A (*) I,A: the new intersect instruction drops anything the
		// left-hand side was already pending removal of.
		if !cur.Full {
			out["intersect"] = setDiffNaught(rIntersect, lRemove, key, false)
		}
	default:
		// R,A (*) R,A, the common case: both sides' pending removals
		// accumulate, recursively reducing any member both name.
		var term, terr = setUnionReduce(cur, "remove", lRemove, rRemove, key)
		if terr != nil {
			return nil, terr
		}
		if (lRemove != nil || rRemove != nil) && !cur.Full {
			out["remove"] = term
		}
	}

	return out, nil
}

// destructureSet extracts the add/intersect/remove members of a Set
// document, each normalized to a sorted []interface{} (nil when the
// property is absent, non-nil but possibly empty when present). Object-
// form sets (keyed by property name) are converted to an array of
// single-property {key, value} items so the same merge-join logic handles
// both forms; isObject reports whether this side used the object form.
func destructureSet(doc Document) (add, intersect, remove []interface{}, isObject bool, err error) {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return nil, nil, nil, false, WrongType{Strategy: "set", Value: doc}
	}
	for _, name := range []string{"add", "intersect", "remove"} {
		v, ok := obj[name]
		if !ok {
			continue
		}
		items, wasObj, ierr := asSetItems(v)
		if ierr != nil {
			return nil, nil, nil, false, ierr
		}
		isObject = isObject || wasObj
		switch name {
		case "add":
			add = items
		case "intersect":
			intersect = items
		case "remove":
			remove = items
		}
	}
	for k := range obj {
		switch k {
		case "add", "intersect", "remove":
		default:
			return nil, nil, nil, false, fmt.Errorf("set: unexpected property %q", k)
		}
	}
	return add, intersect, remove, isObject, nil
}

func asSetItems(v Document) ([]interface{}, bool, error) {
	switch t := v.(type) {
	case []interface{}:
		return t, false, nil
	case map[string]interface{}:
		var out = make([]interface{}, 0, len(t))
		for k, val := range t {
			out = append(out, map[string]interface{}{"key": k, "value": val})
		}
		return out, true, nil
	case nil:
		return nil, false, nil
	default:
		return nil, false, WrongType{Strategy: "set", Value: v}
	}
}

func sortByKey(items []interface{}, key []string) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareAt(items[i], items[j], key) < 0
	})
}

// setDiffNaught filters lhs against sub, keyed by key: if !naught, it's
// lhs minus sub (members of lhs with no match in sub); if naught, it's
// lhs intersected with sub (members of lhs that do match). A nil sub
// means no filtering happened upstream (no instruction to apply), so lhs
// passes through unchanged. Mirrors set.rs's Builder::subtract helper,
// shared by vec_term/map_term's first merge-join stage.
func setDiffNaught(lhs, sub []interface{}, key []string, naught bool) []interface{} {
	if sub == nil {
		return lhs
	}
	var out = make([]interface{}, 0, len(lhs))
	var i, j int
	for i < len(lhs) && j < len(sub) {
		switch c := compareAt(lhs[i], sub[j], key); {
		case c < 0:
			if !naught {
				out = append(out, lhs[i])
			}
			i++
		case c > 0:
			j++
		default:
			if naught {
				out = append(out, lhs[i])
			}
			i++
			j++
		}
	}
	if !naught {
		out = append(out, lhs[i:]...)
	}
	return out
}

// setUnionReduce merge-joins lhs and rhs keyed by key: items present on
// only one side pass through; items both sides name are recursively
// reduced through the strategy located at loc/parent/<index>, the way
// set.rs's vec_term/map_term recurse via reduce_item/reduce_prop for a
// mask's BOTH branch.
func setUnionReduce(cur Cursor, parent string, lhs, rhs []interface{}, key []string) ([]interface{}, error) {
	var out = make([]interface{}, 0, len(lhs)+len(rhs))
	var i, j int
	for i < len(lhs) && j < len(rhs) {
		switch c := compareAt(lhs[i], rhs[j], key); {
		case c < 0:
			out = append(out, lhs[i])
			i++
		case c > 0:
			out = append(out, rhs[j])
			j++
		default:
			v, err := reduceSetItem(cur, parent, len(out), lhs[i], rhs[j])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			i++
			j++
		}
	}
	out = append(out, lhs[i:]...)
	out = append(out, rhs[j:]...)
	return out, nil
}

// setIntersectReduce merge-joins lhs and rhs keyed by key, keeping only
// items both sides name, recursively reduced.
func setIntersectReduce(cur Cursor, parent string, lhs, rhs []interface{}, key []string) ([]interface{}, error) {
	var out = make([]interface{}, 0, len(lhs))
	var i, j int
	for i < len(lhs) && j < len(rhs) {
		switch c := compareAt(lhs[i], rhs[j], key); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			v, err := reduceSetItem(cur, parent, len(out), lhs[i], rhs[j])
			if err != nil {
				return nil, err
			}
			out = append(out, v)
			i++
			j++
		}
	}
	return out, nil
}

// reduceSetItem reduces two colliding set members at loc/parent/idx,
// using whatever Strategy Locate resolves there (LastWriteWins, if the
// schema doesn't annotate that location), the same child-dispatch pattern
// Merge uses for its own array/object recursion.
func reduceSetItem(cur Cursor, parent string, idx int, lhs, rhs interface{}) (Document, error) {
	var loc = append(append(append([]string(nil), cur.Loc...), parent), indexToken(idx))
	var child = Cursor{Loc: loc, HasLHS: true, LHS: lhs, RHS: rhs, Locate: cur.Locate, Full: cur.Full}
	var strategy Strategy = LastWriteWins{}
	if cur.Locate != nil {
		if st := cur.Locate(loc); st != nil {
			strategy = st
		}
	}
	return strategy.Reduce(child)
}
