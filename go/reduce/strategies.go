package reduce

import (
	"encoding/json"
	"sort"
	"strconv"
)

// LastWriteWins replaces the left-hand value outright with the right-hand
// value. It is the default strategy for any location the schema does not
// annotate with an explicit `reduce` keyword.
type LastWriteWins struct{}

func (LastWriteWins) Reduce(cur Cursor) (Document, error) { return cur.RHS, nil }

// FirstWriteWins keeps the left-hand value, ignoring the right-hand value,
// once a left-hand value exists; the first reduction (no LHS yet) takes the
// right-hand value as-is.
type FirstWriteWins struct{}

func (FirstWriteWins) Reduce(cur Cursor) (Document, error) {
	if cur.HasLHS {
		return cur.LHS, nil
	}
	return cur.RHS, nil
}

// Append requires both sides to be arrays (or the left-hand side to be
// absent) and concatenates the right-hand array onto the end of the
// left-hand array.
type Append struct{}

func (Append) Reduce(cur Cursor) (Document, error) {
	rhs, ok := cur.RHS.([]interface{})
	if !ok {
		return nil, WrongType{Strategy: "append", Value: cur.RHS}
	}
	if !cur.HasLHS {
		return append([]interface{}{}, rhs...), nil
	}
	lhs, ok := cur.LHS.([]interface{})
	if !ok {
		return nil, WrongType{Strategy: "append", Value: cur.LHS}
	}
	var out = make([]interface{}, 0, len(lhs)+len(rhs))
	out = append(out, lhs...)
	out = append(out, rhs...)
	return out, nil
}

// Sum requires both sides to be numbers and adds them, using the widest
// exact representation available (unsigned 64-bit, signed 64-bit, or
// float64) so that adding two large integers doesn't silently lose
// precision through float64's 53-bit mantissa, and reports
// SumNumericOverflow rather than wrapping or returning +/-Inf when even
// that widest representation can't hold the exact sum.
type Sum struct{}

func (Sum) Reduce(cur Cursor) (Document, error) {
	rhs, err := parseNumber(cur.RHS, "sum")
	if err != nil {
		return nil, err
	}
	if !cur.HasLHS {
		return rhs.toDocument(), nil
	}
	lhs, err := parseNumber(cur.LHS, "sum")
	if err != nil {
		return nil, err
	}
	sum, ok := addNumbers(lhs, rhs)
	if !ok {
		return nil, SumNumericOverflow{}
	}
	return sum.toDocument(), nil
}

// asNumber decodes a document number as a float64 for ordering purposes
// (compareAt/jsonCmp); unlike Sum it doesn't need to preserve integer
// precision beyond float64; it just needs a comparable magnitude.
func asNumber(v Document, strategy string) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, WrongType{Strategy: strategy, Value: v}
		}
		return f, nil
	}
	return 0, WrongType{Strategy: strategy, Value: v}
}

// Minimize keeps whichever of the left- and right-hand values compares as
// lesser, under Key (or natural JSON ordering if Key is empty). When both
// sides compare equal under Key in a full reduction, they're deep-merged
// using the child locations' own strategies, so that tie-breaking fields
// accumulate instead of being dropped (e.g. minimizing on a "score" field
// while summing a "count" field carried alongside it); an equal pair in a
// non-full reduction returns NotAssociative.
type Minimize struct {
	Key []string
}

func (m Minimize) Reduce(cur Cursor) (Document, error) {
	return minMax(cur, m.Key, -1)
}

// Maximize is Minimize's dual: keeps the greater of the two values.
type Maximize struct {
	Key []string
}

func (m Maximize) Reduce(cur Cursor) (Document, error) {
	return minMax(cur, m.Key, 1)
}

// wantSign is -1 for Minimize (keep the lesser value) and +1 for Maximize
// (keep the greater value).
func minMax(cur Cursor, key []string, wantSign int) (Document, error) {
	if !cur.HasLHS {
		return cur.RHS, nil
	}
	var cmp = compareAt(cur.LHS, cur.RHS, key)
	switch {
	case cmp == 0:
		if !cur.Full {
			var name = "minimize"
			if wantSign > 0 {
				name = "maximize"
			}
			return nil, NotAssociative{Strategy: name}
		}
		return deepMerge(cur)
	case cmp < 0:
		if wantSign < 0 {
			return cur.LHS, nil
		}
		return cur.RHS, nil
	default:
		if wantSign > 0 {
			return cur.LHS, nil
		}
		return cur.RHS, nil
	}
}

// Merge deep-merges objects (by recursively reducing shared properties, and
// taking exclusive properties from either side) and arrays. Arrays are
// merged in place by index unless Key is set, in which case both arrays are
// assumed sorted ascending by Key and are merge-joined: items present in
// only one side pass through, and items present in both are deep-merged.
type Merge struct {
	Key []string
}

func (m Merge) Reduce(cur Cursor) (Document, error) {
	if !cur.HasLHS {
		return cur.RHS, nil
	}
	if lArr, ok := cur.LHS.([]interface{}); ok {
		rArr, ok := cur.RHS.([]interface{})
		if !ok {
			return nil, WrongType{Strategy: "merge", Value: cur.RHS}
		}
		if len(m.Key) != 0 {
			return mergeOrderedArrays(cur, lArr, rArr, m.Key)
		}
		return mergeArraysInPlace(cur, lArr, rArr)
	}
	return deepMerge(cur)
}

func mergeArraysInPlace(cur Cursor, lhs, rhs []interface{}) (Document, error) {
	var n = len(lhs)
	if len(rhs) > n {
		n = len(rhs)
	}
	var out = make([]interface{}, n)
	for i := 0; i < n; i++ {
		var hasL = i < len(lhs)
		var hasR = i < len(rhs)
		switch {
		case hasL && hasR:
			var child = cur.child(indexToken(i), true, lhs[i], rhs[i])
			v, err := cur.strategyAt(indexToken(i)).Reduce(child)
			if err != nil {
				return nil, err
			}
			out[i] = v
		case hasR:
			out[i] = rhs[i]
		default:
			out[i] = lhs[i]
		}
	}
	return out, nil
}

func mergeOrderedArrays(cur Cursor, lhs, rhs []interface{}, key []string) (Document, error) {
	var out = make([]interface{}, 0, len(lhs)+len(rhs))
	var i, j int
	for i < len(lhs) && j < len(rhs) {
		var cmp = compareAt(lhs[i], rhs[j], key)
		switch {
		case cmp < 0:
			out = append(out, lhs[i])
			i++
		case cmp > 0:
			out = append(out, rhs[j])
			j++
		default:
			var child = cur.child(indexToken(len(out)), true, lhs[i], rhs[j])
			v, err := cur.strategyAt(indexToken(len(out))).Reduce(child)
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

func indexToken(i int) string {
	return strconv.Itoa(i)
}

// deepMerge merges two JSON objects (or falls back to LastWriteWins for
// scalars, and requires matching array/object shape otherwise), recursing
// into shared properties via each child's own strategy.
func deepMerge(cur Cursor) (Document, error) {
	lObj, lIsObj := cur.LHS.(map[string]interface{})
	rObj, rIsObj := cur.RHS.(map[string]interface{})

	if !lIsObj && !rIsObj {
		// Neither side is an object: fall back to last-write-wins for scalars.
		return cur.RHS, nil
	}
	if lIsObj != rIsObj {
		return nil, WrongType{Strategy: "merge", Value: cur.RHS}
	}

	var names = make(map[string]struct{}, len(lObj)+len(rObj))
	for k := range lObj {
		names[k] = struct{}{}
	}
	for k := range rObj {
		names[k] = struct{}{}
	}
	var sorted = make([]string, 0, len(names))
	for k := range names {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var out = make(map[string]interface{}, len(sorted))
	for _, k := range sorted {
		lv, hasL := lObj[k]
		rv, hasR := rObj[k]
		switch {
		case hasL && hasR:
			var child = cur.child(k, true, lv, rv)
			v, err := cur.strategyAt(k).Reduce(child)
			if err != nil {
				return nil, err
			}
			out[k] = v
		case hasR:
			out[k] = rv
		default:
			out[k] = lv
		}
	}
	return out, nil
}

// compareAt orders two document values by the properties named in key (as
// JSON Pointer-style tokens, dotted for nesting is not supported; each
// token names one object property at that level), comparing whole values
// in natural JSON ordering (null < false < true < numbers < strings <
// arrays < objects) when key is empty. A named property absent from a side
// compares as null, so one absent from both sides compares equal.
// Mirrors the upstream json_cmp_at ordering used by Minimize,
// Maximize, and key-ordered Merge.
func compareAt(lhs, rhs Document, key []string) int {
	if len(key) == 0 {
		return jsonCmp(lhs, rhs)
	}
	for _, k := range key {
		// An empty token names the item itself, rather than a property of
		// it, letting scalar arrays be key-ordered by their own value.
		if k == "" {
			if c := jsonCmp(lhs, rhs); c != 0 {
				return c
			}
			continue
		}
		var lv, rv = lookupByToken(lhs, k), lookupByToken(rhs, k)
		if c := jsonCmp(lv, rv); c != 0 {
			return c
		}
	}
	return 0
}

// lookupByToken resolves one JSON Pointer-style token (RFC 6901) against a
// document value: an object property by name, or an array element by
// decimal index, matching the convention go/ptr.Pointer uses for mutable
// document navigation. Used to key Set/Minimize/Maximize/Merge items that
// are themselves arrays (e.g. a [key, value] pair) as well as objects.
func lookupByToken(v Document, token string) Document {
	switch t := v.(type) {
	case map[string]interface{}:
		return t[token]
	case []interface{}:
		if idx, err := strconv.Atoi(token); err == nil && idx >= 0 && idx < len(t) {
			return t[idx]
		}
	}
	return nil
}

func typeRank(v Document) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, int, int64, json.Number:
		return 2
	case string:
		return 3
	case []interface{}:
		return 4
	case map[string]interface{}:
		return 5
	default:
		return 6
	}
}

func jsonCmp(lhs, rhs Document) int {
	var lr, rr = typeRank(lhs), typeRank(rhs)
	if lr != rr {
		if lr < rr {
			return -1
		}
		return 1
	}
	switch lr {
	case 0:
		return 0
	case 1:
		var lb, _ = lhs.(bool)
		var rb, _ = rhs.(bool)
		if lb == rb {
			return 0
		} else if !lb {
			return -1
		}
		return 1
	case 2:
		var ln, _ = asNumber(lhs, "")
		var rn, _ = asNumber(rhs, "")
		switch {
		case ln < rn:
			return -1
		case ln > rn:
			return 1
		default:
			return 0
		}
	case 3:
		var ls, _ = lhs.(string)
		var rs, _ = rhs.(string)
		switch {
		case ls < rs:
			return -1
		case ls > rs:
			return 1
		default:
			return 0
		}
	case 4:
		var la, _ = lhs.([]interface{})
		var ra, _ = rhs.([]interface{})
		var n = len(la)
		if len(ra) < n {
			n = len(ra)
		}
		for i := 0; i < n; i++ {
			if c := jsonCmp(la[i], ra[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(la) < len(ra):
			return -1
		case len(la) > len(ra):
			return 1
		default:
			return 0
		}
	case 5:
		var lo, _ = lhs.(map[string]interface{})
		var ro, _ = rhs.(map[string]interface{})
		var names = make(map[string]struct{}, len(lo)+len(ro))
		for k := range lo {
			names[k] = struct{}{}
		}
		for k := range ro {
			names[k] = struct{}{}
		}
		var sorted = make([]string, 0, len(names))
		for k := range names {
			sorted = append(sorted, k)
		}
		sort.Strings(sorted)
		for _, k := range sorted {
			if c := jsonCmp(lo[k], ro[k]); c != 0 {
				return c
			}
		}
		return 0
	default:
		return 0
	}
}
