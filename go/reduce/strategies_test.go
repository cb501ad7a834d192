package reduce

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Adapted from original_source's crates/doc/src/reduce/strategy.rs
// #[cfg(test)] mod test table: test_append_array, test_last_write_wins,
// test_first_write_wins, test_minimize_simple, test_maximize_simple,
// test_minimize_with_deep_merge, test_maximize_with_deep_merge, test_sum,
// test_merge_array_in_place, test_merge_ordered_scalars,
// test_deep_merge_ordered_objects, test_merge_objects,
// test_deep_merge_objects.

func reduceTwo(t *testing.T, strategy Strategy, lhs, rhs Document) Document {
	t.Helper()
	var out, err = strategy.Reduce(Cursor{HasLHS: lhs != nil, LHS: lhs, RHS: rhs})
	require.NoError(t, err)
	return out
}

func TestAppendArray(t *testing.T) {
	var out = reduceTwo(t, Append{},
		[]interface{}{"a", "b"},
		[]interface{}{"c", "d"})
	require.Equal(t, []interface{}{"a", "b", "c", "d"}, out)

	// No prior value: behaves as the identity array.
	var cur = Cursor{HasLHS: false, RHS: []interface{}{"x"}}
	out, err := (Append{}).Reduce(cur)
	require.NoError(t, err)
	require.Equal(t, []interface{}{"x"}, out)
}

func TestLastWriteWins(t *testing.T) {
	require.Equal(t, "b", reduceTwo(t, LastWriteWins{}, "a", "b"))
	require.Equal(t, float64(2), reduceTwo(t, LastWriteWins{}, float64(1), float64(2)))
}

func TestFirstWriteWins(t *testing.T) {
	require.Equal(t, "a", reduceTwo(t, FirstWriteWins{}, "a", "b"))

	var out, err = (FirstWriteWins{}).Reduce(Cursor{HasLHS: false, RHS: "a"})
	require.NoError(t, err)
	require.Equal(t, "a", out)
}

func TestMinimizeSimple(t *testing.T) {
	require.Equal(t, float64(1), reduceTwo(t, Minimize{}, float64(1), float64(2)))
	require.Equal(t, float64(1), reduceTwo(t, Minimize{}, float64(2), float64(1)))
}

func TestMaximizeSimple(t *testing.T) {
	require.Equal(t, float64(2), reduceTwo(t, Maximize{}, float64(1), float64(2)))
	require.Equal(t, float64(2), reduceTwo(t, Maximize{}, float64(2), float64(1)))
}

func TestMinimizeWithDeepMerge(t *testing.T) {
	var strategy = Minimize{Key: []string{"k"}}
	var lhs = map[string]interface{}{"k": float64(1), "sum": float64(10)}
	var rhs = map[string]interface{}{"k": float64(1), "sum": float64(5)}

	var locate = func(loc []string) Strategy {
		if len(loc) == 1 && loc[0] == "sum" {
			return Sum{}
		}
		return nil
	}
	// A Key tie during a non-full reduction can't deep-merge without the
	// group's true left-hand value, so it's reported as not associative
	// rather than guessed at.
	_, err := strategy.Reduce(Cursor{HasLHS: true, LHS: lhs, RHS: rhs, Locate: locate})
	require.Equal(t, NotAssociative{Strategy: "minimize"}, err)

	var out Document
	out, err = strategy.Reduce(Cursor{HasLHS: true, LHS: lhs, RHS: rhs, Locate: locate, Full: true})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"k": float64(1), "sum": float64(15)}, out)

	// Strictly lesser key: right-hand side replaces outright, no merge,
	// whether or not this is the full pass.
	rhs = map[string]interface{}{"k": float64(0), "sum": float64(100)}
	out, err = strategy.Reduce(Cursor{HasLHS: true, LHS: lhs, RHS: rhs, Locate: locate})
	require.NoError(t, err)
	require.Equal(t, rhs, out)
}

func TestMaximizeWithDeepMerge(t *testing.T) {
	var strategy = Maximize{Key: []string{"k"}}
	var lhs = map[string]interface{}{"k": float64(5), "sum": float64(10)}
	var rhs = map[string]interface{}{"k": float64(5), "sum": float64(5)}

	var locate = func(loc []string) Strategy {
		if len(loc) == 1 && loc[0] == "sum" {
			return Sum{}
		}
		return nil
	}
	_, err := strategy.Reduce(Cursor{HasLHS: true, LHS: lhs, RHS: rhs, Locate: locate})
	require.Equal(t, NotAssociative{Strategy: "maximize"}, err)

	var out Document
	out, err = strategy.Reduce(Cursor{HasLHS: true, LHS: lhs, RHS: rhs, Locate: locate, Full: true})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"k": float64(5), "sum": float64(15)}, out)
}

func TestSum(t *testing.T) {
	require.Equal(t, float64(3), reduceTwo(t, Sum{}, float64(1), float64(2)))
	require.Equal(t, float64(-1), reduceTwo(t, Sum{}, float64(1), float64(-2)))

	var out, err = (Sum{}).Reduce(Cursor{HasLHS: false, RHS: float64(42)})
	require.NoError(t, err)
	require.Equal(t, float64(42), out)

	_, err = (Sum{}).Reduce(Cursor{HasLHS: true, LHS: "nope", RHS: float64(1)})
	require.Error(t, err)
}

func TestSumWidesThanFloat64(t *testing.T) {
	// Large integers carried as json.Number round-trip exactly rather
	// than going through float64's 53-bit mantissa.
	var out, err = (Sum{}).Reduce(Cursor{
		HasLHS: true,
		LHS:    json.Number("9007199254740993"), // 2^53 + 1, not exact as a float64.
		RHS:    json.Number("1"),
	})
	require.NoError(t, err)
	require.Equal(t, json.Number("9007199254740994"), out)
}

func TestSumNumericOverflow(t *testing.T) {
	// u64::MAX - 1 + 2 overflows unsigned 64-bit arithmetic.
	var _, err = (Sum{}).Reduce(Cursor{
		HasLHS: true,
		LHS:    json.Number("18446744073709551614"),
		RHS:    float64(2),
	})
	require.Equal(t, SumNumericOverflow{}, err)

	// f64::MAX + f64::MAX/10 overflows float64 to +Inf.
	_, err = (Sum{}).Reduce(Cursor{
		HasLHS: true,
		LHS:    math.MaxFloat64,
		RHS:    math.MaxFloat64 / 10,
	})
	require.Equal(t, SumNumericOverflow{}, err)
}

func TestMergeArrayInPlace(t *testing.T) {
	var out = reduceTwo(t, Merge{},
		[]interface{}{float64(1), float64(2), float64(3)},
		[]interface{}{float64(10), float64(20)})
	require.Equal(t, []interface{}{float64(10), float64(20), float64(3)}, out)
}

func TestMergeOrderedScalars(t *testing.T) {
	var strategy = Merge{Key: []string{""}}
	var out = reduceTwo(t, strategy, []interface{}{float64(5), float64(9)}, []interface{}{float64(7)})
	require.Equal(t, []interface{}{float64(5), float64(7), float64(9)}, out)

	out, err := strategy.Reduce(Cursor{HasLHS: true,
		LHS: out,
		RHS: []interface{}{float64(2), float64(4), float64(5)}})
	require.NoError(t, err)
	require.Equal(t, []interface{}{float64(2), float64(4), float64(5), float64(7), float64(9)}, out)
}

func TestMergeOrderedObjects(t *testing.T) {
	var strategy = Merge{Key: []string{"k"}}
	var lhs = []interface{}{
		map[string]interface{}{"k": float64(1), "sum": float64(1)},
		map[string]interface{}{"k": float64(3), "sum": float64(3)},
	}
	var rhs = []interface{}{
		map[string]interface{}{"k": float64(1), "sum": float64(10)},
		map[string]interface{}{"k": float64(2), "sum": float64(2)},
	}
	var locate = func(loc []string) Strategy {
		switch {
		case len(loc) == 0:
			return strategy
		case len(loc) == 1:
			return Merge{Key: []string{"k"}}
		case loc[len(loc)-1] == "sum":
			return Sum{}
		}
		return nil
	}
	var out, err = strategy.Reduce(Cursor{HasLHS: true, LHS: lhs, RHS: rhs, Locate: locate})
	require.NoError(t, err)
	require.Equal(t, []interface{}{
		map[string]interface{}{"k": float64(1), "sum": float64(11)},
		map[string]interface{}{"k": float64(2), "sum": float64(2)},
		map[string]interface{}{"k": float64(3), "sum": float64(3)},
	}, out)
}

func TestMergeObjects(t *testing.T) {
	var out = reduceTwo(t, Merge{},
		map[string]interface{}{"a": float64(1), "b": float64(2)},
		map[string]interface{}{"b": float64(20), "c": float64(3)})
	require.Equal(t, map[string]interface{}{
		"a": float64(1), "b": float64(20), "c": float64(3),
	}, out)
}

func TestDeepMergeObjects(t *testing.T) {
	var locate = func(loc []string) Strategy {
		if len(loc) == 1 && loc[0] == "count" {
			return Sum{}
		}
		return nil
	}
	var out, err = (Merge{}).Reduce(Cursor{
		HasLHS: true,
		LHS:    map[string]interface{}{"count": float64(1), "label": "old"},
		RHS:    map[string]interface{}{"count": float64(2), "label": "new"},
		Locate: locate,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"count": float64(3), "label": "new"}, out)
}

func TestTopLevelReduceDispatchesThroughLocate(t *testing.T) {
	var locate = func(loc []string) Strategy {
		if loc == nil {
			return Sum{}
		}
		return nil
	}
	var out, err = Reduce(true, float64(1), float64(2), locate, true)
	require.NoError(t, err)
	require.Equal(t, float64(3), out)
}
