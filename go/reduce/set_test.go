package reduce

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Adapted from original_source's crates/doc-poc/src/reduce/set.rs test
// coverage of add/intersect/remove composition, ported to this package's
// plain-document Set strategy.

func TestSetAddUnion(t *testing.T) {
	var strategy = Set{Key: []string{""}}

	var out, err = strategy.Reduce(Cursor{
		HasLHS: false,
		RHS:    map[string]interface{}{"add": []interface{}{float64(1), float64(2)}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"add": []interface{}{float64(1), float64(2)}}, out)

	out, err = strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    out,
		RHS:    map[string]interface{}{"add": []interface{}{float64(2), float64(3)}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add": []interface{}{float64(1), float64(2), float64(3)},
	}, out)
}

func TestSetIntersectAndRemove(t *testing.T) {
	var strategy = Set{Key: []string{""}}
	var base = map[string]interface{}{
		"add": []interface{}{float64(1), float64(2), float64(3), float64(4)},
	}

	// A non-full reduction retains "remove": the member it names hasn't
	// necessarily been seen for the last time.
	out, err := strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    base,
		RHS:    map[string]interface{}{"remove": []interface{}{float64(2)}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add":    []interface{}{float64(1), float64(3), float64(4)},
		"remove": []interface{}{float64(2)},
	}, out)

	// Likewise "intersect".
	out, err = strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    base,
		RHS:    map[string]interface{}{"intersect": []interface{}{float64(3), float64(4), float64(5)}},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add":       []interface{}{float64(3), float64(4)},
		"intersect": []interface{}{float64(3), float64(4), float64(5)},
	}, out)

	// A full reduction prunes both: every member they'd still affect has
	// already had its chance to pass through "add".
	out, err = strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    base,
		RHS:    map[string]interface{}{"remove": []interface{}{float64(2)}},
		Full:   true,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add": []interface{}{float64(1), float64(3), float64(4)},
	}, out)
}

// Adapted from original_source's crates/doc-poc/src/reduce/set.rs
// test_array_sequence_fixture, which keys pair items ([id, count]) by
// their first element and sums their second via a nested "sum" strategy.
func TestSetPairItemsAccumulateAndPruneOnFull(t *testing.T) {
	var strategy = Set{Key: []string{"0"}}
	var locate = func(loc []string) Strategy {
		if len(loc) == 3 && loc[0] == "add" && loc[2] == "1" {
			return Sum{}
		}
		if len(loc) == 2 && loc[0] == "add" {
			return Merge{}
		}
		return nil
	}

	var cur = Cursor{
		HasLHS: false,
		RHS:    map[string]interface{}{"add": []interface{}{[]interface{}{float64(55), float64(1)}}},
		Locate: locate,
	}
	out, err := strategy.Reduce(cur)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add": []interface{}{[]interface{}{float64(55), float64(1)}},
	}, out)

	out, err = strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    out,
		RHS:    map[string]interface{}{"add": []interface{}{[]interface{}{float64(99), float64(1)}}},
		Locate: locate,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add": []interface{}{
			[]interface{}{float64(55), float64(1)},
			[]interface{}{float64(99), float64(1)},
		},
	}, out)

	// Per the review's S3 scenario: reducing {remove:[[99]], add:[[22,1],
	// [55,1]]} into the accumulated {add:[[55,1],[99,1]]} sums the
	// colliding [55,*] items and retains "remove" since this isn't full.
	out, err = strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    out,
		RHS: map[string]interface{}{
			"remove": []interface{}{[]interface{}{float64(99)}},
			"add": []interface{}{
				[]interface{}{float64(22), float64(1)},
				[]interface{}{float64(55), float64(1)},
			},
		},
		Locate: locate,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add": []interface{}{
			[]interface{}{float64(22), float64(1)},
			[]interface{}{float64(55), float64(2)},
		},
		"remove": []interface{}{[]interface{}{float64(99)}},
	}, out)

	// A full pass applies the still-pending removal and prunes "remove".
	out, err = strategy.Reduce(Cursor{
		HasLHS: true,
		LHS:    out,
		RHS:    map[string]interface{}{"add": []interface{}{}},
		Locate: locate,
		Full:   true,
	})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"add": []interface{}{
			[]interface{}{float64(22), float64(1)},
			[]interface{}{float64(55), float64(2)},
		},
	}, out)
}

func TestSetRejectsWrongShape(t *testing.T) {
	var strategy = Set{}
	_, err := strategy.Reduce(Cursor{HasLHS: false, RHS: "not-a-set"})
	require.Error(t, err)

	_, err = strategy.Reduce(Cursor{
		HasLHS: false,
		RHS:    map[string]interface{}{"unexpected": []interface{}{}},
	})
	require.Error(t, err)
}
