package fields

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenarios below are adapted from the solver's behavior as described in
// original_source's crates/validation/src/field_selection.rs test suite
// (whose fixture file wasn't carried into the distillation), each
// exercising one rule from Step 2's grouping.

// withDefaults fills in a FieldOptional constraint for every named field
// that overrides doesn't already cover, standing in for a connector that
// responded to every field in the candidate selection. Leaving a field
// out of the connector's response is itself meaningful (ConnectorOmits),
// so tests that don't care about that rule use this to opt out of it.
func withDefaults(fields []string, overrides map[string]Constraint) map[string]Constraint {
	var out = make(map[string]Constraint, len(fields))
	for _, f := range fields {
		out[f] = Constraint{Type: ConstraintFieldOptional}
	}
	for f, c := range overrides {
		out[f] = c
	}
	return out
}

func TestGroupByAlwaysSelected(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
	}
	var selection, conflicts, _ = Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{Recommended: RecommendedDepth{False: true}}},
		withDefaults([]string{"id"}, nil))

	require.Empty(t, conflicts)
	require.Equal(t, []string{"id"}, selection.Keys)
	require.NotContains(t, selection.Values, "id")
}

func TestDesiredDepthSelectsWithinDepth(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a"},
		{Field: "a_b", Ptr: "/a/b"},
	}
	var selection, conflicts, _ = Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{Recommended: RecommendedDepth{Depth: 1}}},
		withDefaults([]string{"id", "a", "a_b"}, nil))

	require.Empty(t, conflicts)
	require.ElementsMatch(t, []string{"a"}, selection.Values)
}

func TestConnectorRequiresSurvivesDepth(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "nested_thing", Ptr: "/nested/thing"},
	}
	var constraints = withDefaults([]string{"id"}, map[string]Constraint{
		"nested_thing": {Type: ConstraintFieldRequired, Reason: "connector wants it"},
	})
	var selection, conflicts, _ = Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{Recommended: RecommendedDepth{False: true}}}, constraints)

	require.Empty(t, conflicts)
	require.Contains(t, selection.Values, "nested_thing")
}

func TestDuplicateLocationDemotesDesiredDepth(t *testing.T) {
	// Two distinct fields resolve to the same location (e.g. a
	// case-insensitive alias): whichever sorts first by field name
	// wins the location, and the other is demoted to a Reject.
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a"},
		{Field: "a_alias", Ptr: "/a"},
	}
	var selection, conflicts, outcomes := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 1},
		}}, withDefaults([]string{"id", "a", "a_alias"}, nil))

	require.Empty(t, conflicts)
	require.Contains(t, selection.Values, "a")
	require.NotContains(t, selection.Values, "a_alias")
	require.Equal(t, RejectDuplicateLocation, outcomes["a_alias"].Reject.Kind)
}

func TestCoveredLocationDemotesChild(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a"},
		{Field: "a_b", Ptr: "/a/b"},
	}
	var selection, conflicts, outcomes := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 2},
			Require:     map[string]string{"a": "{}"},
		}}, withDefaults([]string{"id", "a", "a_b"}, nil))

	require.Empty(t, conflicts)
	require.Contains(t, selection.Values, "a")
	require.NotContains(t, selection.Values, "a_b")
	require.Equal(t, RejectCoveredLocation, outcomes["a_b"].Reject.Kind)
}

func TestExcludedParentDemotesChild(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a"},
		{Field: "a_b", Ptr: "/a/b"},
	}
	var selection, conflicts, outcomes := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 2},
			Exclude:     []string{"a"},
		}}, withDefaults([]string{"id", "a", "a_b"}, nil))

	require.Empty(t, conflicts)
	require.NotContains(t, selection.Values, "a")
	require.NotContains(t, selection.Values, "a_b")
	require.Equal(t, RejectExcludedParent, outcomes["a_b"].Reject.Kind)
}

func TestFoldCollisionRejectsSecondField(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "Name", Ptr: "/Name"},
		{Field: "name", Ptr: "/name"},
	}
	var constraints = withDefaults([]string{"id"}, map[string]Constraint{
		"Name": {Type: ConstraintFieldOptional, FoldedField: "name"},
		"name": {Type: ConstraintFieldOptional, FoldedField: "name"},
	})
	var selection, conflicts, outcomes := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 1},
		}}, constraints)

	require.Empty(t, conflicts)
	require.Len(t, selection.Values, 1)
	require.Equal(t, RejectDuplicateFold, outcomes["name"].Reject.Kind)
}

func TestConnectorIncompatibleIsRecoverableConflict(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a"},
	}
	var live = &MaterializationBinding{
		Backfill: 0,
		FieldSelection: &FieldSelection{
			Keys: []string{"id"}, Values: []string{"a"}, Document: "",
		},
	}
	var constraints = withDefaults([]string{"id"}, map[string]Constraint{
		"a": {Type: ConstraintIncompatible, Reason: "type changed"},
	})
	var selection, conflicts, _ := Evaluate(projections, []string{"id"}, live,
		MaterializationBinding{Backfill: 0, Fields: MaterializationFields{
			Recommended: RecommendedDepth{False: true},
		}}, constraints)

	require.Len(t, conflicts, 1)
	require.Equal(t, RejectConnectorIncompatible, conflicts[0].Reject.Kind)
	require.True(t, Recoverable(conflicts))
	// Still presumed selected, since Incompatible conflicts select
	// assuming the caller backfills to resolve them.
	require.Contains(t, selection.Values, "a")
}

func TestConnectorForbidsIsHardConflict(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a"},
	}
	var constraints = withDefaults([]string{"id"}, map[string]Constraint{
		"a": {Type: ConstraintFieldForbidden, Reason: "not supported"},
	})
	var selection, conflicts, _ := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 1},
			Require:     map[string]string{"a": "{}"},
		}}, constraints)

	require.Len(t, conflicts, 1)
	require.Equal(t, RejectConnectorForbids, conflicts[0].Reject.Kind)
	require.False(t, Recoverable(conflicts))
	require.NotContains(t, selection.Values, "a")
}

func TestBackfillChangeIgnoresLiveSelection(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "old_value", Ptr: "/old_value"},
	}
	var live = &MaterializationBinding{
		Backfill: 0,
		FieldSelection: &FieldSelection{
			Keys: []string{"id"}, Values: []string{"old_value"},
		},
	}
	var selection, conflicts, _ := Evaluate(projections, []string{"id"}, live,
		MaterializationBinding{Backfill: 1, Fields: MaterializationFields{
			Recommended: RecommendedDepth{False: true},
		}}, withDefaults([]string{"id", "old_value"}, nil))

	require.Empty(t, conflicts)
	require.NotContains(t, selection.Values, "old_value")
}

func TestNonObjectShallowerThanDepthIsDesired(t *testing.T) {
	// "a" sits above the target depth, but since it's a scalar rather
	// than an object it has nothing more to project below it, so it's
	// desired anyway.
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a", Inference: &Inference{Types: []string{"string"}}},
	}
	var selection, conflicts, _ := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 2},
		}}, withDefaults([]string{"id", "a"}, nil))

	require.Empty(t, conflicts)
	require.Contains(t, selection.Values, "a")
}

func TestObjectWithChildrenIsNotDesiredAboveDepth(t *testing.T) {
	var projections = []Projection{
		{Field: "id", Ptr: "/id"},
		{Field: "a", Ptr: "/a", Inference: &Inference{Types: []string{"object"}}},
		{Field: "a_b", Ptr: "/a/b"},
	}
	var selection, conflicts, _ := Evaluate(projections, []string{"id"}, nil,
		MaterializationBinding{Fields: MaterializationFields{
			Recommended: RecommendedDepth{Depth: 2},
		}}, withDefaults([]string{"id", "a", "a_b"}, nil))

	require.Empty(t, conflicts)
	require.NotContains(t, selection.Values, "a")
	require.Contains(t, selection.Values, "a_b")
}
