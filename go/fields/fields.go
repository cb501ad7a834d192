// Package fields implements the field-selection solver (spec module 4.9):
// deciding which collection projections a materialization binding should
// populate, given the user's field configuration, the live binding's prior
// selection, and the connector's per-field constraints.
//
// Adapted from original_source's crates/validation/src/field_selection.rs.
// The Rust source streams three successive merge-join-by passes over
// sorted (field, Select|Reject) vectors; here the same grouping is
// expressed with maps keyed by field name; since every pass there is
// ultimately a full outer join, the two formulations always produce the
// same per-field outcome. Select and Reject reasons that the Rust enum
// carries as variant payloads (connector reason strings, folded field
// names) are carried as struct fields here rather than as distinct Go
// types, and ordering between reasons is decided on Kind alone: two
// reasons of the same Kind never arise for the same field in practice,
// so comparing only Kind is equivalent to the Rust derived Ord.
package fields

import (
	"sort"
	"strings"
)

// SelectKind is a rationale for including a field in selection, ranked
// ascending by priority: a later constant always outranks an earlier one
// when both apply to the same field.
type SelectKind int

const (
	SelectDesiredDepth SelectKind = iota
	SelectCoreMetadata
	SelectConnectorRequiresLocation
	SelectUserDefined
	SelectCurrentValue
	SelectPartitionKey
	SelectConnectorRequires
	SelectUserRequires
	SelectCurrentDocument
	SelectGroupByKey
)

// Select pairs a SelectKind with the connector-supplied reason string,
// when the kind carries one (ConnectorRequires, ConnectorRequiresLocation).
type Select struct {
	Kind   SelectKind
	Reason string
}

// RejectKind is a rationale for excluding a field from selection, ranked
// ascending by priority the same way SelectKind is.
type RejectKind int

const (
	RejectNotSelected RejectKind = iota
	RejectCoveredLocation
	RejectExcludedParent
	RejectDuplicateLocation
	RejectDuplicateFold
	RejectConnectorOmits
	RejectCollectionOmits
	RejectConnectorIncompatible
	RejectConnectorForbids
	RejectUserExcludes
)

// Reject pairs a RejectKind with whichever payload it carries: a
// connector reason string (ConnectorForbids, ConnectorIncompatible) or
// the colliding folded field name (DuplicateFold).
type Reject struct {
	Kind        RejectKind
	Reason      string
	FoldedField string
}

// Conflict records a field whose Select and Reject outcomes could not be
// reconciled without caller intervention.
type Conflict struct {
	Field  string
	Select Select
	Reject Reject
}

// Recoverable reports whether every conflict in the list stems from a
// connector incompatibility that a backfill would clear, as opposed to a
// hard error the caller cannot route around.
func Recoverable(conflicts []Conflict) bool {
	if len(conflicts) == 0 {
		return false
	}
	for _, c := range conflicts {
		if c.Reject.Kind != RejectConnectorIncompatible {
			return false
		}
	}
	return true
}

// Inference carries the subset of a collection projection's inferred
// type shape the solver needs: whether it may be a JSON object.
type Inference struct {
	Types []string
}

func (inf *Inference) isObjectOrNull() bool {
	if inf == nil {
		return false
	}
	var isObject, isNull bool
	for _, t := range inf.Types {
		switch t {
		case "object":
			isObject = true
		case "null":
			isNull = true
		default:
			return false
		}
	}
	return isObject && (isNull || len(inf.Types) == 1)
}

// Projection is a collection's projected field, as surfaced to the
// solver. Ptr is the JSON pointer location within the collection
// document; an empty Ptr denotes the document root.
type Projection struct {
	Field          string
	Ptr            string
	IsPartitionKey bool
	Explicit       bool
	Inference      *Inference
}

// RecommendedDepth models the user's `recommended` field, which is
// either a boolean (all-or-nothing) or an explicit depth.
type RecommendedDepth struct {
	All   bool // recommended: true -> include every depth.
	False bool // recommended: false -> include nothing by depth.
	Depth int  // recommended: <depth> -> include exactly that depth.
}

func (r RecommendedDepth) resolve() int {
	switch {
	case r.All:
		return 1<<31 - 1
	case r.False:
		return 0
	default:
		return r.Depth
	}
}

// MaterializationFields is the user's field-selection configuration for
// a materialization binding.
type MaterializationFields struct {
	GroupBy     []string
	Require     map[string]string // field -> JSON-encoded per-field config.
	Exclude     []string
	Recommended RecommendedDepth
}

// ConstraintKind enumerates the connector's per-field response to a
// candidate field selection.
type ConstraintKind int

const (
	ConstraintInvalid ConstraintKind = iota
	ConstraintFieldRequired
	ConstraintLocationRequired
	ConstraintLocationRecommended
	ConstraintFieldOptional
	ConstraintFieldForbidden
	ConstraintUnsatisfiable
	ConstraintIncompatible
)

// Constraint is one connector-returned field constraint.
type Constraint struct {
	Type        ConstraintKind
	Reason      string
	FoldedField string
}

// FieldSelection is the solved output: which projection fields populate
// the group-by key, the flow document, and the remaining values.
type FieldSelection struct {
	Keys            []string
	Values          []string
	Document        string
	FieldConfigJSON map[string]string
}

// MaterializationBinding is the subset of a materialization binding's
// model the solver consults.
type MaterializationBinding struct {
	Fields         MaterializationFields
	Backfill       int
	FieldSelection *FieldSelection
}

// OutcomeKind distinguishes the three shapes a field's resolved
// Select/Reject pair can take.
type OutcomeKind int

const (
	OutcomeSelect OutcomeKind = iota
	OutcomeReject
	OutcomeConflict
)

// Outcome is the resolved per-field Select/Reject verdict.
type Outcome struct {
	Kind   OutcomeKind
	Select Select
	Reject Reject
}

// Evaluate runs the full three-step solver: extract constraints, group
// and filter them per field, then resolve conflicts into a
// FieldSelection plus any Conflicts the caller must consider.
//
// live and model's FieldSelection only influences the outcome when
// live.Backfill equals model.Backfill; a changed backfill counter means
// the live selection no longer constrains the new one.
func Evaluate(
	projections []Projection,
	groupBy []string,
	live *MaterializationBinding,
	model MaterializationBinding,
	constraints map[string]Constraint,
) (FieldSelection, []Conflict, map[string]Outcome) {
	var liveSelection *FieldSelection
	if live != nil && live.Backfill == model.Backfill {
		liveSelection = live.FieldSelection
	}

	selects, rejects, fieldConfig := extractConstraints(projections, groupBy, liveSelection, model.Fields, constraints)
	documentField, outcomes := groupOutcomes(projections, rejects, selects, constraints)
	selection, conflicts := buildSelection(groupBy, documentField, fieldConfig, outcomes)

	return selection, conflicts, outcomes
}

type fieldSelect struct {
	field  string
	select_ Select
}

type fieldReject struct {
	field  string
	reject Reject
}

func pointerDepth(ptr string) int {
	if ptr == "" {
		return 0
	}
	return strings.Count(ptr, "/")
}

// isParentOf reports whether ptr is a JSON-pointer ancestor of other:
// other must be strictly longer and begin with ptr followed by "/".
// Comparison is byte-wise rather than rune-wise, which is safe here
// since JSON pointer separators and escapes are single ASCII bytes.
func isParentOf(ptr, other string) bool {
	return len(other) > len(ptr) &&
		strings.HasPrefix(other, ptr) &&
		other[len(ptr)] == '/'
}

// extractConstraints maps every applicable source (group-by keys, the
// live selection, the user's require/exclude/recommended configuration,
// collection projections, and connector constraints) into Select and
// Reject reasons per field.
func extractConstraints(
	projections []Projection,
	groupBy []string,
	liveSelection *FieldSelection,
	modelFields MaterializationFields,
	constraints map[string]Constraint,
) (selects []fieldSelect, rejects []fieldReject, fieldConfig map[string]string) {
	fieldConfig = make(map[string]string)
	desiredDepth := modelFields.Recommended.resolve()

	for _, field := range groupBy {
		selects = append(selects, fieldSelect{field, Select{Kind: SelectGroupByKey}})
	}

	if liveSelection != nil {
		if liveSelection.Document != "" {
			selects = append(selects, fieldSelect{liveSelection.Document, Select{Kind: SelectCurrentDocument}})
		}
		for _, field := range liveSelection.Values {
			selects = append(selects, fieldSelect{field, Select{Kind: SelectCurrentValue}})
		}
	}

	for field, config := range modelFields.Require {
		selects = append(selects, fieldSelect{field, Select{Kind: SelectUserRequires}})
		fieldConfig[field] = config
	}
	for _, field := range modelFields.Exclude {
		rejects = append(rejects, fieldReject{field, Reject{Kind: RejectUserExcludes}})
	}

	var sorted = append([]Projection(nil), projections...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Ptr < sorted[j].Ptr })

	for i, p := range sorted {
		if p.IsPartitionKey {
			selects = append(selects, fieldSelect{p.Field, Select{Kind: SelectPartitionKey}})
		}
		if p.Explicit {
			selects = append(selects, fieldSelect{p.Field, Select{Kind: SelectUserDefined}})
		}
		// flow_published_at is mapped from /_meta/uuid to a date-time
		// extraction, and _meta/op is core metadata; both are selected
		// whenever any depth-based selection is desired at all.
		if desiredDepth > 0 && (p.Field == "flow_published_at" || p.Field == "_meta/op") {
			selects = append(selects, fieldSelect{p.Field, Select{Kind: SelectCoreMetadata}})
		}

		var depth = pointerDepth(p.Ptr)
		var desired bool
		switch {
		case strings.HasPrefix(p.Ptr, "/_meta"):
			desired = false
		case depth == desiredDepth:
			desired = true
		case depth > desiredDepth:
			desired = false
		case !p.Inference.isObjectOrNull():
			desired = true // Below-target locations that aren't objects are always desired.
		default:
			var hasProjectedChild bool
			if i+1 < len(sorted) {
				hasProjectedChild = isParentOf(p.Ptr, sorted[i+1].Ptr)
			}
			// Desire objects with no projected children, unless the
			// user asked for every depth (recommended: true).
			desired = !hasProjectedChild && !modelFields.Recommended.All
		}
		if desired {
			selects = append(selects, fieldSelect{p.Field, Select{Kind: SelectDesiredDepth}})
		}
	}

	var constraintFields = make([]string, 0, len(constraints))
	for field := range constraints {
		constraintFields = append(constraintFields, field)
	}
	sort.Strings(constraintFields)

	for _, field := range constraintFields {
		var c = constraints[field]
		switch c.Type {
		case ConstraintFieldRequired:
			selects = append(selects, fieldSelect{field, Select{Kind: SelectConnectorRequires, Reason: c.Reason}})
		case ConstraintLocationRequired:
			selects = append(selects, fieldSelect{field, Select{Kind: SelectConnectorRequiresLocation, Reason: c.Reason}})
		case ConstraintFieldForbidden:
			rejects = append(rejects, fieldReject{field, Reject{Kind: RejectConnectorForbids, Reason: c.Reason}})
		case ConstraintIncompatible, ConstraintUnsatisfiable:
			// Unsatisfiable is an alias of Incompatible; only surfaced
			// as a Reject when a live selection exists to conflict with.
			if liveSelection != nil {
				rejects = append(rejects, fieldReject{field, Reject{Kind: RejectConnectorIncompatible, Reason: c.Reason}})
			}
		case ConstraintLocationRecommended, ConstraintFieldOptional:
			// Neither selected nor rejected by the connector.
		case ConstraintInvalid:
			// Invalid constraints are errors surfaced elsewhere.
		}
	}

	sort.SliceStable(selects, func(i, j int) bool {
		if selects[i].field != selects[j].field {
			return selects[i].field < selects[j].field
		}
		return selects[i].select_.Kind > selects[j].select_.Kind
	})
	sort.SliceStable(rejects, func(i, j int) bool {
		if rejects[i].field != rejects[j].field {
			return rejects[i].field < rejects[j].field
		}
		return rejects[i].reject.Kind > rejects[j].reject.Kind
	})

	return selects, rejects, fieldConfig
}
