package fields

import "sort"

func selectMax(a, b *Select) *Select {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Kind > a.Kind:
		return b
	default:
		return a
	}
}

func rejectMax(a, b *Reject) *Reject {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case b.Kind > a.Kind:
		return b
	default:
		return a
	}
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// groupOutcomes folds the extracted Select and Reject reasons together
// with the collection's projections and the connector's constraints
// into one outcome per field, applying the depth and field-fold
// demotion rules: duplicate location, covered location, excluded
// parent, and fold collision.
//
// The top reason per field is the one with the greatest Kind, folded
// through selectMax and rejectMax; between reasons of equal Kind, the
// first in input order is kept.
func groupOutcomes(
	projections []Projection,
	rejects []fieldReject,
	selects []fieldSelect,
	constraints map[string]Constraint,
) (documentField *string, outcomes map[string]Outcome) {
	var topSelect = make(map[string]*Select)
	for _, fs := range selects {
		var s = fs.select_
		topSelect[fs.field] = selectMax(topSelect[fs.field], &s)
	}
	var topReject = make(map[string]*Reject)
	for _, fr := range rejects {
		var r = fr.reject
		topReject[fr.field] = rejectMax(topReject[fr.field], &r)
	}

	var projectionByField = make(map[string]Projection, len(projections))
	for _, p := range projections {
		projectionByField[p.Field] = p
	}

	var fieldSet = make(map[string]struct{})
	for field := range topSelect {
		fieldSet[field] = struct{}{}
	}
	for field := range topReject {
		fieldSet[field] = struct{}{}
	}
	for field := range projectionByField {
		fieldSet[field] = struct{}{}
	}
	for field := range constraints {
		fieldSet[field] = struct{}{}
	}
	var fields = make([]string, 0, len(fieldSet))
	for field := range fieldSet {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	// Pre-scan for user-excluded canonical projections: a projection
	// whose pointer is exactly "/" + its own field name, and which the
	// user excluded. Children of these pointers are rejected even when
	// otherwise within the desired depth.
	var excludedCanonicalPtrs []string
	for _, field := range fields {
		if r := topReject[field]; r != nil && r.Kind == RejectUserExcludes {
			if p, ok := projectionByField[field]; ok && len(p.Ptr) > 1 && p.Ptr[1:] == field {
				excludedCanonicalPtrs = append(excludedCanonicalPtrs, p.Ptr)
			}
		}
	}

	outcomes = make(map[string]Outcome, len(fields))
	var selectedFolds []string
	var selectedPtrs []string

	for _, field := range fields {
		var sel = topSelect[field]
		var rej = topReject[field]

		var fieldPtr string
		if p, ok := projectionByField[field]; ok {
			fieldPtr = p.Ptr
		} else {
			rej = rejectMax(rej, &Reject{Kind: RejectCollectionOmits})
		}

		var foldedField string
		if c, ok := constraints[field]; ok {
			if c.FoldedField == "" {
				foldedField = field
			} else {
				foldedField = c.FoldedField
			}
		} else {
			rej = rejectMax(rej, &Reject{Kind: RejectConnectorOmits})
			foldedField = field
		}

		if containsStr(selectedFolds, foldedField) {
			rej = rejectMax(rej, &Reject{Kind: RejectDuplicateFold, FoldedField: foldedField})
		}

		switch {
		case containsStr(selectedPtrs, fieldPtr):
			if sel == nil || sel.Kind == SelectCoreMetadata || sel.Kind == SelectDesiredDepth || sel.Kind == SelectConnectorRequiresLocation {
				sel = nil
				rej = rejectMax(rej, &Reject{Kind: RejectDuplicateLocation})
			}
		case anyIsParentOf(selectedPtrs, fieldPtr):
			if sel == nil || sel.Kind == SelectDesiredDepth {
				sel = nil
				rej = rejectMax(rej, &Reject{Kind: RejectCoveredLocation})
			}
		case anyIsParentOf(excludedCanonicalPtrs, fieldPtr):
			if sel == nil || sel.Kind == SelectDesiredDepth {
				sel = nil
				rej = rejectMax(rej, &Reject{Kind: RejectExcludedParent})
			}
		}

		var outcome Outcome
		switch {
		case sel == nil && rej == nil:
			outcome = Outcome{Kind: OutcomeReject, Reject: Reject{Kind: RejectNotSelected}}
		case sel == nil:
			outcome = Outcome{Kind: OutcomeReject, Reject: *rej}
		case rej == nil:
			outcome = Outcome{Kind: OutcomeSelect, Select: *sel}
		case rej.Kind == RejectConnectorIncompatible:
			// Incompatible conflicts are always surfaced, regardless of
			// the Select reason: the caller must still decide whether a
			// backfill is warranted.
			outcome = Outcome{Kind: OutcomeConflict, Select: *sel, Reject: *rej}
		case sel.Kind == SelectDesiredDepth || sel.Kind == SelectCoreMetadata ||
			sel.Kind == SelectUserDefined || sel.Kind == SelectCurrentValue || sel.Kind == SelectPartitionKey:
			// These Select reasons are weak enough to be overridden by
			// any remaining Reject.
			outcome = Outcome{Kind: OutcomeReject, Reject: *rej}
		default:
			outcome = Outcome{Kind: OutcomeConflict, Select: *sel, Reject: *rej}
		}

		if outcome.Kind == OutcomeSelect {
			if fieldPtr != "" {
				selectedPtrs = append(selectedPtrs, fieldPtr)
			} else if documentField == nil {
				var f = field
				documentField = &f
			}
			selectedFolds = append(selectedFolds, foldedField)
		}

		outcomes[field] = outcome
	}

	return documentField, outcomes
}

func anyIsParentOf(ptrs []string, field string) bool {
	for _, p := range ptrs {
		if isParentOf(p, field) {
			return true
		}
	}
	return false
}
