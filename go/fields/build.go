package fields

import "sort"

// buildSelection turns the grouped per-field outcomes into a
// FieldSelection, splitting fields into the document, the group-by
// keys, and the remaining values, while collecting every outcome that
// resolved as a Conflict (including a Select that's presumed to apply
// only once the caller backfills).
func buildSelection(
	groupBy []string,
	documentField *string,
	fieldConfig map[string]string,
	outcomes map[string]Outcome,
) (FieldSelection, []Conflict) {
	var conflicts []Conflict
	var values []string

	var fields = make([]string, 0, len(outcomes))
	for field := range outcomes {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		var outcome = outcomes[field]
		var sel Select

		switch outcome.Kind {
		case OutcomeConflict:
			conflicts = append(conflicts, Conflict{Field: field, Select: outcome.Select, Reject: outcome.Reject})
			if outcome.Reject.Kind != RejectConnectorIncompatible {
				continue
			}
			// Incompatible means the field would be selected if the
			// caller backfills: produce a selection that presumes it,
			// alongside the recorded conflict.
			sel = outcome.Select
		case OutcomeSelect:
			sel = outcome.Select
		default:
			continue
		}
		_ = sel

		switch {
		case documentField != nil && *documentField == field:
			// Captured as Document, not Values.
		case containsStr(groupBy, field):
			// Captured as Keys, not Values.
		default:
			values = append(values, field)
		}
	}

	var doc string
	if documentField != nil {
		doc = *documentField
	}
	return FieldSelection{
		Keys:            groupBy,
		Values:          values,
		Document:        doc,
		FieldConfigJSON: fieldConfig,
	}, conflicts
}
