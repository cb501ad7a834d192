package statestore

import jsonpatch "github.com/evanphx/json-patch/v5"

// MergePatchOperator is a gorocksdb.MergeOperator implementing RFC 7396
// JSON Merge Patch folding across arbitrarily many operands, without ever
// holding more than a handful of them in memory at once (see
// mergeBatches).
type MergePatchOperator struct{}

func (MergePatchOperator) Name() string { return "estuary.merge-patch.v1" }

// FullMerge combines existingValue (a complete document, or nil) with
// operands (a sequence of merge-patches) into the final, fully-applied
// document. Null deletion markers are stripped, since this is the
// terminal reduction: the result is a document, not a patch.
func (MergePatchOperator) FullMerge(key, existingValue []byte, operands [][]byte) ([]byte, bool) {
	var inputs [][]byte
	if existingValue != nil {
		inputs = append(inputs, existingValue)
	}
	inputs = append(inputs, operands...)
	if len(inputs) == 0 {
		return nil, true
	}

	out, err := mergeBatches(inputs, existingValue != nil)
	if err != nil {
		return nil, false
	}
	return out, true
}

// PartialMerge combines two operands (no base document) into a single
// operand patch, preserving null deletion markers so they survive to a
// later FullMerge or PartialMerge.
func (MergePatchOperator) PartialMerge(key, left, right []byte) ([]byte, bool) {
	out, err := mergeBatches([][]byte{left, right}, false)
	if err != nil {
		return nil, false
	}
	return out, true
}
