package statestore

import (
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// Initial batch targets and their caps. Doubled each iteration that fails
// to strictly reduce the batch count, until both are at cap, at which
// point a non-converging merge is a hard failure rather than an infinite
// loop.
const (
	initialByteTarget = 1 << 20  // 1 MiB
	initialOpTarget   = 1 << 10  // 1 Ki operands per batch
	byteTargetCap     = 1 << 30  // 1 GiB
	opTargetCap       = 1 << 20  // 1 Mi operands per batch
)

// mergeBatches folds docs (an initial document followed by merge-patch
// operands, if hasInitial, or a bare sequence of operands otherwise) down
// to a single result, batching to bound memory and re-batching with larger
// targets if a pass fails to make progress.
func mergeBatches(docs [][]byte, hasInitial bool) ([]byte, error) {
	var byteTarget, opTarget = initialByteTarget, initialOpTarget
	var prevBatchCount = len(docs) + 1

	for {
		batches, err := buildBatches(docs, hasInitial, byteTarget, opTarget)
		if err != nil {
			return nil, err
		}
		if len(batches) <= 1 {
			return batches[0], nil
		}
		if len(batches) >= prevBatchCount {
			if byteTarget >= byteTargetCap && opTarget >= opTargetCap {
				return nil, fmt.Errorf("statestore: merge failed to converge after %d batches", len(batches))
			}
			if byteTarget < byteTargetCap {
				byteTarget *= 2
			}
			if opTarget < opTargetCap {
				opTarget *= 2
			}
		}
		prevBatchCount = len(batches)
		docs = batches
		hasInitial = false // only the very first batch of the very first iteration carries initial.
	}
}

// buildBatches groups docs into sequential batches, each accepting
// operands until its accumulated byte size exceeds byteTarget, its operand
// count reaches opTarget, or the input is exhausted, then reduces that
// batch to a single document (or patch).
func buildBatches(docs [][]byte, hasInitial bool, byteTarget, opTarget int) ([][]byte, error) {
	var batches [][]byte
	var cur [][]byte
	var curBytes int

	for i, d := range docs {
		cur = append(cur, d)
		curBytes += len(d)

		if curBytes <= byteTarget && len(cur) < opTarget && i != len(docs)-1 {
			continue
		}
		var full = hasInitial && len(batches) == 0
		out, err := reduceBatch(cur, full)
		if err != nil {
			return nil, err
		}
		batches = append(batches, out)
		cur, curBytes = nil, 0
	}
	return batches, nil
}

// reduceBatch folds a batch of documents into one. If full, the first
// document is a base document (not a patch): the remaining documents are
// folded into a single patch via MergeMergePatches and then applied to the
// base via MergePatch, which strips null deletion markers. Otherwise every
// document in the batch is itself a patch, folded into one combined patch
// that preserves null markers for a later batch or the final full merge.
func reduceBatch(batch [][]byte, full bool) ([]byte, error) {
	if len(batch) == 1 && !full {
		return batch[0], nil
	}

	var base []byte
	var patches = batch
	if full {
		base, patches = batch[0], batch[1:]
	}

	var patch []byte
	for _, p := range patches {
		if patch == nil {
			patch = p
			continue
		}
		var merged, err = jsonpatch.MergeMergePatches(patch, p)
		if err != nil {
			return nil, fmt.Errorf("statestore: combining merge patches: %w", err)
		}
		patch = merged
	}

	if !full {
		if patch == nil {
			return base, nil
		}
		return patch, nil
	}
	if patch == nil {
		return base, nil
	}
	result, err := jsonpatch.MergePatch(base, patch)
	if err != nil {
		return nil, fmt.Errorf("statestore: applying merge patch: %w", err)
	}
	return result, nil
}
