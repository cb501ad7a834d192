package converge

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
	pb "go.gazette.dev/core/broker/protocol"
	pc "go.gazette.dev/core/consumer/protocol"
)

// MapPartitionsToCurrentSplits passes through the current labels of
// existing partitions, unmodified: absent an explicit split request, the
// desired state of a partition is simply its current state.
func MapPartitionsToCurrentSplits(partitions []pb.ListResponse_Journal) []catalog.LabelSet {
	var out []catalog.LabelSet
	for _, p := range partitions {
		out = append(out, fromBrokerLabelSet(p.Spec.LabelSet))
	}
	return out
}

// MapShardsToCurrentOrInitialSplits passes through current labels of
// existing shards. If no shards exist, initial label splits are returned
// which evenly subdivide the key range into |initialSplits| chunks, each
// spanning the full r-clock range.
func MapShardsToCurrentOrInitialSplits(shards []pc.ListResponse_Shard, initialSplits int) []catalog.LabelSet {
	var out []catalog.LabelSet

	if len(shards) != 0 {
		for _, s := range shards {
			out = append(out, fromBrokerLabelSet(s.Spec.LabelSet))
		}
		return out
	}

	for p := 0; p != initialSplits; p++ {
		out = append(out, labels.EncodeRange(catalog.RangeSpec{
			KeyBegin:    uint32((1 << 32) * (p + 0) / initialSplits),
			KeyEnd:      uint32(((1 << 32) * (p + 1) / initialSplits) - 1),
			RClockBegin: 0,
			RClockEnd:   math.MaxUint32,
		}, catalog.LabelSet{}))
	}

	return out
}

// MapShardToSplit maps a single shard contained in |shards| to a desired
// split state, where the shard is evenly subdivided on either key or
// r-clock (depending on |splitOnKey|), producing LHS and RHS label sets.
func MapShardToSplit(task catalog.Task, shards []pc.ListResponse_Shard, splitOnKey bool) ([]catalog.LabelSet, error) {
	if len(shards) != 1 {
		return nil, fmt.Errorf("expected exactly one shard in the response")
	}
	var parent = shards[0].Spec
	var parentSet = fromBrokerLabelSet(parent.LabelSet)

	if l := parentSet.ValuesOf(labels.SplitSource); len(l) != 0 {
		return nil, fmt.Errorf("shard %s is already splitting from source %s", parent.Id, l[0])
	}
	if l := parentSet.ValuesOf(labels.SplitTarget); len(l) != 0 {
		return nil, fmt.Errorf("shard %s is already splitting into target %s", parent.Id, l[0])
	}

	parentRange, err := labels.ParseRangeSpec(parentSet)
	if err != nil {
		return nil, fmt.Errorf("parsing range spec: %w", err)
	}
	var lhsRange, rhsRange = parentRange, parentRange

	if splitOnKey {
		var pivot = uint32((uint64(parentRange.KeyBegin) + uint64(parentRange.KeyEnd) + 1) / 2)
		lhsRange.KeyEnd, rhsRange.KeyBegin = pivot-1, pivot
	} else {
		var pivot = uint32((uint64(parentRange.RClockBegin) + uint64(parentRange.RClockEnd) + 1) / 2)
		lhsRange.RClockEnd, rhsRange.RClockBegin = pivot-1, pivot
	}

	var lhs, rhs catalog.LabelSet
	for _, l := range parentSet.Labels {
		lhs.AddValue(l.Name, l.Value)
		rhs.AddValue(l.Name, l.Value)
	}
	rhs = labels.EncodeRange(rhsRange, rhs)
	// lhs keeps its current range; it's updated only once the rhs shard
	// finishes playback and completes the split workflow.

	rhsSuffix, err := labels.ShardSuffix(rhs)
	if err != nil {
		return nil, fmt.Errorf("building RHS shard suffix: %w", err)
	}
	var rhsID = task.TaskShardTemplate().IDPrefix + "/" + rhsSuffix

	lhs.SetValue(labels.SplitTarget, rhsID)
	rhs.SetValue(labels.SplitSource, string(parent.Id))

	return []catalog.LabelSet{lhs, rhs}, nil
}

// MapPartitionToSplit maps a single partition journal contained in
// |journals| to a desired split state, where the partition is evenly
// subdivided into |splits| sub-partitions. |splits| must be a power of two.
func MapPartitionToSplit(journals []pb.ListResponse_Journal, splits uint) ([]catalog.LabelSet, error) {
	if len(journals) != 1 {
		return nil, fmt.Errorf("expected exactly one journal in the response")
	} else if splits < 2 || splits > 256 || bits.OnesCount(splits) != 1 {
		return nil, fmt.Errorf("splits must be a power of two and in range [2, 256]")
	}
	var parent = journals[0].Spec
	var parentSet = fromBrokerLabelSet(parent.LabelSet)

	begin, err := labels.ParseHexU32Label(labels.KeyBegin, parentSet)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", labels.KeyBegin, err)
	}
	end, err := labels.ParseHexU32Label(labels.KeyEnd, parentSet)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", labels.KeyEnd, err)
	}
	if begin > end {
		return nil, fmt.Errorf("expected KeyBegin <= KeyEnd (%08x vs %08x)", begin, end)
	}
	var span = 1 + uint(end) - uint(begin)

	var out []catalog.LabelSet
	for p := uint(0); p != splits; p++ {
		var set catalog.LabelSet
		for _, l := range parentSet.Labels {
			set.AddValue(l.Name, l.Value)
		}
		set = labels.EncodeHexU32Label(labels.KeyBegin, begin+uint32(span*(p+0)/splits), set)
		set = labels.EncodeHexU32Label(labels.KeyEnd, begin+uint32(span*(p+1)/splits)-1, set)
		out = append(out, set)
	}
	return out, nil
}
