package converge

import (
	"github.com/estuary/data-plane-core/go/catalog"
	pb "go.gazette.dev/core/broker/protocol"
)

// toBrokerLabelSet converts a catalog.LabelSet into the gazette broker's
// wire LabelSet, which JournalSpec and ShardSpec both embed. The two shapes
// are structurally identical (sorted (name, value) pairs); the conversion
// exists only because CORE's catalog model is plain Go rather than a
// generated protobuf type sharing gazette's LabelSet directly.
func toBrokerLabelSet(set catalog.LabelSet) pb.LabelSet {
	var out pb.LabelSet
	for _, l := range set.Labels {
		out.AddValue(l.Name, l.Value)
	}
	return out
}

// fromBrokerLabelSet is the inverse of toBrokerLabelSet.
func fromBrokerLabelSet(set pb.LabelSet) catalog.LabelSet {
	var out catalog.LabelSet
	for _, l := range set.Labels {
		out.AddValue(l.Name, l.Value)
	}
	return out
}
