// Package converge implements the convergence engine (spec module 4.6):
// reconciling the desired shard/journal topology implied by a catalog task
// or collection, at a given split fan-out, against the brokers' and
// consumers' actual listing, and emitting CAS-guarded Apply batches that
// bring the two into agreement.
//
// Adapted directly from the upstream Flow runtime's go/flow/converge.go,
// go/flow/specs.go and go/flow/ptr.go, generalized from the protobuf-backed
// pf.Task/pf.CollectionSpec types to this repository's plain catalog.Task/
// catalog.CollectionSpec, while continuing to speak the real gazette broker
// and consumer wire protocols for everything downstream of the catalog
// model (ShardSpec, JournalSpec, ListRequest, ApplyRequest).
package converge

import (
	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
	pb "go.gazette.dev/core/broker/protocol"
	pc "go.gazette.dev/core/consumer/protocol"
	glabels "go.gazette.dev/core/labels"
)

// ListShardsRequest builds a ListRequest of the task's shards.
func ListShardsRequest(task catalog.Task) pc.ListRequest {
	return pc.ListRequest{
		Selector: pb.LabelSelector{
			Include: pb.MustLabelSet(
				labels.TaskName, task.TaskName(),
				labels.TaskType, string(task.TaskType()),
			),
		},
	}
}

// ListRecoveryLogsRequest builds a ListRequest of the task's recovery logs.
func ListRecoveryLogsRequest(task catalog.Task) pb.ListRequest {
	return pb.ListRequest{
		Selector: pb.LabelSelector{
			Include: pb.MustLabelSet(
				glabels.ContentType, labels.ContentTypeRecoveryLog,
				labels.TaskName, task.TaskName(),
				labels.TaskType, string(task.TaskType()),
			),
		},
	}
}

// ListPartitionsRequest builds a ListRequest of the collection's partitions.
func ListPartitionsRequest(collection *catalog.CollectionSpec) pb.ListRequest {
	return pb.ListRequest{
		Selector: pb.LabelSelector{
			Include: pb.MustLabelSet(labels.Collection, collection.Name),
		},
	}
}

// CollectionWatchRequest returns a ListRequest which watches all partitions
// of a collection, using the partition template's name prefix so that
// brokers can use their index over journal names.
func CollectionWatchRequest(spec *catalog.CollectionSpec) pb.ListRequest {
	return pb.ListRequest{
		Selector: pb.LabelSelector{
			Include: pb.MustLabelSet(
				"name:prefix", spec.PartitionTemplate.NamePrefix+"/",
				labels.Collection, spec.Name,
			),
		},
		Watch: true,
	}
}
