package converge

import (
	"time"

	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
	pb "go.gazette.dev/core/broker/protocol"
	pc "go.gazette.dev/core/consumer/protocol"
	glabels "go.gazette.dev/core/labels"
)

// BuildPartitionSpec builds a JournalSpec from the given template and labels.
// Labels must minimally provide the required runtime labels of the
// partition, such as partition field values and the key range. Non-runtime
// labels are filtered as needed; it's intended that the caller simply pass
// all labels of an existing specification.
func BuildPartitionSpec(template catalog.JournalTemplate, set catalog.LabelSet) (*pb.JournalSpec, error) {
	var spec = &pb.JournalSpec{
		Replication: template.Replication,
		Fragment: pb.JournalSpec_Fragment{
			Length:           template.FragmentLength,
			CompressionCodec: compressionCodec(template.Compression),
			FlushInterval:    time.Duration(template.FlushInterval),
			Stores:           journalStores(template.Stores),
		},
		LabelSet: toBrokerLabelSet(template.Labels),
	}
	spec.LabelSet.SetValue(glabels.ContentType, labels.ContentTypeJSONLines)
	spec.LabelSet.SetValue(glabels.ManagedBy, labels.ManagedByFlow)

	for _, l := range set.Labels {
		if labels.IsRuntimeLabel(l.Name) {
			spec.LabelSet.AddValue(l.Name, l.Value)
		}
	}

	suffix, err := shardPartitionSuffix(spec.LabelSet)
	if err != nil {
		return nil, err
	}
	spec.Name = pb.Journal(template.NamePrefix + "/" + suffix)

	return spec, nil
}

// BuildRecoverySpec builds a recovery log JournalSpec from the given
// template, for the given shard.
func BuildRecoverySpec(template catalog.JournalTemplate, shard *pc.ShardSpec) *pb.JournalSpec {
	return &pb.JournalSpec{
		Replication: template.Replication,
		Fragment: pb.JournalSpec_Fragment{
			Length:           template.FragmentLength,
			CompressionCodec: compressionCodec(template.Compression),
			FlushInterval:    time.Duration(template.FlushInterval),
			Stores:           journalStores(template.Stores),
		},
		LabelSet: journalRecoveryLabelSet(template.Labels),
		Name:     shard.RecoveryLog(),
	}
}

func journalRecoveryLabelSet(base catalog.LabelSet) pb.LabelSet {
	var out = toBrokerLabelSet(base)
	out.SetValue(glabels.ContentType, labels.ContentTypeRecoveryLog)
	out.SetValue(glabels.ManagedBy, labels.ManagedByFlow)
	return out
}

// BuildShardSpec builds a ShardSpec from the given template and labels.
// Labels must minimally provide the required runtime labels of the shard,
// such as its range specification. Non-runtime labels are filtered as
// needed, and it's intended that the caller simply pass all labels of an
// existing specification.
func BuildShardSpec(template catalog.ShardTemplate, set catalog.LabelSet) (*pc.ShardSpec, error) {
	var spec = &pc.ShardSpec{
		RecoveryLogPrefix: template.RecoveryLogPrefix,
		HintPrefix:        template.HintPrefix,
		HintBackups:       template.HintBackups,
		MaxTxnDuration:    time.Duration(template.MaxTxnDuration),
		MinTxnDuration:    time.Duration(template.MinTxnDuration),
		HotStandbys:       template.HotStandbys,
		LabelSet:          toBrokerLabelSet(template.Labels),
	}

	for _, l := range set.Labels {
		if labels.IsRuntimeLabel(l.Name) {
			spec.LabelSet.AddValue(l.Name, l.Value)
		}

		// A shard actively splitting from a parent (source) shard must not
		// carry hot standbys: the split workflow must complete, and hints
		// must be established, before replicas can safely begin recovery.
		if l.Name == labels.SplitSource {
			spec.HotStandbys = 0
		}
	}

	suffix, err := shardSuffix(spec.LabelSet)
	if err != nil {
		return nil, err
	}
	spec.Id = pc.ShardID(template.IDPrefix + "/" + suffix)

	return spec, nil
}

func shardPartitionSuffix(set pb.LabelSet) (string, error) {
	var cset = fromBrokerLabelSet(set)
	fields, err := labels.DecodePartitionLabels(cset)
	if err != nil {
		return "", err
	}
	keyBegin, err := labels.ParseHexU32Label(labels.KeyBegin, cset)
	if err != nil {
		return "", err
	}

	var encoded = make(map[string]string, len(fields))
	for name, value := range fields {
		encoded[name] = labels.EncodePartitionValue(value)
	}
	return labels.PartitionSuffix(encoded, keyBegin), nil
}

func shardSuffix(set pb.LabelSet) (string, error) {
	return labels.ShardSuffix(fromBrokerLabelSet(set))
}

func compressionCodec(name string) pb.CompressionCodec {
	switch name {
	case "gzip":
		return pb.CompressionCodec_GZIP
	case "gzip-offload-decompression":
		return pb.CompressionCodec_GZIP_OFFLOAD_DECOMPRESSION
	case "zstandard":
		return pb.CompressionCodec_ZSTANDARD
	case "snappy":
		return pb.CompressionCodec_SNAPPY
	default:
		return pb.CompressionCodec_NONE
	}
}

func journalStores(stores []string) []pb.FragmentStore {
	var out = make([]pb.FragmentStore, len(stores))
	for i, s := range stores {
		out[i] = pb.FragmentStore(s)
	}
	return out
}
