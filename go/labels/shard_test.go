package labels_test

import (
	"testing"

	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
	"github.com/stretchr/testify/require"
)

func buildValidShardSet() catalog.LabelSet {
	var set catalog.LabelSet
	set = labels.EncodeRange(catalog.RangeSpec{KeyBegin: 0, KeyEnd: 0xffffffff, RClockBegin: 0, RClockEnd: 0xffffffff}, set)
	set.SetValue(labels.Build, "0102030405060708")
	set.SetValue(labels.TaskName, "acmeCo/my-capture")
	set.SetValue(labels.TaskType, string(catalog.TaskTypeCapture))
	return set
}

func TestParseShardLabelsOk(t *testing.T) {
	var set = buildValidShardSet()
	set.SetValue(labels.ExposePort, "8080")
	set.AddValue(labels.PortProtoPrefix+"8080", "h2")
	set.AddValue(labels.PortPublicPrefix+"8080", "true")

	out, err := labels.ParseShardLabels(set)
	require.NoError(t, err)
	require.Equal(t, "acmeCo/my-capture", out.TaskName)
	require.Equal(t, catalog.TaskTypeCapture, out.TaskType)
	require.Len(t, out.Ports, 1)
	require.Equal(t, "h2", out.Ports[8080].Protocol)
	require.True(t, out.Ports[8080].Public)
}

func TestParseShardLabelsRejectsBothSplits(t *testing.T) {
	var set = buildValidShardSet()
	set.SetValue(labels.SplitSource, "a/b/c")
	set.SetValue(labels.SplitTarget, "d/e/f")

	_, err := labels.ParseShardLabels(set)
	require.Error(t, err)
}

func TestParseShardLabelsRejectsUnknownTaskType(t *testing.T) {
	var set = buildValidShardSet()
	set.SetValue(labels.TaskType, "bogus")

	_, err := labels.ParseShardLabels(set)
	require.Error(t, err)
}

func TestShardIDPrefixAndID(t *testing.T) {
	var prefix = labels.ShardIDPrefix(catalog.TaskTypeDerivation, "acmeCo/my-derivation", 42)
	require.Equal(t, "derivation/acmeCo/my-derivation/000000000000002a", prefix)

	var id = labels.ShardID(prefix, catalog.RangeSpec{KeyBegin: 0x10, RClockBegin: 0})
	require.Equal(t, prefix+"/00000010-00000000", id)
	require.Equal(t, "recovery/"+id, labels.RecoveryLogName(id))
}
