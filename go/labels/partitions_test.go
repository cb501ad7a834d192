package labels_test

import (
	"testing"

	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodePartitionValue(t *testing.T) {
	var cases = []interface{}{nil, true, false, uint64(42), int64(-7), "region", "has space/slash"}
	for _, c := range cases {
		encoded := labels.EncodePartitionValue(c)
		decoded, err := labels.DecodePartitionValue(encoded)
		require.NoError(t, err)
		require.Equal(t, c, decoded)
	}
}

func TestEncodePartitionValueIsPathSafeForPlainStrings(t *testing.T) {
	require.Equal(t, "sus-east-1", labels.EncodePartitionValue("us-east-1"))
}

func TestDecodePartitionValueRejectsGarbage(t *testing.T) {
	_, err := labels.DecodePartitionValue("")
	require.Error(t, err)
	_, err = labels.DecodePartitionValue("zzz")
	require.Error(t, err)
}

func TestPartitionLabelsRoundTrip(t *testing.T) {
	var fields = map[string]interface{}{"region": "us", "tier": int64(2)}
	var set = labels.EncodePartitionLabels(fields, catalog.LabelSet{})

	got, err := labels.DecodePartitionLabels(set)
	require.NoError(t, err)
	require.Equal(t, fields, got)
}

func TestPartitionSuffix(t *testing.T) {
	var fields = map[string]string{"region": "us", "tier": "s2"}
	require.Equal(t, "region=us/tier=s2/pivot=00", labels.PartitionSuffix(fields, 0))
	require.Equal(t, "region=us/tier=s2/pivot=00000010", labels.PartitionSuffix(fields, 0x10))
}
