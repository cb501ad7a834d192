package labels_test

import (
	"testing"

	"github.com/estuary/data-plane-core/go/catalog"
	"github.com/estuary/data-plane-core/go/labels"
	"github.com/stretchr/testify/require"
)

func TestRangeRoundTrip(t *testing.T) {
	var r = catalog.RangeSpec{KeyBegin: 0x10, KeyEnd: 0x20, RClockBegin: 0, RClockEnd: 0xffffffff}
	var set = labels.EncodeRange(r, catalog.LabelSet{})

	got, err := labels.ParseRangeSpec(set)
	require.NoError(t, err)
	require.Equal(t, r, got)
}

func TestRangeValidation(t *testing.T) {
	var set = labels.EncodeRange(catalog.RangeSpec{KeyBegin: 2, KeyEnd: 1}, catalog.LabelSet{})
	_, err := labels.ParseRangeSpec(set)
	require.Error(t, err)
}

func TestExpectOneErrors(t *testing.T) {
	var set catalog.LabelSet
	_, err := labels.ExpectOne(set, labels.Build)
	require.Error(t, err)

	set.AddValue(labels.Build, "a")
	set.AddValue(labels.Build, "b")
	_, err = labels.ExpectOne(set, labels.Build)
	require.Error(t, err)
}

func TestMaybeOneAbsent(t *testing.T) {
	var set catalog.LabelSet
	v, err := labels.MaybeOne(set, labels.SplitSource)
	require.NoError(t, err)
	require.Equal(t, "", v)
}
