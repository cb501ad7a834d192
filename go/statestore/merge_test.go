package statestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Exercises the merge-patch algebra without RocksDB, grounded on the
// upstream connectorStore's patch/apply sequencing in
// go/runtime/connector_store.go.

func TestFullMergeAppliesPatchesInOrder(t *testing.T) {
	var base = []byte(`{"a":1,"b":2}`)
	var p1 = []byte(`{"b":3}`)
	var p2 = []byte(`{"c":4}`)

	out, err := MergePatchOperator{}.merge(base, [][]byte{p1, p2}, true)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1,"b":3,"c":4}`, string(out))
}

func TestFullMergeStripsNullMarkers(t *testing.T) {
	var base = []byte(`{"a":1,"b":2}`)
	var patch = []byte(`{"b":null}`)

	out, err := MergePatchOperator{}.merge(base, [][]byte{patch}, true)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(out))
}

func TestPartialMergePreservesNullMarkers(t *testing.T) {
	var left = []byte(`{"a":1}`)
	var right = []byte(`{"a":null,"b":2}`)

	out, err := MergePatchOperator{}.merge(nil, [][]byte{left, right}, false)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":null,"b":2}`, string(out))
}

func TestMergeBatchesConvergesWithManyOperands(t *testing.T) {
	var base = []byte(`{"n":0}`)
	var operands [][]byte
	for i := 0; i < 50; i++ {
		operands = append(operands, []byte(`{"n":`+itoa(i)+`}`))
	}

	out, err := mergeBatches(append([][]byte{base}, operands...), true)
	require.NoError(t, err)
	require.JSONEq(t, `{"n":49}`, string(out))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var neg = n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	var i = len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// merge is a small test seam around FullMerge/PartialMerge so tests don't
// need to fake gorocksdb's existingValue-is-nil-vs-empty distinction.
func (MergePatchOperator) merge(base []byte, operands [][]byte, full bool) ([]byte, error) {
	return mergeBatches(append(append([][]byte{}, nonEmpty(base)...), operands...), full)
}

func nonEmpty(b []byte) [][]byte {
	if b == nil {
		return nil
	}
	return [][]byte{b}
}
