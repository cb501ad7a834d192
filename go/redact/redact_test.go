package redact

import (
	"testing"

	"github.com/estuary/data-plane-core/go/schema"
	"github.com/stretchr/testify/require"
)

// Adapted from original_source's crates/doc/src/redact/mod.rs coverage of
// Block removal and Sha256 idempotence/coalescing.

func TestRedactBlockRemovesProperty(t *testing.T) {
	var raw = `{"properties": {"secret": {"redact": "block"}}}`
	var s, err = schema.Compile([]byte(raw), nil)
	require.NoError(t, err)

	result, err := schema.Validate(s, map[string]interface{}{
		"secret": "do-not-keep", "public": "keep-me",
	})
	require.NoError(t, err)

	out, removed, err := Redact(map[string]interface{}{
		"secret": "do-not-keep", "public": "keep-me",
	}, FromResult(result), []byte("salt"))
	require.NoError(t, err)
	require.False(t, removed)
	require.Equal(t, map[string]interface{}{"public": "keep-me"}, out)
}

func TestRedactSha256IsIdempotent(t *testing.T) {
	var raw = `{"properties": {"ssn": {"redact": "sha256"}}}`
	var s, err = schema.Compile([]byte(raw), nil)
	require.NoError(t, err)

	result, err := schema.Validate(s, map[string]interface{}{"ssn": "123-45-6789"})
	require.NoError(t, err)

	out, _, err := Redact(map[string]interface{}{"ssn": "123-45-6789"}, FromResult(result), []byte("salt"))
	require.NoError(t, err)
	var hashed = out.(map[string]interface{})["ssn"].(string)
	require.Len(t, hashed, len("sha256:")+64)

	result2, err := schema.Validate(s, map[string]interface{}{"ssn": hashed})
	require.NoError(t, err)
	out2, _, err := Redact(map[string]interface{}{"ssn": hashed}, FromResult(result2), []byte("salt"))
	require.NoError(t, err)
	require.Equal(t, hashed, out2.(map[string]interface{})["ssn"])
}

func TestRedactSha256CoalescesIntegerFloats(t *testing.T) {
	var raw = `{"properties": {"n": {"redact": "sha256"}}}`
	var s, err = schema.Compile([]byte(raw), nil)
	require.NoError(t, err)

	result, err := schema.Validate(s, map[string]interface{}{"n": float64(1)})
	require.NoError(t, err)
	out, _, err := Redact(map[string]interface{}{"n": float64(1)}, FromResult(result), nil)
	require.NoError(t, err)

	result2, err := schema.Validate(s, map[string]interface{}{"n": float64(1.0)})
	require.NoError(t, err)
	out2, _, err := Redact(map[string]interface{}{"n": float64(1.0)}, FromResult(result2), nil)
	require.NoError(t, err)

	require.Equal(t, out.(map[string]interface{})["n"], out2.(map[string]interface{})["n"])
}

func TestRedactRootBlock(t *testing.T) {
	var _, removed, err = Redact("x", func(tokens []string) schema.RedactStrategy {
		return schema.RedactBlock
	}, nil)
	require.NoError(t, err)
	require.True(t, removed)
}
