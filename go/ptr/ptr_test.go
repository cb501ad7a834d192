package ptr

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPointerCreate(t *testing.T) {
	var cases = []struct {
		ptr   string
		value interface{}
	}{
		{"/foo/2/a", "hello"},
		{"/foo/2/b", 3},
		{"/foo/0", false},
		{"/bar", nil},
		{"/foo/0", true},
		{"/foo/-", "world"},
		{"/foo/2/4", 5},
		{"/foo/2/-", false},
	}

	var doc interface{}
	for _, tc := range cases {
		var p, err = New(tc.ptr)
		require.NoError(t, err)
		v, err := p.Create(&doc)
		require.NoError(t, err)

		*v = tc.value
	}

	var b, err = json.Marshal(doc)
	require.NoError(t, err)

	require.Equal(t, `{"bar":null,"foo":[true,null,{"-":false,"4":5,"a":"hello","b":3},"world"]}`, string(b))
}
