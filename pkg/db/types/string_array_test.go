package dbtypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringArrayScan(t *testing.T) {
	cases := []struct {
		in   any
		want StringArray
	}{
		{in: nil, want: StringArray{}},
		{in: "{}", want: StringArray{}},
		{in: "{a,b}", want: StringArray{"a", "b"}},
		{in: []byte(`{"https://img/1.png","with,comma","quo\"te"}`), want: StringArray{"https://img/1.png", "with,comma", `quo"te`}},
	}
	for _, tc := range cases {
		var got StringArray
		require.NoError(t, got.Scan(tc.in), "scan %v", tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestStringArrayValueRoundTrips(t *testing.T) {
	in := StringArray{"plain", `back\slash`, "a,b"}
	v, err := in.Value()
	require.NoError(t, err)

	var out StringArray
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)

	empty, err := StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", empty)
}

func TestStringArrayRejectsMalformed(t *testing.T) {
	var got StringArray
	assert.Error(t, got.Scan("a,b"))
	assert.Error(t, got.Scan(42))
}
