package serial2csv

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransform_Apply(t *testing.T) {
	tr := Transform{Scale: 1.5, Offset: 2024}
	require.Equal(t, 9.0, tr.Apply(2030))
	require.Equal(t, -3036.0, tr.Apply(0))
}

func TestProcessor_Permissive(t *testing.T) {
	p := NewProcessor(Transform{Scale: 1.5, Offset: 2024}, false)

	v, err := p.Process([]byte("2030"))
	require.NoError(t, err)
	require.Equal(t, 9.0, v)

	v, err = p.Process([]byte("abc"))
	require.NoError(t, err)
	require.Equal(t, (0-2024)*1.5, v)

	v, err = p.Process(nil)
	require.NoError(t, err)
	require.Equal(t, (0-2024)*1.5, v)
}

func TestParseLeadingFloat(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"", 0},
		{"abc", 0},
		{"42", 42},
		{"  \t-7.25", -7.25},
		{"+3", 3},
		{"12abc", 12},
		{"3.5\r", 3.5},
		{".5", 0.5},
		{"5.", 5},
		{".", 0},
		{"-", 0},
		{"1e3", 1000},
		{"1e", 1},
		{"1e+", 1},
		{"2E-2x", 0.02},
		{"1,5", 1},
		{"1.2.3", 1.2},
		{"0x10", 0},
		{"1e999", math.Inf(1)},
		{"-1e999", math.Inf(-1)},
		{"inf", math.Inf(1)},
		{"-Infinity", math.Inf(-1)},
		{"infinite", math.Inf(1)},
		{"x12", 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParseLeadingFloat([]byte(tc.in)), "input %q", tc.in)
	}
	require.True(t, math.IsNaN(ParseLeadingFloat([]byte("nan"))))
	require.True(t, math.IsNaN(ParseLeadingFloat([]byte("-NaN(1)"))))
}

func TestProcessor_Strict(t *testing.T) {
	p := NewProcessor(Transform{Scale: 2, Offset: 1}, true)

	v, err := p.Process([]byte(" 4.5\r"))
	require.NoError(t, err)
	require.Equal(t, 7.0, v)

	for _, in := range []string{"", "abc", "12abc", "1.2.3"} {
		_, err := p.Process([]byte(in))
		require.ErrorIs(t, err, ErrParseDegradation, "input %q", in)
	}
}

func TestProcessor_KeepsTransform(t *testing.T) {
	tr := Transform{Scale: 2.5, Offset: 2024}
	require.Equal(t, tr, NewProcessor(tr, false).Transform())
}
