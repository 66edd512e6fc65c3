package ncread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseTimeUnits(t *testing.T) {
	cases := []struct {
		in   string
		step time.Duration
		ref  time.Time
	}{
		{"hours since 2000-01-01 00:00:00", time.Hour, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 1900-01-01", 24 * time.Hour, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1970-01-01T00:00:00Z", time.Second, time.Unix(0, 0).UTC()},
		{"minutes since 2023-6-1 0:0:0", time.Minute, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 2021-01-01 00:00:00 UTC", time.Hour, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 2000-01-01 00:00:00 +01:00", 24 * time.Hour, time.Date(1999, 12, 31, 23, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			u, err := ParseTimeUnits(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.step, u.Step)
			require.True(t, tc.ref.Equal(u.Reference), "got %s", u.Reference)
		})
	}
}

func TestParseTimeUnitsRejects(t *testing.T) {
	for _, in := range []string{"", "hours", "months since 2000-01-01", "hours since yesterday"} {
		_, err := ParseTimeUnits(in)
		require.Error(t, err, in)
	}
}

func TestDecode(t *testing.T) {
	u, err := ParseTimeUnits("hours since 2023-06-01 00:00:00")
	require.NoError(t, err)
	require.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), u.Decode(0))
	require.Equal(t, time.Date(2023, 6, 30, 23, 0, 0, 0, time.UTC), u.Decode(719))
	require.Equal(t, time.Date(2023, 6, 1, 0, 30, 0, 0, time.UTC), u.Decode(0.5))

	d, err := ParseTimeUnits("days since 2000-01-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC), d.Decode(-1))
	require.Equal(t, time.Date(1999, 12, 31, 18, 0, 0, 0, time.UTC), d.Decode(-0.25))
}

func TestDecode_FarFromReference(t *testing.T) {
	cases := []struct {
		units string
		v     float64
		want  time.Time
	}{
		{"days since 1700-01-01 00:00:00", 118124, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"days since 1700-01-01 00:00:00", 118226.75, time.Date(2023, 9, 11, 18, 0, 0, 0, time.UTC)},
		{"days since 0001-01-01", 738671, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"hours since 1700-01-01", 118124 * 24, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"seconds since 1700-01-01", 118124 * 86400, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		u, err := ParseTimeUnits(tc.units)
		require.NoError(t, err)
		require.Equal(t, tc.want, u.Decode(tc.v), "%s %v", tc.units, tc.v)
	}
}

func TestEachFloat(t *testing.T) {
	var got []float64
	collect := func(x float64) { got = append(got, x) }

	require.NoError(t, eachFloat([][]float32{{1, 2}, {3}}, collect))
	require.NoError(t, eachFloat(int16(4), collect))
	require.NoError(t, eachFloat([]uint8{5}, collect))
	require.NoError(t, eachFloat(nil, collect))
	require.Equal(t, []float64{1, 2, 3, 4, 5}, got)

	require.Error(t, eachFloat([]string{"x"}, collect))
}

func TestFillValuesNilAttributes(t *testing.T) {
	require.Empty(t, fillValues(nil))
}

func TestIsCoordinate(t *testing.T) {
	require.True(t, isCoordinate("time", []string{"time"}))
	require.False(t, isCoordinate("nep", []string{"time", "lat", "lon"}))
	require.False(t, isCoordinate("time_bnds", []string{"time", "nv"}))
}

func TestAttrString(t *testing.T) {
	require.Equal(t, "carbon", attrString("carbon\x00"))
	require.Equal(t, "a b", attrString([]string{"a", "b"}))
	require.Equal(t, "1.5", attrString(1.5))
}
