package uploader

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	vars := []string{"rtot", "gpp", "nee"}
	tests := []struct {
		name     string
		rule     KeyRule
		fileName string
		want     KeyInfo
	}{
		{"month", KeyMonth, "nep.202306.nc", KeyInfo{Key: "nep.202306", Year: "2023", Month: "06"}},
		{"stem", KeyStem, "GCP2022_inversions_1x1_version1_1_20230428.nc", KeyInfo{Key: "GCP2022_inversions_1x1_version1_1_20230428"}},
		{"empty rule is stem", "", "a.b.nc", KeyInfo{Key: "a.b"}},
		{"variable year", KeyVariableYear, "lpj_guess_rtot_2019.nc", KeyInfo{Key: "rtot_2019", Year: "2019", Variable: "rtot"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveKey(tt.rule, vars, tt.fileName)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDeriveKey_Ambiguous(t *testing.T) {
	vars := []string{"rtot", "gpp", "nee"}
	tests := []struct {
		name     string
		rule     KeyRule
		fileName string
		matches  []string
	}{
		{"two dates", KeyMonth, "nep.202306.202307.nc", []string{"202306", "202307"}},
		{"no date", KeyMonth, "nep.nc", nil},
		{"no year", KeyVariableYear, "lpj_rtot.nc", nil},
		{"two variables", KeyVariableYear, "gpp_nee_2019.nc", []string{"gpp", "nee"}},
		{"no variable", KeyVariableYear, "lpj_2019.nc", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveKey(tt.rule, vars, tt.fileName)
			var ce *ClassificationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			require.Equal(t, tt.fileName, ce.FileName)
			require.Equal(t, tt.matches, ce.Matches)
		})
	}

	_, err := DeriveKey("weekly", nil, "a.nc")
	require.ErrorContains(t, err, `unknown key rule "weekly"`)
}

func TestMergeProfiles(t *testing.T) {
	base := BuiltinProfiles()
	merged := MergeProfiles(base, []Profile{
		{Reason: "cte-hr", KeyRule: KeyStem, Title: "override"},
		{Reason: "fluxcom", KeyRule: KeyStem, Title: "FLUXCOM {{.Year}}"},
	})
	require.Len(t, merged, len(base)+1)
	require.Equal(t, "cte-hr", merged[0].Reason)
	require.Equal(t, "override", merged[0].Title)
	require.Equal(t, "fluxcom", merged[len(merged)-1].Reason)

	// The compiled-in table is untouched.
	require.Equal(t, KeyMonth, BuiltinProfiles()[0].KeyRule)
}

func TestFindProfile(t *testing.T) {
	p, err := FindProfile(BuiltinProfiles(), "lpj-guess")
	require.NoError(t, err)
	require.Equal(t, KeyVariableYear, p.KeyRule)

	_, err = FindProfile(BuiltinProfiles(), "nope")
	require.ErrorContains(t, err, "known: cte-hr, gcp-inversions, lpj-guess")
}

func TestDirectory_LookupAndMerge(t *testing.T) {
	d := DefaultDirectory()
	uri, err := d.Person("wouter_peters")
	require.NoError(t, err)
	require.Equal(t, "http://meta.icos-cp.eu/resources/people/Wouter_Peters", uri)

	uri, err = d.Box("https://example.org/box")
	require.NoError(t, err)
	require.Equal(t, "https://example.org/box", uri)

	_, err = d.Organization("nasa")
	require.ErrorContains(t, err, `unknown organization "nasa"`)

	merged := d.Merge(Directory{Organizations: map[string]string{"nasa": "http://meta.icos-cp.eu/resources/organizations/NASA"}})
	uri, err = merged.Organization("nasa")
	require.NoError(t, err)
	require.Equal(t, "http://meta.icos-cp.eu/resources/organizations/NASA", uri)
	_, err = d.Organization("nasa")
	require.Error(t, err)
}
