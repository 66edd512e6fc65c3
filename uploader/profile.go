package uploader

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// KeyRule selects how a file name becomes an archive key.
type KeyRule string

const (
	// KeyStem uses the file name without its extension.
	KeyStem KeyRule = "stem"
	// KeyMonth requires exactly one YYYYMM group and keys by stem.
	KeyMonth KeyRule = "month"
	// KeyVariableYear requires one year and one known variable: <variable>_<year>.
	KeyVariableYear KeyRule = "variable_year"
)

// Comment attaches a production comment to files whose names contain all of Match.
type Comment struct {
	Match []string `yaml:"match"`
	Text  string   `yaml:"text"`
}

// Profile is the per-reason metadata recipe. Ids in Creator, Contributors,
// Host, Box and Licence resolve through a Directory.
type Profile struct {
	Reason            string    `yaml:"reason"`
	KeyRule           KeyRule   `yaml:"key_rule"`
	KeyVariables      []string  `yaml:"key_variables"`
	ObjectSpec        string    `yaml:"object_spec"`
	Keywords          []string  `yaml:"keywords"`
	Licence           string    `yaml:"licence"`
	Description       string    `yaml:"description"`
	DescriptionAttr   string    `yaml:"description_attr"`
	Creator           string    `yaml:"creator"`
	Contributors      []string  `yaml:"contributors"`
	Host              string    `yaml:"host"`
	CreationDate      string    `yaml:"creation_date"`
	CreationAttr      string    `yaml:"creation_attr"`
	CreationLayouts   []string  `yaml:"creation_layouts"`
	Box               string    `yaml:"box"`
	ComputeBox        bool      `yaml:"compute_box"`
	Resolution        string    `yaml:"resolution"`
	Title             string    `yaml:"title"`
	TitleAttr         string    `yaml:"title_attr"`
	Comments          []Comment `yaml:"comments"`
	Documentation     string    `yaml:"documentation"`
	ExcludedVariables []string  `yaml:"excluded_variables"`
	Submitter         string    `yaml:"submitter"`
}

var builtinProfiles = []Profile{
	{
		Reason:          "cte-hr",
		KeyRule:         KeyMonth,
		Keywords:        []string{"carbon flux"},
		Licence:         "icos",
		DescriptionAttr: "comment",
		Creator:         "auke_van_der_woude",
		Contributors:    []string{"ingrid_luijkx", "naomi_smith", "remco_de_kok", "wouter_peters"},
		Host:            "wur",
		CreationAttr:    "creation_date",
		CreationLayouts: []string{"2006-01-02 15:04"},
		Box:             "ctehr_europe",
		Resolution:      "hourly",
		Title:           "High-resolution, near-real-time fluxes over Europe from CTE-HR: {{.DatasetType}} {{.Year}}-{{.Month}}",
		Comments: []Comment{{
			Match: []string{"anthropogenic", "202306"},
			Text: "In the previous version, the file did not contain the correct Public Power and Residential " +
				"Heating from the degree-day model (see Van der Woude et al. https://doi.org/10.5194/essd-2022-175), " +
				"but rather contained the CAMS diurnal profiles.",
		}},
		Submitter: "CP",
	},
	{
		Reason:       "lpj-guess",
		KeyRule:      KeyVariableYear,
		KeyVariables: []string{"rtot", "gpp", "nee"},
		ObjectSpec:   "biosphereModelingSpatial",
		Keywords:     []string{"Carbon Dioxide", "Carbon Cycle", "Land Biogeochemistry", "Terrestrial Ecosystems"},
		Licence:      "icos",
		Description: "The product is generated in 2021. LPJ-GUESS (revision 6562) forced with hourly ERA5 climate " +
			"datasets to simulate global terrestrial NEE, GPP and total respiration in 0.5 degree. LPJ-GUESS is a " +
			"process-based dynamic global vegetation model, it uses time series data (e.g. climate forcing and " +
			"atmospheric carbon dioxide concentrations with WMO CO2 X2019 scale) as input to simulate the effects " +
			"of environmental change on vegetation structure and composition in terms of plant functional types " +
			"(PFTs), soil hydrology and biogeochemistry (Smith et al., 2001, https://web.nateko.lu.se/lpj-guess/).",
		Creator:      "zhendong_wu",
		Contributors: []string{"michael_mischurow", "paul_miller"},
		Host:         "cp",
		CreationDate: "2021-10-03T10:00:00Z",
		Box:          "global",
		Resolution:   "hourly",
		Title:        "LPJ-GUESS global hourly {{upper .Variable}} for {{.Year}} (generated in 2021)",
		Submitter:    "CP",
	},
	{
		Reason:  "gcp-inversions",
		KeyRule: KeyStem,
		Keywords: []string{
			"carbon flux", "land carbon flux", "ocean carbon flux", "GCB2022", "global carbon",
			"project", "atmospheric", "inversions", "monthly", "co2",
		},
		Licence:         "icos",
		DescriptionAttr: "summary",
		Creator:         "ingrid_luijkx",
		Contributors: []string{
			"frederic_chevallier", "christian_roedenbeck", "yosuke_niwa", "junjie_liu", "liang_feng",
			"paul_palmer", "kevin_bowman", "wouter_peters", "xiangjun_tian", "shilong_piao", "bo_zheng",
		},
		Host:              "wur",
		CreationAttr:      "creation_date",
		CreationLayouts:   []string{"2006-01-02 15:04", "2006-01-02"},
		ComputeBox:        true,
		Resolution:        "monthly",
		TitleAttr:         "title",
		ExcludedVariables: []string{"area", "ensemble_member_name", "cell_area"},
		Submitter:         "CP",
	},
}

// BuiltinProfiles returns a copy of the compiled-in profile table.
func BuiltinProfiles() []Profile {
	out := make([]Profile, len(builtinProfiles))
	copy(out, builtinProfiles)
	return out
}

// MergeProfiles lays extra over base by reason; new reasons are appended.
func MergeProfiles(base, extra []Profile) []Profile {
	out := make([]Profile, 0, len(base)+len(extra))
	idx := map[string]int{}
	for _, p := range base {
		idx[p.Reason] = len(out)
		out = append(out, p)
	}
	for _, p := range extra {
		if i, ok := idx[p.Reason]; ok {
			out[i] = p
			continue
		}
		idx[p.Reason] = len(out)
		out = append(out, p)
	}
	return out
}

// FindProfile picks the row for reason.
func FindProfile(profiles []Profile, reason string) (Profile, error) {
	for _, p := range profiles {
		if p.Reason == reason {
			return p, nil
		}
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.Reason)
	}
	sort.Strings(names)
	return Profile{}, fmt.Errorf("unknown reason %q (known: %s)", reason, strings.Join(names, ", "))
}

// KeyInfo is the result of applying a profile's key rule to a file name.
type KeyInfo struct {
	Key      string
	Year     string
	Month    string
	Variable string
}

var (
	sixDigits  = regexp.MustCompile(`\d{6}`)
	fourDigits = regexp.MustCompile(`\d{4}`)
)

// DeriveKey applies rule to fileName.
func DeriveKey(rule KeyRule, variables []string, fileName string) (KeyInfo, error) {
	stem := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	switch rule {
	case "", KeyStem:
		return KeyInfo{Key: stem}, nil
	case KeyMonth:
		dates := sixDigits.FindAllString(fileName, -1)
		if len(dates) != 1 {
			return KeyInfo{}, &ClassificationError{
				FileName: fileName,
				Reason:   fmt.Sprintf("need exactly one 6-digit date in the file name, found %d", len(dates)),
				Matches:  dates,
			}
		}
		return KeyInfo{Key: stem, Year: dates[0][:4], Month: dates[0][4:6]}, nil
	case KeyVariableYear:
		years := fourDigits.FindAllString(fileName, -1)
		if len(years) != 1 {
			return KeyInfo{}, &ClassificationError{
				FileName: fileName,
				Reason:   fmt.Sprintf("need exactly one 4-digit year in the file name, found %d", len(years)),
				Matches:  years,
			}
		}
		var found []string
		for _, v := range variables {
			if strings.Contains(fileName, v) {
				found = append(found, v)
			}
		}
		if len(found) != 1 {
			return KeyInfo{}, &ClassificationError{
				FileName: fileName,
				Reason:   fmt.Sprintf("need exactly one of %s in the file name, found %d", strings.Join(variables, ", "), len(found)),
				Matches:  found,
			}
		}
		return KeyInfo{Key: found[0] + "_" + years[0], Year: years[0], Variable: found[0]}, nil
	default:
		return KeyInfo{}, fmt.Errorf("unknown key rule %q", rule)
	}
}
