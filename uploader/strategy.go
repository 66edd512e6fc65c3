package uploader

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"
)

// Strategy supplies everything that varies between reasons.
type Strategy interface {
	Reason() string
	// Classify returns the dataset type and object spec for a file name.
	Classify(fileName string) Classification
	// Key derives the archive key and its facts from a file name.
	Key(fileName string) (KeyInfo, error)
	// Variables filters a dataset's variables down to the previewable ones.
	Variables(ds Dataset) []string
	// Describe returns title, description and keywords for a record.
	Describe(rec *ArchiveRecord, ds Dataset) (Description, error)
	// SpatialBox returns the spatial coverage of a dataset.
	SpatialBox(ds Dataset) (Spatial, error)
	// Production returns the provenance block.
	Production(rec *ArchiveRecord, ds Dataset) (Production, error)
	Resolution() string
	Licence() (string, error)
	Submitter() string
}

// Description is the human readable part of the metadata.
type Description struct {
	Title       string
	Description string
	Keywords    []string
}

// ProfileStrategy is the table-driven Strategy behind every reason.
type ProfileStrategy struct {
	profile Profile
	dir     Directory
	rules   []Rule
	title   *template.Template
}

// NewStrategy builds a Strategy from one profile row.
func NewStrategy(p Profile, dir Directory, rules []Rule) (*ProfileStrategy, error) {
	if p.Reason == "" {
		return nil, fmt.Errorf("profile reason is required")
	}
	if rules == nil {
		rules = Rules
	}
	s := &ProfileStrategy{profile: p, dir: dir, rules: rules}
	if p.Title != "" {
		t, err := template.New(p.Reason).Funcs(template.FuncMap{
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
		}).Option("missingkey=error").Parse(p.Title)
		if err != nil {
			return nil, fmt.Errorf("profile %s title: %w", p.Reason, err)
		}
		s.title = t
	}
	return s, nil
}

func (s *ProfileStrategy) Reason() string { return s.profile.Reason }
func (s *ProfileStrategy) Resolution() string { return s.profile.Resolution }
func (s *ProfileStrategy) Profile() Profile { return s.profile }

func (s *ProfileStrategy) Submitter() string {
	if s.profile.Submitter == "" {
		return "CP"
	}
	return s.profile.Submitter
}

func (s *ProfileStrategy) Licence() (string, error) {
	id := s.profile.Licence
	if id == "" {
		id = "icos"
	}
	return s.dir.Licence(id)
}

func (s *ProfileStrategy) Classify(fileName string) Classification {
	c := ClassifyWith(s.rules, fileName)
	if s.profile.ObjectSpec != "" {
		c.ObjectSpec = SpecURI(s.profile.ObjectSpec)
		if !c.Matched() {
			c.DatasetType = s.profile.Reason
		}
	}
	return c
}

func (s *ProfileStrategy) Key(fileName string) (KeyInfo, error) {
	return DeriveKey(s.profile.KeyRule, s.profile.KeyVariables, fileName)
}

func (s *ProfileStrategy) Variables(ds Dataset) []string {
	excluded := make(map[string]bool, len(s.profile.ExcludedVariables))
	for _, v := range s.profile.ExcludedVariables {
		excluded[v] = true
	}
	out := []string{}
	for _, v := range ds.DataVariables() {
		if !excluded[v] {
			out = append(out, v)
		}
	}
	return out
}

type titleData struct {
	FileName    string
	DatasetType string
	Year        string
	Month       string
	Variable    string
}

func (s *ProfileStrategy) Describe(rec *ArchiveRecord, ds Dataset) (Description, error) {
	d := Description{Keywords: append([]string{}, s.profile.Keywords...)}

	switch {
	case s.profile.DescriptionAttr != "":
		v, ok := ds.Attr(s.profile.DescriptionAttr)
		if !ok {
			return d, fmt.Errorf("%s: missing attribute %q for description", rec.FileName, s.profile.DescriptionAttr)
		}
		d.Description = v
	default:
		d.Description = s.profile.Description
	}

	switch {
	case s.title != nil:
		var buf bytes.Buffer
		err := s.title.Execute(&buf, titleData{
			FileName:    rec.FileName,
			DatasetType: rec.DatasetType,
			Year:        rec.Year,
			Month:       rec.Month,
			Variable:    rec.Variable,
		})
		if err != nil {
			return d, fmt.Errorf("%s: render title: %w", rec.FileName, err)
		}
		d.Title = buf.String()
	case s.profile.TitleAttr != "":
		v, ok := ds.Attr(s.profile.TitleAttr)
		if !ok {
			return d, fmt.Errorf("%s: missing attribute %q for title", rec.FileName, s.profile.TitleAttr)
		}
		d.Title = v
	default:
		return d, fmt.Errorf("profile %s has neither title nor title_attr", s.profile.Reason)
	}
	return d, nil
}

func (s *ProfileStrategy) SpatialBox(ds Dataset) (Spatial, error) {
	if !s.profile.ComputeBox {
		uri, err := s.dir.Box(s.profile.Box)
		if err != nil {
			return Spatial{}, err
		}
		return Spatial{URI: uri}, nil
	}
	box, err := ComputeLatLonBox(ds)
	if err != nil {
		return Spatial{}, err
	}
	return Spatial{Box: box}, nil
}

// ComputeLatLonBox derives the extent from lat/lon or latitude/longitude.
func ComputeLatLonBox(ds Dataset) (*LatLonBox, error) {
	for _, pair := range [][2]string{{"lat", "lon"}, {"latitude", "longitude"}} {
		if !ds.HasVariable(pair[0]) || !ds.HasVariable(pair[1]) {
			continue
		}
		latMin, latMax, err := ds.Range(pair[0])
		if err != nil {
			return nil, err
		}
		lonMin, lonMax, err := ds.Range(pair[1])
		if err != nil {
			return nil, err
		}
		if anyNaN(latMin, latMax, lonMin, lonMax) {
			return nil, fmt.Errorf("coordinate variables %s/%s have no finite values", pair[0], pair[1])
		}
		return &LatLonBox{
			Type: "LatLonBox",
			Min:  LatLon{Lat: latMin, Lon: lonMin},
			Max:  LatLon{Lat: latMax, Lon: lonMax},
		}, nil
	}
	return nil, fmt.Errorf("no lat/lon or latitude/longitude coordinates")
}

func anyNaN(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return true
		}
	}
	return false
}

const portalTimeLayout = "2006-01-02T15:04:05Z"

// FormatPortalTime renders t in the portal's UTC second-precision layout.
func FormatPortalTime(t time.Time) string {
	return t.UTC().Format(portalTimeLayout)
}

func (s *ProfileStrategy) Production(rec *ArchiveRecord, ds Dataset) (Production, error) {
	p := Production{Sources: []string{}, Documentation: s.profile.Documentation}

	creator, err := s.dir.Person(s.profile.Creator)
	if err != nil {
		return p, err
	}
	p.Creator = creator
	if p.Contributors, err = s.dir.PeopleURIs(s.profile.Contributors); err != nil {
		return p, err
	}
	if p.HostOrganization, err = s.dir.Organization(s.profile.Host); err != nil {
		return p, err
	}
	if p.CreationDate, err = s.creationDate(rec, ds); err != nil {
		return p, err
	}
	for _, c := range s.profile.Comments {
		if containsAll(rec.FileName, c.Match) {
			p.Comment = c.Text
			break
		}
	}
	return p, nil
}

func (s *ProfileStrategy) creationDate(rec *ArchiveRecord, ds Dataset) (string, error) {
	if s.profile.CreationDate != "" {
		return s.profile.CreationDate, nil
	}
	raw, ok := ds.Attr(s.profile.CreationAttr)
	if !ok {
		return "", fmt.Errorf("%s: missing attribute %q for creation date", rec.FileName, s.profile.CreationAttr)
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range s.profile.CreationLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return FormatPortalTime(t), nil
		}
	}
	return "", fmt.Errorf("%s: creation date %q matches none of %s", rec.FileName, raw, strings.Join(s.profile.CreationLayouts, ", "))
}

func containsAll(s string, subs []string) bool {
	if len(subs) == 0 {
		return false
	}
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
