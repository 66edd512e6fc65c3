package uploader

import (
	"fmt"
	"strings"
)

// Directory resolves the short ids used by profiles into portal URIs.
type Directory struct {
	People        map[string]string `yaml:"people"`
	Organizations map[string]string `yaml:"organizations"`
	Boxes         map[string]string `yaml:"boxes"`
	Licences      map[string]string `yaml:"licences"`
}

const (
	peopleBase = "http://meta.icos-cp.eu/resources/people/"
	orgBase    = "http://meta.icos-cp.eu/resources/organizations/"
	boxBase    = "http://meta.icos-cp.eu/resources/latlonboxes/"
)

// DefaultDirectory returns the people, organisations, boxes and licences the
// built-in profiles refer to.
func DefaultDirectory() Directory {
	people := map[string]string{}
	for id, slug := range map[string]string{
		"auke_van_der_woude":   "Auke_van_der_Woude",
		"bo_zheng":             "BoZheng",
		"christian_roedenbeck": "Christian_R%C3%B6denbeck",
		"frederic_chevallier":  "Fr%C3%A9d%C3%A9ric_Chevallier",
		"ingrid_luijkx":        "Ingrid_van%20der%20Laan-Luijkx",
		"jacob_nelson":         "Jacob_Nelson",
		"junjie_liu":           "JunjieLiu",
		"kevin_bowman":         "KevinBowman",
		"liang_feng":           "Liang_Feng",
		"michael_mischurow":    "Michael_Mischurow",
		"naomi_smith":          "Naomi_Smith",
		"paul_miller":          "Paul_Miller",
		"paul_palmer":          "Paul_Palmer",
		"remco_de_kok":         "Remco_de_Kok",
		"shilong_piao":         "Shilong_Piao",
		"simon_besnard":        "Simon_Besnard",
		"sophia_walther":       "Sophia_Walther",
		"ulrich_weber":         "Ulrich_Weber",
		"wouter_peters":        "Wouter_Peters",
		"xiangjun_tian":        "Xiangjun_Tian",
		"yosuke_niwa":          "Yosuke_Niwa",
		"zhendong_wu":          "Zhendong_Wu",
	} {
		people[id] = peopleBase + slug
	}
	return Directory{
		People: people,
		Organizations: map[string]string{
			"cp":      orgBase + "CP",
			"mpi_bgc": orgBase + "MPI-BGC",
			"wur":     orgBase + "WUR",
		},
		Boxes: map[string]string{
			"ctehr_europe": boxBase + "ctehrEuropeLatLonBox",
			"global":       boxBase + "globalLatLonBox",
		},
		Licences: map[string]string{
			"icos": "http://meta.icos-cp.eu/ontologies/cpmeta/icosLicence",
		},
	}
}

// Merge returns d with every entry of o laid over it.
func (d Directory) Merge(o Directory) Directory {
	return Directory{
		People:        mergeMap(d.People, o.People),
		Organizations: mergeMap(d.Organizations, o.Organizations),
		Boxes:         mergeMap(d.Boxes, o.Boxes),
		Licences:      mergeMap(d.Licences, o.Licences),
	}
}

func mergeMap(a, b map[string]string) map[string]string {
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func (d Directory) Person(id string) (string, error) { return lookup("person", d.People, id) }
func (d Directory) Organization(id string) (string, error) { return lookup("organization", d.Organizations, id) }
func (d Directory) Box(id string) (string, error) { return lookup("box", d.Boxes, id) }
func (d Directory) Licence(id string) (string, error) { return lookup("licence", d.Licences, id) }

// PeopleURIs resolves every id in ids, in order.
func (d Directory) PeopleURIs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		uri, err := d.Person(id)
		if err != nil {
			return nil, err
		}
		out = append(out, uri)
	}
	return out, nil
}

// lookup accepts either a known id or a literal URI.
func lookup(kind string, table map[string]string, id string) (string, error) {
	if uri, ok := table[id]; ok {
		return uri, nil
	}
	if strings.HasPrefix(id, "http://") || strings.HasPrefix(id, "https://") {
		return id, nil
	}
	return "", fmt.Errorf("unknown %s %q", kind, id)
}
