package uploader

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MetadataDocument is the standalone metadata upload body.
type MetadataDocument struct {
	FileName            string       `json:"fileName"`
	HashSum             string       `json:"hashSum"`
	IsNextVersionOf     NextVersion  `json:"isNextVersionOf"`
	ObjectSpecification string       `json:"objectSpecification"`
	References          References   `json:"references"`
	SpecificInfo        SpecificInfo `json:"specificInfo"`
	SubmitterID         string       `json:"submitterId"`
}

type References struct {
	Keywords []string `json:"keywords"`
	Licence  string   `json:"licence"`
}

type SpecificInfo struct {
	Description string     `json:"description"`
	Production  Production `json:"production"`
	Spatial     Spatial    `json:"spatial"`
	Temporal    Temporal   `json:"temporal"`
	Title       string     `json:"title"`
	Variables   []string   `json:"variables"`
}

type Production struct {
	Comment          string   `json:"comment,omitempty"`
	Contributors     []string `json:"contributors"`
	CreationDate     string   `json:"creationDate"`
	Creator          string   `json:"creator"`
	Documentation    string   `json:"documentation,omitempty"`
	HostOrganization string   `json:"hostOrganization"`
	Sources          []string `json:"sources"`
}

type Temporal struct {
	Interval   Interval `json:"interval"`
	Resolution string   `json:"resolution"`
}

type Interval struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
}

// NextVersion is the previous object's hash id, encoded as [] when absent.
type NextVersion string

func (v NextVersion) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("[]"), nil
	}
	return json.Marshal(string(v))
}

func (v *NextVersion) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var ids []string
		if err := json.Unmarshal(b, &ids); err != nil {
			return err
		}
		*v = ""
		if len(ids) > 0 {
			*v = NextVersion(ids[len(ids)-1])
		}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*v = NextVersion(s)
	return nil
}

// LatLonBox is an explicit spatial extent.
type LatLonBox struct {
	Type string `json:"_type"`
	Max  LatLon `json:"max"`
	Min  LatLon `json:"min"`
}

type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Spatial is either a named box URI or an explicit LatLonBox.
type Spatial struct {
	URI string
	Box *LatLonBox
}

func (s Spatial) MarshalJSON() ([]byte, error) {
	if s.Box != nil {
		return json.Marshal(s.Box)
	}
	return json.Marshal(s.URI)
}

func (s *Spatial) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch b[0] {
	case '"':
		s.Box = nil
		return json.Unmarshal(b, &s.URI)
	case '{':
		var box LatLonBox
		if err := json.Unmarshal(b, &box); err != nil {
			return err
		}
		s.URI = ""
		s.Box = &box
		return nil
	default:
		return fmt.Errorf("spatial: unexpected JSON %s", b)
	}
}
