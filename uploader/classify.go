package uploader

import "strings"

// CPMeta is the base of object specification URIs.
const CPMeta = "http://meta.icos-cp.eu/resources/cpmeta/"

// UnmatchedType is the dataset type of a file no rule recognises.
const UnmatchedType = "unmatched"

// Rule maps file names containing any of its substrings to a dataset type.
type Rule struct {
	Any         []string
	DatasetType string
	Spec        string
}

// Classification is the classifier's answer for one file name.
type Classification struct {
	DatasetType string
	ObjectSpec  string
}

// Matched reports whether a rule recognised the file.
func (c Classification) Matched() bool {
	return c.DatasetType != UnmatchedType
}

// Rules is evaluated top to bottom and the first hit wins, so a more
// specific substring must precede a more general one.
var Rules = []Rule{
	{Any: []string{"persector"}, DatasetType: "anthropogenic emissions per sector", Spec: "anthropogenicEmissionModelResults"},
	{Any: []string{"anthropogenic"}, DatasetType: "anthropogenic emissions", Spec: "anthropogenicEmissionModelResults"},
	{Any: []string{"nep"}, DatasetType: "biospheric fluxes", Spec: "biosphericModelResults"},
	{Any: []string{"fire"}, DatasetType: "fire emissions", Spec: "fireEmissionModelResults"},
	{Any: []string{"ocean"}, DatasetType: "ocean fluxes", Spec: "oceanicFluxModelResults"},
	{Any: []string{"transcom"}, DatasetType: "inversion time-series", Spec: "inversionModelingTimeseries"},
	{Any: []string{"CSR", "LUMIA", "Priors", "GCP"}, DatasetType: "inversion modeling spatial", Spec: "inversionModelingSpatial"},
	{Any: []string{"zip"}, DatasetType: "model data archive", Spec: "modelDataArchive"},
	{Any: []string{"VPRM", "lpj", "ET", "ET_T", "GPP", "NEE"}, DatasetType: "biosphere modeling spatial", Spec: "biosphereModelingSpatial"},
	{Any: []string{"traceRadon"}, DatasetType: "radon flux map", Spec: "radonFluxSpatialL3"},
	{Any: []string{"EDGAR"}, DatasetType: "EDGAR anthropogenic emissions", Spec: "co2EmissionInventory"},
	{Any: []string{"AVENGERS"}, DatasetType: "AVENGERS aerosol emissions", Spec: "arbitraryCfNetcdf"},
}

// Unmatched is returned for file names no rule recognises.
var Unmatched = Classification{DatasetType: UnmatchedType}

// Classify applies Rules to fileName.
func Classify(fileName string) Classification {
	return ClassifyWith(Rules, fileName)
}

// ClassifyWith applies an explicit rule table to fileName.
func ClassifyWith(rules []Rule, fileName string) Classification {
	for _, rule := range rules {
		for _, sub := range rule.Any {
			if strings.Contains(fileName, sub) {
				return Classification{DatasetType: rule.DatasetType, ObjectSpec: SpecURI(rule.Spec)}
			}
		}
	}
	return Unmatched
}

// SpecURI expands a bare specification name into its full URI.
func SpecURI(name string) string {
	if name == "" || strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name
	}
	return CPMeta + name
}
