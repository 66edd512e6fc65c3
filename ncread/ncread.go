// Package ncread reads NetCDF files for the metadata builder using a pure Go
// decoder, so the uploader needs no C libraries.
package ncread

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"zupload/uploader"
)

// TimeVariable is the coordinate TimeBounds decodes.
const TimeVariable = "time"

// Opener opens NetCDF files as uploader datasets.
type Opener struct{}

// Open implements uploader.DatasetOpener.
func (Opener) Open(path string) (uploader.Dataset, error) {
	return Open(path)
}

// File is an open NetCDF file.
type File struct {
	path  string
	group api.Group
	names []string
}

// Open opens path for reading.
func Open(path string) (*File, error) {
	g, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	return &File{path: path, group: g, names: g.ListVariables()}, nil
}

func (f *File) Close() error {
	if f.group == nil {
		return nil
	}
	f.group.Close()
	f.group = nil
	return nil
}

// DataVariables lists variables that are not dimension coordinates.
func (f *File) DataVariables() []string {
	out := make([]string, 0, len(f.names))
	for _, name := range f.names {
		vg, err := f.group.GetVarGetter(name)
		if err != nil {
			continue
		}
		if isCoordinate(name, vg.Dimensions()) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func isCoordinate(name string, dims []string) bool {
	return len(dims) == 1 && dims[0] == name
}

func (f *File) Attr(name string) (string, bool) {
	v, ok := f.group.Attributes().Get(name)
	if !ok {
		return "", false
	}
	return attrString(v), true
}

func (f *File) HasVariable(name string) bool {
	for _, n := range f.names {
		if n == name {
			return true
		}
	}
	return false
}

// Range returns the extremes of a numeric variable, skipping NaN and the
// variable's _FillValue or missing_value.
func (f *File) Range(name string) (float64, float64, error) {
	v, err := f.group.GetVariable(name)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: variable %s: %w", f.path, name, err)
	}
	fill := fillValues(v.Attributes)
	lo, hi := math.Inf(1), math.Inf(-1)
	n := 0
	if err := eachFloat(v.Values, func(x float64) {
		if math.IsNaN(x) || fill[x] {
			return
		}
		n++
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}); err != nil {
		return 0, 0, fmt.Errorf("%s: variable %s: %w", f.path, name, err)
	}
	if n == 0 {
		return math.NaN(), math.NaN(), nil
	}
	return lo, hi, nil
}

// TimeBounds decodes the first and last entries of the time coordinate.
func (f *File) TimeBounds() (time.Time, time.Time, error) {
	vg, err := f.group.GetVarGetter(TimeVariable)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: no %s variable: %w", f.path, TimeVariable, err)
	}
	units, ok := vg.Attributes().Get("units")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %s has no units", f.path, TimeVariable)
	}
	u, err := ParseTimeUnits(attrString(units))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", f.path, err)
	}
	n := vg.Len()
	if n == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %s is empty", f.path, TimeVariable)
	}
	first, err := sliceValue(vg, 0)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", f.path, err)
	}
	last, err := sliceValue(vg, n-1)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%s: %w", f.path, err)
	}
	return u.Decode(first), u.Decode(last), nil
}

func sliceValue(vg api.VarGetter, i int64) (float64, error) {
	v, err := vg.GetSlice(i, i+1)
	if err != nil {
		return 0, err
	}
	var out float64
	found := false
	if err := eachFloat(v, func(x float64) {
		if !found {
			out, found = x, true
		}
	}); err != nil {
		return 0, err
	}
	if !found {
		return 0, fmt.Errorf("%s[%d] has no value", TimeVariable, i)
	}
	return out, nil
}

func fillValues(attrs api.AttributeMap) map[float64]bool {
	fill := map[float64]bool{}
	if attrs == nil {
		return fill
	}
	for _, key := range []string{"_FillValue", "missing_value"} {
		v, ok := attrs.Get(key)
		if !ok {
			continue
		}
		_ = eachFloat(v, func(x float64) { fill[x] = true })
	}
	return fill
}

func attrString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimRight(t, "\x00")
	case []string:
		return strings.Join(t, " ")
	default:
		return fmt.Sprint(v)
	}
}
