package uploader

import "time"

// Dataset is the read-only view of a scientific file the metadata builder needs.
type Dataset interface {
	// DataVariables lists non-coordinate variables in file order.
	DataVariables() []string
	// Attr returns a global attribute rendered as text.
	Attr(name string) (string, bool)
	// HasVariable reports whether any variable (data or coordinate) exists.
	HasVariable(name string) bool
	// Range returns the minimum and maximum of a numeric variable.
	Range(name string) (min, max float64, err error)
	// TimeBounds returns the first and last decoded time values.
	TimeBounds() (first, last time.Time, err error)
	Close() error
}

// DatasetOpener opens files for reading.
type DatasetOpener interface {
	Open(path string) (Dataset, error)
}

// DatasetOpenerFunc adapts a function to DatasetOpener.
type DatasetOpenerFunc func(path string) (Dataset, error)

func (f DatasetOpenerFunc) Open(path string) (Dataset, error) { return f(path) }
