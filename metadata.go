package gcov

import (
	"encoding/json"
	"fmt"
)

// ArrayMeta describes a lazy array without reading it. It is modelled on
// the zarr v2 ".zarray" document.
type ArrayMeta struct {
	// A list of integers defining the length of each dimension of the array.
	Shape []int `json:"shape"`
	// The nominal chunk shape. Chunks at the trailing edge of an axis may be
	// shorter.
	Chunks []int `json:"chunks"`
	// Element type of the stored rasters as a numpy typestr.
	Dtype Dtype `json:"dtype"`
	// A scalar value providing the default value to use for uninitialized
	// portions of the array, or null if no fill_value is used.
	FillValue interface{} `json:"fill_value"`
	// Either “C” or “F”, defining the layout of values within each chunk.
	// Chunks are always materialized in row-major (“C”) order.
	Order string `json:"order"`
	// Dimension names, outermost first.
	Dimensions []string `json:"dimensions,omitempty"`
	// Frequency labels along the frequency axis.
	Frequencies []string `json:"frequencies,omitempty"`
}

// Attributes are free-form annotations of a dataset.
type Attributes map[string]interface{}

// Well-known attribute keys.
const (
	AttrSource = "source"
	AttrCRS    = "crs"
)

// Extent summarizes a coordinate axis.
type Extent struct {
	Len   int     `json:"len"`
	First float64 `json:"first"`
	Last  float64 `json:"last"`
}

func extentOf(axis []float64) Extent {
	if len(axis) == 0 {
		return Extent{}
	}
	return Extent{Len: len(axis), First: axis[0], Last: axis[len(axis)-1]}
}

// SeriesMeta is the JSON summary of a loaded Series.
type SeriesMeta struct {
	Dims           map[string]int       `json:"dims"`
	Time           []string             `json:"time"`
	Frequency      []string             `json:"frequency"`
	Y              Extent               `json:"y"`
	X              Extent               `json:"x"`
	Variables      map[string]ArrayMeta `json:"variables"`
	Attrs          Attributes           `json:"attrs"`
	Identification []Identification     `json:"identification"`
}

// fillValue decodes the JSON forms of a fill value: null, a number, or one
// of the FillValue strings for non-finite floats.
func fillValue(raw json.RawMessage) (interface{}, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch s {
		case FillValueNaN, FillValueInfinity, FillValueNegativeInfinity:
			return s, nil
		}
		return nil, fmt.Errorf("invalid fill value %q", s)
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("invalid fill value %s", raw)
	}
	return n, nil
}

func (m *ArrayMeta) UnmarshalJSON(d []byte) error {
	type alias ArrayMeta
	aux := struct {
		*alias
		FillValue json.RawMessage `json:"fill_value"`
	}{alias: (*alias)(m)}
	if err := json.Unmarshal(d, &aux); err != nil {
		return err
	}
	fv, err := fillValue(aux.FillValue)
	if err != nil {
		return err
	}
	m.FillValue = fv
	return nil
}

const (
	// Not a Number
	FillValueNaN = "NaN"
	// Infinity
	FillValueInfinity = "Infinity"
	// -Infinity
	FillValueNegativeInfinity = "-Infinity"
)
