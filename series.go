package gcov

import (
	"fmt"
	"time"
)

// Series is a loaded time series: lazy variables over shared (time,
// frequency, y, x) axes, the identification record of every timestep and
// global attributes.
type Series struct {
	Time      []time.Time
	Frequency []string
	Y, X      []float64
	Variables []*Variable
	// Identification is parallel to Time.
	Identification []Identification
	Attrs          Attributes

	Schema *Schema
	// Graph holds every deferred task behind the variables.
	Graph *Graph
}

// Variable looks up a variable by name.
func (s *Series) Variable(name string) (*Variable, bool) {
	for _, v := range s.Variables {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// VariableNames lists the variables in load order.
func (s *Series) VariableNames() []string {
	names := make([]string, len(s.Variables))
	for i, v := range s.Variables {
		names[i] = v.Name
	}
	return names
}

// Dims returns the length of every dimension.
func (s *Series) Dims() map[string]int {
	return map[string]int{
		DimTime:      len(s.Time),
		DimFrequency: len(s.Frequency),
		DimY:         len(s.Y),
		DimX:         len(s.X),
	}
}

// CRS is the spatial reference of every variable.
func (s *Series) CRS() string {
	crs, _ := s.Attrs[AttrCRS].(string)
	return crs
}

// IdentificationSeries returns the native value of key for every timestep.
// Timesteps whose record lacks key hold nil.
func (s *Series) IdentificationSeries(key string) []interface{} {
	out := make([]interface{}, len(s.Identification))
	for i, id := range s.Identification {
		if v, ok := id[key]; ok {
			out[i] = v.Native()
		}
	}
	return out
}

// Meta summarizes the series without reading any raster data.
func (s *Series) Meta() SeriesMeta {
	m := SeriesMeta{
		Dims:           s.Dims(),
		Time:           make([]string, len(s.Time)),
		Frequency:      s.Frequency,
		Y:              extentOf(s.Y),
		X:              extentOf(s.X),
		Variables:      make(map[string]ArrayMeta, len(s.Variables)),
		Attrs:          s.Attrs,
		Identification: s.Identification,
	}
	for i, t := range s.Time {
		m.Time[i] = FormatTime(t)
	}
	for _, v := range s.Variables {
		am := v.Array.Meta()
		am.Dimensions = v.Dims[:]
		am.Frequencies = v.Frequencies
		m.Variables[v.Name] = am
	}
	return m
}

func (s *Series) String() string {
	return fmt.Sprintf("<gcov.Series time=%d frequency=%v y=%d x=%d variables=%v crs=%s>",
		len(s.Time), s.Frequency, len(s.Y), len(s.X), s.VariableNames(), s.CRS())
}
