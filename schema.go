package gcov

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
)

// ErrSchema is returned when a usable schema cannot be derived from the
// input files.
var ErrSchema = errors.New("schema error")

// Pair addresses one raster of a product: a variable in a frequency grid.
type Pair struct {
	Frequency string
	Variable  string
}

func (p Pair) String() string { return p.Frequency + "/" + p.Variable }

// Schema is what one representative file says about every file of a
// series: its frequencies, coordinate axes, spatial reference, and the
// element type of every requested raster it holds. Pairs missing from
// Dtypes are treated as absent from every file.
type Schema struct {
	File   string
	Layout Layout
	// Frequencies are the resolvable labels in request order.
	Frequencies []string
	GridPaths   map[string]string

	// Y and X are the output axes, already subset to YRange and XRange.
	Y, X []float64
	// YRange and XRange are nil when no window was requested for the axis.
	YRange, XRange *IndexRange
	FullShape      [2]int

	EPSG   int
	Dtypes map[Pair]Dtype
}

// DatasetPath is the path of the raster for p inside a product.
func (s *Schema) DatasetPath(p Pair) string {
	return NewPath(s.GridPaths[p.Frequency]).Join(p.Variable).String()
}

// Shape is the (rows, cols) of every block.
func (s *Schema) Shape() [2]int { return [2]int{len(s.Y), len(s.X)} }

// CRS is the spatial reference as a registry code.
func (s *Schema) CRS() string { return fmt.Sprintf("EPSG:%d", s.EPSG) }

// Has reports whether the pair is present in the representative file.
func (s *Schema) Has(p Pair) bool {
	_, ok := s.Dtypes[p]
	return ok
}

// DiscoverSchema opens name and derives the schema of a series from it.
// frequencies nil or containing "all" uses the file's own frequency list.
func DiscoverSchema(store Store, name string, layout Layout, variables, frequencies []string, y, x *Window, logger *slog.Logger) (*Schema, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if wantsAll(frequencies) {
		if frequencies, err = readFrequencyList(f, layout.FrequencyList); err != nil {
			return nil, err
		}
	}

	s := &Schema{
		File:      name,
		Layout:    layout,
		GridPaths: map[string]string{},
		Dtypes:    map[Pair]Dtype{},
	}

	var grid string
	for _, freq := range frequencies {
		p := NewPath(fmt.Sprintf(layout.GridGroup, freq)).String()
		if _, err := f.Members(p); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
			logger.Warn("frequency not in product", "comp", "schema", "file", name, "frequency", freq)
			continue
		}
		if _, dup := s.GridPaths[freq]; dup {
			continue
		}
		s.Frequencies = append(s.Frequencies, freq)
		s.GridPaths[freq] = p
		if grid == "" {
			grid = p
		}
	}
	if grid == "" {
		return nil, fmt.Errorf("%w: no grid group for frequencies %v in %s", ErrSchema, frequencies, name)
	}

	fullY, err := readAxis(f, NewPath(grid).Join(layout.YCoordinates).String())
	if err != nil {
		return nil, err
	}
	fullX, err := readAxis(f, NewPath(grid).Join(layout.XCoordinates).String())
	if err != nil {
		return nil, err
	}
	s.FullShape = [2]int{len(fullY), len(fullX)}

	if s.EPSG, err = readEPSG(f, NewPath(grid).Join(layout.Projection).String()); err != nil {
		return nil, err
	}

	if s.Y, s.YRange, err = subsetAxis(fullY, y); err != nil {
		return nil, fmt.Errorf("y axis: %w", err)
	}
	if s.X, s.XRange, err = subsetAxis(fullX, x); err != nil {
		return nil, fmt.Errorf("x axis: %w", err)
	}

	for _, freq := range s.Frequencies {
		for _, v := range variables {
			p := Pair{Frequency: freq, Variable: v}
			ds, err := f.Dataset(s.DatasetPath(p))
			if errors.Is(err, ErrNotFound) {
				continue
			} else if err != nil {
				return nil, err
			}
			info, err := ds.Info()
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.DatasetPath(p), err)
			}
			s.Dtypes[p] = info.Dtype
		}
	}

	logger.Debug("schema discovered", "comp", "schema", "file", name, "frequencies", s.Frequencies,
		"rows", len(s.Y), "cols", len(s.X), "epsg", s.EPSG, "pairs", len(s.Dtypes))
	return s, nil
}

func readFrequencyList(f File, path string) ([]string, error) {
	ds, err := f.Dataset(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading frequency list: %s", ErrSchema, err)
	}
	labels, err := ds.ReadStrings()
	if err != nil {
		return nil, fmt.Errorf("%w: reading frequency list: %s", ErrSchema, err)
	}
	return labels, nil
}

func readAxis(f File, path string) ([]float64, error) {
	ds, err := f.Dataset(path)
	if err != nil {
		return nil, fmt.Errorf("%w: coordinate axis %s: %s", ErrSchema, path, err)
	}
	v, err := ds.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: coordinate axis %s: %s", ErrSchema, path, err)
	}
	if len(v) == 0 {
		return nil, fmt.Errorf("%w: coordinate axis %s is empty", ErrSchema, path)
	}
	return v, nil
}

func readEPSG(f File, path string) (int, error) {
	ds, err := f.Dataset(path)
	if err != nil {
		return 0, fmt.Errorf("%w: projection %s: %s", ErrSchema, path, err)
	}
	v, err := ds.Read()
	if err != nil {
		return 0, fmt.Errorf("%w: projection %s: %s", ErrSchema, path, err)
	}
	if len(v) != 1 || v[0] != math.Trunc(v[0]) {
		return 0, fmt.Errorf("%w: projection %s is not an integer code", ErrSchema, path)
	}
	return int(v[0]), nil
}

func subsetAxis(axis []float64, w *Window) ([]float64, *IndexRange, error) {
	if w.Full() {
		return axis, nil, nil
	}
	r, err := CoordSliceToIndex(axis, w)
	if err != nil {
		return nil, nil, err
	}
	return r.Slice(axis), &r, nil
}
