package gcov

import (
	"errors"
	"fmt"
	"sort"
)

// ValidateSeries opens every file and checks it against s: each raster the
// schema holds must exist with the full grid shape, and the coordinate axes
// must have the schema's lengths. All mismatches are reported together.
func ValidateSeries(store Store, s *Schema, files []string) error {
	var errs []error
	for _, name := range files {
		if err := validateFile(store, s, name); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: files do not share a schema: %w", ErrSchema, errors.Join(errs...))
}

func validateFile(store Store, s *Schema, name string) error {
	f, err := store.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	var errs []error
	for _, freq := range s.Frequencies {
		grid := NewPath(s.GridPaths[freq])
		if err := checkShape(f, grid.Join(s.Layout.YCoordinates).String(), s.FullShape[:1]); err != nil {
			errs = append(errs, err)
		}
		if err := checkShape(f, grid.Join(s.Layout.XCoordinates).String(), s.FullShape[1:]); err != nil {
			errs = append(errs, err)
		}
	}

	pairs := make([]Pair, 0, len(s.Dtypes))
	for p := range s.Dtypes {
		pairs = append(pairs, p)
	}
	sortPairs(pairs)
	for _, p := range pairs {
		if err := checkShape(f, s.DatasetPath(p), s.FullShape[:]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkShape(f File, path string, want []int) error {
	ds, err := f.Dataset(path)
	if err != nil {
		return err
	}
	info, err := ds.Info()
	if err != nil {
		return fmt.Errorf("%s:%s: %w", f.Name(), path, err)
	}
	if len(info.Shape) != len(want) {
		return fmt.Errorf("%w: %s:%s has shape %v, want %v", ErrShapeMismatch, f.Name(), path, info.Shape, want)
	}
	for i := range want {
		if info.Shape[i] != want[i] {
			return fmt.Errorf("%w: %s:%s has shape %v, want %v", ErrShapeMismatch, f.Name(), path, info.Shape, want)
		}
	}
	return nil
}

func sortPairs(pairs []Pair) {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
}
