package gcov

import (
	"fmt"
	"log/slog"
)

// Variable is one raster variable of a series bound to its dimensions.
type Variable struct {
	Name string
	Dims [4]string
	// Frequencies are the labels along the variable's frequency axis: the
	// schema frequencies the variable is present in.
	Frequencies []string
	Array       *Array
}

// Dimension names of a variable.
const (
	DimTime      = "time"
	DimFrequency = "frequency"
	DimY         = "y"
	DimX         = "x"
)

var variableDims = [4]string{DimTime, DimFrequency, DimY, DimX}

// Assemble builds one lazy array per variable over files, which must be
// sorted. Each (file, frequency) raster is a deferred Block task in g; the
// blocks are concatenated along time, then frequency, and rechunked to
// chunks clamped to the array shape. Variables absent from every frequency
// of the schema are left out, as are rasters whose elements are not real
// numbers.
func Assemble(g *Graph, store Store, s *Schema, files, variables []string, chunks [4]int, logger *slog.Logger) ([]*Variable, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no input files", ErrSchema)
	}

	var out []*Variable
	for _, name := range variables {
		var (
			freqs  []string
			layers []*Array
		)
		for _, freq := range s.Frequencies {
			p := Pair{Frequency: freq, Variable: name}
			dt, ok := s.Dtypes[p]
			if !ok {
				continue
			}
			if !dt.IsNumeric() && !dt.IsComplex() {
				logger.Warn("skipping raster with non-numeric element type", "comp", "assemble",
					"frequency", freq, "variable", name, "dtype", dt.String(), "kind", dt.BasicType.Human())
				continue
			}

			slices := make([]*Array, len(files))
			for i, file := range files {
				key := fmt.Sprintf("read-%s-%s-%d", freq, name, i)
				b := NewBlock(store, file, s.DatasetPath(p), s.YRange, s.XRange, s.Shape(), dt, logger)
				if err := g.Add(b.Task(key)); err != nil {
					return nil, err
				}
				a, err := FromDelayed(g, key, s.Shape(), dt)
				if err != nil {
					return nil, err
				}
				slices[i] = a
			}

			layer, err := Concatenate(0, slices...)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			freqs = append(freqs, freq)
			layers = append(layers, layer)
		}

		if len(layers) == 0 {
			logger.Debug("variable not in product", "comp", "assemble", "variable", name)
			continue
		}

		full, err := Concatenate(1, layers...)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		full.name = name
		arr, err := full.Rechunk(chunks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}

		logger.Debug("variable assembled", "comp", "assemble", "variable", name,
			"shape", arr.Shape(), "chunks", arr.Chunks(), "dtype", arr.Dtype().String())
		out = append(out, &Variable{
			Name:        name,
			Dims:        variableDims,
			Frequencies: freqs,
			Array:       arr,
		})
	}
	return out, nil
}
