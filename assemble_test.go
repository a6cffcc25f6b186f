package gcov

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	s := NewMemoryStore()
	files := []string{"a.h5", "b.h5", "c.h5"}
	for i, name := range files {
		s.Put(name, product{
			freqs: []string{"A", "B"},
			vars:  map[string][]string{"A": {"HHHH", "mask"}, "B": {"HHHH"}},
			rows:  6, cols: 5, seed: float64(i + 1),
		}.build())
	}

	sc, err := DiscoverSchema(s, files[0], DefaultLayout(), []string{"HHHH", "mask", "VVVV"}, nil, nil, nil, discardLogger())
	require.NoError(t, err)

	g := NewGraph()
	vars, err := Assemble(g, s, sc, files, []string{"VVVV", "mask", "HHHH"}, [4]int{2, 1, 4, 4}, discardLogger())
	require.NoError(t, err)

	require.Len(t, vars, 2, "VVVV is absent and left out")
	assert.Equal(t, "mask", vars[0].Name)
	assert.Equal(t, "HHHH", vars[1].Name)
	assert.Equal(t, [4]string{"time", "frequency", "y", "x"}, vars[1].Dims)

	mask, hhhh := vars[0], vars[1]
	assert.Equal(t, []string{"A"}, mask.Frequencies)
	assert.Equal(t, [4]int{3, 1, 6, 5}, mask.Array.Shape())
	assert.Equal(t, []string{"A", "B"}, hhhh.Frequencies)
	assert.Equal(t, [4]int{3, 2, 6, 5}, hhhh.Array.Shape())
	assert.Equal(t, [4]int{2, 1, 4, 4}, hhhh.Array.Chunks())
	assert.Equal(t, [4]int{2, 2, 2, 2}, hhhh.Array.NumChunks())

	opened, _ := s.Handles()
	assert.Equal(t, 1, opened, "assembling reads nothing beyond the schema file")

	data, err := hhhh.Array.ReadAll(context.Background(), Pool{Workers: 3})
	require.NoError(t, err)
	var want []float64
	for i := range files {
		for range []string{"A", "B"} {
			for r := 0; r < 6; r++ {
				for c := 0; c < 5; c++ {
					want = append(want, pixel(float64(i+1), r, c))
				}
			}
		}
	}
	assert.Equal(t, want, data)

	opened, closed := s.Handles()
	assert.Equal(t, 1+len(files)*2, opened, "one open per file and frequency block")
	assert.Equal(t, opened, closed)
}

func TestAssembleSubset(t *testing.T) {
	s := NewMemoryStore()
	s.Put("a.h5", product{freqs: []string{"A"}, vars: map[string][]string{"A": {"HHHH"}}, rows: 10, cols: 10, seed: 1}.build())

	sc, err := DiscoverSchema(s, "a.h5", DefaultLayout(), []string{"HHHH"}, nil, Between(2, 4), Until(1), discardLogger())
	require.NoError(t, err)

	g := NewGraph()
	vars, err := Assemble(g, s, sc, []string{"a.h5"}, []string{"HHHH"}, DefaultChunks, nil)
	require.NoError(t, err)
	require.Len(t, vars, 1)

	a := vars[0].Array
	assert.Equal(t, [4]int{1, 1, 3, 2}, a.Shape())
	assert.Equal(t, [4]int{1, 1, 3, 2}, a.Chunks())

	data, err := a.ReadAll(context.Background(), Synchronous{})
	require.NoError(t, err)
	assert.Equal(t, []float64{
		pixel(1, 2, 0), pixel(1, 2, 1),
		pixel(1, 3, 0), pixel(1, 3, 1),
		pixel(1, 4, 0), pixel(1, 4, 1),
	}, data)
}

func TestAssembleComplex(t *testing.T) {
	s := NewMemoryStore()
	for i, seed := range []float64{1, 2} {
		s.Put(fmt.Sprintf("%d.h5", i), product{seed: seed, freqs: []string{"A"}, vars: map[string][]string{"A": {"HHHH", "HHHV"}}, rows: 2, cols: 2}.build())
	}
	files := []string{"0.h5", "1.h5"}

	sc, err := DiscoverSchema(s, files[0], DefaultLayout(), []string{"HHHH", "HHHV"}, nil, nil, nil, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, BTComplex, sc.Dtypes[Pair{"A", "HHHV"}].BasicType)

	vars, err := Assemble(NewGraph(), s, sc, files, []string{"HHHH", "HHHV"}, DefaultChunks, discardLogger())
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "HHHV", vars[1].Name)

	a := vars[1].Array
	_, err = a.ReadAll(context.Background(), Synchronous{})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	data, err := a.ReadAllComplex(context.Background(), Synchronous{})
	require.NoError(t, err)
	require.Len(t, data, 8)
	assert.Equal(t, cpixel(1, 0, 1), data[1])
	assert.Equal(t, cpixel(2, 1, 0), data[6])

	// real arrays read as complex with zero imaginary parts
	re, err := vars[0].Array.ReadAllComplex(context.Background(), Synchronous{})
	require.NoError(t, err)
	assert.Equal(t, complex(pixel(2, 1, 1), 0), re[7])
}

func TestAssembleSkipsText(t *testing.T) {
	s := NewMemoryStore()
	f := product{freqs: []string{"A"}, vars: map[string][]string{"A": {"HHHH"}}, rows: 2, cols: 2}.build()
	f.Set("/science/LSAR/GCOV/grids/frequencyA/HHHV", TextDataset([]int{2, 2}, "a", "b", "c", "d"))
	s.Put("a.h5", f)
	logger, buf := captureLogger(t)

	sc, err := DiscoverSchema(s, "a.h5", DefaultLayout(), []string{"HHHH", "HHHV"}, nil, nil, nil, logger)
	require.NoError(t, err)
	assert.True(t, sc.Has(Pair{"A", "HHHV"}))

	vars, err := Assemble(NewGraph(), s, sc, []string{"a.h5"}, []string{"HHHH", "HHHV"}, DefaultChunks, logger)
	require.NoError(t, err)
	require.Len(t, vars, 1)
	assert.Equal(t, "HHHH", vars[0].Name)
	assert.Contains(t, buf.String(), "variable=HHHV")

	_, err = Assemble(NewGraph(), s, sc, nil, []string{"HHHH"}, DefaultChunks, logger)
	assert.ErrorIs(t, err, ErrSchema)
}
