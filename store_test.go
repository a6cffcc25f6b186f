package gcov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	assert.Equal(t, MemoryStoreType, s.Type())

	_, err := s.Open("nope.h5")
	assert.ErrorIs(t, err, ErrNotFound)

	s.Put("a.h5", NewMemoryFile().
		Set("/g/x", MustNumericDataset("<f8", []int{3}, []float64{1, 2, 3})).
		Set("/g/sub/y", TextDataset(nil, "hi")).
		Set("/top", MustNumericDataset("<i4", nil, []float64{7})))

	f, err := s.Open("a.h5")
	require.NoError(t, err)
	assert.Equal(t, "a.h5", f.Name())

	members, err := f.Members("/g")
	require.NoError(t, err)
	assert.Equal(t, []Member{{Name: "sub", Group: true}, {Name: "x"}}, members)

	root, err := f.Members("/")
	require.NoError(t, err)
	assert.Equal(t, []Member{{Name: "g", Group: true}, {Name: "top"}}, root)

	_, err = f.Members("/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	ds, err := f.Dataset("g//x/")
	require.NoError(t, err)
	info, err := ds.Info()
	require.NoError(t, err)
	assert.Equal(t, "<f8", info.Dtype.String())
	assert.Equal(t, 3, info.Size())
	assert.False(t, info.Scalar())

	_, err = ds.ReadStrings()
	assert.ErrorIs(t, err, ErrUnsupportedType)

	_, err = f.Dataset("/g/missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
	_, err = f.Dataset("/top")
	assert.Error(t, err)

	opened, closed := s.Handles()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)
}

func TestMemoryDatasetReadSlice(t *testing.T) {
	vals := make([]float64, 4*5)
	for i := range vals {
		vals[i] = float64(i)
	}
	ds := MustNumericDataset("<f4", []int{4, 5}, vals)

	got, err := ds.ReadSlice([]int{1, 2}, []int{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8, 9, 12, 13, 14}, got)

	got, err = ds.ReadSlice([]int{0, 0}, []int{4, 5})
	require.NoError(t, err)
	assert.Equal(t, vals, got)

	_, err = ds.ReadSlice([]int{3, 0}, []int{2, 5})
	assert.Error(t, err)
	_, err = ds.ReadSlice([]int{0}, []int{1})
	assert.Error(t, err)

	cube := MustNumericDataset("<f8", []int{2, 2, 2}, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	got, err = cube.ReadSlice([]int{0, 1, 0}, []int{2, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 3, 6, 7}, got)
}

func TestNumericDataset(t *testing.T) {
	ds, err := NumericDataset("|u1", []int{2}, []float64{0, 255})
	require.NoError(t, err)
	assert.Equal(t, "|u1", ds.Dtype.String())

	_, err = NumericDataset("<c8", []int{2}, []float64{0, 1})
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = NumericDataset("nope", nil, nil)
	assert.Error(t, err)
	assert.Panics(t, func() { MustNumericDataset("|S4", nil, nil) })
}

func TestMemoryDatasetComplex(t *testing.T) {
	ds := ComplexDataset([]int{2, 2}, []complex128{1 + 2i, 3, 4i, -1})
	assert.True(t, ds.Dtype.IsComplex())

	got, err := ds.ReadComplex()
	require.NoError(t, err)
	assert.Equal(t, []complex128{1 + 2i, 3, 4i, -1}, got)

	_, err = ds.Read()
	assert.ErrorIs(t, err, ErrUnsupportedType)
	_, err = ds.ReadSlice([]int{0, 0}, []int{1, 1})
	assert.ErrorIs(t, err, ErrUnsupportedType)

	got, err = MustNumericDataset("<f4", []int{2}, []float64{1.5, 2}).ReadComplex()
	require.NoError(t, err)
	assert.Equal(t, []complex128{1.5, 2}, got)

	_, err = TextDataset([]int{1}, "x").ReadComplex()
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestPath(t *testing.T) {
	p := NewPath(`\science//LSAR/identification/`)
	assert.Equal(t, "/science/LSAR/identification", p.String())
	assert.Equal(t, "/", NewPath("").String())

	joined := p.Join("missionId")
	assert.Equal(t, "/science/LSAR/identification/missionId", joined.String())
	assert.Equal(t, "/science/LSAR/identification", p.String(), "join does not modify its receiver")

	assert.True(t, joined.HasPrefix(p))
	assert.False(t, p.HasPrefix(joined))
	assert.True(t, p.HasPrefix(nil))
}
