package gcov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSeries(t *testing.T) {
	s := NewMemoryStore()
	vars := map[string][]string{"A": {"HHHH", "HVHV"}}
	s.Put("a.h5", product{freqs: []string{"A"}, vars: vars, rows: 8, cols: 8, seed: 1}.build())
	s.Put("b.h5", product{freqs: []string{"A"}, vars: vars, rows: 8, cols: 8, seed: 2}.build())
	s.Put("short.h5", product{freqs: []string{"A"}, vars: vars, rows: 7, cols: 8, seed: 3}.build())
	s.Put("partial.h5", product{freqs: []string{"A"}, vars: map[string][]string{"A": {"HHHH"}}, rows: 8, cols: 8, seed: 4}.build())

	sc, err := DiscoverSchema(s, "a.h5", DefaultLayout(), []string{"HHHH", "HVHV"}, nil, nil, nil, discardLogger())
	require.NoError(t, err)

	require.NoError(t, ValidateSeries(s, sc, []string{"a.h5", "b.h5"}))

	err = ValidateSeries(s, sc, []string{"a.h5", "short.h5", "partial.h5"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchema)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "short.h5")
	assert.Contains(t, err.Error(), "partial.h5:/science/LSAR/GCOV/grids/frequencyA/HVHV")

	err = ValidateSeries(s, sc, []string{"gone.h5"})
	assert.ErrorIs(t, err, ErrNotFound)

	opened, closed := s.Handles()
	assert.Equal(t, opened, closed)
}
