package gcov

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ascending(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func descending(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(n - 1 - i)
	}
	return out
}

func TestCoordSliceToIndex(t *testing.T) {
	cases := []struct {
		name   string
		coords []float64
		w      *Window
		want   IndexRange
	}{
		{"nil window", ascending(100), nil, IndexRange{0, 100}},
		{"empty window", ascending(100), &Window{}, IndexRange{0, 100}},
		{"ascending", ascending(100), Between(5, 10), IndexRange{5, 11}},
		{"ascending reversed", ascending(100), Between(10, 5), IndexRange{5, 11}},
		{"descending", descending(100), Between(5, 10), IndexRange{89, 95}},
		{"descending reversed", descending(100), Between(10, 5), IndexRange{89, 95}},
		{"open stop ascending", ascending(100), From(95), IndexRange{95, 100}},
		{"open start ascending", ascending(100), Until(3), IndexRange{0, 4}},
		{"open stop descending", descending(100), From(95), IndexRange{4, 100}},
		{"partial overlap", ascending(10), Between(-5, 2.5), IndexRange{0, 3}},
		{"between samples", []float64{0, 10, 20, 30}, Between(5, 25), IndexRange{1, 3}},
		{"single point", ascending(10), Between(4, 4), IndexRange{4, 5}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := CoordSliceToIndex(c.coords, c.w)
			require.NoError(t, err)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestCoordSliceToIndexOutOfRange(t *testing.T) {
	_, err := CoordSliceToIndex(ascending(100), Between(200, 300))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	assert.Contains(t, err.Error(), "[200, 300]")
	assert.Contains(t, err.Error(), "[0, 99]")

	_, err = CoordSliceToIndex(descending(100), Between(-1, -10))
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = CoordSliceToIndex([]float64{0, 10, 20}, Between(11, 19))
	assert.ErrorIs(t, err, ErrOutOfRange, "window between samples holds no position")

	_, err = CoordSliceToIndex(nil, nil)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCoordSliceToIndexMembership(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, axis := range [][]float64{ascending(50), descending(50)} {
		for i := 0; i < 200; i++ {
			a, b := rng.Float64()*60-5, rng.Float64()*60-5
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}

			r, err := CoordSliceToIndex(axis, Between(a, b))
			var want []float64
			for _, v := range axis {
				if v >= lo && v <= hi {
					want = append(want, v)
				}
			}
			if len(want) == 0 {
				assert.ErrorIs(t, err, ErrOutOfRange)
				continue
			}
			require.NoError(t, err)
			assert.Equal(t, want, r.Slice(axis), "window [%v, %v]", a, b)

			full, err := CoordSliceToIndex(r.Slice(axis), nil)
			require.NoError(t, err)
			assert.Equal(t, r.Len(), full.Len())
		}
	}
}

func TestWindowString(t *testing.T) {
	assert.Equal(t, "[:]", (*Window)(nil).String())
	assert.Equal(t, "[1:2]", Between(1, 2).String())
	assert.Equal(t, "[1:]", From(1).String())
	assert.Equal(t, "[:2]", Until(2).String())
	assert.Equal(t, "[3:7)", IndexRange{3, 7}.String())
}
