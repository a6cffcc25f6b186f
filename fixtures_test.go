package gcov

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// product describes an in-memory GCOV product for tests.
type product struct {
	freqs []string
	// vars lists the rasters present in each frequency grid.
	vars       map[string][]string
	rows, cols int
	// seed makes pixel values unique per file.
	seed float64
	epsg int
	// descendingY stores the y axis from high to low, as real products do.
	descendingY bool
}

func pixel(seed float64, r, c int) float64 {
	return seed*1e6 + float64(r)*1000 + float64(c)
}

// cpixel is the value of an off-diagonal covariance term.
func cpixel(seed float64, r, c int) complex128 {
	return complex(pixel(seed, r, c), -pixel(seed, r, c))
}

// offDiagonal reports whether a covariance term pairs two different
// polarizations, as HHVV does. Those terms are stored as complex numbers.
func offDiagonal(name string) bool {
	return len(name) == 4 && strings.ToUpper(name) == name && name[:2] != name[2:]
}

func (p product) build() *MemoryFile {
	l := DefaultLayout()
	f := NewMemoryFile()
	f.Set(l.FrequencyList, TextDataset([]int{len(p.freqs)}, p.freqs...))
	f.Set(l.IdentificationGroup+"/missionId", TextDataset(nil, "NISAR"))
	f.Set(l.IdentificationGroup+"/absoluteOrbitNumber", MustNumericDataset("<i4", nil, []float64{p.seed}))
	f.Set(l.IdentificationGroup+"/granuleId", TextDataset(nil, fmt.Sprintf("granule-%v", p.seed)))

	ys := make([]float64, p.rows)
	for i := range ys {
		ys[i] = float64(i)
		if p.descendingY {
			ys[i] = float64(p.rows - 1 - i)
		}
	}
	xs := make([]float64, p.cols)
	for i := range xs {
		xs[i] = float64(i)
	}
	epsg := p.epsg
	if epsg == 0 {
		epsg = 32611
	}

	for freq, vars := range p.vars {
		grid := fmt.Sprintf(l.GridGroup, freq)
		f.Set(grid+"/"+l.YCoordinates, MustNumericDataset("<f8", []int{p.rows}, ys))
		f.Set(grid+"/"+l.XCoordinates, MustNumericDataset("<f8", []int{p.cols}, xs))
		f.Set(grid+"/"+l.Projection, MustNumericDataset("<u4", nil, []float64{float64(epsg)}))
		shape := []int{p.rows, p.cols}
		for _, v := range vars {
			switch {
			case v == "mask":
				vals := make([]float64, p.rows*p.cols)
				for i := range vals {
					vals[i] = float64(i % 4)
				}
				f.Set(grid+"/"+v, MustNumericDataset("|u1", shape, vals))
			case offDiagonal(v):
				vals := make([]complex128, p.rows*p.cols)
				for r := 0; r < p.rows; r++ {
					for c := 0; c < p.cols; c++ {
						vals[r*p.cols+c] = cpixel(p.seed, r, c)
					}
				}
				f.Set(grid+"/"+v, ComplexDataset(shape, vals))
			default:
				vals := make([]float64, p.rows*p.cols)
				for r := 0; r < p.rows; r++ {
					for c := 0; c < p.cols; c++ {
						vals[r*p.cols+c] = pixel(p.seed, r, c)
					}
				}
				f.Set(grid+"/"+v, MustNumericDataset("<f4", shape, vals))
			}
		}
	}
	return f
}

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// captureLogger records log lines for assertions.
func captureLogger(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
