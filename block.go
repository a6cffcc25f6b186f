package gcov

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrShapeMismatch is returned when a read produces a different number of
// elements than the shape it was declared with.
var ErrShapeMismatch = errors.New("shape mismatch")

// Raster is the value of an executed chunk: row-major data of the given
// shape. Complex rasters keep their imaginary parts in Imag, parallel to
// Data; Imag is nil for real rasters.
type Raster struct {
	Shape []int
	Data  []float64
	Imag  []float64
}

// Complex returns the raster's values as complex numbers.
func (r *Raster) Complex() []complex128 {
	out := make([]complex128, len(r.Data))
	for i, re := range r.Data {
		var im float64
		if r.Imag != nil {
			im = r.Imag[i]
		}
		out[i] = complex(re, im)
	}
	return out
}

// Block is a deferred read of one 2-D dataset, optionally restricted to a
// sub-block. Nothing is opened until the block is executed, and the file is
// closed again before Read returns.
type Block struct {
	Store   Store
	File    string
	Dataset string
	// Rows and Cols select a sub-block. nil reads the whole axis.
	Rows  *IndexRange
	Cols  *IndexRange
	Shape [2]int
	Dtype Dtype

	Logger *slog.Logger
}

// NewBlock describes a deferred read. It performs no I/O.
func NewBlock(store Store, file, dataset string, rows, cols *IndexRange, shape [2]int, dt Dtype, logger *slog.Logger) *Block {
	return &Block{
		Store:   store,
		File:    file,
		Dataset: dataset,
		Rows:    rows,
		Cols:    cols,
		Shape:   shape,
		Dtype:   dt,
		Logger:  logger,
	}
}

// Task wraps the block as a graph task under key.
func (b *Block) Task(key string) *Task {
	return &Task{
		Key: key,
		Fn: func(ctx context.Context, _ []interface{}) (interface{}, error) {
			return b.Read(ctx)
		},
	}
}

// Read opens the file, reads the block and closes the file.
func (b *Block) Read(ctx context.Context) (r *Raster, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	f, err := b.Store.Open(b.File)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ds, err := f.Dataset(b.Dataset)
	if err != nil {
		return nil, err
	}

	r = &Raster{Shape: []int{b.Shape[0], b.Shape[1]}}
	switch {
	case b.Dtype.IsComplex():
		r.Data, r.Imag, err = b.readComplex(ds)
	case b.Rows == nil && b.Cols == nil:
		r.Data, err = ds.Read()
	default:
		r.Data, err = b.readSlice(ds)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s:%s: %w", b.File, b.Dataset, err)
	}

	if len(r.Data) != b.Shape[0]*b.Shape[1] {
		return nil, fmt.Errorf("%w: %s:%s returned %d values, want %dx%d",
			ErrShapeMismatch, b.File, b.Dataset, len(r.Data), b.Shape[0], b.Shape[1])
	}

	b.logger().Debug("block read", "comp", "block", "file", b.File, "dataset", b.Dataset,
		"rows", b.Shape[0], "cols", b.Shape[1], "dtype", b.Dtype.String(), "dur", time.Since(start))
	return r, nil
}

// selection resolves the block's rows and columns against the dataset.
func (b *Block) selection(ds Dataset) (full []int, rows, cols IndexRange, err error) {
	info, err := ds.Info()
	if err != nil {
		return nil, rows, cols, err
	}
	if len(info.Shape) != 2 {
		return nil, rows, cols, fmt.Errorf("%w: dataset has shape %v, want 2 dimensions", ErrShapeMismatch, info.Shape)
	}
	rows, cols = IndexRange{Stop: info.Shape[0]}, IndexRange{Stop: info.Shape[1]}
	if b.Rows != nil {
		rows = *b.Rows
	}
	if b.Cols != nil {
		cols = *b.Cols
	}
	if rows.Stop > info.Shape[0] || cols.Stop > info.Shape[1] {
		return nil, rows, cols, fmt.Errorf("%w: selection %s x %s exceeds dataset shape %v",
			ErrShapeMismatch, rows, cols, info.Shape)
	}
	return info.Shape, rows, cols, nil
}

func (b *Block) readSlice(ds Dataset) ([]float64, error) {
	_, rows, cols, err := b.selection(ds)
	if err != nil {
		return nil, err
	}
	return ds.ReadSlice([]int{rows.Start, cols.Start}, []int{rows.Len(), cols.Len()})
}

// readComplex reads the whole complex dataset and cuts the selection out of
// it; complex stores have no hyperslab reads.
func (b *Block) readComplex(ds Dataset) (re, im []float64, err error) {
	values, err := ds.ReadComplex()
	if err != nil {
		return nil, nil, err
	}
	if b.Rows != nil || b.Cols != nil {
		full, rows, cols, err := b.selection(ds)
		if err != nil {
			return nil, nil, err
		}
		if len(values) != full[0]*full[1] {
			return nil, nil, fmt.Errorf("%w: read %d values for shape %v", ErrShapeMismatch, len(values), full)
		}
		values = extractHyperslab(values, full, []int{rows.Start, cols.Start}, []int{rows.Len(), cols.Len()})
	}

	re = make([]float64, len(values))
	im = make([]float64, len(values))
	for i, v := range values {
		re[i], im[i] = real(v), imag(v)
	}
	return re, im, nil
}

func (b *Block) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
