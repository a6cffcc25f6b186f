package gcov

import (
	"context"
	"fmt"
	"sort"
)

// Array is a lazy 4-D array over (time, frequency, y, x). It is a grid of
// chunks, each computed by a task in a shared Graph. Nothing is read until a
// region of the array is requested through an Executor.
type Array struct {
	name   string
	graph  *Graph
	shape  [4]int
	chunks [4]int
	dtype  Dtype
	grid   []chunk
}

// FromDelayed wraps the task key, whose value is a 2-D Raster of the given
// shape, as an array of shape (1, 1, rows, cols).
func FromDelayed(g *Graph, key string, shape [2]int, dt Dtype) (*Array, error) {
	if !g.Has(key) {
		return nil, fmt.Errorf("%w: task %q", ErrNotFound, key)
	}
	if shape[0] <= 0 || shape[1] <= 0 {
		return nil, fmt.Errorf("invalid block shape %v", shape)
	}
	s := [4]int{1, 1, shape[0], shape[1]}
	return &Array{
		name:   key,
		graph:  g,
		shape:  s,
		chunks: s,
		dtype:  dt,
		grid:   []chunk{{key: key, shape: s}},
	}, nil
}

// Concatenate joins arrays along axis. All other dimensions must match and
// all arrays must share one graph and element type.
func Concatenate(axis int, arrs ...*Array) (*Array, error) {
	if len(arrs) == 0 {
		return nil, fmt.Errorf("need at least one array to concatenate")
	}
	if axis < 0 || axis > 3 {
		return nil, fmt.Errorf("axis %d out of bounds for 4-D array", axis)
	}

	first := arrs[0]
	out := &Array{
		name:   first.name,
		graph:  first.graph,
		shape:  first.shape,
		chunks: first.chunks,
		dtype:  first.dtype,
	}
	out.shape[axis] = 0

	for i, a := range arrs {
		if a.graph != first.graph {
			return nil, fmt.Errorf("array %d belongs to a different graph", i)
		}
		if a.dtype != first.dtype {
			return nil, fmt.Errorf("array %d has dtype %s, want %s", i, a.dtype, first.dtype)
		}
		for d := 0; d < 4; d++ {
			if d != axis && a.shape[d] != first.shape[d] {
				return nil, fmt.Errorf("array %d has shape %v, incompatible with %v along axis %d",
					i, a.shape, first.shape, d)
			}
		}

		for _, c := range a.grid {
			c.offset[axis] += out.shape[axis]
			out.grid = append(out.grid, c)
		}
		out.shape[axis] += a.shape[axis]
	}
	out.sortGrid()
	return out, nil
}

// ClampChunks limits a requested chunk geometry to an array shape. A chunk
// is never larger than its axis, and a non-positive request means the whole
// axis.
func ClampChunks(requested, shape [4]int) [4]int {
	var c [4]int
	for d := range c {
		c[d] = requested[d]
		if c[d] <= 0 || c[d] > shape[d] {
			c[d] = shape[d]
		}
	}
	return c
}

// Rechunk re-partitions the array into a regular grid of the given chunk
// geometry, clamped to the array shape. Target chunks that coincide with an
// existing chunk reuse its task; every other target chunk becomes a new task
// that assembles itself from the chunks it overlaps.
func (a *Array) Rechunk(chunks [4]int) (*Array, error) {
	c := ClampChunks(chunks, a.shape)

	existing := make(map[[8]int]string, len(a.grid))
	for _, ch := range a.grid {
		existing[geometryKey(ch.offset, ch.shape)] = ch.key
	}

	out := &Array{
		name:   a.name,
		graph:  a.graph,
		shape:  a.shape,
		chunks: c,
		dtype:  a.dtype,
	}
	token := a.graph.Token("rechunk-" + a.name)

	var n [4]int
	for d := range n {
		n[d] = (a.shape[d] + c[d] - 1) / c[d]
	}
	for i0 := 0; i0 < n[0]; i0++ {
		for i1 := 0; i1 < n[1]; i1++ {
			for i2 := 0; i2 < n[2]; i2++ {
				for i3 := 0; i3 < n[3]; i3++ {
					idx := [4]int{i0, i1, i2, i3}
					var ch chunk
					for d := range idx {
						ch.offset[d] = idx[d] * c[d]
						ch.shape[d] = minInt(c[d], a.shape[d]-ch.offset[d])
					}

					if key, ok := existing[geometryKey(ch.offset, ch.shape)]; ok {
						ch.key = key
					} else {
						ch.key = fmt.Sprintf("%s/%d.%d.%d.%d", token, i0, i1, i2, i3)
						if err := a.graph.Add(a.assembleTask(ch)); err != nil {
							return nil, err
						}
					}
					out.grid = append(out.grid, ch)
				}
			}
		}
	}
	return out, nil
}

// assembleTask builds the task that fills target from the chunks of a it
// overlaps.
func (a *Array) assembleTask(target chunk) *Task {
	var (
		deps  []string
		projs []chunkProjection
	)
	for i, src := range a.grid {
		p, ok := project(i, src, target.offset, target.stop())
		if !ok {
			continue
		}
		deps = append(deps, src.key)
		projs = append(projs, p)
	}

	grid, cplx := a.grid, a.dtype.IsComplex()
	return &Task{
		Key:  target.key,
		Deps: deps,
		Fn: func(ctx context.Context, vals []interface{}) (interface{}, error) {
			out := &Raster{Shape: target.shape[:], Data: make([]float64, volume(target.shape))}
			if cplx {
				out.Imag = make([]float64, len(out.Data))
			}
			for i, p := range projs {
				src := grid[p.ChunkIX]
				re, im, err := chunkData(vals[i], src, cplx)
				if err != nil {
					return nil, err
				}
				p.copyInto(out.Data, target.shape, re, src.shape)
				if cplx {
					p.copyInto(out.Imag, target.shape, im, src.shape)
				}
			}
			return out, nil
		},
	}
}

// Shape is the array's extent along (time, frequency, y, x).
func (a *Array) Shape() [4]int { return a.shape }

// Chunks is the nominal chunk geometry. After Rechunk every chunk has this
// shape except at the trailing edge of an axis.
func (a *Array) Chunks() [4]int { return a.chunks }

func (a *Array) Dtype() Dtype { return a.dtype }

// Graph is the task graph the array's chunks live in.
func (a *Array) Graph() *Graph { return a.graph }

// NumChunks is the number of chunks along each axis.
func (a *Array) NumChunks() (n [4]int) {
	for d, offs := range a.boundaries() {
		n[d] = len(offs)
	}
	return n
}

// ChunkKeys lists the task keys of every chunk in row-major chunk order.
func (a *Array) ChunkKeys() []string {
	keys := make([]string, len(a.grid))
	for i, c := range a.grid {
		keys[i] = c.key
	}
	return keys
}

// ChunkKey returns the task key of the chunk at a chunk index.
func (a *Array) ChunkKey(idx [4]int) (string, error) {
	c, err := a.chunkAt(idx)
	if err != nil {
		return "", err
	}
	return c.key, nil
}

// ReadChunk executes the chunk at idx and returns its data in row-major
// order along with its shape. Complex arrays are read with
// ReadChunkComplex.
func (a *Array) ReadChunk(ctx context.Context, exec Executor, idx [4]int) ([]float64, [4]int, error) {
	if err := a.real(); err != nil {
		return nil, [4]int{}, err
	}
	re, _, shape, err := a.readChunk(ctx, exec, idx)
	return re, shape, err
}

// ReadChunkComplex is ReadChunk for any array. Real arrays have zero
// imaginary parts.
func (a *Array) ReadChunkComplex(ctx context.Context, exec Executor, idx [4]int) ([]complex128, [4]int, error) {
	re, im, shape, err := a.readChunk(ctx, exec, idx)
	if err != nil {
		return nil, shape, err
	}
	return (&Raster{Data: re, Imag: im}).Complex(), shape, nil
}

func (a *Array) readChunk(ctx context.Context, exec Executor, idx [4]int) (re, im []float64, shape [4]int, err error) {
	c, err := a.chunkAt(idx)
	if err != nil {
		return nil, nil, shape, err
	}
	res, err := exec.Execute(ctx, a.graph, c.key)
	if err != nil {
		return nil, nil, shape, err
	}
	re, im, err = chunkData(res[c.key], c, a.dtype.IsComplex())
	if err != nil {
		return nil, nil, shape, err
	}
	return re, im, c.shape, nil
}

// ReadRegion executes the chunks overlapping [start, stop) and returns the
// region in row-major order. Complex arrays are read with
// ReadRegionComplex.
func (a *Array) ReadRegion(ctx context.Context, exec Executor, start, stop [4]int) ([]float64, error) {
	if err := a.real(); err != nil {
		return nil, err
	}
	re, _, err := a.readRegion(ctx, exec, start, stop)
	return re, err
}

// ReadRegionComplex is ReadRegion for any array. Real arrays have zero
// imaginary parts.
func (a *Array) ReadRegionComplex(ctx context.Context, exec Executor, start, stop [4]int) ([]complex128, error) {
	re, im, err := a.readRegion(ctx, exec, start, stop)
	if err != nil {
		return nil, err
	}
	return (&Raster{Data: re, Imag: im}).Complex(), nil
}

func (a *Array) readRegion(ctx context.Context, exec Executor, start, stop [4]int) (re, im []float64, err error) {
	var shape [4]int
	for d := range shape {
		if start[d] < 0 || stop[d] > a.shape[d] || start[d] >= stop[d] {
			return nil, nil, fmt.Errorf("region %v:%v out of bounds for shape %v", start, stop, a.shape)
		}
		shape[d] = stop[d] - start[d]
	}

	var (
		projs []chunkProjection
		keys  []string
		seen  = map[string]bool{}
	)
	for i, c := range a.grid {
		p, ok := project(i, c, start, stop)
		if !ok {
			continue
		}
		projs = append(projs, p)
		if !seen[c.key] {
			seen[c.key] = true
			keys = append(keys, c.key)
		}
	}

	res, err := exec.Execute(ctx, a.graph, keys...)
	if err != nil {
		return nil, nil, err
	}

	cplx := a.dtype.IsComplex()
	re = make([]float64, volume(shape))
	if cplx {
		im = make([]float64, len(re))
	}
	for _, p := range projs {
		c := a.grid[p.ChunkIX]
		cre, cim, err := chunkData(res[c.key], c, cplx)
		if err != nil {
			return nil, nil, err
		}
		p.copyInto(re, shape, cre, c.shape)
		if cplx {
			p.copyInto(im, shape, cim, c.shape)
		}
	}
	return re, im, nil
}

// ReadAll executes every chunk and returns the whole array in row-major
// order.
func (a *Array) ReadAll(ctx context.Context, exec Executor) ([]float64, error) {
	return a.ReadRegion(ctx, exec, [4]int{}, a.shape)
}

// ReadAllComplex is ReadAll for any array.
func (a *Array) ReadAllComplex(ctx context.Context, exec Executor) ([]complex128, error) {
	return a.ReadRegionComplex(ctx, exec, [4]int{}, a.shape)
}

func (a *Array) real() error {
	if a.dtype.IsComplex() {
		return fmt.Errorf("%w: %s holds complex %s values", ErrUnsupportedType, a.name, a.dtype)
	}
	return nil
}

// Meta describes the array.
func (a *Array) Meta() ArrayMeta {
	m := ArrayMeta{
		Shape:  append([]int(nil), a.shape[:]...),
		Chunks: append([]int(nil), a.chunks[:]...),
		Dtype:  a.dtype,
		Order:  "C",
	}
	if a.dtype.BasicType == BTFloatingPoint || a.dtype.BasicType == BTComplex {
		m.FillValue = FillValueNaN
	}
	return m
}

func (a *Array) Info() string {
	return fmt.Sprintf("<gcov.Array shape=%v chunks=%v dtype=%s tasks=%d>", a.shape, a.chunks, a.dtype, len(a.grid))
}

// boundaries returns the sorted distinct chunk offsets along each axis.
func (a *Array) boundaries() (b [4][]int) {
	for d := range b {
		seen := map[int]bool{}
		for _, c := range a.grid {
			if !seen[c.offset[d]] {
				seen[c.offset[d]] = true
				b[d] = append(b[d], c.offset[d])
			}
		}
		sort.Ints(b[d])
	}
	return b
}

func (a *Array) chunkAt(idx [4]int) (chunk, error) {
	b := a.boundaries()
	var offset [4]int
	for d := range idx {
		if idx[d] < 0 || idx[d] >= len(b[d]) {
			return chunk{}, fmt.Errorf("chunk index %v out of bounds for %d chunks", idx, len(a.grid))
		}
		offset[d] = b[d][idx[d]]
	}
	for _, c := range a.grid {
		if c.offset == offset {
			return c, nil
		}
	}
	return chunk{}, fmt.Errorf("%w: chunk %v", ErrNotFound, idx)
}

func (a *Array) sortGrid() {
	sort.SliceStable(a.grid, func(i, j int) bool {
		oi, oj := a.grid[i].offset, a.grid[j].offset
		for d := 0; d < 4; d++ {
			if oi[d] != oj[d] {
				return oi[d] < oj[d]
			}
		}
		return false
	})
}

func geometryKey(offset, shape [4]int) [8]int {
	return [8]int{offset[0], offset[1], offset[2], offset[3], shape[0], shape[1], shape[2], shape[3]}
}

// chunkData checks that v is a Raster holding exactly c's elements, with
// imaginary parts when cplx is set.
func chunkData(v interface{}, c chunk, cplx bool) (re, im []float64, err error) {
	r, ok := v.(*Raster)
	if !ok {
		return nil, nil, fmt.Errorf("task %q produced %T, want *Raster", c.key, v)
	}
	n := volume(c.shape)
	if len(r.Data) != n {
		return nil, nil, fmt.Errorf("%w: task %q produced %d values for chunk %v",
			ErrShapeMismatch, c.key, len(r.Data), c.shape)
	}
	if cplx && len(r.Imag) != n {
		return nil, nil, fmt.Errorf("%w: task %q produced %d imaginary parts for chunk %v",
			ErrShapeMismatch, c.key, len(r.Imag), c.shape)
	}
	return r.Data, r.Imag, nil
}
