package gcov

// chunk is one addressable piece of an Array: the task computing it and the
// region of the array it covers.
type chunk struct {
	key    string
	offset [4]int
	shape  [4]int
}

func (c chunk) stop() (s [4]int) {
	for i := range s {
		s[i] = c.offset[i] + c.shape[i]
	}
	return s
}

// A mapping of items from a chunk to an output region. Used to fill a
// rechunked chunk from its source chunks and to assemble region reads.
type chunkProjection struct {
	// Index of the chunk in the array's grid.
	ChunkIX int
	// Selection of items from the chunk, per dimension.
	ChunkSelection [4]IndexRange
	// Selection of items in the target (output) region.
	OutSelection [4]IndexRange
}

// project computes the overlap of c with the region [start, stop). ok is
// false when they do not overlap.
func project(ix int, c chunk, start, stop [4]int) (p chunkProjection, ok bool) {
	cstop := c.stop()
	p.ChunkIX = ix
	for d := 0; d < 4; d++ {
		lo := maxInt(start[d], c.offset[d])
		hi := minInt(stop[d], cstop[d])
		if lo >= hi {
			return chunkProjection{}, false
		}
		p.ChunkSelection[d] = IndexRange{Start: lo - c.offset[d], Stop: hi - c.offset[d]}
		p.OutSelection[d] = IndexRange{Start: lo - start[d], Stop: hi - start[d]}
	}
	return p, true
}

// copyInto copies the projected items of src, a row-major chunk of shape
// srcShape, into dst, a row-major region of shape dstShape.
func (p chunkProjection) copyInto(dst []float64, dstShape [4]int, src []float64, srcShape [4]int) {
	cs, ds := p.ChunkSelection, p.OutSelection
	n := cs[3].Len()
	for i0 := 0; i0 < cs[0].Len(); i0++ {
		for i1 := 0; i1 < cs[1].Len(); i1++ {
			for i2 := 0; i2 < cs[2].Len(); i2++ {
				so := linearOffset(srcShape, cs[0].Start+i0, cs[1].Start+i1, cs[2].Start+i2, cs[3].Start)
				do := linearOffset(dstShape, ds[0].Start+i0, ds[1].Start+i1, ds[2].Start+i2, ds[3].Start)
				copy(dst[do:do+n], src[so:so+n])
			}
		}
	}
}

func linearOffset(shape [4]int, i0, i1, i2, i3 int) int {
	return ((i0*shape[1]+i1)*shape[2]+i2)*shape[3] + i3
}

func volume(shape [4]int) int {
	return shape[0] * shape[1] * shape[2] * shape[3]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
