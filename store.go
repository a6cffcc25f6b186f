package gcov

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	MemoryStoreType = "MemoryStore"
	HDF5StoreType   = "HDF5Store"
)

// ErrNotFound is returned when a file, group or dataset does not exist.
var ErrNotFound = errors.New("not found")

// Store opens product files. Implementations must be safe for concurrent use:
// deferred blocks executing in parallel each call Open independently.
type Store interface {
	Open(name string) (File, error)
	Type() string
}

// File is an open product. Paths are absolute HDF5 paths such as
// "/science/LSAR/identification".
type File interface {
	Name() string
	// Dataset looks up a dataset by path. Missing paths return an error
	// wrapping ErrNotFound.
	Dataset(path string) (Dataset, error)
	// Members lists the direct children of a group.
	Members(group string) ([]Member, error)
	Close() error
}

// Member is one child of a group.
type Member struct {
	Name  string
	Group bool
}

// Dataset reads values out of an open file. Real values are returned as
// float64 regardless of the stored element type. Read and ReadSlice fail
// with ErrUnsupportedType on complex datasets; ReadComplex reads those, and
// promotes real datasets.
type Dataset interface {
	Info() (DatasetInfo, error)
	Read() ([]float64, error)
	ReadSlice(start, count []int) ([]float64, error)
	ReadComplex() ([]complex128, error)
	ReadStrings() ([]string, error)
}

// DatasetInfo describes a dataset without reading it. A nil Shape is a
// scalar.
type DatasetInfo struct {
	Dtype Dtype
	Shape []int
}

// Scalar reports whether the dataset holds a single value.
func (i DatasetInfo) Scalar() bool { return len(i.Shape) == 0 }

// Size is the number of elements.
func (i DatasetInfo) Size() int {
	n := 1
	for _, d := range i.Shape {
		n *= d
	}
	return n
}

// MemoryStore keeps products in memory, keyed by file name.
type MemoryStore struct {
	lk     sync.Mutex
	files  map[string]*MemoryFile
	opened int
	closed int
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: map[string]*MemoryFile{},
	}
}

func (s *MemoryStore) Type() string { return MemoryStoreType }

// Put adds or replaces a file.
func (s *MemoryStore) Put(name string, f *MemoryFile) {
	s.lk.Lock()
	defer s.lk.Unlock()
	s.files[name] = f
}

func (s *MemoryStore) Open(name string) (File, error) {
	s.lk.Lock()
	defer s.lk.Unlock()
	f, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	s.opened++
	return &memoryHandle{store: s, name: name, file: f}, nil
}

// Handles returns how many handles have been opened and closed so far.
func (s *MemoryStore) Handles() (opened, closed int) {
	s.lk.Lock()
	defer s.lk.Unlock()
	return s.opened, s.closed
}

// MemoryFile is an in-memory product: a flat set of datasets keyed by
// path. Groups exist implicitly as path prefixes.
type MemoryFile struct {
	datasets map[string]*MemoryDataset
}

func NewMemoryFile() *MemoryFile {
	return &MemoryFile{datasets: map[string]*MemoryDataset{}}
}

// Set stores d at path and returns f for chaining.
func (f *MemoryFile) Set(path string, d *MemoryDataset) *MemoryFile {
	f.datasets[NewPath(path).String()] = d
	return f
}

// Delete removes the dataset at path.
func (f *MemoryFile) Delete(path string) {
	delete(f.datasets, NewPath(path).String())
}

// MemoryDataset holds row-major values. Real datasets use Values, complex
// datasets Complex and text datasets Strings.
type MemoryDataset struct {
	Dtype   Dtype
	Shape   []int
	Values  []float64
	Complex []complex128
	Strings []string
}

// NumericDataset builds a real-valued dataset of the given typestr.
func NumericDataset(typestr string, shape []int, values []float64) (*MemoryDataset, error) {
	dt, err := ParseDtype(typestr)
	if err != nil {
		return nil, err
	}
	if !dt.IsNumeric() {
		return nil, fmt.Errorf("%w: %s is not a real number type", ErrUnsupportedType, dt)
	}
	return &MemoryDataset{Dtype: dt, Shape: shape, Values: values}, nil
}

// MustNumericDataset is NumericDataset for fixtures; it panics on a bad
// typestr.
func MustNumericDataset(typestr string, shape []int, values []float64) *MemoryDataset {
	d, err := NumericDataset(typestr, shape, values)
	if err != nil {
		panic(err)
	}
	return d
}

// ComplexDataset builds a complex64 ("<c8") dataset.
func ComplexDataset(shape []int, values []complex128) *MemoryDataset {
	return &MemoryDataset{
		Dtype:   Dtype{ByteOrder: BOLittleEndian, BasicType: BTComplex, ByteSize: 8},
		Shape:   shape,
		Complex: values,
	}
}

// TextDataset builds a byte-string dataset. A nil shape is a scalar.
func TextDataset(shape []int, values ...string) *MemoryDataset {
	size := 1
	for _, v := range values {
		if len(v) > size {
			size = len(v)
		}
	}
	return &MemoryDataset{
		Dtype:   Dtype{ByteOrder: BONotRelevant, BasicType: BTString, ByteSize: size},
		Shape:   shape,
		Strings: values,
	}
}

type memoryHandle struct {
	store  *MemoryStore
	name   string
	file   *MemoryFile
	closed bool
}

func (h *memoryHandle) Name() string { return h.name }

func (h *memoryHandle) Dataset(path string) (Dataset, error) {
	if h.closed {
		return nil, fmt.Errorf("%s: file closed", h.name)
	}
	d, ok := h.file.datasets[NewPath(path).String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, h.name, path)
	}
	return d, nil
}

func (h *memoryHandle) Members(group string) ([]Member, error) {
	if h.closed {
		return nil, fmt.Errorf("%s: file closed", h.name)
	}
	prefix := NewPath(group)
	seen := map[string]bool{}
	for key := range h.file.datasets {
		p := NewPath(key)
		if len(p) <= len(prefix) || !p.HasPrefix(prefix) {
			continue
		}
		name := p[len(prefix)]
		isGroup := len(p) > len(prefix)+1
		seen[name] = seen[name] || isGroup
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, h.name, group)
	}

	members := make([]Member, 0, len(seen))
	for name, isGroup := range seen {
		members = append(members, Member{Name: name, Group: isGroup})
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Name < members[j].Name })
	return members, nil
}

func (h *memoryHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	h.store.lk.Lock()
	h.store.closed++
	h.store.lk.Unlock()
	return nil
}

func (d *MemoryDataset) Info() (DatasetInfo, error) {
	return DatasetInfo{Dtype: d.Dtype, Shape: d.Shape}, nil
}

func (d *MemoryDataset) Read() ([]float64, error) {
	if !d.Dtype.IsNumeric() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupportedType, d.Dtype)
	}
	out := make([]float64, len(d.Values))
	copy(out, d.Values)
	return out, nil
}

func (d *MemoryDataset) ReadSlice(start, count []int) ([]float64, error) {
	if !d.Dtype.IsNumeric() {
		return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupportedType, d.Dtype)
	}
	if len(start) != len(d.Shape) || len(count) != len(d.Shape) {
		return nil, fmt.Errorf("selection has %d dimensions, dataset has %d", len(start), len(d.Shape))
	}
	for i := range start {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > d.Shape[i] {
			return nil, fmt.Errorf("selection out of bounds in dimension %d: start=%d + count=%d > size=%d",
				i, start[i], count[i], d.Shape[i])
		}
	}
	return extractHyperslab(d.Values, d.Shape, start, count), nil
}

func (d *MemoryDataset) ReadComplex() ([]complex128, error) {
	switch {
	case d.Dtype.IsComplex():
		out := make([]complex128, len(d.Complex))
		copy(out, d.Complex)
		return out, nil
	case d.Dtype.IsNumeric():
		return promote(d.Values), nil
	}
	return nil, fmt.Errorf("%w: %s is not numeric", ErrUnsupportedType, d.Dtype)
}

func (d *MemoryDataset) ReadStrings() ([]string, error) {
	if !d.Dtype.IsText() {
		return nil, fmt.Errorf("%w: %s is not text", ErrUnsupportedType, d.Dtype)
	}
	out := make([]string, len(d.Strings))
	copy(out, d.Strings)
	return out, nil
}

// promote widens real values to complex ones.
func promote(values []float64) []complex128 {
	out := make([]complex128, len(values))
	for i, v := range values {
		out[i] = complex(v, 0)
	}
	return out
}

// extractHyperslab copies the start/count selection out of row-major values.
func extractHyperslab[T any](values []T, shape, start, count []int) []T {
	n := 1
	for _, c := range count {
		n *= c
	}
	out := make([]T, 0, n)
	if n == 0 {
		return out
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}

	last := len(shape) - 1
	idx := make([]int, len(shape))
	for {
		off := 0
		for i := range idx {
			off += (start[i] + idx[i]) * strides[i]
		}
		out = append(out, values[off:off+count[last]]...)

		// advance every dimension but the innermost
		dim := last - 1
		for ; dim >= 0; dim-- {
			idx[dim]++
			if idx[dim] < count[dim] {
				break
			}
			idx[dim] = 0
		}
		if dim < 0 {
			return out
		}
	}
}

// Path is a normalized HDF5 object path.
type Path []string

// NewPath normalizes a POSIX-style object path: backslashes become forward
// slashes, and leading, trailing and repeated separators are dropped.
func NewPath(posix string) Path {
	posix = strings.ReplaceAll(posix, `\`, "/")
	var p Path
	for _, el := range strings.Split(posix, "/") {
		if el != "" {
			p = append(p, el)
		}
	}
	return p
}

func (p Path) String() string {
	return "/" + strings.Join(p, "/")
}

// Join returns a new path with elems appended. p is not modified.
func (p Path) Join(elems ...string) Path {
	out := make(Path, 0, len(p)+len(elems))
	out = append(out, p...)
	return append(out, NewPath(strings.Join(elems, "/"))...)
}

func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if p[i] != prefix[i] {
			return false
		}
	}
	return true
}
