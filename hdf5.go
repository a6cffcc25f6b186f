package gcov

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/scigolib/hdf5"
)

// HDF5Store opens products from the local filesystem with the pure Go HDF5
// reader. Names ending in a compression suffix (see compressionFormat) are
// decompressed to a temporary file first.
type HDF5Store struct {
	// TempDir holds decompressed copies of compressed products. Empty means
	// os.TempDir().
	TempDir string
}

var _ Store = (*HDF5Store)(nil)

func NewHDF5Store() *HDF5Store {
	return &HDF5Store{}
}

func (s *HDF5Store) Type() string { return HDF5StoreType }

func (s *HDF5Store) Open(name string) (File, error) {
	path, cleanup, err := s.localCopy(name)
	if err != nil {
		return nil, err
	}

	f, err := hdf5.Open(path)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	h := &hdf5File{
		name:    name,
		path:    path,
		file:    f,
		cleanup: cleanup,
		objects: map[string]hdf5.Object{},
	}
	f.Walk(func(p string, obj hdf5.Object) {
		h.objects[NewPath(p).String()] = obj
	})
	return h, nil
}

// hdf5File reads through two decoders. scigolib handles the layout walk,
// floats, 32 and 64 bit integers, strings and compounds. The netcdf reader
// fills in the integer widths and signedness scigolib cannot convert; it is
// opened on first use.
type hdf5File struct {
	name    string
	path    string
	file    *hdf5.File
	cleanup func()
	objects map[string]hdf5.Object

	nc     api.Group
	groups map[string]api.Group
}

func (h *hdf5File) Name() string { return h.name }

func (h *hdf5File) Dataset(path string) (Dataset, error) {
	if h.file == nil {
		return nil, fmt.Errorf("%s: file closed", h.name)
	}
	obj, ok := h.objects[NewPath(path).String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, h.name, path)
	}
	ds, ok := obj.(*hdf5.Dataset)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s is not a dataset", ErrNotFound, h.name, path)
	}
	return &hdf5Dataset{file: h, path: NewPath(path), ds: ds}, nil
}

func (h *hdf5File) Members(group string) ([]Member, error) {
	if h.file == nil {
		return nil, fmt.Errorf("%s: file closed", h.name)
	}
	obj, ok := h.objects[NewPath(group).String()]
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, h.name, group)
	}
	g, ok := obj.(*hdf5.Group)
	if !ok {
		return nil, fmt.Errorf("%w: %s:%s is not a group", ErrNotFound, h.name, group)
	}

	children := g.Children()
	members := make([]Member, 0, len(children))
	for _, ch := range children {
		p := NewPath(ch.Name())
		if len(p) == 0 {
			continue
		}
		_, isGroup := ch.(*hdf5.Group)
		members = append(members, Member{Name: p[len(p)-1], Group: isGroup})
	}
	return members, nil
}

// variable returns the netcdf reader's view of the dataset at p.
func (h *hdf5File) variable(p Path) (api.VarGetter, error) {
	if h.file == nil {
		return nil, fmt.Errorf("%s: file closed", h.name)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: %s: empty dataset path", ErrNotFound, h.name)
	}
	if h.nc == nil {
		nc, err := netcdf.Open(h.path)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", h.name, err)
		}
		h.nc = nc
		h.groups = map[string]api.Group{"/": nc}
	}

	dir := p[:len(p)-1].String()
	g, ok := h.groups[dir]
	if !ok {
		var err error
		if g, err = h.nc.GetGroup(dir); err != nil {
			return nil, fmt.Errorf("%w: %s:%s: %v", ErrNotFound, h.name, dir, err)
		}
		h.groups[dir] = g
	}
	vg, err := g.GetVarGetter(p[len(p)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s:%s: %v", ErrNotFound, h.name, p, err)
	}
	return vg, nil
}

func (h *hdf5File) Close() error {
	if h.file == nil {
		return nil
	}
	for _, g := range h.groups {
		g.Close()
	}
	h.nc, h.groups = nil, nil
	err := h.file.Close()
	h.file = nil
	h.cleanup()
	return err
}

type hdf5Dataset struct {
	file *hdf5File
	path Path
	ds   *hdf5.Dataset
	info *DatasetInfo
}

// Info reports the dataset's dtype and shape. The summary scigolib gives
// names the class and width only, so integer signedness comes from the
// netcdf reader; when that cannot open the file the dtype keeps the class
// default (see dtypeFromClass).
func (d *hdf5Dataset) Info() (DatasetInfo, error) {
	if d.info != nil {
		return *d.info, nil
	}
	s, err := d.ds.Info()
	if err != nil {
		return DatasetInfo{}, err
	}
	info, err := parseHDF5Info(s)
	if err != nil {
		return DatasetInfo{}, err
	}
	if info.Dtype.BasicType == BTInteger || info.Dtype.BasicType == BTUnsigned {
		if vg, err := d.file.variable(d.path); err == nil {
			if dt, ok := dtypeFromGoType(vg.GoType()); ok && dt.ByteSize == info.Dtype.ByteSize {
				info.Dtype = dt
			}
		}
	}
	d.info = &info
	return info, nil
}

// direct reports whether scigolib converts dt to float64 itself.
func direct(dt Dtype) bool {
	switch dt.BasicType {
	case BTFloatingPoint:
		return dt.ByteSize == 4 || dt.ByteSize == 8
	case BTInteger:
		return dt.ByteSize == 4 || dt.ByteSize == 8
	}
	return false
}

func (d *hdf5Dataset) Read() ([]float64, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	if !info.Dtype.IsNumeric() {
		return nil, fmt.Errorf("%w: %s holds %s values", ErrUnsupportedType, d.path, info.Dtype)
	}
	if direct(info.Dtype) {
		v, err := d.ds.Read()
		if err != nil {
			return nil, d.fail("reading", err)
		}
		return v, nil
	}

	vg, err := d.file.variable(d.path)
	if err != nil {
		return nil, err
	}
	v, err := vg.Values()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.path, err)
	}
	return flatten(v)
}

func (d *hdf5Dataset) ReadSlice(start, count []int) ([]float64, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	if !info.Dtype.IsNumeric() {
		return nil, fmt.Errorf("%w: %s holds %s values", ErrUnsupportedType, d.path, info.Dtype)
	}
	if len(start) != len(info.Shape) || len(count) != len(info.Shape) {
		return nil, fmt.Errorf("invalid selection start=%v count=%v for shape %v", start, count, info.Shape)
	}
	st := make([]uint64, len(start))
	ct := make([]uint64, len(count))
	for i := range start {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > info.Shape[i] {
			return nil, fmt.Errorf("invalid selection start=%v count=%v for shape %v", start, count, info.Shape)
		}
		st[i], ct[i] = uint64(start[i]), uint64(count[i])
	}

	if direct(info.Dtype) {
		v, err := d.ds.ReadSlice(st, ct)
		if err != nil {
			return nil, d.fail("reading", err)
		}
		return toFloat64s(v)
	}

	// The netcdf reader slices along the first axis only; the rest is
	// cropped here.
	vg, err := d.file.variable(d.path)
	if err != nil {
		return nil, err
	}
	if len(start) == 0 {
		return d.Read()
	}
	v, err := vg.GetSlice(int64(start[0]), int64(start[0]+count[0]))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.path, err)
	}
	rows, err := flatten(v)
	if err != nil {
		return nil, err
	}
	shape := append([]int{count[0]}, info.Shape[1:]...)
	n := 1
	for _, x := range shape {
		n *= x
	}
	if len(rows) != n {
		return nil, fmt.Errorf("%w: %s: slice returned %d values for %v", ErrShapeMismatch, d.path, len(rows), shape)
	}
	from := append([]int{0}, start[1:]...)
	return extractHyperslab(rows, shape, from, count), nil
}

// ReadComplex reads a compound dataset of real and imaginary members.
// Real-valued datasets are promoted.
func (d *hdf5Dataset) ReadComplex() ([]complex128, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	if !info.Dtype.IsComplex() {
		if !info.Dtype.IsNumeric() {
			return nil, fmt.Errorf("%w: %s holds %s values", ErrUnsupportedType, d.path, info.Dtype)
		}
		v, err := d.Read()
		if err != nil {
			return nil, err
		}
		return promote(v), nil
	}

	recs, err := d.ds.ReadCompound()
	if err != nil {
		return nil, d.fail("reading", err)
	}
	out := make([]complex128, len(recs))
	for i, rec := range recs {
		c, err := complexFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%s element %d: %w", d.path, i, err)
		}
		out[i] = c
	}
	return out, nil
}

func (d *hdf5Dataset) ReadStrings() ([]string, error) {
	info, err := d.Info()
	if err != nil {
		return nil, err
	}
	if !info.Dtype.IsText() {
		return nil, fmt.Errorf("%w: %s holds %s values", ErrUnsupportedType, d.path, info.Dtype)
	}
	s, err := d.ds.ReadStrings()
	if err != nil {
		return nil, d.fail("reading", err)
	}
	return s, nil
}

// conversionErrors are the messages scigolib uses when it cannot convert
// an element type.
var conversionErrors = []string{
	"unsupported datatype",
	"not a compound datatype",
	"datatype is not string",
}

// fail annotates a scigolib error, marking conversion failures with
// ErrUnsupportedType.
func (d *hdf5Dataset) fail(op string, err error) error {
	msg := err.Error()
	for _, c := range conversionErrors {
		if strings.Contains(msg, c) {
			return fmt.Errorf("%w: %s %s: %w", ErrUnsupportedType, op, d.path, err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, d.path, err)
}

// complexMembers are the member name pairs complex compounds use.
var complexMembers = [][2]string{{"r", "i"}, {"real", "imag"}, {"re", "im"}}

// complexFromRecord reads one compound element as a complex number.
func complexFromRecord(rec map[string]interface{}) (complex128, error) {
	for _, names := range complexMembers {
		re, ok := rec[names[0]]
		if !ok {
			continue
		}
		im, ok := rec[names[1]]
		if !ok {
			continue
		}
		r, err := toFloat64(re)
		if err != nil {
			return 0, err
		}
		i, err := toFloat64(im)
		if err != nil {
			return 0, err
		}
		return complex(r, i), nil
	}
	return 0, fmt.Errorf("%w: compound members %v are not a complex pair", ErrUnsupportedType, memberNames(rec))
}

func memberNames(rec map[string]interface{}) []string {
	names := make([]string, 0, len(rec))
	for k := range rec {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	default:
		return 0, fmt.Errorf("%w: compound member of type %T", ErrUnsupportedType, v)
	}
}

// flatten converts the nested slices the netcdf reader returns, or a bare
// scalar, to row-major float64s.
func flatten(v interface{}) ([]float64, error) {
	var out []float64
	var walk func(rv reflect.Value) error
	walk = func(rv reflect.Value) error {
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < rv.Len(); i++ {
				if err := walk(rv.Index(i)); err != nil {
					return err
				}
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			out = append(out, float64(rv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			out = append(out, float64(rv.Uint()))
		case reflect.Float32, reflect.Float64:
			out = append(out, rv.Float())
		default:
			return fmt.Errorf("%w: element of type %s", ErrUnsupportedType, rv.Type())
		}
		return nil
	}
	if v == nil {
		return nil, fmt.Errorf("%w: no values", ErrUnsupportedType)
	}
	if err := walk(reflect.ValueOf(v)); err != nil {
		return nil, err
	}
	return out, nil
}

func toFloat64s(v interface{}) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return x, nil
	case []float32:
		out := make([]float64, len(x))
		for i, f := range x {
			out[i] = float64(f)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, nil
	case []int64:
		out := make([]float64, len(x))
		for i, n := range x {
			out[i] = float64(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: hyperslab returned %T", ErrUnsupportedType, v)
	}
}

// hdf5InfoPattern matches the dataset summary the HDF5 reader produces, for
// example "Dataset: float (size=4 bytes), 2D array [100 x 100], contiguous".
var hdf5InfoPattern = regexp.MustCompile(`^Dataset: (\w+) \(size=(\d+) bytes\), (scalar|null|1D array \[(\d+)\]|2D array \[(\d+) x (\d+)\]|\d+D array \[([\d ]*)\])`)

func parseHDF5Info(s string) (DatasetInfo, error) {
	m := hdf5InfoPattern.FindStringSubmatch(s)
	if m == nil {
		return DatasetInfo{}, fmt.Errorf("unrecognized dataset info %q", s)
	}

	size, err := strconv.Atoi(m[2])
	if err != nil {
		return DatasetInfo{}, err
	}
	dt, err := dtypeFromClass(m[1], size)
	if err != nil {
		return DatasetInfo{}, err
	}

	info := DatasetInfo{Dtype: dt}
	var dims []string
	switch {
	case m[3] == "scalar":
	case m[3] == "null":
		info.Shape = []int{0}
	case m[4] != "":
		dims = []string{m[4]}
	case m[5] != "":
		dims = []string{m[5], m[6]}
	default:
		dims = strings.Fields(m[7])
	}
	for _, d := range dims {
		n, err := strconv.Atoi(d)
		if err != nil {
			return DatasetInfo{}, err
		}
		info.Shape = append(info.Shape, n)
	}
	return info, nil
}
