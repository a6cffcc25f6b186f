package gcov

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"time"
)

// Source is the value of the "source" attribute of every loaded series.
const Source = "NISAR L2 GCOV"

// NaT is the time of a file whose name carries no acquisition time.
var NaT = time.Time{}

// IsNaT reports whether t is NaT.
func IsNaT(t time.Time) bool { return t.IsZero() }

// FormatTime renders t as RFC 3339, or "NaT".
func FormatTime(t time.Time) string {
	if IsNaT(t) {
		return "NaT"
	}
	return t.Format(time.RFC3339)
}

// Options configure a Loader. The zero value loads the default variables of
// every advertised frequency from HDF5 files in DefaultChunks.
type Options struct {
	// Variables to load. nil or "all" selects DefaultVariables.
	Variables []string
	// Frequencies to load. nil or "all" selects the product's own list.
	Frequencies []string
	// Y and X subset the grid in coordinate units. nil keeps the full axis.
	Y, X *Window
	// Chunks is the maximum chunk size along (time, frequency, y, x). A zero
	// value selects DefaultChunks.
	Chunks [4]int

	Store  Store
	Layout Layout
	Logger *slog.Logger

	// Validate opens every file at load time and fails if it does not match
	// the schema of the first one.
	Validate bool
}

// Loader assembles series with fixed options. It is safe to reuse.
type Loader struct {
	opts        Options
	store       Store
	layout      Layout
	timePattern *regexp.Regexp
	logger      *slog.Logger
}

func NewLoader(opts Options) (*Loader, error) {
	l := &Loader{
		opts:   opts,
		store:  opts.Store,
		layout: opts.Layout,
		logger: opts.Logger,
	}
	if l.store == nil {
		l.store = NewHDF5Store()
	}
	if l.layout == (Layout{}) {
		l.layout = DefaultLayout()
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.opts.Chunks == ([4]int{}) {
		l.opts.Chunks = DefaultChunks
	}

	re, err := regexp.Compile(l.layout.TimePattern)
	if err != nil {
		return nil, fmt.Errorf("compiling time pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("time pattern %q has no capture group", l.layout.TimePattern)
	}
	l.timePattern = re
	return l, nil
}

// Load assembles a series from paths with opts.
func Load(paths []string, opts Options) (*Series, error) {
	l, err := NewLoader(opts)
	if err != nil {
		return nil, err
	}
	return l.Load(paths...)
}

// Load builds the series for paths. Paths are sorted first, so the time
// axis follows file name order, and a path given twice fills two steps. No raster data is read:
// only the first file's schema and every file's identification group.
func (l *Loader) Load(paths ...string) (*Series, error) {
	files := normalizePaths(paths)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no input files", ErrSchema)
	}
	start := time.Now()

	variables := l.opts.Variables
	if wantsAll(variables) {
		variables = DefaultVariables()
	}

	s, err := DiscoverSchema(l.store, files[0], l.layout, variables, l.opts.Frequencies, l.opts.Y, l.opts.X, l.logger)
	if err != nil {
		return nil, err
	}
	if l.opts.Validate {
		if err := ValidateSeries(l.store, s, files); err != nil {
			return nil, err
		}
	}

	g := NewGraph()
	vars, err := Assemble(g, l.store, s, files, variables, l.opts.Chunks, l.logger)
	if err != nil {
		return nil, err
	}

	series := &Series{
		Time:           make([]time.Time, len(files)),
		Frequency:      s.Frequencies,
		Y:              s.Y,
		X:              s.X,
		Variables:      vars,
		Identification: make([]Identification, len(files)),
		Attrs: Attributes{
			AttrSource: Source,
			AttrCRS:    s.CRS(),
		},
		Schema: s,
		Graph:  g,
	}
	for i, f := range files {
		series.Time[i] = l.ParseTime(f)
		if IsNaT(series.Time[i]) {
			l.logger.Warn("no acquisition time in file name", "comp", "load", "file", f)
		}
		if series.Identification[i], err = readIdentificationFile(l.store, f, l.layout.IdentificationGroup); err != nil {
			return nil, fmt.Errorf("identification of %s: %w", f, err)
		}
	}

	l.logger.Info("series loaded", "comp", "load", "files", len(files), "frequencies", s.Frequencies,
		"variables", series.VariableNames(), "tasks", g.Len(), "crs", s.CRS(), "dur", time.Since(start))
	return series, nil
}

// ParseTime extracts the acquisition time from a file's base name. Names
// without a valid timestamp yield NaT.
func (l *Loader) ParseTime(path string) time.Time {
	m := l.timePattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return NaT
	}
	t, err := time.Parse(l.layout.TimeLayout, m[1])
	if err != nil {
		return NaT
	}
	return t
}

// normalizePaths cleans and sorts paths. Repeated paths are kept: each one
// is its own time step.
func normalizePaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		out = append(out, filepath.Clean(p))
	}
	sort.Strings(out)
	return out
}
