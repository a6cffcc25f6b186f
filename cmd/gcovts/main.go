// Command gcovts assembles GCOV products into a lazy time series and prints
// its summary as JSON. With -compute it also reads every variable and adds
// per-variable statistics.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/cmplx"
	"os"
	"strings"
	"time"

	gcov "github.com/qri-io/gcov-go"
	cfgpkg "github.com/qri-io/gcov-go/internal/config"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Environ(), os.Stdout, os.Stderr))
}

// Stats summarizes the finite values of a variable.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

type summary struct {
	gcov.SeriesMeta
	Stats map[string]Stats `json:"stats,omitempty"`
}

func run(ctx context.Context, args, environ []string, stdout, stderr io.Writer) int {
	start := time.Now()
	fs := flag.NewFlagSet("gcovts", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		flagConfig   string
		flagVars     string
		flagFreqs    string
		flagY        string
		flagX        string
		flagChunks   string
		flagWorkers  int
		flagValidate bool
		flagCompute  bool
		flagLevel    string
	)
	fs.StringVar(&flagConfig, "config", "", "JSON config file")
	fs.StringVar(&flagVars, "vars", "", "comma-separated variables, or \"all\"")
	fs.StringVar(&flagFreqs, "freqs", "", "comma-separated frequency labels, or \"all\"")
	fs.StringVar(&flagY, "y", "", "y window start:stop in coordinate units")
	fs.StringVar(&flagX, "x", "", "x window start:stop in coordinate units")
	fs.StringVar(&flagChunks, "chunks", "", "chunk sizes t,f,y,x")
	fs.IntVar(&flagWorkers, "workers", 0, "compute workers (0 = GOMAXPROCS)")
	fs.BoolVar(&flagValidate, "validate", false, "check every file against the first one's schema")
	fs.BoolVar(&flagCompute, "compute", false, "read every variable and report statistics")
	fs.StringVar(&flagLevel, "log-level", "", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := cfgpkg.Defaults()
	if flagConfig != "" {
		base, err := cfgpkg.LoadJSON(flagConfig, nil)
		if err != nil {
			fmt.Fprintf(stderr, "reading config: %v\n", err)
			return 3
		}
		cfg = cfgpkg.Merge(cfg, base)
	}
	overEnv, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		fmt.Fprintf(stderr, "reading environment: %v\n", err)
		return 3
	}
	cfg = cfgpkg.Merge(cfg, overEnv)

	overCLI := cfgpkg.Config{
		Inputs:      fs.Args(),
		Variables:   cfgpkg.SplitList(flagVars),
		Frequencies: cfgpkg.SplitList(flagFreqs),
		Y:           flagY,
		X:           flagX,
		Workers:     flagWorkers,
		Validate:    flagValidate,
		Compute:     flagCompute,
		Logging:     cfgpkg.Logging{Level: flagLevel},
	}
	if flagChunks != "" {
		c, err := cfgpkg.ParseChunks(flagChunks)
		if err != nil {
			fmt.Fprintf(stderr, "-chunks: %v\n", err)
			return 2
		}
		overCLI.Chunks = c[:]
	}
	cfg = cfgpkg.Merge(cfg, overCLI)

	if err := cfgpkg.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 2
	}

	logger := newLogger(stderr, cfg.Logging.Level)
	opts, err := cfg.Options()
	if err != nil {
		fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		return 2
	}
	store := gcov.NewHDF5Store()
	store.TempDir = cfg.TempDir
	opts.Store = store
	opts.Logger = logger

	series, err := gcov.Load(cfg.Inputs, opts)
	if err != nil {
		logger.Error("load failed", "comp", "cli", "err", err)
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	out := summary{SeriesMeta: series.Meta()}
	if cfg.Compute {
		if out.Stats, err = compute(ctx, series, gcov.Pool{Workers: cfg.Workers}); err != nil {
			logger.Error("compute failed", "comp", "cli", "err", err)
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(stderr, "writing summary: %v\n", err)
		return 1
	}
	logger.Debug("done", "comp", "cli", "dur", time.Since(start))
	return 0
}

func compute(ctx context.Context, s *gcov.Series, exec gcov.Executor) (map[string]Stats, error) {
	stats := make(map[string]Stats, len(s.Variables))
	for _, v := range s.Variables {
		data, err := readReal(ctx, v.Array, exec)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", v.Name, err)
		}
		stats[v.Name] = summarize(data)
	}
	return stats, nil
}

// readReal reads a variable as real numbers. Complex covariance terms are
// reduced to their magnitudes.
func readReal(ctx context.Context, a *gcov.Array, exec gcov.Executor) ([]float64, error) {
	if !a.Dtype().IsComplex() {
		return a.ReadAll(ctx, exec)
	}
	c, err := a.ReadAllComplex(ctx, exec)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(c))
	for i, z := range c {
		out[i] = cmplx.Abs(z)
	}
	return out, nil
}

// summarize skips NaN and infinite values. All-NaN data yields a zero Stats.
func summarize(data []float64) Stats {
	var (
		st  Stats
		sum float64
	)
	for _, x := range data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if st.Count == 0 || x < st.Min {
			st.Min = x
		}
		if st.Count == 0 || x > st.Max {
			st.Max = x
		}
		sum += x
		st.Count++
	}
	if st.Count > 0 {
		st.Mean = sum / float64(st.Count)
	}
	return st
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}
