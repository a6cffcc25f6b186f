// Package config holds the gcovts command configuration: a JSON file,
// environment overrides and flag overrides merged in that order.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	gcov "github.com/qri-io/gcov-go"
)

// Config is read once at startup. JSON keys are snake_case; unknown keys
// fail decoding.
type Config struct {
	Inputs      []string `json:"inputs"`
	Variables   []string `json:"variables"`
	Frequencies []string `json:"frequencies"`
	// Y and X are "start:stop" windows; either side may be empty.
	Y      string `json:"y"`
	X      string `json:"x"`
	Chunks []int  `json:"chunks"`

	Workers  int     `json:"workers"`
	Validate bool    `json:"validate"`
	Compute  bool    `json:"compute"`
	TempDir  string  `json:"temp_dir"`
	Logging  Logging `json:"logging"`
}

type Logging struct {
	Level string `json:"level"`
}

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		Variables:   []string{gcov.AllValues},
		Frequencies: []string{gcov.AllValues},
		Chunks:      append([]int(nil), gcov.DefaultChunks[:]...),
		Logging:     Logging{Level: "info"},
	}
}

// LoadJSON parses a Config from raw JSON, or from the file at path when raw
// is empty.
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge overlays over onto base. Empty values in over do not override.
// Booleans can only be switched on.
func Merge(base, over Config) Config {
	out := base
	if len(over.Inputs) > 0 {
		out.Inputs = cloneStrings(over.Inputs)
	}
	if len(over.Variables) > 0 {
		out.Variables = cloneStrings(over.Variables)
	}
	if len(over.Frequencies) > 0 {
		out.Frequencies = cloneStrings(over.Frequencies)
	}
	if strings.TrimSpace(over.Y) != "" {
		out.Y = strings.TrimSpace(over.Y)
	}
	if strings.TrimSpace(over.X) != "" {
		out.X = strings.TrimSpace(over.X)
	}
	if len(over.Chunks) > 0 {
		out.Chunks = append([]int(nil), over.Chunks...)
	}
	if over.Workers != 0 {
		out.Workers = over.Workers
	}
	out.Validate = out.Validate || over.Validate
	out.Compute = out.Compute || over.Compute
	if over.TempDir != "" {
		out.TempDir = over.TempDir
	}
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	return out
}

// EnvPrefix prefixes every environment key EnvOverlay reads.
const EnvPrefix = "GCOVTS_"

// EnvOverlay builds an override Config from environment entries of the form
// KEY=value. Recognized keys: VARS, FREQS, Y, X, CHUNKS, WORKERS, TEMP_DIR
// and LOG_LEVEL. Other keys are ignored.
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, EnvPrefix) {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len(EnvPrefix) {
			continue
		}
		key, val := strings.TrimPrefix(kv[:eq], EnvPrefix), kv[eq+1:]
		switch key {
		case "VARS":
			over.Variables = SplitList(val)
		case "FREQS":
			over.Frequencies = SplitList(val)
		case "Y":
			over.Y = val
		case "X":
			over.X = val
		case "CHUNKS":
			c, err := ParseChunks(val)
			if err != nil {
				return over, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			over.Chunks = c[:]
		case "WORKERS":
			n, err := strconv.Atoi(strings.TrimSpace(val))
			if err != nil {
				return over, fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			over.Workers = n
		case "TEMP_DIR":
			over.TempDir = val
		case "LOG_LEVEL":
			over.Logging.Level = val
		}
	}
	return over, nil
}

// Validate checks that cfg can drive a load.
func Validate(cfg Config) error {
	if len(cfg.Inputs) == 0 {
		return errors.New("no input files")
	}
	if len(cfg.Chunks) != 0 && len(cfg.Chunks) != 4 {
		return fmt.Errorf("chunks needs 4 sizes, got %d", len(cfg.Chunks))
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if _, err := ParseWindow(cfg.Y); err != nil {
		return fmt.Errorf("y: %w", err)
	}
	if _, err := ParseWindow(cfg.X); err != nil {
		return fmt.Errorf("x: %w", err)
	}
	return nil
}

// Options converts cfg into loader options. cfg must be valid.
func (cfg Config) Options() (gcov.Options, error) {
	y, err := ParseWindow(cfg.Y)
	if err != nil {
		return gcov.Options{}, fmt.Errorf("y: %w", err)
	}
	x, err := ParseWindow(cfg.X)
	if err != nil {
		return gcov.Options{}, fmt.Errorf("x: %w", err)
	}
	opts := gcov.Options{
		Variables:   cloneStrings(cfg.Variables),
		Frequencies: cloneStrings(cfg.Frequencies),
		Y:           y,
		X:           x,
		Validate:    cfg.Validate,
	}
	copy(opts.Chunks[:], cfg.Chunks)
	return opts, nil
}

// ParseWindow parses "start:stop" where either side may be empty. An empty
// string or ":" is the full axis (nil).
func ParseWindow(s string) (*gcov.Window, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("window %q is not start:stop", s)
	}
	w := &gcov.Window{}
	var err error
	if w.Start, err = parseBound(lo); err != nil {
		return nil, err
	}
	if w.Stop, err = parseBound(hi); err != nil {
		return nil, err
	}
	if w.Full() {
		return nil, nil
	}
	return w, nil
}

func parseBound(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid window bound %q", s)
	}
	return &v, nil
}

// ParseChunks parses "t,f,y,x".
func ParseChunks(s string) ([4]int, error) {
	var c [4]int
	parts := SplitList(s)
	if len(parts) != 4 {
		return c, fmt.Errorf("chunks %q needs 4 comma-separated sizes", s)
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return c, fmt.Errorf("invalid chunk size %q", p)
		}
		c[i] = n
	}
	return c, nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
