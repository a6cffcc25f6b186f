package config

import (
	"os"
	"path/filepath"
	"testing"

	gcov "github.com/qri-io/gcov-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"inputs": ["a.h5"],
		"variables": ["HHHH", "VVVV"],
		"frequencies": ["A"],
		"y": "10:5",
		"chunks": [1, 1, 512, 512],
		"workers": 4,
		"logging": {"level": "debug"}
	}`), 0o644))

	cfg, err := LoadJSON(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.h5"}, cfg.Inputs)
	assert.Equal(t, []string{"HHHH", "VVVV"}, cfg.Variables)
	assert.Equal(t, "10:5", cfg.Y)
	assert.Equal(t, []int{1, 1, 512, 512}, cfg.Chunks)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.NoError(t, Validate(cfg))

	_, err = LoadJSON("", []byte(`{"unknown": 1}`))
	assert.Error(t, err, "unknown fields are rejected")
	_, err = LoadJSON("", nil)
	assert.Error(t, err)
	_, err = LoadJSON(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := Defaults()
	over := Config{Inputs: []string{"x.h5"}, Y: " 1:2 ", Workers: 2, Compute: true, Logging: Logging{Level: "warn"}}
	out := Merge(base, over)

	assert.Equal(t, []string{"x.h5"}, out.Inputs)
	assert.Equal(t, []string{"all"}, out.Variables, "empty override keeps base")
	assert.Equal(t, "1:2", out.Y)
	assert.Equal(t, 2, out.Workers)
	assert.True(t, out.Compute)
	assert.False(t, out.Validate)
	assert.Equal(t, "warn", out.Logging.Level)
	assert.Equal(t, []int{1, 1, 2048, 2048}, out.Chunks)

	over.Inputs[0] = "changed"
	assert.Equal(t, "x.h5", out.Inputs[0], "merge copies slices")
	out.Chunks[2] = 1
	assert.Equal(t, 2048, gcov.DefaultChunks[2], "defaults do not alias package state")
}

func TestEnvOverlay(t *testing.T) {
	over, err := EnvOverlay([]string{
		"GCOVTS_VARS=HHHH, VVVV",
		"GCOVTS_FREQS=A",
		"GCOVTS_X=:300",
		"GCOVTS_CHUNKS=1,1,256,256",
		"GCOVTS_WORKERS=8",
		"GCOVTS_LOG_LEVEL=debug",
		"GCOVTS_UNKNOWN=1",
		"HOME=/root",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"HHHH", "VVVV"}, over.Variables)
	assert.Equal(t, []string{"A"}, over.Frequencies)
	assert.Equal(t, ":300", over.X)
	assert.Equal(t, []int{1, 1, 256, 256}, over.Chunks)
	assert.Equal(t, 8, over.Workers)
	assert.Equal(t, "debug", over.Logging.Level)

	_, err = EnvOverlay([]string{"GCOVTS_WORKERS=many"})
	assert.Error(t, err)
	_, err = EnvOverlay([]string{"GCOVTS_CHUNKS=1,2"})
	assert.Error(t, err)
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("10:5")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 10.0, *w.Start)
	assert.Equal(t, 5.0, *w.Stop)

	w, err = ParseWindow(":-3.5")
	require.NoError(t, err)
	assert.Nil(t, w.Start)
	assert.Equal(t, -3.5, *w.Stop)

	w, err = ParseWindow("7:")
	require.NoError(t, err)
	assert.Equal(t, 7.0, *w.Start)
	assert.Nil(t, w.Stop)

	for _, full := range []string{"", ":", " : "} {
		w, err = ParseWindow(full)
		require.NoError(t, err)
		assert.Nil(t, w, full)
	}

	for _, bad := range []string{"5", "a:b", "1:x"} {
		_, err = ParseWindow(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseChunks(t *testing.T) {
	c, err := ParseChunks("1, 1, 50,50")
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 1, 50, 50}, c)

	_, err = ParseChunks("1,1,50")
	assert.Error(t, err)
	_, err = ParseChunks("1,1,50,z")
	assert.Error(t, err)
}

func TestValidateAndOptions(t *testing.T) {
	assert.Error(t, Validate(Defaults()), "no inputs")

	cfg := Defaults()
	cfg.Inputs = []string{"a.h5"}
	cfg.Chunks = []int{1, 2}
	assert.Error(t, Validate(cfg))

	cfg.Chunks = []int{1, 1, 64, 64}
	cfg.Workers = -1
	assert.Error(t, Validate(cfg))

	cfg.Workers = 0
	cfg.X = "oops"
	assert.Error(t, Validate(cfg))

	cfg.X = "0:100"
	cfg.Validate = true
	require.NoError(t, Validate(cfg))

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, [4]int{1, 1, 64, 64}, opts.Chunks)
	assert.Nil(t, opts.Y)
	require.NotNil(t, opts.X)
	assert.Equal(t, 100.0, *opts.X.Stop)
	assert.True(t, opts.Validate)
	assert.Equal(t, []string{"all"}, opts.Variables)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, SplitList("a, b , ,c"))
	assert.Nil(t, SplitList(""))
}
