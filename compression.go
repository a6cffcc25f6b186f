package gcov

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qri-io/dataset/compression"
)

// compressionFormat returns the compression format id for a product name,
// or "" when the name carries no compression suffix.
func compressionFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".gzip":
		return "gzip"
	case ".zst", ".zstd":
		return "zst"
	default:
		return ""
	}
}

// Decompressor wraps r in a reader that decompresses the given format.
func Decompressor(format string, r io.ReadCloser) (io.ReadCloser, error) {
	return compression.Decompressor(format, r)
}

// localCopy returns a path the HDF5 reader can open for name. Compressed
// products are inflated into a temporary file that cleanup removes.
func (s *HDF5Store) localCopy(name string) (path string, cleanup func(), err error) {
	format := compressionFormat(name)
	if format == "" {
		return name, func() {}, nil
	}

	src, err := os.Open(name)
	if err != nil {
		return "", nil, err
	}
	defer src.Close()

	r, err := Decompressor(format, src)
	if err != nil {
		return "", nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	defer r.Close()

	tmp, err := os.CreateTemp(s.TempDir, "gcov-*.h5")
	if err != nil {
		return "", nil, err
	}
	cleanup = func() { _ = os.Remove(tmp.Name()) }

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp.Name(), cleanup, nil
}
