package pooling

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/Altius/stampipes/programs/matrix_pool/internal/records"
)

// Sample is one input file and its fixed place in the matrix.
type Sample struct {
	Ordinal    int    // 1-based, in file name order
	File       string // original file name
	Path       string
	Name       string // anonymized name, S<ordinal><ext>
	Coordinate Coordinate
}

// DiscoverSamples lists the files in dir carrying one of format's
// extensions, sorted by name.
func DiscoverSamples(dir string, format records.Format) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInputDirectory, dir)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrMissingInputDirectory, dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !format.Match(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// IndexSamples discovers the samples in dir and pins each one to its matrix
// cell. The i-th file in name order gets ordinal i.
func IndexSamples(dir string, format records.Format, topo *Topology) ([]Sample, error) {
	names, err := DiscoverSamples(dir, format)
	if err != nil {
		return nil, err
	}
	if len(names) != topo.Samples() {
		return nil, fmt.Errorf("%w: found %d %s files in %s, expected %d",
			ErrSampleCountMismatch, len(names), format, dir, topo.Samples())
	}

	samples := make([]Sample, len(names))
	for i, name := range names {
		ordinal := i + 1
		samples[i] = Sample{
			Ordinal:    ordinal,
			File:       name,
			Path:       filepath.Join(dir, name),
			Name:       fmt.Sprintf("S%d%s", ordinal, format.Ext()),
			Coordinate: topo.Coordinate(ordinal),
		}
	}
	return samples, nil
}
