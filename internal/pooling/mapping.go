package pooling

import (
	"encoding/csv"
	"os"

	"go.uber.org/multierr"
)

var mappingHeader = []string{"File Name", "Sample Name"}

// WriteMapping saves the original file name -> anonymized sample name table
// as CSV, in ordinal order.
func WriteMapping(path string, samples []Sample) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	w := csv.NewWriter(f)
	if err := w.Write(mappingHeader); err != nil {
		return err
	}
	for _, s := range samples {
		if err := w.Write([]string{s.File, s.Name}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
