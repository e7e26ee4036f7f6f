package records

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shenwei356/bio/seqio/fastx"
	"github.com/shenwei356/xopen"
	"go.uber.org/multierr"
)

type fastxReader struct {
	r *fastx.Reader
}

// openFASTX reads FASTQ or FASTA, plain or gzipped; the reader sniffs both.
func openFASTX(path string) (*fastxReader, error) {
	r, err := fastx.NewDefaultReader(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &fastxReader{r: r}, nil
}

func (r *fastxReader) Read() (Record, error) {
	rec, err := r.r.Read()
	if err != nil {
		return nil, err
	}
	// The reader may recycle its buffers; the record outlives this call.
	return rec.Clone(), nil
}

func (r *fastxReader) Close() error {
	r.r.Close()
	return nil
}

type fastxWriter struct {
	w *xopen.Writer
}

// createFASTX opens path for writing, gzipped when it ends in .gz. The
// parent directory must already exist.
func createFASTX(path string) (*fastxWriter, error) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		return nil, err
	}
	w, err := xopen.Wopen(path)
	if err != nil {
		return nil, err
	}
	return &fastxWriter{w: w}, nil
}

func (w *fastxWriter) Write(rec Record) error {
	r, ok := rec.(*fastx.Record)
	if !ok {
		return fmt.Errorf("fastx writer cannot write %T", rec)
	}
	// The buffered writer keeps its first error and returns it from then on.
	_, err := w.w.Write(r.Format(0))
	return err
}

// Close flushes buffered records first: xopen's Close drops flush errors.
func (w *fastxWriter) Close() error {
	return multierr.Append(w.w.Writer.Flush(), w.w.Close())
}
