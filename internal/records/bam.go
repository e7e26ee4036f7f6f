package records

import (
	"fmt"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"go.uber.org/multierr"
)

type bamReader struct {
	f *os.File
	r *bam.Reader
}

func openBAM(path string) (*bamReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := bam.NewReader(f, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &bamReader{f: f, r: r}, nil
}

func (r *bamReader) Header() *sam.Header {
	return r.r.Header()
}

func (r *bamReader) Read() (Record, error) {
	rec, err := r.r.Read()
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *bamReader) Close() error {
	return multierr.Append(r.r.Close(), r.f.Close())
}

func readBAMHeader(path string) (*sam.Header, error) {
	r, err := openBAM(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Header().Clone(), nil
}

type bamWriter struct {
	f *os.File
	w *bam.Writer
}

func createBAM(path string, tmpl Template) (*bamWriter, error) {
	h, ok := tmpl.(*sam.Header)
	if !ok || h == nil {
		return nil, fmt.Errorf("bam output %s needs a header template, got %T", path, tmpl)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w, err := bam.NewWriter(f, h, 1)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &bamWriter{f: f, w: w}, nil
}

func (w *bamWriter) Write(rec Record) error {
	r, ok := rec.(*sam.Record)
	if !ok {
		return fmt.Errorf("bam writer cannot write %T", rec)
	}
	return w.w.Write(r)
}

// Close flushes the BGZF stream, including its EOF block, before closing
// the file.
func (w *bamWriter) Close() error {
	return multierr.Append(w.w.Close(), w.f.Close())
}
