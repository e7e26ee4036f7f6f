// Package records adapts the on-disk read formats (BAM, FASTQ, FASTA) to a
// minimal reader/writer interface. Record content is never inspected here:
// a record read from one file is written, untouched, to another.
package records

import (
	"errors"
	"fmt"
	"strings"
)

// Record is one read as produced by a Reader of some Format. It is opaque to
// callers and only meaningful to a Writer of the same Format.
type Record any

// Template is the structural header output files are created from. For BAM
// it is the *sam.Header of the first sample; FASTX formats have none.
type Template any

// Reader yields the records of one file. Read returns io.EOF once the file
// is exhausted.
type Reader interface {
	Read() (Record, error)
	Close() error
}

// Writer appends records to one file.
type Writer interface {
	Write(Record) error
	Close() error
}

// Format is an input/output file format.
type Format string

const (
	BAM   Format = "bam"
	FASTQ Format = "fastq"
	FASTA Format = "fasta"
)

var ErrUnknownFormat = errors.New("unknown record format")

var extensions = map[Format][]string{
	BAM:   {".bam"},
	FASTQ: {".fastq.gz", ".fq.gz", ".fastq", ".fq"},
	FASTA: {".fasta.gz", ".fa.gz", ".fna.gz", ".fasta", ".fa", ".fna"},
}

// ParseFormat resolves a user supplied format name. An empty name means BAM.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return BAM, nil
	case BAM, FASTQ, FASTA:
		return f, nil
	case "fq":
		return FASTQ, nil
	case "fa":
		return FASTA, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// Extensions lists the file name suffixes that identify the format.
func (f Format) Extensions() []string {
	return extensions[f]
}

// Ext is the extension given to files this program creates.
func (f Format) Ext() string {
	exts := extensions[f]
	if len(exts) == 0 {
		return ""
	}
	return exts[0]
}

// Match reports whether name carries one of the format's extensions.
func (f Format) Match(name string) bool {
	for _, ext := range extensions[f] {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return true
		}
	}
	return false
}

// OpenReader opens path for reading in the given format.
func OpenReader(f Format, path string) (Reader, error) {
	switch f {
	case BAM:
		r, err := openBAM(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	case FASTQ, FASTA:
		r, err := openFASTX(path)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// ReadTemplate extracts the header that output files of format f should
// share with the file at path.
func ReadTemplate(f Format, path string) (Template, error) {
	switch f {
	case BAM:
		h, err := readBAMHeader(path)
		if err != nil {
			return nil, err
		}
		return h, nil
	case FASTQ, FASTA:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// CreateWriter creates path and prepares it to receive records of format f.
func CreateWriter(f Format, path string, tmpl Template) (Writer, error) {
	switch f {
	case BAM:
		w, err := createBAM(path, tmpl)
		if err != nil {
			return nil, err
		}
		return w, nil
	case FASTQ, FASTA:
		w, err := createFASTX(path)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}
