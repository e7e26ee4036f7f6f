package pooling

import "errors"

// Fatal conditions of a run. They are reported before any pool file or
// output directory is created.
var (
	ErrInvalidTopology       = errors.New("the number of samples is not a perfect square")
	ErrSampleCountMismatch   = errors.New("the number of input files is not equal to the number of samples")
	ErrMissingInputDirectory = errors.New("the input directory does not exist")
	ErrOutputAlreadyExists   = errors.New("the output directory already exists, delete it and try again")
)
