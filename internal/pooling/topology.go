// Package pooling spreads the reads of N samples over 3·√N pools laid out as
// the rows, columns and wrapped diagonals of a square sample matrix.
//
// Pools are numbered 1..3L (L = √N): 1..L are the row pools, L+1..2L the
// column pools and 2L+1..3L the diagonal pools. The index of a pool within
// its category is its number minus the category offset, minus one.
package pooling

import (
	"fmt"
	"math"
)

// Category is the matrix line a pool collects.
type Category int

const (
	Row Category = iota
	Column
	Diagonal
)

var categoryNames = [...]string{"row", "column", "diagonal"}

func (c Category) String() string {
	if c < Row || c > Diagonal {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// PoolID is the 0-based position of a pool; its file number is ID+1.
type PoolID int

// Number is the 1-based pool number used in file names.
func (id PoolID) Number() int {
	return int(id) + 1
}

// Pool is one output stream of the design.
type Pool struct {
	ID       PoolID
	Category Category
	Index    int // row, column or diagonal index in [0, L)
}

// Name is pool_<number>.
func (p Pool) Name() string {
	return fmt.Sprintf("pool_%d", p.ID.Number())
}

// FileName is Name with the file extension appended.
func (p Pool) FileName(ext string) string {
	return p.Name() + ext
}

// Topology is the square layout of N = L·L samples.
type Topology struct {
	samples int
	side    int
}

// NewTopology validates the sample count n and derives the side length.
func NewTopology(n int) (*Topology, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopology, n)
	}
	side := isqrt(n)
	if side*side != n {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopology, n)
	}
	return &Topology{samples: n, side: side}, nil
}

// isqrt is floor(sqrt(n)) for n >= 0, corrected for float rounding.
func isqrt(n int) int {
	r := int(math.Sqrt(float64(n)))
	for r*r > n {
		r--
	}
	for (r+1)*(r+1) <= n {
		r++
	}
	return r
}

// Samples is N.
func (t *Topology) Samples() int { return t.samples }

// Side is L, the number of pools per category.
func (t *Topology) Side() int { return t.side }

// NumPools is 3L.
func (t *Topology) NumPools() int { return 3 * t.side }

// RowPool, ColumnPool and DiagonalPool map an index in [0, L) of their
// category onto a pool id.
func (t *Topology) RowPool(row int) PoolID { return PoolID(row) }

func (t *Topology) ColumnPool(col int) PoolID { return PoolID(t.side + col) }

func (t *Topology) DiagonalPool(diag int) PoolID { return PoolID(2*t.side + diag) }

// Pool describes the pool with the given id.
func (t *Topology) Pool(id PoolID) Pool {
	i := int(id)
	return Pool{
		ID:       id,
		Category: Category(i / t.side),
		Index:    i % t.side,
	}
}

// Pools lists all 3L pools in number order.
func (t *Topology) Pools() []Pool {
	pools := make([]Pool, t.NumPools())
	for i := range pools {
		pools[i] = t.Pool(PoolID(i))
	}
	return pools
}
