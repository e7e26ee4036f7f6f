package pooling

// Coordinate is a sample's cell in the L×L matrix.
type Coordinate struct {
	Row int
	Col int
}

// Coordinate maps a 1-based sample ordinal onto the matrix in row-major
// order: row = (i-1) div L, col = (i-1) mod L.
func (t *Topology) Coordinate(ordinal int) Coordinate {
	i := ordinal - 1
	return Coordinate{Row: i / t.side, Col: i % t.side}
}

// Targets are the three pools a sample feeds, in row, column, diagonal
// order. A read picks one of them by index.
type Targets [3]PoolID

func (t Targets) Row() PoolID { return t[Row] }

func (t Targets) Column() PoolID { return t[Column] }

func (t Targets) Diagonal() PoolID { return t[Diagonal] }

// Assign returns the row, column and diagonal pool of the cell c.
func (t *Topology) Assign(c Coordinate) Targets {
	return Targets{
		t.RowPool(c.Row),
		t.ColumnPool(c.Col),
		t.DiagonalPool(diagonal(c.Row, c.Col, t.side)),
	}
}

// diagonal is (row - col) mod side, kept in [0, side).
func diagonal(row, col, side int) int {
	d := (row - col) % side
	if d < 0 {
		d += side
	}
	return d
}
