package kernel

// Grid is a dense row-major 2D real field with periodic boundaries.
type Grid struct {
	Rows, Cols int
	Data       []float64
}

// NewGrid allocates a zeroed rows×cols grid.
func NewGrid(rows, cols int) *Grid {
	return &Grid{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at (r, c), wrapping both indices periodically.
func (g *Grid) At(r, c int) float64 {
	return g.Data[wrap(r, g.Rows)*g.Cols+wrap(c, g.Cols)]
}

// Set stores v at (r, c). Indices must be in range.
func (g *Grid) Set(r, c int, v float64) {
	g.Data[r*g.Cols+c] = v
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	out := &Grid{Rows: g.Rows, Cols: g.Cols, Data: make([]float64, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Shape returns the dimensions as a slice, in the order written to .npy files.
func (g *Grid) Shape() []int { return []int{g.Rows, g.Cols} }

// SameShape reports whether g and o have identical dimensions.
func (g *Grid) SameShape(o *Grid) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

// CGrid is the complex-valued counterpart of Grid.
type CGrid struct {
	Rows, Cols int
	Data       []complex128
}

// NewCGrid allocates a zeroed rows×cols complex grid.
func NewCGrid(rows, cols int) *CGrid {
	return &CGrid{Rows: rows, Cols: cols, Data: make([]complex128, rows*cols)}
}

// At returns the value at (r, c), wrapping both indices periodically.
func (g *CGrid) At(r, c int) complex128 {
	return g.Data[wrap(r, g.Rows)*g.Cols+wrap(c, g.Cols)]
}

// Clone returns a deep copy.
func (g *CGrid) Clone() *CGrid {
	out := &CGrid{Rows: g.Rows, Cols: g.Cols, Data: make([]complex128, len(g.Data))}
	copy(out.Data, g.Data)
	return out
}

// Shape returns the dimensions as a slice.
func (g *CGrid) Shape() []int { return []int{g.Rows, g.Cols} }

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}
