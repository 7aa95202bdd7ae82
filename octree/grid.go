package octree

// Grid dimensions and wire sizes.
const (
	// GridCells is the number of cells in a 2x2x2 grid.
	GridCells = 8

	// CellBytes is the serialized size of one cell: a tag byte and 3 payload bytes.
	CellBytes = 4

	// GridBytes is the serialized size of one grid.
	GridBytes = GridCells * CellBytes
)

// IndirectionGrid is one 2x2x2 node of the tree.  The zero value is a grid at depth 0 with
// all cells Empty.
type IndirectionGrid struct {
	Depth uint8
	Cells [GridCells]GridCell
}

// Cell returns the cell at the given octant code.
func (g *IndirectionGrid) Cell(octant int) GridCell {
	return g.Cells[octant]
}

// SetCell replaces the cell at the given octant code.
func (g *IndirectionGrid) SetCell(octant int, c GridCell) {
	g.Cells[octant] = c
}

// OctantIndex returns the octant code gx + 2*gy + 4*gz for selectors in {0,1}.
func OctantIndex(gx, gy, gz int) int {
	return gx + 2*gy + 4*gz
}

// OctantSelectors is the inverse of OctantIndex.
func OctantSelectors(octant int) (gx, gy, gz int) {
	return octant & 1, (octant >> 1) & 1, (octant >> 2) & 1
}
