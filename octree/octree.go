package octree

import "fmt"

const (
	// PointerBits is the width of a GridPointer payload.
	PointerBits = 24

	// MaxGrids is the number of pool slots addressable by a GridPointer.
	MaxGrids = 1 << PointerBits

	// MaxDepth is the deepest tree whose fully subdivided pool still fits in MaxGrids.
	MaxDepth = 8
)

// Octree is a sparse voxel octree stored as a pool of IndirectionGrid.  Links between grids
// are pool indices, so the pool can be flattened and uploaded without pointer fixup.
//
// An Octree is not safe for concurrent use.
type Octree struct {
	depthMax uint8
	pool     []IndirectionGrid

	// free holds pool slots available for reuse, consumed front first.  Nothing in the tree
	// releases slots; only Decode queues slots it finds unreachable.
	free []uint32

	// limit caps the pool length and is MaxGrids outside of tests.
	limit uint32
}

// fullTreeGrids returns the number of grids in a fully subdivided tree of the given depth,
// stopping early once the count passes MaxGrids.
func fullTreeGrids(depthMax uint8) uint64 {
	var total, level uint64 = 0, 1
	for d := uint8(0); d < depthMax; d++ {
		total += level
		if total > MaxGrids {
			return total
		}
		level *= 8
	}
	return total
}

func checkDepth(depthMax uint8) error {
	if depthMax == 0 {
		return fmt.Errorf("%w: maximum depth must be at least 1", ErrInvalidDepth)
	}
	if n := fullTreeGrids(depthMax); n > MaxGrids {
		return fmt.Errorf("%w: depth %d needs more than %d grids when fully subdivided",
			ErrCapacityExceeded, depthMax, MaxGrids)
	}
	return nil
}

// New returns an octree spanning 2^depthMax voxels per axis with a single empty root grid.
func New(depthMax uint8) (*Octree, error) {
	if err := checkDepth(depthMax); err != nil {
		return nil, err
	}
	pool := make([]IndirectionGrid, 1)
	return &Octree{
		depthMax: depthMax,
		pool:     pool,
		limit:    MaxGrids,
	}, nil
}

// DepthMax returns the maximum tree depth.
func (t *Octree) DepthMax() uint8 {
	return t.depthMax
}

// EdgeLength returns the number of voxels per axis, 2^depthMax.
func (t *Octree) EdgeLength() int {
	return 1 << t.depthMax
}

// Len returns the number of grids in the pool, including free slots.
func (t *Octree) Len() int {
	return len(t.pool)
}

// Grid returns a copy of the grid at pool index i.
func (t *Octree) Grid(i int) (IndirectionGrid, bool) {
	if i < 0 || i >= len(t.pool) {
		return IndirectionGrid{}, false
	}
	return t.pool[i], true
}

// Reserve grows the pool capacity so that n more grids can be allocated without
// reallocation.
func (t *Octree) Reserve(n int) {
	if n <= 0 || cap(t.pool)-len(t.pool) >= n {
		return
	}
	want := len(t.pool) + n
	if want > int(t.limit) {
		want = int(t.limit)
	}
	pool := make([]IndirectionGrid, len(t.pool), want)
	copy(pool, t.pool)
	t.pool = pool
}

// CheckCoordinate returns ErrInvalidCoordinate if any axis lies outside [0, 2^depthMax).
func (t *Octree) CheckCoordinate(x, y, z int) error {
	edge := t.EdgeLength()
	if x < 0 || x >= edge || y < 0 || y >= edge || z < 0 || z >= edge {
		return fmt.Errorf("%w: (%d, %d, %d) outside [0, %d) for depth %d",
			ErrInvalidCoordinate, x, y, z, edge, t.depthMax)
	}
	return nil
}

// cellSize is the edge length in voxels of one child octant of a grid at the given depth.
func (t *Octree) cellSize(depth uint8) int {
	return 1 << (t.depthMax - depth - 1)
}

// octant selects the child octant of a grid at the given depth and rebases the local
// coordinates into that child's frame.
func (t *Octree) octant(depth uint8, x, y, z *int) int {
	size := t.cellSize(depth)
	gx, gy, gz := *x/size, *y/size, *z/size
	*x -= gx * size
	*y -= gy * size
	*z -= gz * size
	return OctantIndex(gx, gy, gz)
}

// child decodes a pointer cell into a pool index, guarding the pool bounds.
func (t *Octree) child(c GridCell, depth uint8) (uint32, error) {
	index := c.Pointer()
	if index == 0 || int(index) >= len(t.pool) {
		return 0, fmt.Errorf("%w: pointer to slot %d at depth %d (pool has %d grids)",
			ErrCorrupt, index, depth, len(t.pool))
	}
	return index, nil
}

// terminal reports whether a write reaching an empty cell of a grid at the given depth ends
// there: at the last level, or when (x, y, z), local to that grid, is its origin voxel.  The
// origin case stores a coarse leaf covering the whole octant.
func (t *Octree) terminal(depth uint8, x, y, z int) bool {
	return depth == t.depthMax-1 || (x == 0 && y == 0 && z == 0)
}

// AddData writes payload p at voxel (x, y, z), allocating child grids as needed.
//
// A Material cell met above the last level is overwritten in place without subdividing.
// A failed call leaves the tree unchanged.
func (t *Octree) AddData(x, y, z int, p Payload) error {
	if err := t.CheckCoordinate(x, y, z); err != nil {
		return err
	}
	var index uint32
	for depth := uint8(0); depth < t.depthMax; depth++ {
		grid := &t.pool[index]
		term := t.terminal(depth, x, y, z)
		octant := t.octant(depth, &x, &y, &z)
		cell := grid.Cells[octant]

		switch cell.Kind {
		case Empty:
			if term {
				grid.Cells[octant] = MaterialCell(p)
				return nil
			}
			return t.subdivide(index, octant, depth+1, x, y, z, p)
		case GridPointer:
			child, err := t.child(cell, depth)
			if err != nil {
				return err
			}
			index = child
		case Material:
			grid.Cells[octant].Payload = p
			return nil
		default:
			return fmt.Errorf("%w: %s cell at depth %d, octant %d",
				ErrUnsupportedCellKind, cell.Kind, depth, octant)
		}
	}
	return fmt.Errorf("%w: descent passed maximum depth %d", ErrCapacityExceeded, t.depthMax)
}

// subdivide hangs a chain of new grids, starting at the given depth, below the empty cell
// (index, octant) and writes p where the chain terminates.  x, y, z are local to the first
// new grid.  Capacity for the whole chain is checked before any mutation.
func (t *Octree) subdivide(index uint32, octant int, depth uint8, x, y, z int, p Payload) error {
	needed := 1
	for d, lx, ly, lz := depth, x, y, z; !t.terminal(d, lx, ly, lz); d++ {
		t.octant(d, &lx, &ly, &lz)
		needed++
	}
	if needed > t.available() {
		return fmt.Errorf("%w: need %d grids, %d available of %d",
			ErrCapacityExceeded, needed, t.available(), t.limit)
	}
	for {
		child := t.allocate(depth)
		t.pool[index].Cells[octant] = PointerCell(child)
		index = child
		term := t.terminal(depth, x, y, z)
		octant = t.octant(depth, &x, &y, &z)
		if term {
			t.pool[index].Cells[octant] = MaterialCell(p)
			return nil
		}
		depth++
	}
}

// available returns how many grids can still be allocated.
func (t *Octree) available() int {
	return len(t.free) + int(t.limit) - len(t.pool)
}

// allocate returns the index of a fresh empty grid at the given depth, reusing a free slot
// when one is queued.
func (t *Octree) allocate(depth uint8) uint32 {
	if len(t.free) > 0 {
		index := t.free[0]
		t.free = t.free[1:]
		t.pool[index] = IndirectionGrid{Depth: depth}
		return index
	}
	t.pool = append(t.pool, IndirectionGrid{Depth: depth})
	return uint32(len(t.pool) - 1)
}
