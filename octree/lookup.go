package octree

import "fmt"

// Lookup descends to (x, y, z) without modifying the tree.  It returns the payload of the
// Material cell that covers the voxel, which may be a coarse cell above the last level, or
// false if the descent ends at an Empty cell.
func (t *Octree) Lookup(x, y, z int) (Payload, bool, error) {
	if err := t.CheckCoordinate(x, y, z); err != nil {
		return Payload{}, false, err
	}
	var index uint32
	for depth := uint8(0); depth < t.depthMax; depth++ {
		cell := t.pool[index].Cells[t.octant(depth, &x, &y, &z)]
		switch cell.Kind {
		case Empty:
			return Payload{}, false, nil
		case Material:
			return cell.Payload, true, nil
		case GridPointer:
			child, err := t.child(cell, depth)
			if err != nil {
				return Payload{}, false, err
			}
			index = child
		default:
			return Payload{}, false, fmt.Errorf("%w: %s cell at depth %d", ErrUnsupportedCellKind, cell.Kind, depth)
		}
	}
	return Payload{}, false, fmt.Errorf("%w: descent passed maximum depth %d", ErrCapacityExceeded, t.depthMax)
}

// Leaf describes a Material cell reached by Walk.  X, Y, Z is the absolute origin of the cell
// and Size its edge length in voxels, which is 1 at the last level.
type Leaf struct {
	X, Y, Z int
	Size    int
	Depth   uint8
	Payload Payload
}

// Walk calls fn for every Material cell reachable from the root, depth first in octant order.
// It stops at and returns the first error from fn.
func (t *Octree) Walk(fn func(Leaf) error) error {
	return t.walk(0, 0, 0, 0, 0, fn)
}

func (t *Octree) walk(index uint32, depth uint8, ox, oy, oz int, fn func(Leaf) error) error {
	if depth >= t.depthMax {
		return fmt.Errorf("%w: grid %d below maximum depth %d", ErrCorrupt, index, t.depthMax)
	}
	size := t.cellSize(depth)
	grid := &t.pool[index]
	for octant, cell := range grid.Cells {
		gx, gy, gz := OctantSelectors(octant)
		x, y, z := ox+gx*size, oy+gy*size, oz+gz*size
		switch cell.Kind {
		case Material:
			leaf := Leaf{X: x, Y: y, Z: z, Size: size, Depth: depth, Payload: cell.Payload}
			if err := fn(leaf); err != nil {
				return err
			}
		case GridPointer:
			child, err := t.child(cell, depth)
			if err != nil {
				return err
			}
			if err := t.walk(child, depth+1, x, y, z, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Stats summarizes pool usage.
type Stats struct {
	Grids          int // pool length, including free slots
	ReachableGrids int
	FreeGrids      int
	MaterialCells  int
	PointerCells   int
	EmptyCells     int
	BufferBytes    int
}

// Stats counts cells over the grids reachable from the root.
func (t *Octree) Stats() Stats {
	s := Stats{
		Grids:       len(t.pool),
		FreeGrids:   len(t.free),
		BufferBytes: len(t.pool) * GridBytes,
	}
	stack := []uint32{0}
	for len(stack) > 0 {
		index := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		s.ReachableGrids++
		for _, cell := range t.pool[index].Cells {
			switch cell.Kind {
			case Empty:
				s.EmptyCells++
			case Material:
				s.MaterialCells++
			case GridPointer:
				s.PointerCells++
				if child := cell.Pointer(); child != 0 && int(child) < len(t.pool) {
					stack = append(stack, child)
				}
			}
		}
	}
	return s
}
