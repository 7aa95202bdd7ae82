package octree

import (
	"fmt"
	"io"
)

// Serialized layout, consumed by the renderer starting at grid 0:
//
//	grid i occupies bytes [i*32, (i+1)*32)
//	cell c of a grid occupies 4 bytes: kind tag, payload[0], payload[1], payload[2]
//
// GridPointer payloads are little-endian pool indices.  There is no header and no padding.

// putGrid writes the 32 serialized bytes of g into b.
func putGrid(b []byte, g *IndirectionGrid) {
	for c, cell := range g.Cells {
		off := c * CellBytes
		b[off] = byte(cell.Kind)
		b[off+1] = cell.Payload[0]
		b[off+2] = cell.Payload[1]
		b[off+3] = cell.Payload[2]
	}
}

// Size returns the length of the serialized buffer, Len() * GridBytes.
func (t *Octree) Size() int {
	return len(t.pool) * GridBytes
}

// Bytes flattens the whole pool, free slots included, into a new buffer.
func (t *Octree) Bytes() []byte {
	buf := make([]byte, t.Size())
	for i := range t.pool {
		putGrid(buf[i*GridBytes:], &t.pool[i])
	}
	return buf
}

// WriteTo streams the same bytes as Bytes to w.
func (t *Octree) WriteTo(w io.Writer) (int64, error) {
	var scratch [GridBytes * 64]byte
	var written int64
	for start := 0; start < len(t.pool); start += 64 {
		end := start + 64
		if end > len(t.pool) {
			end = len(t.pool)
		}
		for i := start; i < end; i++ {
			putGrid(scratch[(i-start)*GridBytes:], &t.pool[i])
		}
		n, err := w.Write(scratch[:(end-start)*GridBytes])
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Decode rebuilds an octree from a buffer produced by Bytes.  Grid depths are recovered by
// walking pointers from grid 0.  Slots not reachable from the root are queued for reuse in
// ascending order and keep their bytes, so Decode(buf).Bytes() equals buf.
func Decode(buf []byte, depthMax uint8) (*Octree, error) {
	if err := checkDepth(depthMax); err != nil {
		return nil, err
	}
	if len(buf) == 0 || len(buf)%GridBytes != 0 {
		return nil, fmt.Errorf("%w: length %d is not a positive multiple of %d", ErrCorrupt, len(buf), GridBytes)
	}
	n := len(buf) / GridBytes
	if n > MaxGrids {
		return nil, fmt.Errorf("%w: %d grids exceed %d addressable slots", ErrCapacityExceeded, n, MaxGrids)
	}

	t := &Octree{
		depthMax: depthMax,
		pool:     make([]IndirectionGrid, n),
		limit:    MaxGrids,
	}
	for i := range t.pool {
		b := buf[i*GridBytes:]
		for c := 0; c < GridCells; c++ {
			off := c * CellBytes
			kind := CellKind(b[off])
			if !kind.Valid() {
				return nil, fmt.Errorf("%w: grid %d cell %d has tag %d", ErrCorrupt, i, c, b[off])
			}
			t.pool[i].Cells[c] = GridCell{Kind: kind, Payload: Payload{b[off+1], b[off+2], b[off+3]}}
		}
	}

	reached := make([]bool, n)
	reached[0] = true
	queue := []uint32{0}
	for len(queue) > 0 {
		index := queue[0]
		queue = queue[1:]
		grid := &t.pool[index]
		for c, cell := range grid.Cells {
			if cell.Kind != GridPointer {
				continue
			}
			if grid.Depth == depthMax-1 {
				return nil, fmt.Errorf("%w: grid %d at last level %d has a pointer in cell %d",
					ErrCorrupt, index, grid.Depth, c)
			}
			child := cell.Pointer()
			if child == 0 || int(child) >= n {
				return nil, fmt.Errorf("%w: grid %d cell %d points to slot %d of %d",
					ErrCorrupt, index, c, child, n)
			}
			if reached[child] {
				return nil, fmt.Errorf("%w: slot %d is referenced more than once", ErrCorrupt, child)
			}
			reached[child] = true
			t.pool[child].Depth = grid.Depth + 1
			queue = append(queue, child)
		}
	}
	for i := 1; i < n; i++ {
		if !reached[i] {
			t.free = append(t.free, uint32(i))
		}
	}
	return t, nil
}
