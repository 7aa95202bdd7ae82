package octree

import (
	"bytes"
	"errors"
	"testing"
)

func mustNew(t *testing.T, depthMax uint8) *Octree {
	t.Helper()
	tree, err := New(depthMax)
	if err != nil {
		t.Fatalf("New(%d): %v", depthMax, err)
	}
	return tree
}

func coordPayload(x, y, z int) Payload {
	return Payload{byte(x), byte(y), byte(z)}
}

func TestNewDepthBounds(t *testing.T) {
	if _, err := New(0); !errors.Is(err, ErrInvalidDepth) {
		t.Errorf("expected ErrInvalidDepth for depth 0, got %v", err)
	}
	for _, d := range []uint8{9, 10, 255} {
		if _, err := New(d); !errors.Is(err, ErrCapacityExceeded) {
			t.Errorf("expected ErrCapacityExceeded for depth %d, got %v", d, err)
		}
	}
	for d := uint8(1); d <= MaxDepth; d++ {
		tree := mustNew(t, d)
		if tree.Len() != 1 {
			t.Errorf("depth %d: expected 1 grid, got %d", d, tree.Len())
		}
		if tree.EdgeLength() != 1<<d {
			t.Errorf("depth %d: bad edge length %d", d, tree.EdgeLength())
		}
		buf := tree.Bytes()
		if !bytes.Equal(buf, make([]byte, GridBytes)) {
			t.Errorf("depth %d: new tree should serialize to 32 zero bytes, got %v", d, buf)
		}
	}
}

func TestFullTreeGrids(t *testing.T) {
	if n := fullTreeGrids(8); n != 2396745 {
		t.Errorf("expected 2396745 grids at depth 8, got %d", n)
	}
	if n := fullTreeGrids(9); n <= MaxGrids {
		t.Errorf("depth 9 should overflow %d grids, got %d", MaxGrids, n)
	}
}

func TestScenarioDepth3(t *testing.T) {
	tree := mustNew(t, 3)
	if err := tree.AddData(0, 0, 0, Payload{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	root, _ := tree.Grid(0)
	if root.Cell(0) != MaterialCell(Payload{1, 2, 3}) {
		t.Errorf("root cell 0 should be material [1 2 3], got %v", root.Cell(0))
	}
	if tree.Len() != 1 {
		t.Errorf("origin write should not allocate, pool has %d grids", tree.Len())
	}
	if n := len(tree.Bytes()); n != 32 {
		t.Errorf("expected 32 serialized bytes, got %d", n)
	}

	if err := tree.AddData(7, 7, 7, Payload{9, 9, 9}); err != nil {
		t.Fatal(err)
	}
	root, _ = tree.Grid(0)
	if root.Cell(7).Kind != GridPointer {
		t.Fatalf("root cell 7 should be a pointer, got %v", root.Cell(7))
	}
	if tree.Len() != 3 {
		t.Fatalf("expected 3 grids, got %d", tree.Len())
	}
	mid, _ := tree.Grid(int(root.Cell(7).Pointer()))
	if mid.Depth != 1 || mid.Cell(7).Kind != GridPointer {
		t.Fatalf("bad depth 1 grid: %+v", mid)
	}
	leaf, _ := tree.Grid(int(mid.Cell(7).Pointer()))
	if leaf.Depth != 2 {
		t.Errorf("deepest grid should be at depth 2, got %d", leaf.Depth)
	}
	if leaf.Cell(7) != MaterialCell(Payload{9, 9, 9}) {
		t.Errorf("deepest cell 7 should be material [9 9 9], got %v", leaf.Cell(7))
	}
	if root.Cell(0) != MaterialCell(Payload{1, 2, 3}) {
		t.Errorf("root cell 0 changed to %v", root.Cell(0))
	}
}

// sampleBuffer descends a serialized pool the way the renderer does, reading tags and
// little-endian pointers straight from the bytes.
func sampleBuffer(buf []byte, depthMax uint8, x, y, z int) (Payload, bool) {
	grid := 0
	for depth := 0; depth < int(depthMax); depth++ {
		bit := uint(int(depthMax) - 1 - depth)
		oct := (x>>bit)&1 | ((y>>bit)&1)<<1 | ((z>>bit)&1)<<2
		off := grid*32 + oct*4
		if off+4 > len(buf) {
			return Payload{}, false
		}
		switch buf[off] {
		case 1:
			grid = int(buf[off+1]) | int(buf[off+2])<<8 | int(buf[off+3])<<16
		case 2:
			return Payload{buf[off+1], buf[off+2], buf[off+3]}, true
		default:
			return Payload{}, false
		}
	}
	return Payload{}, false
}

func TestRoundTrip(t *testing.T) {
	maxDepth := uint8(6)
	if testing.Short() {
		maxDepth = 4
	}
	for d := uint8(1); d <= maxDepth; d++ {
		edge := 1 << d
		for z := 0; z < edge; z++ {
			for y := 0; y < edge; y++ {
				for x := 0; x < edge; x++ {
					tree := mustNew(t, d)
					p := coordPayload(x, y, z)
					if err := tree.AddData(x, y, z, p); err != nil {
						t.Fatalf("depth %d (%d,%d,%d): %v", d, x, y, z, err)
					}
					got, found, err := tree.Lookup(x, y, z)
					if err != nil {
						t.Fatalf("depth %d (%d,%d,%d) lookup: %v", d, x, y, z, err)
					}
					if !found || got != p {
						t.Fatalf("depth %d (%d,%d,%d): expected %v, got %v (found %t)", d, x, y, z, p, got, found)
					}
					if got, found := sampleBuffer(tree.Bytes(), d, x, y, z); !found || got != p {
						t.Fatalf("depth %d (%d,%d,%d): buffer walk found %v (found %t)", d, x, y, z, got, found)
					}
					if tree.Len() > int(d) {
						t.Fatalf("depth %d (%d,%d,%d): %d grids allocated", d, x, y, z, tree.Len())
					}
				}
			}
		}
	}
}

func TestBufferWalkMatchesLookup(t *testing.T) {
	const depth = 4
	tree := mustNew(t, depth)
	edge := 1 << depth
	for i := 0; i < 200; i++ {
		x, y, z := (i*7+3)%edge, (i*11+5)%edge, (i*13+1)%edge
		if err := tree.AddData(x, y, z, Payload{byte(i), 1, 2}); err != nil {
			t.Fatal(err)
		}
	}
	buf := tree.Bytes()
	for z := 0; z < edge; z++ {
		for y := 0; y < edge; y++ {
			for x := 0; x < edge; x++ {
				want, wantFound, err := tree.Lookup(x, y, z)
				if err != nil {
					t.Fatal(err)
				}
				got, found := sampleBuffer(buf, depth, x, y, z)
				if found != wantFound || got != want {
					t.Errorf("(%d,%d,%d): buffer walk gave %v %t, lookup gave %v %t", x, y, z, got, found, want, wantFound)
				}
			}
		}
	}
}

func TestOverwriteIdempotence(t *testing.T) {
	coords := [][3]int{{0, 0, 0}, {7, 7, 7}, {3, 0, 5}, {1, 1, 1}, {4, 0, 0}, {6, 2, 1}}
	for _, c := range coords {
		once := mustNew(t, 3)
		if err := once.AddData(c[0], c[1], c[2], Payload{5, 5, 5}); err != nil {
			t.Fatal(err)
		}
		twice := mustNew(t, 3)
		if err := twice.AddData(c[0], c[1], c[2], Payload{4, 4, 4}); err != nil {
			t.Fatal(err)
		}
		if err := twice.AddData(c[0], c[1], c[2], Payload{5, 5, 5}); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(once.Bytes(), twice.Bytes()) {
			t.Errorf("%v: repeated write changed tree shape\n once: %v\ntwice: %v", c, once.Bytes(), twice.Bytes())
		}
	}
}

func TestSizeAndAllocationBound(t *testing.T) {
	tree := mustNew(t, 5)
	edge := tree.EdgeLength()
	for i := 0; i < 400; i++ {
		x, y, z := (i*7)%edge, (i*13+3)%edge, (i*29+11)%edge
		before := tree.Len()
		if err := tree.AddData(x, y, z, coordPayload(x, y, z)); err != nil {
			t.Fatal(err)
		}
		if grown := tree.Len() - before; grown < 0 || grown > int(tree.DepthMax())-1 {
			t.Fatalf("insert %d grew pool by %d", i, grown)
		}
		if n := len(tree.Bytes()); n != tree.Len()*GridBytes || n != tree.Size() {
			t.Fatalf("serialized %d bytes for %d grids", n, tree.Len())
		}
	}
}

func TestCoordinateBounds(t *testing.T) {
	tree := mustNew(t, 8)
	if err := tree.AddData(255, 255, 255, Payload{1}); err != nil {
		t.Fatalf("(255,255,255) should be admitted at depth 8: %v", err)
	}
	snapshot := tree.Bytes()
	bad := [][3]int{{256, 0, 0}, {0, 256, 0}, {0, 0, 256}, {-1, 0, 0}, {0, -1, 0}, {0, 0, -1}}
	for _, c := range bad {
		if err := tree.AddData(c[0], c[1], c[2], Payload{2}); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("%v: expected ErrInvalidCoordinate, got %v", c, err)
		}
		if _, _, err := tree.Lookup(c[0], c[1], c[2]); !errors.Is(err, ErrInvalidCoordinate) {
			t.Errorf("%v: lookup expected ErrInvalidCoordinate, got %v", c, err)
		}
	}
	if !bytes.Equal(snapshot, tree.Bytes()) {
		t.Error("rejected writes modified the tree")
	}
}

func TestAttachmentRejected(t *testing.T) {
	tree := mustNew(t, 3)
	tree.pool[0].SetCell(0, GridCell{Kind: Attachment, Payload: Payload{1, 0, 0}})
	before := tree.Bytes()
	if err := tree.AddData(1, 1, 1, Payload{3}); !errors.Is(err, ErrUnsupportedCellKind) {
		t.Fatalf("expected ErrUnsupportedCellKind, got %v", err)
	}
	if _, _, err := tree.Lookup(1, 1, 1); !errors.Is(err, ErrUnsupportedCellKind) {
		t.Errorf("lookup expected ErrUnsupportedCellKind, got %v", err)
	}
	if !bytes.Equal(before, tree.Bytes()) || tree.Len() != 1 {
		t.Error("rejected write modified the tree")
	}
}

func TestCapacityExceeded(t *testing.T) {
	tree := mustNew(t, 3)
	tree.limit = 2
	if err := tree.AddData(7, 7, 7, Payload{9}); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if tree.Len() != 1 {
		t.Errorf("failed insert left %d grids", tree.Len())
	}
	if root, _ := tree.Grid(0); root.Cell(7).Kind != Empty {
		t.Errorf("failed insert left root cell 7 as %v", root.Cell(7))
	}

	tree.limit = 3
	if err := tree.AddData(7, 7, 7, Payload{9}); err != nil {
		t.Fatalf("insert should fit in 3 grids: %v", err)
	}
	if tree.Len() != 3 {
		t.Errorf("expected 3 grids, got %d", tree.Len())
	}
}

func TestMaterialShortCircuit(t *testing.T) {
	tree := mustNew(t, 3)
	if err := tree.AddData(0, 0, 0, Payload{1}); err != nil {
		t.Fatal(err)
	}
	// (1, 1, 1) falls in the same root octant as the coarse origin leaf.
	if err := tree.AddData(1, 1, 1, Payload{2}); err != nil {
		t.Fatal(err)
	}
	if tree.Len() != 1 {
		t.Errorf("write into coarse leaf should not subdivide, pool has %d grids", tree.Len())
	}
	for _, c := range [][3]int{{0, 0, 0}, {1, 1, 1}, {3, 3, 3}} {
		p, found, err := tree.Lookup(c[0], c[1], c[2])
		if err != nil || !found || p != (Payload{2}) {
			t.Errorf("%v: expected coarse payload [2 0 0], got %v %t %v", c, p, found, err)
		}
	}
	if _, found, _ := tree.Lookup(4, 4, 4); found {
		t.Error("(4,4,4) should be empty")
	}
}

func TestWalkAndStats(t *testing.T) {
	tree := mustNew(t, 3)
	if err := tree.AddData(0, 0, 0, Payload{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := tree.AddData(7, 7, 7, Payload{9, 9, 9}); err != nil {
		t.Fatal(err)
	}

	var leaves []Leaf
	if err := tree.Walk(func(l Leaf) error {
		leaves = append(leaves, l)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	expected := []Leaf{
		{X: 0, Y: 0, Z: 0, Size: 4, Depth: 0, Payload: Payload{1, 2, 3}},
		{X: 7, Y: 7, Z: 7, Size: 1, Depth: 2, Payload: Payload{9, 9, 9}},
	}
	if len(leaves) != len(expected) {
		t.Fatalf("expected %d leaves, got %v", len(expected), leaves)
	}
	for i := range expected {
		if leaves[i] != expected[i] {
			t.Errorf("leaf %d: expected %+v, got %+v", i, expected[i], leaves[i])
		}
	}

	stop := errors.New("stop")
	var visited int
	if err := tree.Walk(func(Leaf) error { visited++; return stop }); err != stop || visited != 1 {
		t.Errorf("walk should stop at first error, got %v after %d leaves", err, visited)
	}

	s := tree.Stats()
	want := Stats{Grids: 3, ReachableGrids: 3, MaterialCells: 2, PointerCells: 2, EmptyCells: 20, BufferBytes: 96}
	if s != want {
		t.Errorf("expected stats %+v, got %+v", want, s)
	}
}

func TestReserve(t *testing.T) {
	tree := mustNew(t, 4)
	tree.Reserve(100)
	if tree.Len() != 1 {
		t.Errorf("reserve changed length to %d", tree.Len())
	}
	if cap(tree.pool) < 101 {
		t.Errorf("expected capacity >= 101, got %d", cap(tree.pool))
	}
	if err := tree.AddData(15, 0, 15, Payload{1}); err != nil {
		t.Fatal(err)
	}
}
